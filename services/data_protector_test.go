package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataProtector_SealOpen(t *testing.T) {
	config := testConfig()
	config.EncryptionKey = "0123456789abcdef0123456789abcdef"
	dp := NewDataProtector(config)
	plain := []byte(`{"endpoint":"https://relay.example.com/x"}`)

	sealed, err := dp.Seal(plain)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(sealed, []byte("enc:")))
	assert.NotContains(t, string(sealed), "relay.example.com")

	again, err := dp.Seal(plain)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "nonce must differ between seals")

	opened, err := dp.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)

	// Records written before the key was configured are still readable.
	opened, err = dp.Open(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, opened)
}

func TestDataProtector_Disabled(t *testing.T) {
	dp := NewDataProtector(testConfig())
	plain := []byte(`{"endpoint":"https://relay.example.com/x"}`)

	sealed, err := dp.Seal(plain)
	require.NoError(t, err)
	assert.Equal(t, plain, sealed)

	_, err = dp.Open([]byte("enc:00ff"))
	assert.Error(t, err)
}

func TestDataProtector_Tampered(t *testing.T) {
	config := testConfig()
	config.EncryptionKey = "0123456789abcdef0123456789abcdef"
	dp := NewDataProtector(config)

	sealed, err := dp.Seal([]byte("secret"))
	require.NoError(t, err)
	if sealed[len(sealed)-1] == '0' {
		sealed[len(sealed)-1] = '1'
	} else {
		sealed[len(sealed)-1] = '0'
	}
	_, err = dp.Open(sealed)
	assert.Error(t, err)

	_, err = dp.Open([]byte("enc:zz"))
	assert.Error(t, err)
	_, err = dp.Open([]byte("enc:00"))
	assert.Error(t, err)
}
