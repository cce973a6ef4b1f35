package models

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyScheme(t *testing.T) {
	assert.Equal(t, "user:dev-1", DeviceKey("dev-1"))
	assert.Equal(t, "sub:dev-1", SubscriptionKey("dev-1"))

	id, ok := DeviceIDFromSubscriptionKey("sub:dev-1")
	assert.True(t, ok)
	assert.Equal(t, "dev-1", id)

	_, ok = DeviceIDFromSubscriptionKey("user:dev-1")
	assert.False(t, ok)
	_, ok = DeviceIDFromSubscriptionKey("sub:")
	assert.False(t, ok)
}

func TestNewCampaign(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	c, err := NewCampaign("", "hello", now)
	require.NoError(t, err)
	assert.Equal(t, DefaultCampaignTitle, c.Title)
	assert.Equal(t, "hello", c.Body)
	assert.Equal(t, int64(1700000000123), c.SentAt)
	assert.NotEmpty(t, c.ID)

	long, err := NewCampaign(strings.Repeat("ş", 50), strings.Repeat("b", 200), now)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("ş", 40), long.Title)
	assert.Len(t, long.Body, 120)
}

func TestParseCampaign_RoundTrip(t *testing.T) {
	c, err := NewCampaign("Maç başladı", "Canlı skor", time.Now())
	require.NoError(t, err)

	data, err := c.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"sentAt"`)

	got, err := ParseCampaign(data)
	require.NoError(t, err)
	assert.Equal(t, c, got)

	_, err = ParseCampaign([]byte(`{"title":"x","body":"y","sentAt":-1}`))
	assert.Error(t, err)
}

func TestParseDeviceRecord(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `{"deviceId":"d1","username":"ali","permission":"granted","subscribed":true,"first_seen":1,"last_seen":2}`, false},
		{"legacy empty permission", `{"deviceId":"d1","username":"ali"}`, false},
		{"missing id", `{"username":"ali"}`, true},
		{"bad permission", `{"deviceId":"d1","permission":"maybe"}`, true},
		{"not json", `{"deviceId":`, true},
		{"username too long", `{"deviceId":"d1","username":"` + strings.Repeat("a", 65) + `"}`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDeviceRecord([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDeviceRecord_EncodeUsesStoredFieldNames(t *testing.T) {
	d := &DeviceRecord{DeviceID: "d1", Username: "ali", FirstSeen: 10, LastSeen: 20}
	data, err := d.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"first_seen":10`)
	assert.Contains(t, string(data), `"last_seen":20`)
}

func TestParsePushSubscription(t *testing.T) {
	raw := `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","expirationTime":null,"keys":{"p256dh":"BNc","auth":"tBH"}}`

	sub, err := ParsePushSubscription([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "https://fcm.googleapis.com/fcm/send/abc", sub.Endpoint)
	assert.Equal(t, "BNc", sub.Keys.P256dh)
	assert.JSONEq(t, raw, string(sub.Raw))

	for _, bad := range []string{``, `{}`, `{"endpoint":"not a url"}`, `{"endpoint":"ftp://relay/x"}`, `[1,2]`} {
		_, err := ParsePushSubscription([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "", Truncate("abc", 0))
	assert.Equal(t, "ab", Truncate("abc", 2))
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "çğ", Truncate("çğü", 2))
}
