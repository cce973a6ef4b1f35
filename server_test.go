package main

import (
	"crypto/tls"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-barthelemy/wakepush/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/acme/autocert"
)

func serverConfig() *models.Config {
	var config models.Config
	config = config.New()
	return &config
}

func TestServerTLSConfig_PlainModes(t *testing.T) {
	for _, mode := range []string{"off", "proxy"} {
		config := serverConfig()
		config.SSLMode = mode
		tlsConfig, err := serverTLSConfig(config, nil)
		require.NoError(t, err)
		assert.Nil(t, tlsConfig, mode)
	}
}

func TestServerTLSConfig_Auto(t *testing.T) {
	config := serverConfig()
	config.SSLMode = "auto"
	config.SSLDomain = "push.example.com"

	_, err := serverTLSConfig(config, nil)
	assert.Error(t, err)

	manager := &autocert.Manager{Prompt: autocert.AcceptTOS, HostPolicy: autocert.HostWhitelist(config.SSLDomain)}
	tlsConfig, err := serverTLSConfig(config, manager)
	require.NoError(t, err)
	assert.NotNil(t, tlsConfig.GetCertificate)
	assert.Equal(t, uint16(tls.VersionTLS12), tlsConfig.MinVersion)
	assert.True(t, tlsConfig.SessionTicketsDisabled)
}

func TestServerTLSConfig_CustomMissingFiles(t *testing.T) {
	config := serverConfig()
	config.SSLMode = "custom"
	config.SSLCustomCertPath = filepath.Join(t.TempDir(), "cert.pem")
	config.SSLCustomKeyPath = filepath.Join(t.TempDir(), "key.pem")

	_, err := serverTLSConfig(config, nil)
	assert.ErrorContains(t, err, "custom key or certificate")
}

func TestECDHEAEADSuites(t *testing.T) {
	ids := ecdheAEADSuites()
	require.NotEmpty(t, ids)
	assert.Contains(t, ids, tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256)
	for _, id := range ids {
		name := tls.CipherSuiteName(id)
		assert.True(t, strings.HasPrefix(name, "TLS_ECDHE_"), name)
		assert.NotContains(t, name, "_CBC_")
	}
}

func TestNewServer(t *testing.T) {
	config := serverConfig()
	config.Host = "0.0.0.0"
	config.Port = 9443
	server := newServer(config, http.NotFoundHandler(), nil)
	assert.Equal(t, "0.0.0.0:9443", server.Addr)
	assert.Nil(t, server.TLSConfig)
	assert.Equal(t, time.Hour, server.WriteTimeout)
}
