package main

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/m-barthelemy/wakepush/models"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/acme/autocert"
)

func startServer(config *models.Config, handler http.Handler) {
	var certManager *autocert.Manager
	if config.SSLMode == "auto" {
		if err := os.MkdirAll(config.SSLAutoCertsDir, 0700); err != nil {
			log.Fatalf("Could not create Letsencrypt certs directory %s : %s", config.SSLAutoCertsDir, err.Error())
		}
		certManager = &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(config.SSLDomain),
			Cache:      autocert.DirCache(config.SSLAutoCertsDir),
		}
	}

	tlsConfig, err := serverTLSConfig(config, certManager)
	if err != nil {
		log.Fatalf("Could not set up TLS: %s", err.Error())
	}
	server := newServer(config, handler, tlsConfig)

	log.Infof("Listening on %s (SSL mode: %s)", server.Addr, config.SSLMode)
	if certManager != nil {
		go func() {
			// ACME http-01 challenges, everything else is redirected to HTTPS.
			log.Fatal(http.ListenAndServe(":http", certManager.HTTPHandler(nil)))
		}()
	}
	if tlsConfig != nil {
		log.Fatal(server.ListenAndServeTLS("", ""))
	}
	log.Fatal(server.ListenAndServe())
}

func newServer(config *models.Config, handler http.Handler, tlsConfig *tls.Config) *http.Server {
	return &http.Server{
		Addr:              config.ListenAddress(),
		Handler:           handler,
		TLSConfig:         tlsConfig,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		// /send answers once every subscriber has been notified.
		WriteTimeout: time.Hour,
		IdleTimeout:  time.Minute,
	}
}

// serverTLSConfig returns nil when TLS is off or terminated by a proxy.
func serverTLSConfig(config *models.Config, certManager *autocert.Manager) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:             tls.VersionTLS12,
		CurvePreferences:       []tls.CurveID{tls.X25519, tls.CurveP256},
		CipherSuites:           ecdheAEADSuites(),
		SessionTicketsDisabled: true,
	}

	switch config.SSLMode {
	case "auto":
		if certManager == nil {
			return nil, fmt.Errorf("auto SSL mode requires a certificate manager")
		}
		tlsConfig.GetCertificate = certManager.GetCertificate
	case "custom":
		cert, err := tls.LoadX509KeyPair(config.SSLCustomCertPath, config.SSLCustomKeyPath)
		if err != nil {
			return nil, fmt.Errorf("loading custom key or certificate: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	default:
		return nil, nil
	}
	return tlsConfig, nil
}

// ecdheAEADSuites lists the TLS 1.2 suites with forward secrecy and no CBC mode.
// TLS 1.3 suites are not configurable and always enabled.
func ecdheAEADSuites() []uint16 {
	var ids []uint16
	for _, suite := range tls.CipherSuites() {
		if strings.HasPrefix(suite.Name, "TLS_ECDHE_") && !strings.Contains(suite.Name, "_CBC_") {
			ids = append(ids, suite.ID)
		}
	}
	return ids
}
