package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/m-barthelemy/wakepush/services/vapid"
	log "github.com/sirupsen/logrus"
)

// Config holds all the application config values.
// Not really a classical model since not saved into the store.
type Config struct {
	AdminEmail        string        // ADMINEMAIL
	AdminUser         string        // ADMINUSER
	AdminPassword     string        // ADMINPASSWORD
	Debug             bool          // DEBUG
	LogLevel          string        // LOGLEVEL
	Port              int           // PORT
	Host              string        // HOST
	StoreType         string        // STORETYPE
	StoreDSN          string        // STOREDSN
	EncryptionKey     string        // ENCRYPTIONKEY
	MaxBodySize       int64         // MAXBODYSIZE
	OriginalIPHeader  string        // ORIGINALIPHEADER
	PageSize          int           // PAGESIZE
	PushTTL           int           // PUSHTTL
	PushTimeout       time.Duration // PUSHTIMEOUT
	RateLimit         int           // RATELIMIT, requests per minute and per IP on public endpoints
	SSLMode           string        // SSLMODE
	SSLAutoCertsDir   string        // SSLAUTOCERTSDIR
	SSLCustomCertPath string        // SSLCUSTOMCERTPATH
	SSLCustomKeyPath  string        // SSLCUSTOMKEYPATH
	SSLDomain         string        // SSLDOMAIN
	VapidPublicKey    string        // VAPIDPUBLICKEY
	VapidPrivateKey   string        // VAPIDPRIVATEKEY
	VapidSubject      string        // VAPIDSUBJECT
	Workers           int           // WORKERS
}

func (config *Config) New() Config {
	var defaultConfig = Config{
		Debug:             false,
		LogLevel:          "info",
		Port:              8080,
		Host:              "127.0.0.1",
		StoreType:         "badger",
		StoreDSN:          "/tmp/wakepush",
		MaxBodySize:       4096, // 4KB
		PageSize:          1000,
		PushTTL:           2419200, // 28 days
		PushTimeout:       10 * time.Second,
		RateLimit:         60,
		SSLMode:           "off",
		SSLAutoCertsDir:   "/tmp",
		SSLCustomCertPath: "/ssl/cert.pem",
		SSLCustomKeyPath:  "/ssl/key.pem",
		Workers:           1,
	}
	return defaultConfig
}

// Verify checks the config values and exits if they are not usable.
func (config *Config) Verify() {
	config.StoreType = strings.ToLower(config.StoreType)
	switch config.StoreType {
	case "badger", "memory", "sqlite", "postgres", "mysql":
	default:
		log.Fatalf("STORETYPE must be one of badger, memory, sqlite, postgres, mysql (got %q)", config.StoreType)
	}
	if config.StoreType != "memory" && config.StoreDSN == "" {
		log.Fatal("STOREDSN is required")
	}

	if config.VapidPrivateKey == "" || config.VapidPublicKey == "" {
		log.Printf("FATAL: VAPIDPRIVATEKEY and VAPIDPUBLICKEY must be defined and valid")
		log.Printf("If you have never defined them, here are some fresh values generated just for you.")
		if privateKey, publicKey, err := webpush.GenerateVAPIDKeys(); err == nil {
			log.Printf("VAPIDPUBLICKEY=\"%s\"", publicKey)
			log.Printf("VAPIDPRIVATEKEY=\"%s\"", privateKey)
		}
		log.Fatal("Add them to the environment variables. VAPIDPRIVATEKEY is sensitive, keep it secret.")
	}
	if _, err := vapid.ImportKeyBase64(config.VapidPrivateKey, config.VapidPublicKey); err != nil {
		log.Fatalf("Invalid VAPID keys: %s", err)
	}
	if config.VapidSubject == "" {
		if config.AdminEmail != "" {
			config.VapidSubject = "mailto:" + config.AdminEmail
		} else {
			config.VapidSubject = "mailto:admin@example.com"
		}
	}
	if !strings.HasPrefix(config.VapidSubject, "mailto:") && !strings.HasPrefix(config.VapidSubject, "https://") {
		log.Fatal("VAPIDSUBJECT must be a mailto: or https: URI")
	}

	if config.AdminUser == "" || config.AdminPassword == "" {
		log.Fatal("ADMINUSER and ADMINPASSWORD must be set to protect the admin endpoints")
	}
	if config.EncryptionKey != "" && len(config.EncryptionKey) != 32 {
		log.Fatal("ENCRYPTIONKEY must be 32 characters. You can use `openssl rand -hex 16` to generate it")
	}

	if config.PageSize <= 0 || config.PageSize > 1000 {
		log.Fatal("PAGESIZE must be between 1 and 1000")
	}
	if config.Workers <= 0 {
		log.Fatal("WORKERS must be at least 1")
	}
	if config.PushTimeout <= 0 {
		log.Fatal("PUSHTIMEOUT must be a positive duration")
	}
	if config.PushTTL < 0 {
		log.Fatal("PUSHTTL cannot be negative")
	}

	config.SSLMode = strings.ToLower(config.SSLMode)
	if config.SSLMode != "off" && config.SSLMode != "auto" && config.SSLMode != "custom" && config.SSLMode != "proxy" {
		log.Fatal("SSLMODE must be one of off, auto, custom, proxy")
	}
	if config.SSLMode == "auto" && config.SSLDomain == "" {
		log.Fatal("SSLMODE=auto requires SSLDOMAIN")
	}

	log.Printf("Store: %s, page size %d, %d worker(s), push timeout %v", config.StoreType, config.PageSize, config.Workers, config.PushTimeout)
}

// ListenAddress returns the host:port the HTTP server binds to.
func (config *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%v", config.Host, config.Port)
}
