package main

import (
	"fmt"
	"os"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/asaskevich/EventBus"
	"github.com/kelseyhightower/envconfig"
	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/routes"
	"github.com/m-barthelemy/wakepush/services"
	"github.com/m-barthelemy/wakepush/services/store"
	"github.com/m-barthelemy/wakepush/services/vapid"
	log "github.com/sirupsen/logrus"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "keygen" {
		keygen()
		return
	}

	var config models.Config
	config = config.New()

	err := envconfig.Process("", &config)
	if err != nil {
		log.Fatal(err.Error())
	}
	setupLogging(&config)
	config.Verify()

	key, err := vapid.ImportKeyBase64(config.VapidPrivateKey, config.VapidPublicKey)
	if err != nil {
		log.Fatalf("Unable to load VAPID keys: %s", err)
	}

	st, err := store.Open(config.StoreType, config.StoreDSN)
	if err != nil {
		log.Fatalf("Unable to open %s store: %s", config.StoreType, err)
	}
	defer st.Close()

	bus := EventBus.New()
	if err := bus.Subscribe(services.TopicSubscriptionPruned, func(deviceID string) {
		log.Infof("Removed expired push subscription of device %s", deviceID)
	}); err != nil {
		log.Fatal(err.Error())
	}
	if err := bus.Subscribe(services.TopicCampaignDispatched, func(report *services.Report) {
		log.Infof("Campaign %s sent: %d ok, %d failed", report.Campaign.ID, report.OK, report.Fail)
	}); err != nil {
		log.Fatal(err.Error())
	}

	devices := services.NewDeviceManager(st, &config)
	notifications := services.NewNotificationsManager(st, &config, &bus, key)

	startServer(&config, routes.New(&config, devices, notifications, key))
}

func setupLogging(config *models.Config) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level, err := log.ParseLevel(config.LogLevel)
	if err != nil {
		log.Warnf("Invalid LOGLEVEL %q, using info", config.LogLevel)
		level = log.InfoLevel
	}
	if config.Debug {
		level = log.DebugLevel
	}
	log.SetLevel(level)
}

// keygen prints a new VAPID key pair in the environment variables format.
func keygen() {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		log.Fatalf("Unable to generate VAPID keys: %s", err)
	}
	fmt.Printf("VAPIDPUBLICKEY=\"%s\"\n", publicKey)
	fmt.Printf("VAPIDPRIVATEKEY=\"%s\"\n", privateKey)
}
