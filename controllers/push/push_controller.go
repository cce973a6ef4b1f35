package controllers

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/services"
	"github.com/m-barthelemy/wakepush/services/vapid"
	"github.com/m-barthelemy/wakepush/utils"
	log "github.com/sirupsen/logrus"
)

// PushController serves the public endpoints used by the browser client.
type PushController struct {
	config  *models.Config
	devices *services.DeviceManager
	key     *vapid.KeyHandle
	utils   *utils.Utils
}

// New creates an instance of the controller
func New(config *models.Config, devices *services.DeviceManager, key *vapid.KeyHandle) *PushController {
	return &PushController{
		config:  config,
		devices: devices,
		key:     key,
		utils:   utils.New(config),
	}
}

// SubscribeRequest is sent by the client after PushManager.subscribe()
type SubscribeRequest struct {
	DeviceID     string          `json:"deviceId"`
	Username     string          `json:"username"`
	Subscription json.RawMessage `json:"subscription"`
}

// VapidPublicKey returns the applicationServerKey the client subscribes with.
func (p *PushController) VapidPublicKey(w http.ResponseWriter, r *http.Request) {
	publicKey := p.config.VapidPublicKey
	if p.key != nil {
		publicKey = p.key.PublicKeyBase64()
	}
	utils.TextResponse(w, publicKey, http.StatusOK)
}

func (p *PushController) UpsertUser(w http.ResponseWriter, r *http.Request) {
	var input services.DeviceInput
	if err := p.utils.DecodeJSONBody(w, r, &input); err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			utils.TextResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		log.Debugf("PushController: ignoring undecodable upsertUser body: %s", err)
		input = services.DeviceInput{}
	}

	if _, err := p.devices.UpsertDevice(r.Context(), input); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			utils.TextResponse(w, "deviceId + username required", http.StatusBadRequest)
			return
		}
		log.Errorf("PushController: Error saving device: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, map[string]bool{"ok": true}, http.StatusOK)
}

func (p *PushController) Subscribe(w http.ResponseWriter, r *http.Request) {
	var request SubscribeRequest
	if err := p.utils.DecodeJSONBody(w, r, &request); err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			utils.TextResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		utils.TextResponse(w, "missing", http.StatusBadRequest)
		return
	}

	if err := p.devices.Subscribe(r.Context(), request.DeviceID, request.Username, request.Subscription); err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			log.Debugf("PushController: rejected subscription: %s", err)
			utils.TextResponse(w, "missing", http.StatusBadRequest)
			return
		}
		log.Errorf("PushController: Error saving push subscription: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.TextResponse(w, "Kaydedildi", http.StatusOK)
}

// LastCampaign is fetched by the service worker when woken up, to display the notification.
func (p *PushController) LastCampaign(w http.ResponseWriter, r *http.Request) {
	campaign, err := p.devices.LastCampaign(r.Context())
	if err != nil {
		log.Errorf("PushController: Error reading last campaign: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, campaign, http.StatusOK)
}
