package controllers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/services"
	"github.com/m-barthelemy/wakepush/utils"
	log "github.com/sirupsen/logrus"
)

// AdminController serves the operator endpoints. Requests are authenticated by the router.
type AdminController struct {
	config        *models.Config
	devices       *services.DeviceManager
	notifications *services.NotificationsManager
	utils         *utils.Utils
}

// New creates an instance of the controller
func New(config *models.Config, devices *services.DeviceManager, notifications *services.NotificationsManager) *AdminController {
	return &AdminController{
		config:        config,
		devices:       devices,
		notifications: notifications,
		utils:         utils.New(config),
	}
}

type SendRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type SendResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*services.Report
}

type UsersResponse struct {
	Users  []*models.DeviceRecord `json:"users"`
	Cursor *string                `json:"cursor"`
}

type SearchResponse struct {
	Users []*models.DeviceRecord `json:"users"`
}

// Send broadcasts a new campaign to every subscribed device.
func (a *AdminController) Send(w http.ResponseWriter, r *http.Request) {
	var request SendRequest
	if err := a.utils.DecodeJSONBody(w, r, &request); err != nil {
		if errors.Is(err, utils.ErrBodyTooLarge) {
			utils.TextResponse(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		// An empty or invalid body sends the default campaign.
		request = SendRequest{}
	}

	// A dispatch runs to completion even if the operator goes away.
	report, err := a.notifications.DispatchCampaign(context.WithoutCancel(r.Context()), request.Title, request.Body)
	if err != nil {
		log.Errorf("AdminController: campaign dispatch failed: %s", err)
		response := SendResponse{Success: false, Error: err.Error(), Report: report}
		if report == nil {
			response.Report = &services.Report{Errors: []services.DispatchError{}}
		}
		utils.JSONResponse(w, response, http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, SendResponse{Success: true, Report: report}, http.StatusOK)
}

// ListUsers returns one page of devices, most recently seen first.
func (a *AdminController) ListUsers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page, err := a.devices.ListDevices(r.Context(), query.Get("cursor"), parseLimit(query.Get("limit")))
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		log.Errorf("AdminController: Error listing devices: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	response := UsersResponse{Users: page.Users}
	if page.Cursor != "" {
		response.Cursor = &page.Cursor
	}
	utils.JSONResponse(w, response, http.StatusOK)
}

// Search looks up devices by username across all pages.
func (a *AdminController) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	users, err := a.devices.SearchDevices(r.Context(), query.Get("username"), parseLimit(query.Get("limit")))
	if err != nil {
		log.Errorf("AdminController: Error searching devices: %s", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	utils.JSONResponse(w, SearchResponse{Users: users}, http.StatusOK)
}

// parseLimit returns 0, meaning the default, for missing or invalid values.
func parseLimit(value string) int {
	limit, err := strconv.Atoi(value)
	if err != nil {
		return 0
	}
	return limit
}
