package routes

import (
	"net/http"
	"os"
	"time"

	"github.com/go-chi/httprate"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	adminController "github.com/m-barthelemy/wakepush/controllers/admin"
	pushController "github.com/m-barthelemy/wakepush/controllers/push"
	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/services"
	"github.com/m-barthelemy/wakepush/services/vapid"
	"github.com/m-barthelemy/wakepush/utils"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func New(config *models.Config, devices *services.DeviceManager, notifications *services.NotificationsManager, key *vapid.KeyHandle) http.Handler {
	router := mux.NewRouter()
	admin := NewAdminHandler(config)
	limit := rateLimiter(config)

	pushC := pushController.New(config, devices, key)
	router.Handle("/vapidPublicKey", logged(pushC.VapidPublicKey)).Methods(http.MethodGet)
	router.Handle("/upsertUser", limit(logged(pushC.UpsertUser))).Methods(http.MethodPost)
	router.Handle("/subscribe", limit(logged(pushC.Subscribe))).Methods(http.MethodPost)
	router.Handle("/lastCampaign", logged(pushC.LastCampaign)).Methods(http.MethodGet)

	adminC := adminController.New(config, devices, notifications)
	router.Handle("/users", logged(admin.AdminMiddleware(adminC.ListUsers))).Methods(http.MethodGet)
	router.Handle("/search", logged(admin.AdminMiddleware(adminC.Search))).Methods(http.MethodGet)
	router.Handle("/send", logged(admin.AdminMiddleware(adminC.Send))).Methods(http.MethodPost)

	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.TextResponse(w, "OK", http.StatusOK)
	}).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return cors(router)
}

func logged(h http.HandlerFunc) http.Handler {
	return handlers.LoggingHandler(os.Stdout, h)
}

// rateLimiter limits public write endpoints to RATELIMIT requests per minute and per client IP.
func rateLimiter(config *models.Config) func(http.Handler) http.Handler {
	if config.RateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	u := utils.New(config)
	return httprate.Limit(
		config.RateLimit,
		time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return u.GetClientIP(r), nil
		}),
	)
}
