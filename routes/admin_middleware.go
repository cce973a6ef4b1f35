package routes

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"

	"github.com/m-barthelemy/wakepush/models"
	"github.com/m-barthelemy/wakepush/utils"
	log "github.com/sirupsen/logrus"
)

const adminRealm = "Wakepush Admin"

type AdminHandler struct {
	config *models.Config
	utils  *utils.Utils
}

func NewAdminHandler(config *models.Config) *AdminHandler {
	return &AdminHandler{config: config, utils: utils.New(config)}
}

// AdminMiddleware only lets requests with the ADMINUSER / ADMINPASSWORD Basic credentials through.
func (a *AdminHandler) AdminMiddleware(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok || !a.validCredentials(user, password) {
			log.Warnf("AdminHandler: rejected admin request to %s from %s", r.URL.Path, a.utils.GetClientIP(r))
			w.Header().Set("WWW-Authenticate", `Basic realm="`+adminRealm+`"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		h(w, r)
	}
}

func (a *AdminHandler) validCredentials(user string, password string) bool {
	if a.config.AdminUser == "" || a.config.AdminPassword == "" {
		return false
	}
	// Hashing first so the comparison doesn't leak the expected lengths.
	gotUser, wantUser := sha256.Sum256([]byte(user)), sha256.Sum256([]byte(a.config.AdminUser))
	gotPassword, wantPassword := sha256.Sum256([]byte(password)), sha256.Sum256([]byte(a.config.AdminPassword))
	userMatch := subtle.ConstantTimeCompare(gotUser[:], wantUser[:])
	passwordMatch := subtle.ConstantTimeCompare(gotPassword[:], wantPassword[:])
	return userMatch&passwordMatch == 1
}
