package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/rs/zerolog/log"

	"studynotes/internal/models"
	"studynotes/internal/services"
	"studynotes/internal/utils"
)

// AuthHandler runs the server-side OAuth redirect flow and hands the
// provider's user to the Google reconciliation logic.
type AuthHandler struct {
	authService  services.AuthService
	completeAuth func(http.ResponseWriter, *http.Request) (goth.User, error)
}

func NewAuthHandler(authService services.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService, completeAuth: gothic.CompleteUserAuth}
}

func (a *AuthHandler) ProviderAuth(w http.ResponseWriter, r *http.Request) {
	provider := mux.Vars(r)["provider"]
	if provider == "" {
		log.Ctx(r.Context()).Error().Msg("Provider not specified in URL")
		utils.SendJSONError(w, "Provider not specified", http.StatusBadRequest)
		return
	}

	log.Ctx(r.Context()).Info().Str("provider", provider).Msg("Initiating authentication with provider")
	gothic.BeginAuthHandler(w, r)
}

func (a *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	gUser, err := a.completeAuth(w, r)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Error completing user authentication")
		utils.SendJSONError(w, "Authentication failed. Please try again.", http.StatusBadRequest)
		return
	}

	name := strings.TrimSpace(gUser.Name)
	if name == "" {
		name = strings.TrimSpace(gUser.FirstName + " " + gUser.LastName)
	}
	if name == "" {
		name = gUser.NickName
	}

	user, err := a.authService.GoogleAuth(r.Context(), &models.GoogleAuthRequest{
		Name:     name,
		Email:    gUser.Email,
		GoogleID: gUser.UserID,
	})
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Google authentication failed")
		return
	}

	log.Ctx(r.Context()).Info().Str("email", user.Email).Msg("User authenticated with provider")
	utils.RespondSuccess(w, http.StatusOK, "Google authentication successful", user)
}
