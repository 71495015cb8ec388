package utils

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"studynotes/internal/apperr"
	"studynotes/internal/models"
)

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// RespondSuccess writes a successful envelope.
func RespondSuccess(w http.ResponseWriter, code int, message string, data interface{}) {
	RespondWithJSON(w, code, models.APIResponse{Success: true, Message: message, Data: data})
}

func SendJSONError(w http.ResponseWriter, message string, code int) {
	RespondWithJSON(w, code, models.APIResponse{Success: false, Message: message})
}

// RespondWithAppError maps err onto its status and public message. Causes of
// infrastructure faults are logged, never written.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	kind := apperr.KindOf(err)
	if kind == apperr.KindInfrastructure {
		log.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed with an infrastructure error")
	}
	RespondWithJSON(w, kind.HTTPStatus(), models.APIResponse{
		Success: false,
		Message: apperr.PublicMessage(err, fallback),
		Code:    apperr.CodeOf(err),
	})
}
