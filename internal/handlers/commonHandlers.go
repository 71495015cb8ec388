package handlers

import (
	"net/http"

	"studynotes/internal/database"
	"studynotes/internal/utils"
)

type CommonHandler struct {
	db database.Service
}

func NewCommonHandler(db database.Service) *CommonHandler {
	return &CommonHandler{db: db}
}

func (h *CommonHandler) RootHandler(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "API is running!"})
}

func (h *CommonHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := h.db.Health()
	status := http.StatusOK
	if health["message"] != "It's healthy" {
		status = http.StatusServiceUnavailable
	}
	utils.RespondWithJSON(w, status, health)
}

func (h *CommonHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	utils.SendJSONError(w, "Route not found", http.StatusNotFound)
}
