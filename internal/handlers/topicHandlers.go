package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"studynotes/internal/models"
	"studynotes/internal/services"
	"studynotes/internal/utils"
)

type TopicHandler struct {
	topicService services.TopicService
}

func NewTopicHandler(topicService services.TopicService) *TopicHandler {
	return &TopicHandler{topicService: topicService}
}

func (h *TopicHandler) GetTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topicService.ListAll(r.Context())
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Server error")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "", topics)
}

func (h *TopicHandler) GetTopicsByUser(w http.ResponseWriter, r *http.Request) {
	topics, err := h.topicService.ListByUser(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Server error")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "", topics)
}

func (h *TopicHandler) SearchTopics(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	topics, err := h.topicService.Search(r.Context(), q.Get("q"), q.Get("userId"))
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Search failed")
		return
	}
	count := len(topics)
	utils.RespondWithJSON(w, http.StatusOK, models.APIResponse{Success: true, Data: topics, Count: &count})
}

func (h *TopicHandler) GetTopic(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(r, "id")
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid id")
		return
	}

	topic, err := h.topicService.Get(r.Context(), id)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Server error")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "", topic)
}

func (h *TopicHandler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTopicRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid request body")
		return
	}

	topic, err := h.topicService.Create(r.Context(), &req)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Server error")
		return
	}
	utils.RespondSuccess(w, http.StatusCreated, "", topic)
}

func (h *TopicHandler) UpdateTopic(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(r, "id")
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid id")
		return
	}

	var req models.UpdateTopicRequest
	if err := utils.DecodeJSON(w, r, &req); err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid request body")
		return
	}

	topic, err := h.topicService.Update(r.Context(), id, &req)
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Server error while updating topic")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "", topic)
}

func (h *TopicHandler) DeleteTopic(w http.ResponseWriter, r *http.Request) {
	id, err := utils.GetObjectIDFromVars(r, "id")
	if err != nil {
		utils.RespondWithAppError(w, r, err, "Invalid id")
		return
	}

	if err := h.topicService.Delete(r.Context(), id); err != nil {
		utils.RespondWithAppError(w, r, err, "Server error")
		return
	}
	utils.RespondSuccess(w, http.StatusOK, "Topic deleted successfully", nil)
}
