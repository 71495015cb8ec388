package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"studynotes/internal/models"
	"studynotes/internal/services"
	"studynotes/internal/utils"
)

type ChatHandler struct {
	chatService services.ChatService
}

func NewChatHandler(chatService services.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat streams the model's answer as "data: {...}\n\n" frames, ending with a
// frame whose finish_reason is "stop".
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.SendJSONError(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	started := false
	writeFrame := func(chunk models.ChatChunk) error {
		payload, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if !started {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			started = true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.chatService.Stream(r.Context(), &req, func(content string) error {
		return writeFrame(models.ChatChunk{Content: content})
	})
	if err != nil {
		if !started {
			utils.RespondWithAppError(w, r, err, "Streaming failed")
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Msg("Chat stream interrupted")
	}

	stop := "stop"
	if err := writeFrame(models.ChatChunk{FinishReason: &stop}); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("Failed to write final chat frame")
	}
}

func (h *ChatHandler) Health(w http.ResponseWriter, r *http.Request) {
	utils.RespondWithJSON(w, http.StatusOK, h.chatService.Health())
}
