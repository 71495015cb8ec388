package models

import (
	"strings"

	"studynotes/internal/apperr"
)

type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Model   string `json:"model,omitempty"`
}

func (r *ChatRequest) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return apperr.Validation("Message is required")
	}
	return nil
}

// ChatChunk is one frame of a streamed chat answer. FinishReason is null on
// every frame except the last.
type ChatChunk struct {
	Content      string  `json:"content"`
	FinishReason *string `json:"finish_reason"`
}
