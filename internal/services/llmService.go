package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"studynotes/internal/apperr"
	"studynotes/internal/config"
	"studynotes/internal/metrics"
	"studynotes/internal/models"
)

const (
	ProviderOllama   = "ollama"
	ProviderGoogleAI = "googleai"
)

// ChatService proxies a single user message to a chat model and streams the
// reply back in chunks.
type ChatService interface {
	Stream(ctx context.Context, req *models.ChatRequest, onChunk func(content string) error) error
	Health() map[string]string
}

type chatService struct {
	llm      llms.Model
	provider string
	model    string
}

// NewLLM builds the chat model selected by cfg.Provider.
func NewLLM(ctx context.Context, cfg config.AIConfig) (llms.Model, error) {
	switch cfg.Provider {
	case ProviderGoogleAI:
		if cfg.GoogleAPIKey == "" {
			return nil, errors.New("missing api key")
		}
		llm, err := googleai.New(ctx, googleai.WithAPIKey(cfg.GoogleAPIKey), googleai.WithDefaultModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("failed to create Google AI LLM: %w", err)
		}
		return llm, nil
	default:
		llm, err := ollama.New(ollama.WithServerURL(cfg.OllamaURL), ollama.WithModel(cfg.Model))
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama LLM: %w", err)
		}
		return llm, nil
	}
}

func NewChatService(llm llms.Model, cfg config.AIConfig) ChatService {
	return &chatService{llm: llm, provider: cfg.Provider, model: cfg.Model}
}

func (s *chatService) Stream(ctx context.Context, req *models.ChatRequest, onChunk func(content string) error) error {
	if err := req.Validate(); err != nil {
		return err
	}

	opts := []llms.CallOption{
		llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			if len(chunk) == 0 {
				return nil
			}
			return onChunk(string(chunk))
		}),
	}
	if model := strings.TrimSpace(req.Model); model != "" {
		opts = append(opts, llms.WithModel(model))
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, req.Message),
	}
	if _, err := s.llm.GenerateContent(ctx, messages, opts...); err != nil {
		metrics.ChatRequestsTotal.WithLabelValues("failed").Inc()
		log.Error().Err(err).Str("user_id", req.UserID).Str("provider", s.provider).Msg("Chat completion failed")
		return apperr.Internal("Streaming failed", err)
	}

	metrics.ChatRequestsTotal.WithLabelValues("success").Inc()
	log.Debug().Str("user_id", req.UserID).Msg("Chat completion streamed")
	return nil
}

func (s *chatService) Health() map[string]string {
	return map[string]string{
		"status":   "healthy",
		"provider": s.provider,
		"model":    s.model,
	}
}
