package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"studynotes/internal/config"
	"studynotes/internal/database"
	"studynotes/internal/middlewares"
	"studynotes/internal/repositories"
	"studynotes/internal/services"
)

const totalUsersRefreshInterval = 30 * time.Second

type Server struct {
	cfg          *config.Config
	httpServer   *http.Server
	db           database.Service
	registry     prometheus.Registerer
	authService  services.AuthService
	topicService services.TopicService
	chatService  services.ChatService
	userStats    services.UserStats
	limiter      *middlewares.RateLimiter
	oauthEnabled bool
}

// NewServer wires repositories, services and routes on top of an open
// database connection.
func NewServer(ctx context.Context, cfg *config.Config, db database.Service) (*Server, error) {
	userRepo := repositories.NewUserRepository(db)
	otpRepo := repositories.NewOTPRepository(db)
	topicRepo := repositories.NewTopicRepository(db)

	llm, err := services.NewLLM(ctx, cfg.AI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise chat model: %w", err)
	}

	notifier := services.NewEmailNotifier(services.NewSMTPMailer(cfg.Email), cfg.OTP)
	otpService := services.NewOTPService(otpRepo, cfg.OTP)

	s := &Server{
		cfg:          cfg,
		db:           db,
		registry:     prometheus.DefaultRegisterer,
		authService:  services.NewAuthService(userRepo, otpService, notifier, cfg.Auth),
		topicService: services.NewTopicService(topicRepo),
		chatService:  services.NewChatService(llm, cfg.AI),
		userStats:    services.NewUserStats(userRepo),
		oauthEnabled: services.InitializeGoth(cfg.OAuth),
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		s.limiter = middlewares.NewRateLimiter(cfg.RateLimit)
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  cfg.Server.IdleTimeout,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s, nil
}

// Run serves HTTP until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	bgCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go s.userStats.Run(bgCtx, totalUsersRefreshInterval)
	if s.limiter != nil {
		go s.limiter.Cleanup(bgCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", s.cfg.Server.Port).Msg("Starting server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down gracefully, press Ctrl+C again to force")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown with error")
		return err
	}

	log.Info().Msg("Server exiting")
	return nil
}
