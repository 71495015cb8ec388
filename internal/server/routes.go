package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"studynotes/internal/handlers"
	"studynotes/internal/middlewares"
	"studynotes/internal/utils"
)

func (s *Server) RegisterRoutes() http.Handler {
	r := mux.NewRouter()

	r.Use(middlewares.NewPrometheusMiddleware(s.registry).Instrument)

	ch := handlers.NewCommonHandler(s.db)
	r.HandleFunc("/", ch.RootHandler).Methods("GET")
	r.HandleFunc("/health", ch.HealthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.registerUserRoutes(r)
	s.registerAuthRoutes(r)
	s.registerTopicRoutes(r)
	s.registerChatRoutes(r)

	r.NotFoundHandler = http.HandlerFunc(ch.NotFoundHandler)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		utils.SendJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	cors := middlewares.NewCorsMiddleware(s.cfg.Server.AllowedOrigins)
	return middlewares.RequestLogger(cors(r))
}

// throttle applies the OTP-send rate limit when one is configured.
func (s *Server) throttle(h http.HandlerFunc) http.Handler {
	if s.limiter == nil {
		return h
	}
	return s.limiter.Limit(h)
}

func (s *Server) registerUserRoutes(r *mux.Router) {
	uh := handlers.NewUserHandler(s.authService)

	r.Handle("/api/users/register-send-otp", s.throttle(uh.RegisterSendOTP)).Methods("POST")
	r.HandleFunc("/api/users/register-verify-otp", uh.RegisterVerifyOTP).Methods("POST")
	r.HandleFunc("/api/users/login", uh.Login).Methods("POST")
	r.HandleFunc("/api/users/google-auth", uh.GoogleAuth).Methods("POST")
	r.Handle("/api/users/forgot-password-send-otp", s.throttle(uh.ForgotPasswordSendOTP)).Methods("POST")
	r.HandleFunc("/api/users/reset-password-with-otp", uh.ResetPasswordWithOTP).Methods("POST")
}

func (s *Server) registerAuthRoutes(r *mux.Router) {
	if !s.oauthEnabled {
		return
	}
	ah := handlers.NewAuthHandler(s.authService)

	r.HandleFunc("/api/auth/{provider}", ah.ProviderAuth).Methods("GET")
	r.HandleFunc("/api/auth/{provider}/callback", ah.ProviderCallback).Methods("GET")
}

func (s *Server) registerTopicRoutes(r *mux.Router) {
	th := handlers.NewTopicHandler(s.topicService)

	r.HandleFunc("/api/items", th.GetTopics).Methods("GET")
	r.HandleFunc("/api/items", th.CreateTopic).Methods("POST")
	r.HandleFunc("/api/items/search", th.SearchTopics).Methods("GET")
	r.HandleFunc("/api/items/user/{userId}", th.GetTopicsByUser).Methods("GET")
	r.HandleFunc("/api/items/{id}", th.GetTopic).Methods("GET")
	r.HandleFunc("/api/items/{id}", th.UpdateTopic).Methods("PUT")
	r.HandleFunc("/api/items/{id}", th.DeleteTopic).Methods("DELETE")
}

func (s *Server) registerChatRoutes(r *mux.Router) {
	chh := handlers.NewChatHandler(s.chatService)

	r.HandleFunc("/api/ai/chat", chh.Chat).Methods("POST")
	r.HandleFunc("/api/ai/health", chh.Health).Methods("GET")
}
