package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// User Activity Metrics
	NewUsersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_new_users_total",
		Help: "Total number of new user registrations.",
	})
	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_login_attempts_total",
		Help: "Total number of login attempts (successful and failed).",
	}, []string{"status"}) // status: "success" or "failed"
	GoogleAuthTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_google_auth_total",
		Help: "Total number of Google authentications by outcome.",
	}, []string{"result"}) // result: "created", "linked", "login" or "rejected"
	PasswordResetsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_password_resets_total",
		Help: "Total number of completed password resets.",
	})

	// OTP Metrics
	OTPIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_issued_total",
		Help: "Total number of one-time passcodes issued.",
	}, []string{"purpose"})
	OTPVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_otp_verifications_total",
		Help: "Total number of OTP verification attempts by result.",
	}, []string{"purpose", "result"}) // result: "ok", "not_found", "expired", "mismatch", "locked"

	// Application-Specific Feature Usage Metrics
	TopicCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "app_topic_created_total",
		Help: "Total number of topics created.",
	})
	ChatRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "app_chat_requests_total",
		Help: "Total number of chat requests by status.",
	}, []string{"status"})
)
