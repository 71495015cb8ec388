package services

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"studynotes/internal/repositories"
)

var totalUsersGauge = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "app_total_users",
	Help: "Total number of registered users in the application.",
})

// UserStats keeps the app_total_users gauge in step with the users
// collection.
type UserStats interface {
	GetTotalUsers(ctx context.Context) (int64, error)
	Refresh(ctx context.Context) error
	Run(ctx context.Context, interval time.Duration)
}

type userStats struct {
	userRepo repositories.UserRepository
	gauge    prometheus.Gauge
}

func NewUserStats(userRepo repositories.UserRepository) UserStats {
	return &userStats{userRepo: userRepo, gauge: totalUsersGauge}
}

func (s *userStats) GetTotalUsers(ctx context.Context) (int64, error) {
	return s.userRepo.CountAll(ctx)
}

func (s *userStats) Refresh(ctx context.Context) error {
	count, err := s.GetTotalUsers(ctx)
	if err != nil {
		return err
	}
	s.gauge.Set(float64(count))
	return nil
}

// Run refreshes the gauge every interval until ctx is cancelled.
func (s *userStats) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		refreshCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := s.Refresh(refreshCtx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Error updating total users gauge")
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
