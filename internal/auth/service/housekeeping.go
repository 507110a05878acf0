package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quollsec/authgate/internal/auth/store"
)

// HousekeepingService periodically purges expired and consumed login
// challenges so the table never grows without bound.
type HousekeepingService struct {
	Store    store.Store
	Interval time.Duration
	Logger   *slog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

func NewHousekeepingService(s store.Store, interval time.Duration, logger *slog.Logger) *HousekeepingService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &HousekeepingService{
		Store:    s,
		Interval: interval,
		Logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background loop. Call Stop to terminate it.
func (s *HousekeepingService) Start() {
	go s.run()
}

// Stop terminates the loop and waits for the in-flight sweep to finish.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.cleanup()
	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

func (s *HousekeepingService) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.Store.LoginChallenges().DeleteExpiredLoginChallenges(ctx, time.Now().UTC())
	if err != nil {
		s.Logger.Error("challenge cleanup failed", "error", err)
		return
	}
	if deleted > 0 {
		s.Logger.Debug("purged login challenges", "count", deleted)
	}
}
