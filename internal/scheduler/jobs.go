package scheduler

import (
	"context"
	"log/slog"

	"github.com/dukerupert/cohabit/internal/middleware"
)

const (
	JobPurgeSessions  = "purge_sessions"
	JobSweepRateLimit = "sweep_rate_limits"
)

// SessionPurger deletes expired sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int64, error)
}

// PurgeSessions returns a job that drops expired sessions.
func PurgeSessions(sessions SessionPurger, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		n, err := sessions.PurgeExpiredSessions(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			logger.Info("purged expired sessions", "count", n)
		}
		return nil
	}
}

// SweepRateLimits returns a job that forgets rate-limit windows that have
// closed.
func SweepRateLimits(rl *middleware.RateLimiter, logger *slog.Logger) JobFunc {
	return func(ctx context.Context) error {
		if n := rl.Cleanup(); n > 0 {
			logger.Debug("swept rate limit entries", "count", n, "remaining", rl.Len())
		}
		return nil
	}
}
