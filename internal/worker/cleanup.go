package worker

import (
	"context"
	"time"

	"github.com/lnurl-gateway/backend/internal/metrics"
	"github.com/lnurl-gateway/backend/internal/models"
	"go.uber.org/zap"
)

type ExpiredChallenges interface {
	DeleteExpired(ctx context.Context, kind string, now time.Time) (int64, error)
}

type ExpiredSessions interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Cleanup removes auth challenges and sessions past their expiry. Withdraw and
// channel challenges never expire and are kept.
type Cleanup struct {
	challenges ExpiredChallenges
	sessions   ExpiredSessions
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewCleanup(challenges ExpiredChallenges, sessions ExpiredSessions, m *metrics.Metrics, log *zap.Logger) *Cleanup {
	return &Cleanup{
		challenges: challenges,
		sessions:   sessions,
		metrics:    m,
		log:        log.Named("cleanup"),
		now:        time.Now,
	}
}

// RunOnce deletes what has expired as of now. Both deletes are attempted even
// if the first one fails; the first error is returned.
func (c *Cleanup) RunOnce(ctx context.Context) (challenges, sessions int64, err error) {
	now := c.now().UTC()

	challenges, cerr := c.challenges.DeleteExpired(ctx, models.ChallengeKindAuth, now)
	if cerr != nil {
		c.log.Error("failed to delete expired auth challenges", zap.Error(cerr))
		err = cerr
	} else {
		c.metrics.Cleaned("challenges", challenges)
	}

	sessions, serr := c.sessions.DeleteExpired(ctx, now)
	if serr != nil {
		c.log.Error("failed to delete expired sessions", zap.Error(serr))
		if err == nil {
			err = serr
		}
	} else {
		c.metrics.Cleaned("auth_sessions", sessions)
	}

	if challenges > 0 || sessions > 0 {
		c.log.Info("expired rows deleted",
			zap.Int64("challenges", challenges),
			zap.Int64("sessions", sessions),
		)
	}
	return challenges, sessions, err
}

func (c *Cleanup) Run(ctx context.Context, interval time.Duration) {
	run(ctx, interval, c.log, func(ctx context.Context) {
		_, _, _ = c.RunOnce(ctx)
	})
}
