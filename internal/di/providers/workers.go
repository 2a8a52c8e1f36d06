package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/traildig/traildig-server/internal/logger"
	"github.com/traildig/traildig-server/internal/service"
)

// sessionCleanupInterval is how often expired auth sessions are purged.
const sessionCleanupInterval = time.Hour

// SessionCleanupJob runs periodic session cleanup.
type SessionCleanupJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdowner.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideSessionCleanupJob provides the periodic session cleanup job.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	sessions := do.MustInvoke[*service.SessionService](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &SessionCleanupJob{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)

		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		cleanup := func() {
			count, err := sessions.DeleteExpiredSessions(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warn("Session cleanup failed", "error", err)
				}
				return
			}
			if count > 0 {
				log.Info("Session cleanup completed", "deleted", count)
			}
		}

		cleanup()
		for {
			select {
			case <-ticker.C:
				cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started", "interval", sessionCleanupInterval)

	return job, nil
}
