package internal

import (
	"context"
	mathrand "math/rand/v2"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/anekolabs/whatsapp-admin-api/pkg/env"
	"github.com/anekolabs/whatsapp-admin-api/pkg/log"
	"github.com/anekolabs/whatsapp-admin-api/pkg/whatsapp"
)

func jitterSleep(max time.Duration) {
	if max <= 0 {
		return
	}
	ms := mathrand.Int64N(max.Milliseconds() + 1)
	time.Sleep(time.Duration(ms) * time.Millisecond)
}

func restoreWithRetry(ctx context.Context, manager *whatsapp.Manager, sessionID string, retries int, baseBackoff time.Duration, maxBackoff time.Duration) error {
	if retries <= 1 {
		return manager.Restore(ctx, sessionID)
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = manager.Restore(ctx, sessionID)
		if lastErr == nil {
			return nil
		}

		// Exponential backoff with small jitter.
		backoff := baseBackoff * time.Duration(1<<(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(mathrand.Int64N(int64(500*time.Millisecond) + 1))
		time.Sleep(backoff + jitter)
	}
	return lastErr
}

// Startup resurrects the sessions that were connected when the process last
// stopped. Only sessions persisted as connected come back automatically;
// anything else waits for an operator. Restores run concurrently with a
// bounded limit and a startup jitter so a fleet restart does not slam the
// chat network with simultaneous handshakes.
func Startup(ctx context.Context, manager *whatsapp.Manager) {
	log.Print(nil).Info("Running Startup Tasks")

	docs, err := manager.Store().Query(ctx, whatsapp.SessionCollection, "status", "==", string(whatsapp.StatusConnected))
	if err != nil {
		log.Print(nil).Error("Failed to load persisted sessions: " + err.Error())
		return
	}
	if len(docs) == 0 {
		log.Print(nil).Info("No sessions to restore")
		return
	}

	maxConcurrent := env.GetEnvIntOrDefault("WHATSAPP_STARTUP_RESTORE_CONCURRENCY", 10)
	jitterMax := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RESTORE_JITTER_MAX", 5*time.Second)
	retries := env.GetEnvIntOrDefault("WHATSAPP_STARTUP_RESTORE_RETRIES", 5)
	baseBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RESTORE_BACKOFF_BASE", 2*time.Second)
	maxBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RESTORE_BACKOFF_MAX", 30*time.Second)
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	var restored, failed int64
	group := new(errgroup.Group)
	group.SetLimit(maxConcurrent)

	for _, doc := range docs {
		sessionID, ok := doc["sessionId"].(string)
		if !ok || sessionID == "" {
			continue
		}
		group.Go(func() error {
			jitterSleep(jitterMax)
			log.SessionOp(sessionID, "Startup").Info("Restoring session")

			if err := restoreWithRetry(ctx, manager, sessionID, retries, baseBackoff, maxBackoff); err != nil {
				log.SessionOp(sessionID, "Startup").WithError(err).Warn("Failed to restore session")
				atomic.AddInt64(&failed, 1)
				return nil
			}
			atomic.AddInt64(&restored, 1)
			return nil
		})
	}
	_ = group.Wait()

	log.Print(nil).
		WithField("restored", restored).
		WithField("failed", failed).
		WithField("concurrency", maxConcurrent).
		WithField("retries", retries).
		Info("Startup restore pass complete")
}
