// Package jobs holds background loops that run alongside the HTTP server.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/schoolsecure/hallpass/internal/config"
	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/queue"
	"github.com/schoolsecure/hallpass/internal/repository"
	queue_publisher "github.com/schoolsecure/hallpass/internal/service"
)

// StartPassExpiryJob sweeps overdue passes on a fixed cadence. Handlers
// already expire passes lazily when they touch one, so the sweep exists
// for passes nobody touches: it flips them to EXPIRED, publishes an
// expiry event per pass and purges dead refresh tokens along the way.
// The loop stops when ctx is cancelled.
func StartPassExpiryJob(ctx context.Context, cfg config.Config, passes *repository.PassRepo, tokens *repository.TokenRepo, pub *queue_publisher.Publisher) {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				sweep(tickCtx, passes, tokens, pub)
				cancel()
			}
		}
	}()
}

func sweep(ctx context.Context, passes *repository.PassRepo, tokens *repository.TokenRepo, pub *queue_publisher.Publisher) {
	expired, err := passes.ExpireDue(ctx)
	if err != nil {
		log.Printf("pass expiry sweep error: %v", err)
		return
	}
	for _, p := range expired {
		ev := queue.NewPassEvent(queue.EventPassExpired)
		ev.PassID = p.ID
		ev.SchoolID = p.SchoolID
		ev.StudentID = p.StudentID
		ev.Status = string(model.PassExpired)
		if err := pub.PublishPassEvent(ctx, ev); err != nil {
			log.Printf("pass expiry event publish error: %v", err)
		}
	}
	if len(expired) > 0 {
		log.Printf("pass expiry sweep flipped %d passes", len(expired))
	}

	if _, err := tokens.PurgeExpired(ctx, time.Now().UTC()); err != nil {
		log.Printf("refresh token purge error: %v", err)
	}
}
