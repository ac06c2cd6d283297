package session

import (
	"context"
	"time"

	"dementia-mcp/internal/logging"
)

// Cleaner periodically removes sessions idle beyond the expiry. It holds no
// database connection between scans.
type Cleaner struct {
	store    Store
	interval time.Duration
	expiry   time.Duration
	logger   logging.Logger
}

// NewCleaner creates the background cleanup task.
func NewCleaner(store Store, interval, expiry time.Duration) *Cleaner {
	return &Cleaner{
		store:    store,
		interval: interval,
		expiry:   expiry,
		logger:   logging.WithComponent("session-cleanup"),
	}
}

// Run scans on the configured interval until the context ends.
func (cl *Cleaner) Run(ctx context.Context) {
	ticker := time.NewTicker(cl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cl.scan(ctx)
		}
	}
}

func (cl *Cleaner) scan(ctx context.Context) {
	cutoff := time.Now().Add(-cl.expiry)
	removed, err := cl.store.CleanupExpired(ctx, cutoff)
	if err != nil {
		cl.logger.WarnContext(ctx, "session cleanup scan failed", "error", err)
		return
	}
	if removed > 0 {
		cl.logger.InfoContext(ctx, "expired sessions removed", "count", removed)
	}
}
