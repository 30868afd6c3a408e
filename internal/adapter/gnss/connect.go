package gnss

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/location-orchestrator/internal/domain"
	"github.com/couchcryptid/storm-data-shared/retry"
)

const (
	initialConnectBackoff = 200 * time.Millisecond
	maxConnectBackoff     = 5 * time.Second
)

// Connect opens r, retrying with exponential backoff for up to attempts
// tries. Permission failures are returned immediately.
func Connect(ctx context.Context, r Receiver, attempts int, logger *slog.Logger) error {
	backoff := initialConnectBackoff
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = r.Connect(ctx); err == nil {
			return nil
		}
		if errors.Is(err, domain.ErrPermissionDenied) || attempt == attempts {
			break
		}
		logger.Warn("gnss receiver connect failed, retrying",
			"receiver", r.Name(),
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return ctx.Err()
		}
		backoff = retry.NextBackoff(backoff, maxConnectBackoff)
	}
	return fmt.Errorf("connect %s: %w", r.Name(), err)
}
