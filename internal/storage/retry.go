package storage

import (
	"context"
	"errors"
	"log"
	"time"

	"livedesk/backend/internal/config"

	"gorm.io/gorm"
)

// withRetry runs fn up to config.StoreRetries times with exponential backoff.
// Not-found and context errors are returned immediately; only transient store
// failures are retried.
func withRetry(ctx context.Context, fn func() error) error {
	backoff := config.StoreRetryBackoff

	var err error
	for attempt := 1; attempt <= config.StoreRetries; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) || ctx.Err() != nil {
			return err
		}
		if attempt < config.StoreRetries {
			log.Printf("WARNING: store call failed (attempt %d/%d), retrying in %s: %v",
				attempt, config.StoreRetries, backoff, err)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}
	}
	return err
}
