package game

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
)

const retryBaseDelay = 25 * time.Millisecond

// Retry runs fn up to attempts times while it fails with
// ErrTransactionConflict, backing off exponentially between tries. Every
// mutating engine operation is safe to re-run from scratch.
func Retry(ctx context.Context, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBaseDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(); err == nil || !errors.Is(err, ErrTransactionConflict) {
			return err
		}
		if i == attempts-1 {
			break
		}
		log.Debugf("[MATCH] conflict on attempt %d/%d, retrying in %v: %v", i+1, attempts, delay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
