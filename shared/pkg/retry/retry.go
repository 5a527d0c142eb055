package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted is wrapped around the last error once every attempt failed
var ErrExhausted = errors.New("retries exhausted")

// Config holds retry configuration
type Config struct {
	MaxRetries     int                             // attempts after the first one
	InitialBackoff time.Duration                   // wait before the first retry
	MaxBackoff     time.Duration                   // cap on the wait between attempts
	Multiplier     float64                         // backoff growth per attempt
	Retryable      func(error) bool                // nil retries every error
	OnRetry        func(int, error, time.Duration) // called before each wait
}

// DefaultConfig returns defaults suited to re-running a calibration: a
// couple of quick retries, never more than a few seconds apart
func DefaultConfig() Config {
	return Config{
		MaxRetries:     2,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. Waits between attempts grow exponentially.
func Do(ctx context.Context, config Config, fn func() error) error {
	backoff := config.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if config.Retryable != nil && !config.Retryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			break
		}

		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err, backoff)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}

		backoff = time.Duration(float64(backoff) * config.Multiplier)
		if config.MaxBackoff > 0 && backoff > config.MaxBackoff {
			backoff = config.MaxBackoff
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, config.MaxRetries+1, lastErr)
}
