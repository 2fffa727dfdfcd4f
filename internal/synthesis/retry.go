package synthesis

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retries of transient HTTP failures.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns 2 retries starting at 500ms.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     2,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

func shouldRetry(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff is InitialBackoff * 2^attempt, capped at MaxBackoff.
func (c RetryConfig) backoff(attempt int) time.Duration {
	d := float64(c.InitialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(c.MaxBackoff) {
		d = float64(c.MaxBackoff)
	}
	return time.Duration(d)
}

// doWithRetry runs send until it returns 200, a non-retryable status, or the
// retries run out. A non-retryable response is returned to the caller unread.
func doWithRetry(ctx context.Context, cfg RetryConfig, logger *zap.Logger, send func() (*http.Response, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := send()
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == http.StatusOK || !shouldRetry(resp.StatusCode):
			return resp, nil
		default:
			lastErr = fmt.Errorf("HTTP %d", resp.StatusCode)
			resp.Body.Close()
		}

		if attempt == cfg.MaxRetries {
			break
		}
		wait := cfg.backoff(attempt)
		logger.Warn("Generation request failed, retrying",
			zap.Int("attempt", attempt+1), zap.Duration("backoff", wait), zap.Error(lastErr))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("request failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
