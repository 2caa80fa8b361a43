package llm

import (
	"context"
	"errors"
	"log"
	"net"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

const retryBaseDelay = 300 * time.Millisecond

type retryingClient struct {
	base Client
	cfg  retry.Config
}

// WithRetry wraps base so transient transport failures get one more attempt.
func WithRetry(base Client) Client {
	if base == nil {
		return nil
	}
	return retryingClient{
		base: base,
		cfg: retry.Config{
			MaxAttempts:   2,
			InitialDelay:  retryBaseDelay,
			BackoffPolicy: retry.BackoffExponential,
		},
	}
}

func (r retryingClient) Analyze(ctx context.Context, input Input) (Result, error) {
	var permanent error
	attempt := 0
	res, err := retry.New[Result](r.cfg).Do(ctx, func(ctx context.Context) (Result, error) {
		attempt++
		out, err := r.base.Analyze(ctx, input)
		if err == nil {
			return out, nil
		}
		if !ShouldRetry(err) {
			// Returning nil stops the retry loop; the real error is reported below.
			permanent = err
			return Result{}, nil
		}
		log.Printf("llm retry attempt=%d error=%s", attempt, sanitizeError(err))
		return Result{}, err
	})
	if permanent != nil {
		return Result{}, permanent
	}
	return res, err
}

// ShouldRetry reports whether err looks like a transient transport failure.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrMissingCredential) || errors.Is(err, ErrNoContent) ||
		errors.Is(err, ErrInvalidResponse) || errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "http status 429") || strings.Contains(msg, "server_error") {
		return true
	}
	if strings.Contains(msg, "timeout") {
		return true
	}
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected eof")
}

func sanitizeError(err error) string {
	msg := strings.ReplaceAll(err.Error(), "\n", " ")
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
