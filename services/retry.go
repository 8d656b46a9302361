package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/dctmfoo/AIResearchScribe/config"
	"github.com/dctmfoo/AIResearchScribe/providers"

	"go.uber.org/zap"
)

// RetryConfig bounds how often and how patiently an operation is retried.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
	// AttemptTimeout is the deadline of a single attempt; zero disables it.
	AttemptTimeout time.Duration
}

// RetryConfigFromConfig builds the retry policy for calls bounded by attemptTimeout.
func RetryConfigFromConfig(cfg *config.Config, attemptTimeout time.Duration) RetryConfig {
	return RetryConfig{
		MaxAttempts:    cfg.RetryMaxAttempts,
		BaseDelay:      cfg.RetryBaseDelay,
		MaxDelay:       cfg.RetryMaxDelay,
		BackoffFactor:  2,
		JitterFactor:   0.2,
		AttemptTimeout: attemptTimeout,
	}
}

// ErrorClassifier reports whether another attempt may succeed.
type ErrorClassifier func(error) bool

// Retrier runs an operation with exponential backoff and jitter.
type Retrier struct {
	config      RetryConfig
	isRetryable ErrorClassifier
	logger      *zap.Logger
}

// NewRetrier creates a Retrier. A nil classifier uses IsRetryable.
func NewRetrier(config RetryConfig, classifier ErrorClassifier, logger *zap.Logger) *Retrier {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if config.BackoffFactor < 1 {
		config.BackoffFactor = 1
	}
	if classifier == nil {
		classifier = IsRetryable
	}
	return &Retrier{
		config:      config,
		isRetryable: classifier,
		logger:      logger,
	}
}

// Do runs fn until it succeeds, fails permanently, runs out of attempts or ctx ends.
// Each attempt gets its own deadline; an attempt that hits it fails with context.DeadlineExceeded.
func (r *Retrier) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	log := r.logger.With(zap.String("operation", op))
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		lastErr = r.attempt(ctx, fn)
		if lastErr == nil {
			if attempt > 1 {
				log.Info("Operation succeeded after retry",
					zap.Int("attempt", attempt),
					zap.Duration("total_duration", time.Since(start)))
			}
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", op, lastErr)
		}

		retryable := r.isRetryable(lastErr)
		if attempt == r.config.MaxAttempts || !retryable {
			log.Warn("Operation failed",
				zap.Int("attempt", attempt),
				zap.Bool("retryable", retryable),
				zap.Duration("total_duration", time.Since(start)),
				zap.Error(lastErr))
			break
		}

		delay := r.delay(attempt)
		log.Info("Retrying operation",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(lastErr))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s cancelled: %w", op, ctx.Err())
		case <-timer.C:
		}
	}

	if r.config.MaxAttempts == 1 {
		return lastErr
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, r.config.MaxAttempts, lastErr)
}

func (r *Retrier) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if r.config.AttemptTimeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, context.DeadlineExceeded) {
		// some clients report the expired deadline as a plain transport error
		err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.config.BaseDelay) * math.Pow(r.config.BackoffFactor, float64(attempt-1))
	if r.config.MaxDelay > 0 && d > float64(r.config.MaxDelay) {
		d = float64(r.config.MaxDelay)
	}
	d *= 1.0 + (rand.Float64()-0.5)*r.config.JitterFactor
	return time.Duration(d)
}

// IsRetryable classifies pipeline errors: provider transients, attempt timeouts,
// throttled or failing downloads and storage writes are worth another try.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrMediaTooLarge) {
		return false
	}
	if errors.Is(err, providers.ErrTransient) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var dlErr *DownloadError
	if errors.As(err, &dlErr) {
		return dlErr.StatusCode == 0 || dlErr.StatusCode == http.StatusTooManyRequests || dlErr.StatusCode >= http.StatusInternalServerError
	}
	var upErr *UploadError
	return errors.As(err, &upErr)
}
