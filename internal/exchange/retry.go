package exchange

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"signal-desk/internal/config"
)

// Retrier 为交易所调用提供限速与指数退避重试，可在多个调用方之间共享。
type Retrier struct {
	cfg     config.RetryConfig
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewRetrier 根据网关配置创建 Retrier。requestsPerSecond<=0 时不限速。
func NewRetrier(cfg config.RetryConfig, requestsPerSecond float64, logger *zap.Logger) *Retrier {
	if logger == nil {
		logger = zap.NewNop()
	}

	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}

	return &Retrier{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}
}

// Do 执行 fn，可重试错误按退避策略重试，其余错误立即返回。
func (r *Retrier) Do(ctx context.Context, operation string, fn func() error) error {
	minDelay := r.cfg.MinDelay
	if minDelay <= 0 {
		minDelay = 500 * time.Millisecond
	}
	maxDelay := r.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = minDelay
	expo.MaxInterval = maxDelay
	expo.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(maxAttempts-1)), ctx)

	attempt := 0
	start := time.Now()

	op := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}

		attempt++
		err := fn()
		if err == nil {
			return nil
		}

		normalized, retry := classifyError(err)
		if !retry {
			return backoff.Permanent(normalized)
		}
		return normalized
	}

	notify := func(err error, wait time.Duration) {
		r.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(op, policy, notify)
	latency := time.Since(start)

	switch {
	case err == nil:
		if attempt > 1 {
			r.logger.Info("交易所调用重试后成功",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", latency),
			)
		}
		return nil
	case errors.Is(err, ErrMaintenance):
		r.logger.Warn("交易所维护中",
			zap.String("operation", operation),
			zap.Error(err),
		)
	default:
		r.logger.Error("交易所调用失败",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
			zap.Duration("latency", latency),
			zap.Error(err),
		)
	}

	return err
}
