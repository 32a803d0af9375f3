package sms

import (
	"context"
	"errors"
	"time"

	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/metrics"

	"github.com/sony/gobreaker"
)

// BreakerNotifier 熔断包装：连续失败后短时间内直接返回 ErrUnavailable
type BreakerNotifier struct {
	next    Notifier
	cb      *gobreaker.CircuitBreaker
	timeout time.Duration
}

func NewBreakerNotifier(next Notifier, cfg config.SMSConfig) *BreakerNotifier {
	maxFailures := cfg.BreakerMaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "sms-" + next.Provider(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		// 号码错误是调用方的问题，不计入失败
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidDestination) || errors.Is(err, ErrNotConfigured)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "短信熔断器状态变化",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return &BreakerNotifier{next: next, cb: cb, timeout: cfg.Timeout}
}

func (b *BreakerNotifier) Send(ctx context.Context, phone, message string) error {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Send(ctx, phone, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrUnavailable
	}

	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidDestination):
		result = "invalid_destination"
	case errors.Is(err, ErrUnavailable):
		result = "unavailable"
	case errors.Is(err, ErrNotConfigured):
		result = "not_configured"
	default:
		result = "failed"
	}
	metrics.SMSDeliveries.WithLabelValues(b.next.Provider(), result).Inc()
	return err
}

func (b *BreakerNotifier) Provider() string { return b.next.Provider() }
