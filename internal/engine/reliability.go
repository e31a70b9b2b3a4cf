package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/sony/gobreaker"
	"github.com/xela07ax/shieldforce/internal/domain"
	"github.com/xela07ax/shieldforce/internal/infra"
	"golang.org/x/time/rate"
)

// ReliabilityWrapper оборачивает исходящие вызовы в три контура защиты:
// Rate Limiter -> Circuit Breaker -> Retry. Ошибки здесь — инфраструктурные
// (UPSTREAM_FAILURE), они никогда не влияют на security-вердикт.
type ReliabilityWrapper struct {
	next    UpstreamProvider
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	timeout time.Duration
	metrics *Metrics
}

func NewReliabilityWrapper(next UpstreamProvider, cfg infra.EngineConfig, metrics *Metrics) *ReliabilityWrapper {
	// Настройка предохранителя
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "egress-upstream",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// Более 5 ошибок подряд — открываемся (блокируем трафик)
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})

	limiter := rate.NewLimiter(rate.Limit(cfg.UpstreamRPS), cfg.UpstreamBurst)

	return &ReliabilityWrapper{
		next:    next,
		cb:      cb,
		limiter: limiter,
		timeout: cfg.UpstreamTimeout,
		metrics: metrics,
	}
}

func (w *ReliabilityWrapper) Do(ctx context.Context, req *domain.EgressRequest) (*domain.UpstreamResult, error) {
	// 1. Rate Limiter
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	// Повторяем только идемпотентные методы: переигранный POST может
	// продублировать побочный эффект у получателя.
	attempts := uint(1)
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		attempts = 3
	}

	var result *domain.UpstreamResult

	// 2. Circuit Breaker
	cbResult, err := w.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(attempts),
			retry.DelayType(func(n uint, err error, config retry.DelayContext) time.Duration {
				// Если внешний сервис вернул Retry-After — уважаем его
				var tErr *ThrottleError
				if errors.As(err, &tErr) {
					return tErr.RetryAfter
				}

				// В остальных случаях (сетевой лаг, 5xx) — экспоненциальный бэкофф
				return retry.BackOffDelay(n, err, config)
			}),
		)

		retryErr := r.Do(func() error {
			tCtx, cancel := context.WithTimeout(ctx, w.timeout)
			defer cancel()

			var callErr error
			result, callErr = w.next.Do(tCtx, req)
			return callErr
		})

		return result, retryErr
	})

	if err != nil {
		w.metrics.ErrorTotal.WithLabelValues("upstream").Inc()
		return nil, err
	}

	return cbResult.(*domain.UpstreamResult), nil
}
