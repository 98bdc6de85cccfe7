package apiclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xela07ax/vintrade-console/internal/infra"
)

var (
	// errServerFailure помечает 5xx для Circuit Breaker. Наружу не выходит.
	errServerFailure = errors.New("server failure")
	// errCallerGone: запрос отменил сам вызывающий (ретаргет, Close), бэкенд тут ни при чем.
	errCallerGone = errors.New("request abandoned by caller")
)

// reliableTransport: лимитер + предохранитель вокруг http.Client.
// Ретраев тут нет: повтор запроса, решение пользователя (кнопка Refresh).
type reliableTransport struct {
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func newReliableTransport(cfg infra.APIConfig, hc *http.Client, metrics *Metrics, logger *zap.Logger) *reliableTransport {
	failures := cfg.CBFailures
	if failures == 0 {
		failures = 5
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "console-api",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Отмена со стороны клиента не считается отказом бэкенда
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errCallerGone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.Set(float64(to))
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &reliableTransport{http: hc, cb: cb, limiter: limiter}
}

// roundTrip возвращает ответ даже для 5xx, ошибку, только если ответа нет.
func (t *reliableTransport) roundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, &TransportError{Op: "rate limit", Err: err}
		}
	}

	result, err := t.cb.Execute(func() (interface{}, error) {
		resp, err := t.http.Do(req)
		if err != nil {
			if req.Context().Err() != nil {
				return nil, fmt.Errorf("%w: %w", errCallerGone, err)
			}
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, fmt.Errorf("%w: status %d", errServerFailure, resp.StatusCode)
		}
		return resp, nil
	})

	if resp, ok := result.(*http.Response); ok && resp != nil {
		return resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &TransportError{Op: "backend unavailable", Err: err}
	}
	return nil, &TransportError{Op: req.Method + " " + req.URL.Path, Err: err}
}
