// Package feed provides tick sources: an HTTP poller for endpoints that return
// the latest tick on request and a websocket subscriber for pushed ticks.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rewired-gh/tickwatch/internal/logger"
	"github.com/rewired-gh/tickwatch/internal/models"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrNoTick is returned when a source has nothing to deliver in time.
var ErrNoTick = errors.New("no tick received")

type HTTPConfig struct {
	URL                string
	Timeout            time.Duration
	RetryMaxElapsed    time.Duration
	RateLimit          float64 // requests per second, 0 disables limiting
	RateBurst          int
	BreakerMaxFailures uint32
	BreakerCooldown    time.Duration
}

// HTTPSource polls URL for the latest tick. Transient failures are retried
// with exponential backoff inside one call; repeated failed calls open the
// circuit breaker so a dead endpoint is not hammered every cycle.
type HTTPSource struct {
	url             string
	httpClient      *http.Client
	limiter         *rate.Limiter
	breaker         *gobreaker.CircuitBreaker
	retryMaxElapsed time.Duration
	retryInitial    time.Duration
}

func NewHTTPSource(cfg HTTPConfig) *HTTPSource {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	s := &HTTPSource{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryMaxElapsed: cfg.RetryMaxElapsed,
		retryInitial:    200 * time.Millisecond,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	maxFailures := cfg.BreakerMaxFailures
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tick-feed",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoTick) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return s
}

func (s *HTTPSource) Next(ctx context.Context) (models.Tick, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return models.Tick{}, fmt.Errorf("rate limiter error: %w", err)
		}
	}

	v, err := s.breaker.Execute(func() (any, error) {
		return s.fetchWithRetry(ctx)
	})
	if err != nil {
		return models.Tick{}, err
	}
	return v.(models.Tick), nil
}

func (s *HTTPSource) fetchWithRetry(ctx context.Context) (models.Tick, error) {
	var tick models.Tick
	operation := func() error {
		t, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		tick = t
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitial
	b.MaxElapsedTime = s.retryMaxElapsed
	if s.retryMaxElapsed <= 0 {
		// Zero means "retry forever" to backoff; here it means a single attempt.
		if err := operation(); err != nil {
			var perm *backoff.PermanentError
			if errors.As(err, &perm) {
				return models.Tick{}, perm.Err
			}
			return models.Tick{}, err
		}
		return tick, nil
	}

	notify := func(err error, wait time.Duration) {
		logger.Debug("Tick fetch failed, retrying in %v: %v", wait, err)
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return models.Tick{}, fmt.Errorf("after retries: %w", err)
	}
	return tick, nil
}

func (s *HTTPSource) fetch(ctx context.Context) (models.Tick, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return models.Tick{}, backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return models.Tick{}, backoff.Permanent(ctx.Err())
		}
		return models.Tick{}, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return models.Tick{}, backoff.Permanent(ErrNoTick)
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		_, _ = io.Copy(io.Discard, resp.Body)
		return models.Tick{}, fmt.Errorf("server error: %d", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return models.Tick{}, backoff.Permanent(fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var tick models.Tick
	if err := json.NewDecoder(resp.Body).Decode(&tick); err != nil {
		return models.Tick{}, backoff.Permanent(fmt.Errorf("failed to decode tick: %w", err))
	}
	return tick, nil
}
