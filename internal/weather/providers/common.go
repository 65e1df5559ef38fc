package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/i474232898/sunny-forecast/internal/weather"
)

// BackoffConfig controls exponential backoff behaviour.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// HTTPClientConfig bundles HTTP client and resilience settings.
type HTTPClientConfig struct {
	Client  *http.Client
	Backoff BackoffConfig
}

// DefaultBackoff is used by every provider constructor.
var DefaultBackoff = BackoffConfig{
	MaxRetries:      3,
	InitialInterval: 500 * time.Millisecond,
	MaxInterval:     5 * time.Second,
}

var (
	errRateLimited   = errors.New("rate limited")
	errServerError   = errors.New("server error")
	errUnexpected    = errors.New("unexpected status code")
	errCircuitOpen   = errors.New("circuit breaker open")
	errNoHTTPClient  = errors.New("http client not configured")
	errInvalidConfig = errors.New("invalid backoff configuration")
)

// base carries what every adapter shares: identity, endpoint, resilience and clock.
type base struct {
	id      string
	weight  float64
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
	clock   clockwork.Clock
}

func newBase(id string, weight float64, baseURL string, client *http.Client) base {
	return base{
		id:      id,
		weight:  weight,
		baseURL: baseURL,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
		},
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        id,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,

			// Non-429 client errors never count toward opening the breaker.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, errUnexpected)
			},
		}),
		clock: clockwork.NewRealClock(),
	}
}

func (b *base) ID() string {
	return b.id
}

func (b *base) Weight() float64 {
	return b.weight
}

func (b *base) failed(reason weather.FailureReason, err error) weather.SourceSample {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return weather.Failed(b.id, b.weight, reason, detail)
}

// fetchJSON performs the request through the resilience layer and decodes
// the body into out.
func (b *base) fetchJSON(ctx context.Context, buildRequest func() (*http.Request, error), out any) error {
	resp, err := doRequestWithResilience(ctx, b.httpCfg, b.circuit, buildRequest)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", b.id, err)
	}
	return nil
}

// doRequestWithResilience executes the HTTP request with retries, exponential backoff,
// and a circuit breaker. Client errors other than 429 are not retried.
func doRequestWithResilience(
	ctx context.Context,
	cfg HTTPClientConfig,
	cb *gobreaker.CircuitBreaker,
	buildRequest func() (*http.Request, error),
) (*http.Response, error) {
	if cfg.Client == nil {
		return nil, errNoHTTPClient
	}
	if cfg.Backoff.MaxRetries < 0 || cfg.Backoff.InitialInterval <= 0 {
		return nil, errInvalidConfig
	}

	var attempt int
	var lastErr error

	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		req, err := buildRequest()
		if err != nil {
			return nil, err
		}

		// Ensure the request obeys context cancellation.
		req = req.WithContext(ctx)

		result, err := cb.Execute(func() (interface{}, error) {
			resp, execErr := cfg.Client.Do(req)
			if execErr != nil {
				return nil, execErr
			}

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return resp, nil
			}

			drain(resp)
			switch {
			case resp.StatusCode == http.StatusTooManyRequests:
				return nil, errRateLimited
			case resp.StatusCode >= 500:
				return nil, fmt.Errorf("%w: %d", errServerError, resp.StatusCode)
			default:
				return nil, fmt.Errorf("%w: %d", errUnexpected, resp.StatusCode)
			}
		})

		if err == nil {
			resp, ok := result.(*http.Response)
			if !ok {
				return nil, fmt.Errorf("unexpected result type from circuit breaker")
			}
			return resp, nil
		}

		// If circuit is open, propagate immediately.
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		if errors.Is(err, errUnexpected) {
			return nil, err
		}

		lastErr = err
		if attempt >= cfg.Backoff.MaxRetries {
			return nil, lastErr
		}

		delay := cfg.Backoff.InitialInterval * time.Duration(math.Pow(2, float64(attempt)))
		if delay > cfg.Backoff.MaxInterval && cfg.Backoff.MaxInterval > 0 {
			delay = cfg.Backoff.MaxInterval
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		attempt++
	}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}

// pick selects the entry closest to target among those with a parseable time.
// It returns weather.ErrEmptySeries when there is nothing to choose from.
func pick[T any](entries []T, timeOf func(T) (time.Time, bool), target time.Time) (T, time.Time, error) {
	var (
		kept  []T
		times []time.Time
	)
	for _, e := range entries {
		if ts, ok := timeOf(e); ok {
			kept = append(kept, e)
			times = append(times, ts)
		}
	}

	var zero T
	idx, err := weather.SelectClosest(times, target)
	if err != nil {
		return zero, time.Time{}, err
	}
	return kept[idx], times[idx], nil
}

// daysAhead is the number of whole days between now and target, never negative.
func daysAhead(now, target time.Time) int {
	d := int(math.Ceil(target.Sub(now).Hours() / 24))
	if d < 0 {
		return 0
	}
	return d
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

func msToKmh(v *float64) *float64 {
	if v == nil {
		return nil
	}
	kmh := *v * 3.6
	return &kmh
}

func kmToMeters(v *float64) *float64 {
	if v == nil {
		return nil
	}
	m := *v * 1000
	return &m
}

func coord(v float64) string {
	return fmt.Sprintf("%.4f", v)
}
