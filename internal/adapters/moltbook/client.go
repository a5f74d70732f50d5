// Package moltbook is the HTTP client for the Moltbook REST API.
package moltbook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cercia-labs/cercia-core/internal/platform/jsonx"
	"github.com/cercia-labs/cercia-core/internal/platform/metrics"
	"github.com/cercia-labs/cercia-core/internal/ports/out/remoteapi"
)

const DefaultBaseURL = "https://www.moltbook.com/api/v1"

// ErrUnavailable is the failure text reported while the circuit breaker is open.
const ErrUnavailable = "service unavailable"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 8 << 20

type Options struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSecond and Burst shape outgoing calls; RatePerSecond <= 0 disables limiting.
	RatePerSecond float64
	Burst         int
	// BreakerFailures consecutive transport or 5xx failures open the breaker; 0 disables it.
	BreakerFailures uint32
	// FetchRetries bounds retries of GET /posts/{id}. Other calls are never retried.
	FetchRetries uint64

	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Client implements remoteapi.Client. Every failure is folded into a
// remoteapi.Response; no method returns a Go error.
type Client struct {
	base         string
	http         *http.Client
	limiter      *rate.Limiter
	breaker      *gobreaker.CircuitBreaker
	fetchRetries uint64
	log          *zap.Logger
	metrics      *metrics.Metrics
}

var _ remoteapi.Client = (*Client)(nil)

func New(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	c := &Client{
		base:         base,
		http:         hc,
		fetchRetries: opts.FetchRetries,
		log:          log,
		metrics:      opts.Metrics,
	}
	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	if opts.BreakerFailures > 0 {
		threshold := opts.BreakerFailures
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "moltbook",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state change",
					zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
			},
		})
	}
	return c
}

type request struct {
	endpoint string // metrics label
	method   string
	path     string
	apiKey   string
	body     any
}

type rawResponse struct {
	status int
	body   []byte
}

type errorBody struct {
	Error string `json:"error"`
	Hint  string `json:"hint"`
}

var errServerStatus = errors.New("server error")

// send performs one round trip. A non-nil error means no usable HTTP response.
func (c *Client) send(ctx context.Context, r request) (rawResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return rawResponse{}, err
		}
	}

	var reader io.Reader
	if r.body != nil {
		b, err := jsonx.Marshal(r.body)
		if err != nil {
			return rawResponse{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.base+r.path, reader)
	if err != nil {
		return rawResponse{}, err
	}
	req.Header.Set("Accept", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	roundTrip := func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}
		raw := rawResponse{status: resp.StatusCode, body: body}
		if resp.StatusCode >= 500 {
			return raw, errServerStatus
		}
		return raw, nil
	}

	var res interface{}
	if c.breaker != nil {
		res, err = c.breaker.Execute(roundTrip)
	} else {
		res, err = roundTrip()
	}
	if raw, ok := res.(rawResponse); ok && errors.Is(err, errServerStatus) {
		return raw, nil
	}
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return rawResponse{}, errors.New(ErrUnavailable)
		}
		return rawResponse{}, err
	}
	return res.(rawResponse), nil
}

// call runs r and decodes a 2xx body into T.
func call[T any](ctx context.Context, c *Client, r request) remoteapi.Response[T] {
	raw, err := c.send(ctx, r)
	if err != nil {
		c.log.Debug("moltbook call failed", zap.String("endpoint", r.endpoint), zap.Error(err))
		c.metrics.RemoteCall(r.endpoint, false)
		return remoteapi.Fail[T](0, err.Error(), "")
	}
	resp := decode[T](raw)
	c.metrics.RemoteCall(r.endpoint, resp.Success)
	if !resp.Success {
		c.log.Debug("moltbook call rejected",
			zap.String("endpoint", r.endpoint), zap.Int("status", resp.Status), zap.String("error", resp.Error))
	}
	return resp
}

func decode[T any](raw rawResponse) remoteapi.Response[T] {
	if raw.status < 200 || raw.status > 299 {
		var eb errorBody
		_ = jsonx.Unmarshal(raw.body, &eb)
		msg := eb.Error
		if msg == "" {
			msg = fmt.Sprintf("Request failed (%d)", raw.status)
		}
		return remoteapi.Fail[T](raw.status, msg, eb.Hint)
	}
	var data T
	if err := jsonx.Unmarshal(raw.body, &data); err != nil {
		return remoteapi.Fail[T](raw.status, fmt.Sprintf("invalid response body: %v", err), "")
	}
	return remoteapi.Response[T]{Success: true, Data: data, Status: raw.status}
}

// mapResponse converts a successful response's data; failures pass through.
func mapResponse[A, B any](in remoteapi.Response[A], f func(A) B) remoteapi.Response[B] {
	out := remoteapi.Response[B]{Success: in.Success, Error: in.Error, Hint: in.Hint, Status: in.Status}
	if in.Success {
		out.Data = f(in.Data)
	}
	return out
}

func escape(id string) string { return url.PathEscape(id) }

// retryable reports whether a GET may be repeated: transport failures and 5xx.
func retryable[T any](r remoteapi.Response[T]) bool {
	return !r.Success && (r.Status == 0 || r.Status >= 500) && r.Error != ErrUnavailable
}

// withRetry repeats fn with exponential backoff while the result is retryable.
func withRetry[T any](ctx context.Context, retries uint64, fn func() remoteapi.Response[T]) remoteapi.Response[T] {
	var last remoteapi.Response[T]
	if retries == 0 {
		return fn()
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), retries), ctx)
	_ = backoff.Retry(func() error {
		last = fn()
		if retryable(last) {
			return errors.New(last.Error)
		}
		return nil
	}, bo)
	return last
}
