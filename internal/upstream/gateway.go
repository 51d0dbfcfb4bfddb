// Package upstream executes HTTP calls against rate-limited third-party
// APIs. One Gateway per provider owns a Gate that pauses every caller while
// the provider's advertised cooldown runs, and retries rate-limited and
// transient attempts up to a fixed ceiling.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tunetrail/tunetrail/internal/metrics"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

const (
	DefaultMaxRetries     = 3
	DefaultAttemptTimeout = 10 * time.Second
	maxBodyBytes          = 8 << 20
)

// BasicAuth credentials sent on token grants.
type BasicAuth struct {
	Username string
	Password string
}

// Request describes one logical upstream call. Form and JSON are only
// accepted on POST, PUT and PATCH; when both are set JSON wins.
type Request struct {
	Method    string
	URL       string
	Params    url.Values
	Header    http.Header
	BasicAuth *BasicAuth
	Form      url.Values
	JSON      any
}

// Config for a provider gateway.
type Config struct {
	Provider           string
	MaxRetries         int           // attempts ceiling, 429s included
	RetryAfterFallback time.Duration // used when a 429 has no usable Retry-After
	AttemptTimeout     time.Duration
	MaxInFlight        int64 // 0 = unbounded

	// Pacing spaces outbound attempts (public Overpass instance).
	Pacing *rate.Limiter

	// SoftLimit flags 2xx bodies that actually mean "rate limited".
	SoftLimit func(body json.RawMessage) bool
}

type Gateway struct {
	cfg    Config
	client *http.Client
	gate   *Gate
	sem    *semaphore.Weighted
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option { return func(g *Gateway) { g.client = c } }

// WithGate shares a gate between gateways of the same provider.
func WithGate(gate *Gate) Option { return func(g *Gateway) { g.gate = gate } }

func New(cfg Config, opts ...Option) *Gateway {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = DefaultAttemptTimeout
	}
	g := &Gateway{cfg: cfg, client: http.DefaultClient}
	for _, o := range opts {
		o(g)
	}
	if g.gate == nil {
		g.gate = NewGate(cfg.Provider)
	}
	if cfg.MaxInFlight > 0 {
		g.sem = semaphore.NewWeighted(cfg.MaxInFlight)
	}
	return g
}

func (g *Gateway) Gate() *Gate      { return g.gate }
func (g *Gateway) Provider() string { return g.cfg.Provider }

// methodArgs: whether the method may carry a body.
var methodArgs = map[string]bool{
	http.MethodGet:    false,
	http.MethodDelete: false,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeRateLimited
	outcomeTransient
	outcomeFatal
)

type attemptResult struct {
	outcome    outcome
	body       json.RawMessage
	retryAfter time.Duration
	status     int
	err        error
}

// Execute runs req, retrying on 429, soft limits, 504 and transient network
// faults. It returns the decoded-to-raw JSON body of the first 2xx.
func (g *Gateway) Execute(ctx context.Context, req Request) (json.RawMessage, error) {
	method := strings.ToUpper(req.Method)
	allowsBody, ok := methodArgs[method]
	if !ok {
		return nil, ErrUnsupportedMethod.WithMessage(fmt.Sprintf("unsupported HTTP method %q", req.Method))
	}
	if !allowsBody && (req.Form != nil || req.JSON != nil) {
		return nil, ErrBodyNotAllowed.WithMessage(method + " requests cannot have a body")
	}
	req.Method = method

	log := logger.From(ctx).With(logger.Component("upstream"), logger.Provider(g.cfg.Provider), logger.Method(method))

	for attempt := 1; attempt <= g.cfg.MaxRetries; attempt++ {
		if err := g.gate.Wait(ctx); err != nil {
			return nil, g.canceled(log, err)
		}
		if g.cfg.Pacing != nil {
			if err := g.cfg.Pacing.Wait(ctx); err != nil {
				return nil, g.canceled(log, err)
			}
		}
		if g.sem != nil {
			if err := g.sem.Acquire(ctx, 1); err != nil {
				return nil, g.canceled(log, err)
			}
		}
		res := g.attempt(ctx, req)
		if g.sem != nil {
			g.sem.Release(1)
		}
		if res.outcome != outcomeOK && ctx.Err() != nil {
			return nil, g.canceled(log, ctx.Err())
		}

		alog := log.With(logger.Attempt(attempt))
		switch res.outcome {
		case outcomeOK:
			g.count(metrics.OutcomeOK)
			alog.Debug("upstream ok", logger.UpstreamStatus(res.status))
			return res.body, nil

		case outcomeRateLimited:
			g.count(metrics.OutcomeRateLimited)
			owner := g.gate.Trip(ctx, res.retryAfter)
			alog.Warn("upstream rate limited",
				logger.UpstreamStatus(res.status), logger.RetryAfter(res.retryAfter), logger.Bool("cooldown_owner", owner))

		case outcomeTransient:
			g.count(metrics.OutcomeTransient)
			alog.Warn("upstream transient failure", logger.UpstreamStatus(res.status), logger.Err(res.err))

		default:
			var se *StatusError
			if errors.As(res.err, &se) {
				g.count(metrics.OutcomeStatus)
			} else {
				g.count(metrics.OutcomeInvalid)
			}
			alog.Info("upstream call failed", logger.UpstreamStatus(res.status), logger.Err(res.err))
			return nil, res.err
		}
	}

	g.count(metrics.OutcomeExhausted)
	log.Error("upstream retries exhausted", logger.Int("max_retries", g.cfg.MaxRetries))
	return nil, ErrExhausted
}

func (g *Gateway) canceled(log *zap.Logger, err error) error {
	g.count(metrics.OutcomeCanceled)
	log.Debug("upstream call abandoned", logger.Err(err))
	return err
}

func (g *Gateway) count(outcome string) {
	metrics.UpstreamAttempts.WithLabelValues(g.cfg.Provider, outcome).Inc()
}

// attempt performs exactly one HTTP exchange with its own timeout.
func (g *Gateway) attempt(ctx context.Context, req Request) attemptResult {
	actx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()

	hreq, err := g.build(actx, req)
	if err != nil {
		return attemptResult{outcome: outcomeFatal, err: ErrTransport.WithCause(err)}
	}

	start := time.Now()
	resp, err := g.client.Do(hreq)
	if err != nil {
		metrics.UpstreamAttemptLatency.WithLabelValues(g.cfg.Provider).Observe(time.Since(start).Seconds())
		if isTransient(err) {
			return attemptResult{outcome: outcomeTransient, err: err}
		}
		return attemptResult{outcome: outcomeFatal, err: ErrTransport.WithCause(err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	metrics.UpstreamAttemptLatency.WithLabelValues(g.cfg.Provider).Observe(time.Since(start).Seconds())
	if err != nil {
		if isTransient(err) {
			return attemptResult{outcome: outcomeTransient, status: resp.StatusCode, err: err}
		}
		return attemptResult{outcome: outcomeFatal, status: resp.StatusCode, err: ErrTransport.WithCause(err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return attemptResult{outcome: outcomeRateLimited, status: resp.StatusCode, retryAfter: g.retryAfter(resp.Header)}
	case resp.StatusCode == http.StatusGatewayTimeout:
		return attemptResult{outcome: outcomeTransient, status: resp.StatusCode, err: fmt.Errorf("status %d", resp.StatusCode)}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return attemptResult{outcome: outcomeFatal, status: resp.StatusCode,
			err: &StatusError{Provider: g.cfg.Provider, StatusCode: resp.StatusCode, Body: body}}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return attemptResult{outcome: outcomeOK, status: resp.StatusCode}
	}
	if !json.Valid(trimmed) {
		return attemptResult{outcome: outcomeFatal, status: resp.StatusCode,
			err: ErrInvalidResponse.WithCause(fmt.Errorf("status %d, %d bytes", resp.StatusCode, len(trimmed)))}
	}
	raw := json.RawMessage(trimmed)
	if g.cfg.SoftLimit != nil && g.cfg.SoftLimit(raw) {
		return attemptResult{outcome: outcomeRateLimited, status: resp.StatusCode, retryAfter: g.retryAfter(resp.Header)}
	}
	return attemptResult{outcome: outcomeOK, status: resp.StatusCode, body: raw}
}

func (g *Gateway) build(ctx context.Context, req Request) (*http.Request, error) {
	u, err := url.Parse(req.URL)
	if err != nil {
		return nil, err
	}
	if len(req.Params) > 0 {
		q := u.Query()
		for k, vs := range req.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch {
	case req.JSON != nil:
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		body, contentType = bytes.NewReader(b), "application/json"
	case req.Form != nil:
		body, contentType = strings.NewReader(req.Form.Encode()), "application/x-www-form-urlencoded"
	}

	hreq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			hreq.Header.Add(k, v)
		}
	}
	if contentType != "" && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", contentType)
	}
	hreq.Header.Set("Accept", "application/json")
	if req.BasicAuth != nil {
		hreq.SetBasicAuth(req.BasicAuth.Username, req.BasicAuth.Password)
	}
	return hreq, nil
}

// retryAfter reads Retry-After as delta-seconds or an HTTP-date; anything
// else falls back to the provider default.
func (g *Gateway) retryAfter(h http.Header) time.Duration {
	return parseRetryAfter(h.Get("Retry-After"), g.cfg.RetryAfterFallback, time.Now())
}

func parseRetryAfter(v string, fallback time.Duration, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
		return 0
	}
	return fallback
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
