// Package apptoken caches provider application (client-credentials) tokens.
//
// One Cache per provider. Concurrent callers that find the entry missing or
// stale are serialized so at most one fetch is in flight; the rest observe
// the refreshed entry.
package apptoken

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/tunetrail/tunetrail/internal/cache"
	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/metrics"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// DefaultSafetyMargin is subtracted from the provider TTL before storing.
const DefaultSafetyMargin = 60 * time.Second

// ErrFetchFailed is fatal for the request: there is no fallback token.
var ErrFetchFailed = errs.New(errs.KindUpstreamExhausted, "app_token_unavailable", "could not obtain provider token")

// Token as returned by the provider's client-credentials grant.
type Token struct {
	AccessToken string
	ExpiresIn   time.Duration
}

type Fetcher func(ctx context.Context) (Token, error)

type entry struct {
	token     string
	expiresAt time.Time
}

type Cache struct {
	provider string
	fetch    Fetcher
	margin   time.Duration
	shared   cache.Client
	now      func() time.Time

	mu  sync.RWMutex // guards cur
	cur entry
	// one fetch at a time; waiting for it honours ctx
	fetchSem *semaphore.Weighted
}

type Option func(*Cache)

// WithSafetyMargin overrides DefaultSafetyMargin.
func WithSafetyMargin(d time.Duration) Option { return func(c *Cache) { c.margin = d } }

// WithShared adds a second tier shared across replicas (redis) so a fleet
// fetches once per TTL instead of once per process.
func WithShared(cl cache.Client) Option { return func(c *Cache) { c.shared = cl } }

func WithClock(now func() time.Time) Option { return func(c *Cache) { c.now = now } }

func New(provider string, fetch Fetcher, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		fetch:    fetch,
		margin:   DefaultSafetyMargin,
		now:      time.Now,
		fetchSem: semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Cache) valid(e entry, now time.Time) bool {
	return e.token != "" && now.Before(e.expiresAt)
}

// Get returns a token valid for at least the safety margin.
func (c *Cache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	e := c.cur
	c.mu.RUnlock()
	if c.valid(e, c.now()) {
		return e.token, nil
	}

	if err := c.fetchSem.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer c.fetchSem.Release(1)

	// another caller may have refreshed while we waited
	c.mu.RLock()
	e = c.cur
	c.mu.RUnlock()
	if c.valid(e, c.now()) {
		return e.token, nil
	}

	log := logger.From(ctx).With(logger.Component("apptoken"), logger.Provider(c.provider))

	if e, ok := c.loadShared(ctx); ok {
		c.store(e)
		metrics.AppTokenFetches.WithLabelValues(c.provider, "shared").Inc()
		return e.token, nil
	}

	tok, err := c.fetch(ctx)
	if err != nil {
		metrics.AppTokenFetches.WithLabelValues(c.provider, "error").Inc()
		log.Error("app token fetch failed", logger.Err(err))
		return "", ErrFetchFailed.WithCause(err)
	}
	if tok.AccessToken == "" {
		metrics.AppTokenFetches.WithLabelValues(c.provider, "error").Inc()
		return "", ErrFetchFailed.WithCause(fmt.Errorf("%s: empty access_token", c.provider))
	}

	e = entry{token: tok.AccessToken, expiresAt: c.now().Add(tok.ExpiresIn - c.margin)}
	c.store(e)
	c.saveShared(ctx, e)
	metrics.AppTokenFetches.WithLabelValues(c.provider, "fetched").Inc()
	log.Debug("app token refreshed", logger.Duration(tok.ExpiresIn))
	return e.token, nil
}

// Invalidate drops the cached entry (e.g. after a 401 from the provider).
func (c *Cache) Invalidate(ctx context.Context) {
	c.mu.Lock()
	c.cur = entry{}
	c.mu.Unlock()
	if c.shared != nil {
		_ = c.shared.Delete(ctx, c.sharedKey())
	}
}

func (c *Cache) store(e entry) {
	c.mu.Lock()
	c.cur = e
	c.mu.Unlock()
}

func (c *Cache) sharedKey() string { return "apptoken:" + c.provider }

// shared value: "<unix-nano expiry>|<token>"
func (c *Cache) loadShared(ctx context.Context) (entry, bool) {
	if c.shared == nil {
		return entry{}, false
	}
	v, err := c.shared.Get(ctx, c.sharedKey())
	if err != nil {
		if !cache.IsNotFound(err) {
			logger.From(ctx).Warn("app token shared tier read failed", logger.Provider(c.provider), logger.Err(err))
		}
		return entry{}, false
	}
	exp, tok, ok := strings.Cut(v, "|")
	if !ok {
		return entry{}, false
	}
	n, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return entry{}, false
	}
	e := entry{token: tok, expiresAt: time.Unix(0, n)}
	return e, c.valid(e, c.now())
}

func (c *Cache) saveShared(ctx context.Context, e entry) {
	if c.shared == nil {
		return
	}
	ttl := e.expiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}
	v := strconv.FormatInt(e.expiresAt.UnixNano(), 10) + "|" + e.token
	if err := c.shared.Set(ctx, c.sharedKey(), v, ttl); err != nil {
		logger.From(ctx).Warn("app token shared tier write failed", logger.Provider(c.provider), logger.Err(err))
	}
}

// Registry maps provider name to its Cache.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Cache
}

func NewRegistry() *Registry { return &Registry{caches: map[string]*Cache{}} }

func (r *Registry) Register(c *Cache) {
	r.mu.Lock()
	r.caches[c.provider] = c
	r.mu.Unlock()
}

func (r *Registry) Get(ctx context.Context, provider string) (string, error) {
	r.mu.RLock()
	c, ok := r.caches[provider]
	r.mu.RUnlock()
	if !ok {
		return "", ErrFetchFailed.WithCause(fmt.Errorf("no app token source for provider %q", provider))
	}
	return c.Get(ctx)
}
