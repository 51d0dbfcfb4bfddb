package upstream

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
)

type testUpstream struct {
	gw    *Gateway
	url   string
	calls *atomic.Int32
}

func newTestUpstream(t *testing.T, h http.HandlerFunc, mutate func(*Config)) testUpstream {
	t.Helper()
	calls := &atomic.Int32{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := Config{
		Provider:           "test-" + t.Name(),
		MaxRetries:         3,
		RetryAfterFallback: 10 * time.Millisecond,
		AttemptTimeout:     time.Second,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return testUpstream{gw: New(cfg, WithHTTPClient(srv.Client())), url: srv.URL, calls: calls}
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestExecute_RateLimitedThenOK(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":7}`)
	}, nil)

	start := time.Now()
	body, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url + "/v1/tracks/7"})
	require.NoError(t, err)
	require.JSONEq(t, `{"id":7}`, string(body))
	require.Equal(t, int32(2), up.calls.Load())
	require.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
	require.False(t, up.gw.Gate().Closed())
}

func TestExecute_ConcurrentCallersShareCooldown(t *testing.T) {
	t.Parallel()
	var limited atomic.Bool
	limited.Store(true)
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if limited.CompareAndSwap(true, false) {
			writeJSON(w, http.StatusTooManyRequests, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	}, func(c *Config) { c.RetryAfterFallback = 100 * time.Millisecond })

	const callers = 5
	errCh := make(chan error, callers)
	for i := 0; i < callers; i++ {
		go func() {
			_, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
			errCh <- err
		}()
	}
	for i := 0; i < callers; i++ {
		require.NoError(t, <-errCh)
	}
	// one 429 plus one success per caller
	require.Equal(t, int32(callers+1), up.calls.Load())
}

func TestExecute_RejectsBeforeNetwork(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}, nil)
	ctx := context.Background()

	_, err := up.gw.Execute(ctx, Request{Method: "GET", URL: up.url, Form: url.Values{"a": {"b"}}})
	require.ErrorIs(t, err, ErrBodyNotAllowed)
	require.Equal(t, errs.KindClientInput, errs.KindOf(err))

	_, err = up.gw.Execute(ctx, Request{Method: "DELETE", URL: up.url, JSON: map[string]string{"a": "b"}})
	require.ErrorIs(t, err, ErrBodyNotAllowed)

	_, err = up.gw.Execute(ctx, Request{Method: "TRACE", URL: up.url})
	require.ErrorIs(t, err, ErrUnsupportedMethod)
	require.Equal(t, errs.KindClientInput, errs.KindOf(err))

	require.Equal(t, int32(0), up.calls.Load())
}

func TestExecute_GatewayTimeoutRetriesWithoutCooldown(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		writeJSON(w, http.StatusOK, `{"elements":[]}`)
	}, func(c *Config) { c.RetryAfterFallback = time.Hour })

	body, err := up.gw.Execute(context.Background(), Request{Method: "POST", URL: up.url, Form: url.Values{"data": {"[out:json];"}}})
	require.NoError(t, err)
	require.JSONEq(t, `{"elements":[]}`, string(body))
	require.Equal(t, int32(2), up.calls.Load())
}

func TestExecute_OtherStatusSurfaced(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"error":{"status":404,"message":"non existing id"}}`)
	}, nil)

	_, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
	se, ok := AsStatus(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.Contains(t, string(se.Body), "non existing id")
	assert.True(t, IsStatus(err, http.StatusNotFound))
	require.Equal(t, int32(1), up.calls.Load())
}

func TestExecute_ExhaustedAfterMaxRetries(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		writeJSON(w, http.StatusTooManyRequests, `{}`)
	}, nil)

	_, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
	require.ErrorIs(t, err, ErrExhausted)
	require.Equal(t, errs.KindUpstreamExhausted, errs.KindOf(err))
	require.Equal(t, int32(3), up.calls.Load())
}

func TestExecute_CanceledWhileGateClosed(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}, nil)
	go up.gw.Gate().Trip(context.Background(), time.Second)
	require.Eventually(t, up.gw.Gate().Closed, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := up.gw.Execute(ctx, Request{Method: "GET", URL: up.url})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, int32(0), up.calls.Load())
}

func TestExecute_SoftLimitTreatedAsRateLimit(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			writeJSON(w, http.StatusOK, `{"error":{"code":4,"message":"Quota limit exceeded"}}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"id":3135556,"isrc":"GBDUW0000059"}`)
	}, func(c *Config) {
		c.SoftLimit = func(body json.RawMessage) bool {
			var env struct {
				Error struct {
					Code int `json:"code"`
				} `json:"error"`
			}
			return json.Unmarshal(body, &env) == nil && env.Error.Code == 4
		}
	})

	body, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
	require.NoError(t, err)
	require.Contains(t, string(body), "GBDUW0000059")
	require.Equal(t, int32(2), up.calls.Load())
}

func TestExecute_NonJSONSuccess(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "<html>maintenance</html>")
	}, nil)

	_, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
	require.ErrorIs(t, err, ErrInvalidResponse)
	require.Equal(t, int32(1), up.calls.Load())
}

func TestExecute_EmptySuccessBody(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	body, err := up.gw.Execute(context.Background(), Request{Method: "DELETE", URL: up.url})
	require.NoError(t, err)
	require.Nil(t, body)
}

func TestExecute_SendsParamsAuthAndForm(t *testing.T) {
	t.Parallel()
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			writeJSON(w, http.StatusUnauthorized, `{}`)
			return
		}
		if r.URL.Query().Get("market") != "GB" {
			writeJSON(w, http.StatusBadRequest, `{}`)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			writeJSON(w, http.StatusBadRequest, `{}`)
			return
		}
		writeJSON(w, http.StatusOK, `{"access_token":"app","expires_in":3600}`)
	}, nil)

	body, err := up.gw.Execute(context.Background(), Request{
		Method:    "post",
		URL:       up.url + "/api/token",
		Params:    url.Values{"market": {"GB"}},
		BasicAuth: &BasicAuth{Username: "client", Password: "secret"},
		Form:      url.Values{"grant_type": {"client_credentials"}},
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"access_token":"app","expires_in":3600}`, string(body))
}

func TestExecute_AttemptTimeoutIsRetried(t *testing.T) {
	t.Parallel()
	var n atomic.Int32
	up := newTestUpstream(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(500 * time.Millisecond):
			}
			return
		}
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	}, func(c *Config) { c.AttemptTimeout = 50 * time.Millisecond })

	body, err := up.gw.Execute(context.Background(), Request{Method: "GET", URL: up.url})
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.Equal(t, int32(2), up.calls.Load())
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	fb := 30 * time.Second

	assert.Equal(t, 5*time.Second, parseRetryAfter("5", fb, now))
	assert.Equal(t, time.Duration(0), parseRetryAfter("0", fb, now))
	assert.Equal(t, fb, parseRetryAfter("", fb, now))
	assert.Equal(t, fb, parseRetryAfter("soon", fb, now))
	assert.Equal(t, fb, parseRetryAfter("-3", fb, now))
	assert.Equal(t, 90*time.Second, parseRetryAfter(now.Add(90*time.Second).Format(http.TimeFormat), fb, now))
	assert.Equal(t, time.Duration(0), parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), fb, now))
}
