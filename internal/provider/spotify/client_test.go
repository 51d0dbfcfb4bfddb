package spotify

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

	"github.com/tunetrail/tunetrail/internal/upstream"
)

type fakeSpotify struct {
	tokenCalls atomic.Int32
}

func (f *fakeSpotify) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		id, secret, ok := r.BasicAuth()
		if !ok || id != "cid" || secret != "csecret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = r.ParseForm()
		grant := r.PostForm.Get("grant_type")
		switch grant {
		case "client_credentials":
			io.WriteString(w, `{"access_token":"app-tok","token_type":"Bearer","expires_in":3600}`)
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" || r.PostForm.Get("redirect_uri") != "tune-trail://cb" {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
			io.WriteString(w, `{"access_token":"user-tok","token_type":"Bearer","expires_in":3600,"refresh_token":"user-refresh"}`)
		case "refresh_token":
			if r.PostForm.Get("refresh_token") != "user-refresh" {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"error":"invalid_grant"}`)
				return
			}
			io.WriteString(w, `{"access_token":"user-tok-2","token_type":"Bearer","expires_in":1800}`)
		}
	})
	mux.HandleFunc("/v1/me", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"sp-user-1","product":"premium","display_name":"Erin"}`)
	})
	mux.HandleFunc("/v1/tracks/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer app-tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/tracks/4uLU6hMCjMI75M1A2tKUQC" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":{"status":404,"message":"Not found"}}`)
			return
		}
		io.WriteString(w, `{
			"id":"4uLU6hMCjMI75M1A2tKUQC","name":"Never Gonna Give You Up",
			"external_ids":{"isrc":"GBARL9300135"},
			"artists":[{"name":"Rick Astley"}],
			"album":{"images":[{"url":"L"},{"url":"M"}]}
		}`)
	})
	mux.HandleFunc("/v1/search", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		json.NewEncoder(w).Encode(map[string]string{
			"q": q.Get("q"), "type": q.Get("type"), "offset": q.Get("offset"), "limit": q.Get("limit"),
		})
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeSpotify) {
	t.Helper()
	fake := &fakeSpotify{}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	gw := upstream.New(GatewayConfig(3, time.Second), upstream.WithHTTPClient(srv.Client()))
	c := New(Config{
		ClientID:     "cid",
		ClientSecret: "csecret",
		RedirectURI:  "tune-trail://cb",
		AccountsURL:  srv.URL,
		APIURL:       srv.URL,
	}, gw)
	return c, fake
}

func TestExchangeCode(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	ts, err := c.ExchangeCode(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "sp-user-1", ts.ProviderUserID)
	assert.Equal(t, "premium", ts.Subscription)
	assert.Equal(t, "user-tok", ts.AccessToken)
	assert.Equal(t, "user-refresh", ts.RefreshToken)
	assert.Equal(t, time.Hour, ts.ExpiresIn)

	_, err = c.ExchangeCode(context.Background(), "bad-code")
	require.True(t, upstream.IsStatus(err, http.StatusBadRequest))
}

func TestRefreshUserToken_NoRotation(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	ts, err := c.RefreshUserToken(context.Background(), "user-refresh")
	require.NoError(t, err)
	assert.Equal(t, "user-tok-2", ts.AccessToken)
	assert.Empty(t, ts.RefreshToken)
	assert.Equal(t, 30*time.Minute, ts.ExpiresIn)
	assert.Equal(t, "premium", ts.Subscription)
}

func TestTrack_MapsPayloadAndReusesAppToken(t *testing.T) {
	t.Parallel()
	c, fake := newTestClient(t)
	ctx := context.Background()

	tr, err := c.Track(ctx, "4uLU6hMCjMI75M1A2tKUQC")
	require.NoError(t, err)
	require.NotNil(t, tr)
	assert.Equal(t, "GBARL9300135", tr.ISRC)
	assert.Equal(t, []string{"Rick Astley"}, tr.Artists)
	require.NotNil(t, tr.Cover.Large)
	assert.Equal(t, "L", *tr.Cover.Large)
	require.NotNil(t, tr.Cover.Medium)
	assert.Equal(t, "M", *tr.Cover.Medium)
	assert.Nil(t, tr.Cover.Small)

	missing, err := c.Track(ctx, "unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)

	raw, err := c.SearchTracks(ctx, "rick", 10, 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q":"rick","type":"track","offset":"10","limit":"5"}`, string(raw))

	assert.Equal(t, int32(1), fake.tokenCalls.Load())
}

func TestAuthorizeURL(t *testing.T) {
	t.Parallel()
	c, _ := newTestClient(t)

	u, err := url.Parse(c.AuthorizeURL("st4te"))
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "cid", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "tune-trail://cb", q.Get("redirect_uri"))
	assert.Equal(t, "st4te", q.Get("state"))
	assert.Equal(t, "user-read-private user-read-email", q.Get("scope"))
}
