// Package deezer looks up tracks by ISRC on the public Deezer API.
//
// Deezer signals quota exhaustion with a 200 whose body is an error
// envelope; QuotaExceeded lets the gateway treat it as a 429.
package deezer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tunetrail/tunetrail/internal/upstream"
)

const (
	Provider           = "deezer"
	DefaultAPIURL      = "https://api.deezer.com"
	RetryAfterFallback = 5 * time.Second

	codeQuotaExceeded = 4
	codeDataNotFound  = 800
)

type errorEnvelope struct {
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// QuotaExceeded matches {"error":{"code":4,"message":"Quota limit exceeded"}}.
func QuotaExceeded(body json.RawMessage) bool {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return false
	}
	return env.Error.Code == codeQuotaExceeded && env.Error.Message == "Quota limit exceeded"
}

// GatewayConfig returns the upstream settings Deezer calls run with.
func GatewayConfig(maxRetries int, attemptTimeout time.Duration) upstream.Config {
	return upstream.Config{
		Provider:           Provider,
		MaxRetries:         maxRetries,
		RetryAfterFallback: RetryAfterFallback,
		AttemptTimeout:     attemptTimeout,
		SoftLimit:          QuotaExceeded,
	}
}

type Client struct {
	baseURL string
	gw      *upstream.Gateway
}

func New(baseURL string, gw *upstream.Gateway) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), gw: gw}
}

type Artist struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type Track struct {
	ID       int64  `json:"id"`
	ISRC     string `json:"isrc"`
	Title    string `json:"title"`
	Link     string `json:"link"`
	Preview  string `json:"preview"`
	Duration int    `json:"duration"`
	Artist   Artist `json:"artist"`
}

// TrackByISRC returns nil, nil when Deezer has no track for the code.
func (c *Client) TrackByISRC(ctx context.Context, isrc string) (*Track, error) {
	body, err := c.gw.Execute(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/track/isrc:" + url.PathEscape(strings.TrimSpace(isrc)),
	})
	if err != nil {
		return nil, err
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		if env.Error.Code == codeDataNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("deezer: %s (code %d)", env.Error.Message, env.Error.Code)
	}

	var t Track
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("deezer: decode track: %w", err)
	}
	return &t, nil
}
