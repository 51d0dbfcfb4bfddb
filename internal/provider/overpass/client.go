// Package overpass resolves localities (cities, towns, villages, hamlets)
// from OpenStreetMap through a public Overpass API instance.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/tunetrail/tunetrail/internal/upstream"
)

const (
	Provider           = "overpass"
	DefaultAPIURL      = "https://overpass-api.de/api/interpreter"
	RetryAfterFallback = 30 * time.Second
)

// GatewayConfig paces outbound queries; the public instance allows only a
// couple of concurrent slots per client.
func GatewayConfig(maxRetries int, attemptTimeout time.Duration) upstream.Config {
	return upstream.Config{
		Provider:           Provider,
		MaxRetries:         maxRetries,
		RetryAfterFallback: RetryAfterFallback,
		AttemptTimeout:     attemptTimeout,
		MaxInFlight:        2,
		Pacing:             rate.NewLimiter(rate.Every(time.Second), 2),
	}
}

// Bounds is a bounding box in degrees.
type Bounds struct {
	North, East, South, West float64
}

func (b Bounds) Validate() error {
	if b.South > b.North || b.South < -90 || b.North > 90 || b.West < -180 || b.East > 180 {
		return fmt.Errorf("overpass: invalid bounds %+v", b)
	}
	return nil
}

type Locality struct {
	ID        int64   `json:"locality_id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Client struct {
	url string
	gw  *upstream.Gateway
}

func New(apiURL string, gw *upstream.Gateway) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	return &Client{url: apiURL, gw: gw}
}

var placeKinds = []string{"city", "town", "village", "hamlet"}

func boundsQuery(b Bounds) string {
	var sb strings.Builder
	sb.WriteString("[out:json];(")
	for _, kind := range placeKinds {
		fmt.Fprintf(&sb, `node["place"="%s"](%g,%g,%g,%g);`, kind, b.South, b.West, b.North, b.East)
	}
	sb.WriteString(");out;")
	return sb.String()
}

type element struct {
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

func (c *Client) query(ctx context.Context, q string) ([]element, error) {
	body, err := c.gw.Execute(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.url,
		Params: url.Values{"data": {q}},
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Elements []element `json:"elements"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("overpass: decode: %w", err)
	}
	return out.Elements, nil
}

func toLocality(e element) (Locality, bool) {
	name, ok := e.Tags["name"]
	if !ok {
		return Locality{}, false
	}
	return Locality{ID: e.ID, Name: name, Latitude: e.Lat, Longitude: e.Lon}, true
}

// LocalitiesByBounds skips unnamed nodes.
func (c *Client) LocalitiesByBounds(ctx context.Context, b Bounds) ([]Locality, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	els, err := c.query(ctx, boundsQuery(b))
	if err != nil {
		return nil, err
	}
	out := make([]Locality, 0, len(els))
	for _, e := range els {
		if l, ok := toLocality(e); ok {
			out = append(out, l)
		}
	}
	return out, nil
}

// LocalityByID returns nil, nil for unknown or unnamed nodes.
func (c *Client) LocalityByID(ctx context.Context, id int64) (*Locality, error) {
	els, err := c.query(ctx, fmt.Sprintf("[out:json];node(%d);out;", id))
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, nil
	}
	l, ok := toLocality(els[0])
	if !ok {
		return nil, nil
	}
	return &l, nil
}
