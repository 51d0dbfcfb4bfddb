// Package spotify is the Spotify Web API client: application and user token
// grants, the profile, and the track lookups the app needs. Every call goes
// through the provider's upstream.Gateway.
package spotify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/tunetrail/tunetrail/internal/apptoken"
	"github.com/tunetrail/tunetrail/internal/cache"
	"github.com/tunetrail/tunetrail/internal/oauthlink"
	"github.com/tunetrail/tunetrail/internal/upstream"
)

const (
	Provider           = "spotify"
	DefaultAccountsURL = "https://accounts.spotify.com"
	DefaultAPIURL      = "https://api.spotify.com"
	RetryAfterFallback = 30 * time.Second
)

var DefaultScopes = []string{"user-read-private", "user-read-email"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string
	AccountsURL  string // overridable for tests
	APIURL       string
}

// GatewayConfig returns the upstream settings Spotify calls run with.
func GatewayConfig(maxRetries int, attemptTimeout time.Duration) upstream.Config {
	return upstream.Config{
		Provider:           Provider,
		MaxRetries:         maxRetries,
		RetryAfterFallback: RetryAfterFallback,
		AttemptTimeout:     attemptTimeout,
		MaxInFlight:        32,
	}
}

type Client struct {
	cfg      Config
	gw       *upstream.Gateway
	appToken *apptoken.Cache
	oauth    *oauth2.Config
}

type Option func(*clientOpts)

type clientOpts struct{ shared cache.Client }

// WithSharedAppToken stores the application token in a shared cache tier.
func WithSharedAppToken(c cache.Client) Option { return func(o *clientOpts) { o.shared = c } }

func New(cfg Config, gw *upstream.Gateway, opts ...Option) *Client {
	if cfg.AccountsURL == "" {
		cfg.AccountsURL = DefaultAccountsURL
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	var o clientOpts
	for _, fn := range opts {
		fn(&o)
	}

	c := &Client{
		cfg: cfg,
		gw:  gw,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AccountsURL + "/authorize",
				TokenURL:  cfg.AccountsURL + "/api/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
	}
	var cacheOpts []apptoken.Option
	if o.shared != nil {
		cacheOpts = append(cacheOpts, apptoken.WithShared(o.shared))
	}
	c.appToken = apptoken.New(Provider, c.fetchAppToken, cacheOpts...)
	return c
}

// AppTokens exposes the cache for registry wiring.
func (c *Client) AppTokens() *apptoken.Cache { return c.appToken }

// AuthorizeURL is where the app sends the user to grant access.
func (c *Client) AuthorizeURL(state string) string {
	return c.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("show_dialog", "false"))
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

func (c *Client) tokenGrant(ctx context.Context, form url.Values) (tokenResponse, error) {
	body, err := c.gw.Execute(ctx, upstream.Request{
		Method:    http.MethodPost,
		URL:       c.oauth.Endpoint.TokenURL,
		BasicAuth: &upstream.BasicAuth{Username: c.cfg.ClientID, Password: c.cfg.ClientSecret},
		Form:      form,
	})
	if err != nil {
		return tokenResponse{}, err
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return tokenResponse{}, fmt.Errorf("spotify: decode token: %w", err)
	}
	if tr.AccessToken == "" {
		return tokenResponse{}, fmt.Errorf("spotify: token response without access_token")
	}
	return tr, nil
}

func (c *Client) fetchAppToken(ctx context.Context) (apptoken.Token, error) {
	tr, err := c.tokenGrant(ctx, url.Values{"grant_type": {"client_credentials"}})
	if err != nil {
		return apptoken.Token{}, err
	}
	return apptoken.Token{AccessToken: tr.AccessToken, ExpiresIn: time.Duration(tr.ExpiresIn) * time.Second}, nil
}

// AppToken returns the cached client-credentials token.
func (c *Client) AppToken(ctx context.Context) (string, error) {
	return c.appToken.Get(ctx)
}

// ExchangeCode completes the authorization-code grant and reads the profile.
func (c *Client) ExchangeCode(ctx context.Context, code string) (oauthlink.TokenSet, error) {
	tr, err := c.tokenGrant(ctx, url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {c.cfg.RedirectURI},
	})
	if err != nil {
		return oauthlink.TokenSet{}, err
	}
	p, err := c.Profile(ctx, tr.AccessToken)
	if err != nil {
		return oauthlink.TokenSet{}, err
	}
	return oauthlink.TokenSet{
		ProviderUserID: p.ID,
		Subscription:   p.Product,
		AccessToken:    tr.AccessToken,
		RefreshToken:   tr.RefreshToken,
		ExpiresIn:      time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

// RefreshUserToken runs the refresh_token grant. RefreshToken in the result
// is empty unless Spotify rotated it.
func (c *Client) RefreshUserToken(ctx context.Context, refreshToken string) (oauthlink.TokenSet, error) {
	tr, err := c.tokenGrant(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	})
	if err != nil {
		return oauthlink.TokenSet{}, err
	}
	p, err := c.Profile(ctx, tr.AccessToken)
	if err != nil {
		return oauthlink.TokenSet{}, err
	}
	return oauthlink.TokenSet{
		ProviderUserID: p.ID,
		Subscription:   p.Product,
		AccessToken:    tr.AccessToken,
		RefreshToken:   tr.RefreshToken,
		ExpiresIn:      time.Duration(tr.ExpiresIn) * time.Second,
	}, nil
}

type Profile struct {
	ID          string `json:"id"`
	Product     string `json:"product"`
	DisplayName string `json:"display_name"`
}

func (c *Client) Profile(ctx context.Context, accessToken string) (Profile, error) {
	body, err := c.gw.Execute(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.cfg.APIURL + "/v1/me",
		Header: bearer(accessToken),
	})
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := json.Unmarshal(body, &p); err != nil {
		return Profile{}, fmt.Errorf("spotify: decode profile: %w", err)
	}
	if p.ID == "" {
		return Profile{}, fmt.Errorf("spotify: profile without id")
	}
	return p, nil
}

// SearchTracks returns Spotify's search payload untouched.
func (c *Client) SearchTracks(ctx context.Context, query string, offset, limit int) (json.RawMessage, error) {
	tok, err := c.AppToken(ctx)
	if err != nil {
		return nil, err
	}
	return c.gw.Execute(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.cfg.APIURL + "/v1/search",
		Header: bearer(tok),
		Params: url.Values{
			"q":      {query},
			"type":   {"track"},
			"offset": {strconv.Itoa(offset)},
			"limit":  {strconv.Itoa(limit)},
		},
	})
}

type Cover struct {
	Small  *string `json:"small"`
	Medium *string `json:"medium"`
	Large  *string `json:"large"`
}

type Track struct {
	SpotifyID string   `json:"spotify_id"`
	ISRC      string   `json:"isrc"`
	Name      string   `json:"name"`
	Artists   []string `json:"artists"`
	Cover     Cover    `json:"cover"`
}

type trackPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	ExternalIDs struct {
		ISRC string `json:"isrc"`
	} `json:"external_ids"`
	Artists []struct {
		Name string `json:"name"`
	} `json:"artists"`
	Album struct {
		Images []struct {
			URL string `json:"url"`
		} `json:"images"`
	} `json:"album"`
}

// Track returns nil, nil when Spotify does not know the id. Album images come
// largest first.
func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	tok, err := c.AppToken(ctx)
	if err != nil {
		return nil, err
	}
	body, err := c.gw.Execute(ctx, upstream.Request{
		Method: http.MethodGet,
		URL:    c.cfg.APIURL + "/v1/tracks/" + url.PathEscape(strings.TrimSpace(id)),
		Header: bearer(tok),
	})
	if err != nil {
		if upstream.IsStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var p trackPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("spotify: decode track: %w", err)
	}

	t := &Track{SpotifyID: p.ID, ISRC: p.ExternalIDs.ISRC, Name: p.Name, Artists: make([]string, 0, len(p.Artists))}
	for _, a := range p.Artists {
		t.Artists = append(t.Artists, a.Name)
	}
	img := func(i int) *string {
		if i < len(p.Album.Images) {
			u := p.Album.Images[i].URL
			return &u
		}
		return nil
	}
	t.Cover = Cover{Large: img(0), Medium: img(1), Small: img(2)}
	return t, nil
}

func bearer(tok string) http.Header {
	return http.Header{"Authorization": {"Bearer " + tok}}
}
