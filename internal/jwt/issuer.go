// Package jwt emite y valida los access tokens (HS256) de la API.
//
// Un token expirado no es un error de verificación: Validate devuelve las
// claims con Expired=true para que el flujo de refresh pueda usarlas.
package jwt

import (
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// DefaultAccessTTL es la vida de un access token.
const DefaultAccessTTL = 15 * time.Minute

// Claims del access token.
type Claims struct {
	UserID             int64  `json:"user_id"`
	SessionID          string `json:"user_session_id"`
	IsAdmin            bool   `json:"is_admin"`
	SpotifyAccessToken string `json:"spotify_access_token,omitempty"`
	jwtv5.RegisteredClaims
}

// HasSpotify indica si el token lleva un access token de Spotify.
func (c *Claims) HasSpotify() bool { return c.SpotifyAccessToken != "" }

// Issuer firma con un secreto simétrico.
type Issuer struct {
	secret    []byte
	AccessTTL time.Duration
	now       func() time.Time
}

var ErrEmptySecret = errors.New("jwt: empty signing secret")

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultAccessTTL
	}
	return &Issuer{secret: []byte(secret), AccessTTL: ttl, now: time.Now}, nil
}

// WithClock reemplaza time.Now (tests).
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	cp := *i
	cp.now = now
	return &cp
}

// Issue firma un access token nuevo. spotifyToken vacío se omite del payload.
func (i *Issuer) Issue(userID int64, sessionID string, isAdmin bool, spotifyToken string) (string, time.Time, error) {
	now := i.now().UTC()
	exp := now.Add(i.AccessTTL)
	claims := Claims{
		UserID:             userID,
		SessionID:          sessionID,
		IsAdmin:            isAdmin,
		SpotifyAccessToken: spotifyToken,
		RegisteredClaims: jwtv5.RegisteredClaims{
			IssuedAt:  jwtv5.NewNumericDate(now),
			ExpiresAt: jwtv5.NewNumericDate(exp),
		},
	}
	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	tk.Header["typ"] = "JWT"
	signed, err := tk.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign: %w", err)
	}
	return signed, exp, nil
}
