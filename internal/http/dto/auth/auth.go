// Package auth define los bodies de /auth/*.
package auth

import svc "github.com/tunetrail/tunetrail/internal/auth"

// RegisterRequest es el body de POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// SpotifyCodeRequest es el body de connect-spotify y link-spotify.
type SpotifyCodeRequest struct {
	AuthCode string `json:"auth_code"`
	State    string `json:"state,omitempty"`
	// RedirectURI lo manda el cliente móvil; el backend usa el configurado.
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// CompleteSpotifyRequest es el body de PUT /auth/complete-spotify.
type CompleteSpotifyRequest struct {
	Username string `json:"username"`
}

// TokenResponse: register, login y connect devuelven el usuario completo.
type TokenResponse struct {
	AccessToken string          `json:"access_token"`
	UserDetails svc.UserDetails `json:"user_details"`
}

type SubscriptionDetails struct {
	SpotifySubscription *string `json:"spotify_subscription"`
}

// SubscriptionTokenResponse: link, unlink y refresh solo informan la suscripción.
type SubscriptionTokenResponse struct {
	AccessToken string              `json:"access_token"`
	UserDetails SubscriptionDetails `json:"user_details"`
}

type UsernameDetails struct {
	Username string `json:"username"`
}

type CompleteSpotifyResponse struct {
	Message     string          `json:"message"`
	UserDetails UsernameDetails `json:"user_details"`
}

type AuthorizeResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

// NewTokenResponse arma la respuesta completa a partir de un grant.
func NewTokenResponse(g *svc.Grant) TokenResponse {
	return TokenResponse{AccessToken: g.AccessToken, UserDetails: g.User}
}

func NewSubscriptionTokenResponse(g *svc.Grant) SubscriptionTokenResponse {
	return SubscriptionTokenResponse{
		AccessToken: g.AccessToken,
		UserDetails: SubscriptionDetails{SpotifySubscription: g.User.SpotifySubscription},
	}
}
