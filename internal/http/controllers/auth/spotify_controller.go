package auth

import (
	"net/http"
	"strings"

	svc "github.com/tunetrail/tunetrail/internal/auth"
	dto "github.com/tunetrail/tunetrail/internal/http/dto/auth"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// Authorize maneja GET /auth/spotify/authorize?intent=connect|link.
func (c *Controller) Authorize(w http.ResponseWriter, r *http.Request) {
	intent := svc.Intent(r.URL.Query().Get("intent"))
	switch intent {
	case "":
		intent = svc.IntentConnect
	case svc.IntentConnect, svc.IntentLink:
	default:
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("intent must be connect or link"))
		return
	}
	u, err := c.service.AuthorizeURL(r.Context(), intent)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.AuthorizeResponse{AuthorizeURL: u})
}

func readCode(w http.ResponseWriter, r *http.Request) (dto.SpotifyCodeRequest, bool) {
	var req dto.SpotifyCodeRequest
	if !decodeJSON(w, r, &req) {
		return req, false
	}
	if strings.TrimSpace(req.AuthCode) == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("auth_code is required"))
		return req, false
	}
	return req, true
}

// ConnectSpotify maneja PUT /auth/connect-spotify: login o alta vía Spotify.
func (c *Controller) ConnectSpotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.ConnectSpotify"))

	req, ok := readCode(w, r)
	if !ok {
		return
	}
	grant, err := c.service.ConnectSpotify(ctx, req.AuthCode, req.State)
	if err != nil {
		log.Debug("connect failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(grant))
}

// LinkSpotify maneja PUT /auth/link-spotify.
func (c *Controller) LinkSpotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := readCode(w, r)
	if !ok {
		return
	}
	grant, err := c.service.LinkSpotify(ctx, mw.GetClaims(ctx), req.AuthCode, req.State)
	if err != nil {
		logger.From(ctx).Debug("link failed", logger.Op("AuthController.LinkSpotify"), logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.NewSubscriptionTokenResponse(grant))
}

// CompleteSpotify maneja PUT /auth/complete-spotify.
func (c *Controller) CompleteSpotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req dto.CompleteSpotifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	username, err := c.service.CompleteSpotify(ctx, mw.GetClaims(ctx), req.Username)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.CompleteSpotifyResponse{
		Message:     "Spotify account setup complete",
		UserDetails: dto.UsernameDetails{Username: username},
	})
}

// UnlinkSpotify maneja DELETE /auth/unlink-spotify.
func (c *Controller) UnlinkSpotify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	grant, err := c.service.UnlinkSpotify(ctx, mw.GetClaims(ctx))
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.NewSubscriptionTokenResponse(grant))
}
