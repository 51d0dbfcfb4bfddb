package auth

import (
	"net/http"
	"strings"

	dto "github.com/tunetrail/tunetrail/internal/http/dto/auth"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// Register maneja POST /auth/register.
func (c *Controller) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Register"))

	var req dto.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("username and password are required"))
		return
	}

	grant, err := c.service.Register(ctx, req.Username, req.Password)
	if err != nil {
		log.Debug("register failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusCreated, dto.NewTokenResponse(grant))
}

// Login maneja POST /auth/login con HTTP Basic.
func (c *Controller) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.Login"))

	username, plain, ok := r.BasicAuth()
	if !ok || username == "" {
		w.Header().Set("WWW-Authenticate", `Basic realm="tunetrail"`)
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("basic credentials required"))
		return
	}

	grant, err := c.service.Login(ctx, username, plain)
	if err != nil {
		log.Debug("login failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(grant))
}
