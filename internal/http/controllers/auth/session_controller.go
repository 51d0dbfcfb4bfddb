package auth

import (
	"net/http"

	dto "github.com/tunetrail/tunetrail/internal/http/dto/auth"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// Logout maneja PUT /auth/logout.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := c.service.Logout(ctx, mw.GetClaims(ctx)); err != nil {
		httperrors.WriteError(w, err)
		return
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out successfully"})
}

// RefreshToken maneja PUT /auth/refresh-token. Requiere ParseToken (acepta
// tokens expirados).
func (c *Controller) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AuthController.RefreshToken"))

	grant, err := c.service.Refresh(ctx, mw.GetValidated(ctx))
	if err != nil {
		log.Debug("refresh failed", logger.Err(err))
		httperrors.WriteError(w, err)
		return
	}
	noStore(w)
	httperrors.WriteJSON(w, http.StatusOK, dto.NewSubscriptionTokenResponse(grant))
}
