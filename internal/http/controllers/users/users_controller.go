// Package users contiene los endpoints administrativos sobre usuarios.
package users

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
	dto "github.com/tunetrail/tunetrail/internal/http/dto/auth"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	mw "github.com/tunetrail/tunetrail/internal/http/middlewares"
	"github.com/tunetrail/tunetrail/internal/jwt"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, admin *jwt.Claims, userID int64) (*repository.User, int, error)
}

type Controller struct {
	revoker SessionRevoker
}

func NewController(r SessionRevoker) *Controller {
	return &Controller{revoker: r}
}

// InvalidateSessions maneja PATCH /users/{id}/invalidate-session.
func (c *Controller) InvalidateSessions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("id must be a positive integer"))
		return
	}

	user, n, err := c.revoker.RevokeUserSessions(ctx, mw.GetClaims(ctx), id)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	logger.From(ctx).Info("sessions revoked by admin",
		logger.Op("UsersController.InvalidateSessions"), logger.Int("target_user_id", int(id)), logger.Count(n))

	name := user.DisplayName()
	if name == "" {
		name = strconv.FormatInt(user.ID, 10)
	}
	httperrors.WriteJSON(w, http.StatusOK, dto.MessageResponse{
		Message: fmt.Sprintf("Successfully invalidated all sessions for %s", name),
	})
}
