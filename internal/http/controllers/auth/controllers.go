// Package auth contiene los controllers de /auth/*.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	svc "github.com/tunetrail/tunetrail/internal/auth"
	httperrors "github.com/tunetrail/tunetrail/internal/http/errors"
	"github.com/tunetrail/tunetrail/internal/jwt"
)

const maxBodySize = 64 * 1024

// Service es lo que los controllers necesitan de auth.Service.
type Service interface {
	Register(ctx context.Context, username, plain string) (*svc.Grant, error)
	Login(ctx context.Context, username, plain string) (*svc.Grant, error)
	AuthorizeURL(ctx context.Context, intent svc.Intent) (string, error)
	ConnectSpotify(ctx context.Context, code, state string) (*svc.Grant, error)
	LinkSpotify(ctx context.Context, c *jwt.Claims, code, state string) (*svc.Grant, error)
	CompleteSpotify(ctx context.Context, c *jwt.Claims, username string) (string, error)
	UnlinkSpotify(ctx context.Context, c *jwt.Claims) (*svc.Grant, error)
	Logout(ctx context.Context, c *jwt.Claims) error
	Refresh(ctx context.Context, v *jwt.Validated) (*svc.Grant, error)
}

// Controller agrupa los handlers de auth.
type Controller struct {
	service Service
}

func NewController(s Service) *Controller {
	return &Controller{service: s}
}

// decodeJSON limita el body y decodifica. Escribe el error si falla.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			httperrors.WriteError(w, httperrors.ErrBodyTooLarge)
		case errors.Is(err, io.EOF):
			httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("empty body"))
		default:
			httperrors.WriteError(w, httperrors.ErrInvalidJSON)
		}
		return false
	}
	return true
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
