package repository

import (
	"context"
	"time"
)

// SessionStatus es el estado derivado de una sesión.
type SessionStatus string

const (
	SessionActive      SessionStatus = "active"
	SessionExpired     SessionStatus = "expired"
	SessionInvalidated SessionStatus = "invalidated"
)

// Session es el registro server-side de un login de larga duración.
type Session struct {
	ID          string
	UserID      int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ExpiresAt   time.Time
	Invalidated bool
}

// Status calcula el estado de la sesión en el instante now.
// Invalidated es terminal y tiene precedencia sobre la expiración.
func (s *Session) Status(now time.Time) SessionStatus {
	if s.Invalidated {
		return SessionInvalidated
	}
	if !now.Before(s.ExpiresAt) {
		return SessionExpired
	}
	return SessionActive
}

// CreateSessionInput contiene los datos para crear una sesión.
type CreateSessionInput struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
}

// SessionRepository persiste sesiones. Las filas nunca se borran salvo por
// cascada al borrar el usuario.
type SessionRepository interface {
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// Get retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateExpiry pisa expires_at sin mirar el flag de invalidación.
	UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (*Session, error)

	// Invalidate marca la sesión; idempotente.
	Invalidate(ctx context.Context, id string) (*Session, error)

	// InvalidateAllByUser marca todas las sesiones activas del usuario y
	// retorna cuántas cambió.
	InvalidateAllByUser(ctx context.Context, userID int64) (int, error)
}
