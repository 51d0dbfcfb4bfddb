package repository

import (
	"context"
	"time"
)

// User es la identidad local. Las cuentas creadas vía Spotify no tienen
// password y, hasta completar el perfil, tampoco username.
type User struct {
	ID             int64
	Username       *string
	PasswordHash   *string
	IsOAuthAccount bool
	IsAdmin        bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HasPassword indica si el usuario tiene una credencial local independiente
// del link OAuth.
func (u *User) HasPassword() bool {
	return u != nil && u.PasswordHash != nil && *u.PasswordHash != ""
}

// DisplayName devuelve el username o "" si todavía no fue elegido.
func (u *User) DisplayName() string {
	if u == nil || u.Username == nil {
		return ""
	}
	return *u.Username
}

// CreateUserInput contiene los datos para crear un usuario.
type CreateUserInput struct {
	Username       *string
	PasswordHash   *string
	IsOAuthAccount bool
	IsAdmin        bool
}

// UserRepository es el lookup de usuarios que necesita el core.
type UserRepository interface {
	// GetByID retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByUsername retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// Create retorna ErrConflict si el username ya está tomado.
	Create(ctx context.Context, input CreateUserInput) (*User, error)

	// SetUsername retorna ErrNotFound o ErrConflict.
	SetUsername(ctx context.Context, id int64, username string) error

	// Delete borra el usuario; sesiones y link OAuth caen en cascada.
	Delete(ctx context.Context, id int64) error
}
