package repository

import (
	"context"
	"time"
)

// OAuthLink asocia un usuario local con su cuenta de Spotify. Los tokens se
// guardan cifrados (secretbox); este tipo nunca contiene texto plano.
type OAuthLink struct {
	UserID                int64
	ProviderUserID        string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	AccessTokenExpiresAt  time.Time
	Subscription          string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// CreateOAuthLinkInput contiene los datos para crear un link.
type CreateOAuthLinkInput struct {
	UserID                int64
	ProviderUserID        string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	AccessTokenExpiresAt  time.Time
	Subscription          string
}

// UpdateOAuthTokensInput contiene los datos de un refresh. Un
// EncryptedRefreshToken nil conserva el valor almacenado.
type UpdateOAuthTokensInput struct {
	EncryptedAccessToken  string
	EncryptedRefreshToken *string
	AccessTokenExpiresAt  time.Time
	Subscription          string
}

// OAuthLinkRepository persiste links OAuth. user_id y provider_user_id son
// únicos; Create retorna ErrConflict si alguna de las dos constraints falla.
type OAuthLinkRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*OAuthLink, error)
	GetByProviderUserID(ctx context.Context, providerUserID string) (*OAuthLink, error)
	Create(ctx context.Context, input CreateOAuthLinkInput) (*OAuthLink, error)
	UpdateTokens(ctx context.Context, userID int64, input UpdateOAuthTokensInput) (*OAuthLink, error)

	// Delete retorna ErrNotFound si el usuario no tiene link.
	Delete(ctx context.Context, userID int64) error
}
