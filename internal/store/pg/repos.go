package pg

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
)

// ====================== USERS ======================

type userRepo struct{ db dbtx }

const userColumns = `user_id, username, hashed_password, is_oauth_account, is_admin, created_at, updated_at`

func scanUser(row pgx.Row) (*repository.User, error) {
	var u repository.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.IsOAuthAccount, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	const q = `
		INSERT INTO users (username, hashed_password, is_oauth_account, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns
	return scanUser(r.db.QueryRow(ctx, q, in.Username, in.PasswordHash, in.IsOAuthAccount, in.IsAdmin))
}

func (r *userRepo) SetUsername(ctx context.Context, id int64, username string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET username = $2, updated_at = NOW() WHERE user_id = $1`, id, username)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ====================== SESSIONS ======================

type sessionRepo struct{ db dbtx }

const sessionColumns = `user_session_id::text, user_id, created_at, updated_at, expires_at, is_invalidated`

func scanSession(row pgx.Row) (*repository.Session, error) {
	var s repository.Session
	if err := row.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt, &s.Invalidated); err != nil {
		return nil, mapErr(err)
	}
	return &s, nil
}

// sessionUUID: un id que no es uuid no puede existir en la tabla.
func sessionUUID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, repository.ErrNotFound
	}
	return u, nil
}

func (r *sessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	const q = `
		INSERT INTO user_sessions (user_session_id, user_id, expires_at)
		VALUES ($1::uuid, $2, $3)
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, q, in.ID, in.UserID, in.ExpiresAt))
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	sid, err := sessionUUID(id)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + sessionColumns + ` FROM user_sessions WHERE user_session_id = $1`
	return scanSession(r.db.QueryRow(ctx, q, sid))
}

func (r *sessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (*repository.Session, error) {
	sid, err := sessionUUID(id)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE user_sessions SET expires_at = $2, updated_at = NOW()
		WHERE user_session_id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, q, sid, expiresAt))
}

func (r *sessionRepo) Invalidate(ctx context.Context, id string) (*repository.Session, error) {
	sid, err := sessionUUID(id)
	if err != nil {
		return nil, err
	}
	const q = `
		UPDATE user_sessions SET is_invalidated = TRUE, updated_at = NOW()
		WHERE user_session_id = $1
		RETURNING ` + sessionColumns
	return scanSession(r.db.QueryRow(ctx, q, sid))
}

func (r *sessionRepo) InvalidateAllByUser(ctx context.Context, userID int64) (int, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE user_sessions SET is_invalidated = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND is_invalidated = FALSE`, userID)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}

// ====================== OAUTH LINKS ======================

type linkRepo struct{ db dbtx }

const linkColumns = `user_id, provider_user_id, encrypted_access_token, encrypted_refresh_token,
	access_token_expires_at, subscription, created_at, updated_at`

func scanLink(row pgx.Row) (*repository.OAuthLink, error) {
	var l repository.OAuthLink
	if err := row.Scan(&l.UserID, &l.ProviderUserID, &l.EncryptedAccessToken, &l.EncryptedRefreshToken,
		&l.AccessTokenExpiresAt, &l.Subscription, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return &l, nil
}

func (r *linkRepo) GetByUserID(ctx context.Context, userID int64) (*repository.OAuthLink, error) {
	return scanLink(r.db.QueryRow(ctx, `SELECT `+linkColumns+` FROM user_spotify_oauth_accounts WHERE user_id = $1`, userID))
}

func (r *linkRepo) GetByProviderUserID(ctx context.Context, providerUserID string) (*repository.OAuthLink, error) {
	return scanLink(r.db.QueryRow(ctx, `SELECT `+linkColumns+` FROM user_spotify_oauth_accounts WHERE provider_user_id = $1`, providerUserID))
}

func (r *linkRepo) Create(ctx context.Context, in repository.CreateOAuthLinkInput) (*repository.OAuthLink, error) {
	const q = `
		INSERT INTO user_spotify_oauth_accounts
			(user_id, provider_user_id, encrypted_access_token, encrypted_refresh_token, access_token_expires_at, subscription)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + linkColumns
	return scanLink(r.db.QueryRow(ctx, q, in.UserID, in.ProviderUserID, in.EncryptedAccessToken,
		in.EncryptedRefreshToken, in.AccessTokenExpiresAt, in.Subscription))
}

// UpdateTokens usa COALESCE para no pisar el refresh token cuando el
// provider no lo rota.
func (r *linkRepo) UpdateTokens(ctx context.Context, userID int64, in repository.UpdateOAuthTokensInput) (*repository.OAuthLink, error) {
	const q = `
		UPDATE user_spotify_oauth_accounts SET
			encrypted_access_token  = $2,
			encrypted_refresh_token = COALESCE($3, encrypted_refresh_token),
			access_token_expires_at = $4,
			subscription            = $5,
			updated_at              = NOW()
		WHERE user_id = $1
		RETURNING ` + linkColumns
	return scanLink(r.db.QueryRow(ctx, q, userID, in.EncryptedAccessToken, in.EncryptedRefreshToken,
		in.AccessTokenExpiresAt, in.Subscription))
}

func (r *linkRepo) Delete(ctx context.Context, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM user_spotify_oauth_accounts WHERE user_id = $1`, userID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
