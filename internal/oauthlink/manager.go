// Package oauthlink binds local users to their Spotify identity and keeps the
// encrypted provider tokens. Plaintext tokens only leave through
// DecryptAccess/DecryptRefresh and are never logged.
package oauthlink

import (
	"context"
	"errors"
	"time"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

var (
	ErrProviderAccountLinked = errs.New(errs.KindConflict, "provider_account_linked", "This Spotify account is already linked to another user")
	ErrUserAlreadyLinked     = errs.New(errs.KindConflict, "user_already_linked", "User already has a linked Spotify account")
	ErrLinkNotFound          = errs.New(errs.KindNotFound, "link_not_found", "No linked Spotify account")
	ErrUserNotFound          = errs.New(errs.KindNotFound, "user_not_found", "user not found")
	ErrTokenCorrupt          = errs.New(errs.KindInternal, "token_corrupt", "stored provider token could not be decrypted")
)

// Encrypter is satisfied by *secretbox.Box.
type Encrypter interface {
	Encrypt(plain string) (string, error)
	Decrypt(cipherText string) (string, error)
}

// TokenSet is what a completed authorization-code exchange yields.
type TokenSet struct {
	ProviderUserID string
	Subscription   string
	AccessToken    string
	RefreshToken   string
	ExpiresIn      time.Duration
}

// Status of a lookup.
type Status int

const (
	NotFound Status = iota
	Found
)

// Lookup is the result of a link query; a missing link is not an error.
type Lookup struct {
	Status Status
	Link   *repository.OAuthLink
}

func (l Lookup) Found() bool { return l.Status == Found }

type Manager struct {
	enc Encrypter
	now func() time.Time
}

func NewManager(enc Encrypter) *Manager {
	return &Manager{enc: enc, now: time.Now}
}

// WithClock returns a copy using now (tests).
func (m *Manager) WithClock(now func() time.Time) *Manager {
	cp := *m
	cp.now = now
	return &cp
}

func (m *Manager) Lookup(ctx context.Context, repos repository.Repos, userID int64) (Lookup, error) {
	return found(repos.OAuthLinks.GetByUserID(ctx, userID))
}

func (m *Manager) LookupByProvider(ctx context.Context, repos repository.Repos, providerUserID string) (Lookup, error) {
	return found(repos.OAuthLinks.GetByProviderUserID(ctx, providerUserID))
}

func found(l *repository.OAuthLink, err error) (Lookup, error) {
	if err != nil {
		if repository.IsNotFound(err) {
			return Lookup{Status: NotFound}, nil
		}
		return Lookup{}, err
	}
	return Lookup{Status: Found, Link: l}, nil
}

// CreateWithNewUser creates an OAuth-only user and its link in the caller's
// unit of work.
func (m *Manager) CreateWithNewUser(ctx context.Context, repos repository.Repos, ts TokenSet) (*repository.User, *repository.OAuthLink, error) {
	existing, err := m.LookupByProvider(ctx, repos, ts.ProviderUserID)
	if err != nil {
		return nil, nil, err
	}
	if existing.Found() {
		return nil, nil, ErrProviderAccountLinked
	}

	user, err := repos.Users.Create(ctx, repository.CreateUserInput{IsOAuthAccount: true})
	if err != nil {
		return nil, nil, err
	}
	link, err := m.create(ctx, repos, user.ID, ts)
	if err != nil {
		return nil, nil, err
	}
	logger.From(ctx).Info("oauth user created",
		logger.Component("oauthlink"), logger.UserID(user.ID), logger.Provider("spotify"))
	return user, link, nil
}

// LostRace reports that an insert hit the provider_user_id unique constraint.
// On PostgreSQL that aborts the transaction, so the caller must retry the
// whole unit of work instead of reading inside it.
func LostRace(err error) bool {
	return errors.Is(err, ErrProviderAccountLinked) && repository.IsConflict(err)
}

// AttachToExistingUser links a provider identity to a user that has none.
func (m *Manager) AttachToExistingUser(ctx context.Context, repos repository.Repos, userID int64, ts TokenSet) (*repository.OAuthLink, error) {
	if _, err := repos.Users.GetByID(ctx, userID); err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound.WithCause(err)
		}
		return nil, err
	}

	own, err := m.Lookup(ctx, repos, userID)
	if err != nil {
		return nil, err
	}
	if own.Found() {
		return nil, ErrUserAlreadyLinked
	}
	other, err := m.LookupByProvider(ctx, repos, ts.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if other.Found() {
		return nil, ErrProviderAccountLinked
	}

	link, err := m.create(ctx, repos, userID, ts)
	if err != nil {
		return nil, err
	}
	logger.From(ctx).Info("oauth account linked",
		logger.Component("oauthlink"), logger.UserID(userID), logger.Provider("spotify"))
	return link, nil
}

func (m *Manager) create(ctx context.Context, repos repository.Repos, userID int64, ts TokenSet) (*repository.OAuthLink, error) {
	access, err := m.enc.Encrypt(ts.AccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := m.enc.Encrypt(ts.RefreshToken)
	if err != nil {
		return nil, err
	}
	link, err := repos.OAuthLinks.Create(ctx, repository.CreateOAuthLinkInput{
		UserID:                userID,
		ProviderUserID:        ts.ProviderUserID,
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: refresh,
		AccessTokenExpiresAt:  m.now().UTC().Add(ts.ExpiresIn),
		Subscription:          ts.Subscription,
	})
	if err != nil {
		// a concurrent link won the unique constraint race
		if repository.IsConflict(err) {
			return nil, ErrProviderAccountLinked.WithCause(err)
		}
		return nil, err
	}
	return link, nil
}

// UpdateTokens stores a refreshed access token. A nil refresh keeps the
// stored refresh token.
func (m *Manager) UpdateTokens(ctx context.Context, repos repository.Repos, userID int64, access string, expiresIn time.Duration, subscription string, refresh *string) (*repository.OAuthLink, error) {
	encAccess, err := m.enc.Encrypt(access)
	if err != nil {
		return nil, err
	}
	in := repository.UpdateOAuthTokensInput{
		EncryptedAccessToken: encAccess,
		AccessTokenExpiresAt: m.now().UTC().Add(expiresIn),
		Subscription:         subscription,
	}
	if refresh != nil {
		encRefresh, err := m.enc.Encrypt(*refresh)
		if err != nil {
			return nil, err
		}
		in.EncryptedRefreshToken = &encRefresh
	}
	link, err := repos.OAuthLinks.UpdateTokens(ctx, userID, in)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrLinkNotFound.WithCause(err)
		}
		return nil, err
	}
	return link, nil
}

// Unlink hard-deletes the user's link.
func (m *Manager) Unlink(ctx context.Context, repos repository.Repos, userID int64) error {
	if err := repos.OAuthLinks.Delete(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound.WithCause(err)
		}
		return err
	}
	logger.From(ctx).Info("oauth account unlinked",
		logger.Component("oauthlink"), logger.UserID(userID), logger.Provider("spotify"))
	return nil
}

func (m *Manager) DecryptAccess(link *repository.OAuthLink) (string, error) {
	return m.decrypt(link.EncryptedAccessToken)
}

func (m *Manager) DecryptRefresh(link *repository.OAuthLink) (string, error) {
	return m.decrypt(link.EncryptedRefreshToken)
}

func (m *Manager) decrypt(ct string) (string, error) {
	pt, err := m.enc.Decrypt(ct)
	if err != nil {
		return "", ErrTokenCorrupt.WithCause(err)
	}
	return pt, nil
}
