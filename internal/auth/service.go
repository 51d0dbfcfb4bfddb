// Package auth implements the account flows: password registration and
// login, Spotify connect/link/complete/unlink, logout, access-token refresh
// and admin session revocation.
//
// Every flow runs in a single unit of work. Calls to Spotify happen before
// the transaction opens, except the token refresh done by the orchestrator.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tunetrail/tunetrail/internal/audit"
	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/jwt"
	"github.com/tunetrail/tunetrail/internal/oauthlink"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
	"github.com/tunetrail/tunetrail/internal/security/password"
	"github.com/tunetrail/tunetrail/internal/session"
	"github.com/tunetrail/tunetrail/internal/tokenrefresh"
)

// SpotifyOAuth is the slice of the Spotify client the flows need.
type SpotifyOAuth interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (oauthlink.TokenSet, error)
}

// UserDetails describes the account behind an issued token.
type UserDetails struct {
	UserID              int64   `json:"user_id"`
	Username            *string `json:"username"`
	IsAdmin             bool    `json:"is_admin"`
	IsOAuthAccount      bool    `json:"is_oauth_account"`
	SpotifySubscription *string `json:"spotify_subscription"`
}

// Grant is a freshly issued access token.
type Grant struct {
	AccessToken string
	ExpiresAt   time.Time
	SessionID   string
	User        UserDetails
}

// Deps contains dependencies for the auth service.
type Deps struct {
	UoW      repository.UnitOfWork
	Sessions *session.Store
	Links    *oauthlink.Manager
	Tokens   *tokenrefresh.Orchestrator
	Issuer   *jwt.Issuer
	Spotify  SpotifyOAuth
	// States is optional; when nil the OAuth state parameter is not checked.
	States  *StateStore
	Hashing password.Params
}

type Service struct {
	deps Deps
}

func NewService(deps Deps) *Service {
	if deps.Hashing == (password.Params{}) {
		deps.Hashing = password.Default
	}
	return &Service{deps: deps}
}

func (s *Service) log(ctx context.Context, op string) *zap.Logger {
	return logger.From(ctx).With(logger.Layer("service"), logger.Component("auth"), logger.Op(op))
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (s *Service) grant(user *repository.User, sessionID, spotifyToken, subscription string) (*Grant, error) {
	tok, exp, err := s.deps.Issuer.Issue(user.ID, sessionID, user.IsAdmin, spotifyToken)
	if err != nil {
		return nil, errs.New(errs.KindInternal, "token_issue_failed", "could not issue access token").WithCause(err)
	}
	return &Grant{
		AccessToken: tok,
		ExpiresAt:   exp,
		SessionID:   sessionID,
		User: UserDetails{
			UserID:              user.ID,
			Username:            user.Username,
			IsAdmin:             user.IsAdmin,
			IsOAuthAccount:      user.IsOAuthAccount,
			SpotifySubscription: optional(subscription),
		},
	}, nil
}

// ─── password accounts ───

// Register creates a password account and signs it in.
func (s *Service) Register(ctx context.Context, username, plain string) (*Grant, error) {
	username = strings.TrimSpace(username)
	if !password.ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if ok, reasons := password.Registration.Validate(plain); !ok {
		return nil, ErrWeakPassword.WithMessage("password does not meet the requirements: " + strings.Join(reasons, ", "))
	}
	hash, err := password.Hash(s.deps.Hashing, plain)
	if err != nil {
		return nil, err
	}

	var out *Grant
	err = s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		user, err := repos.Users.Create(ctx, repository.CreateUserInput{Username: &username, PasswordHash: &hash})
		if err != nil {
			if repository.IsConflict(err) {
				return ErrUsernameTaken.WithCause(err)
			}
			return err
		}
		sess, err := s.deps.Sessions.Create(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		out, err = s.grant(user, sess.ID, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.EventRegister, logger.UserID(out.User.UserID))
	return out, nil
}

// Login checks username/password, opens a session and embeds the user's
// Spotify token when linked.
func (s *Service) Login(ctx context.Context, username, plain string) (*Grant, error) {
	var (
		out    *Grant
		userID int64
	)
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		user, err := repos.Users.GetByUsername(ctx, strings.TrimSpace(username))
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrBadUsername
			}
			return err
		}
		if user.IsOAuthAccount {
			return ErrOAuthOnlyLogin
		}
		if !user.HasPassword() || !password.Verify(plain, *user.PasswordHash) {
			return ErrBadPassword
		}
		userID = user.ID

		sess, err := s.deps.Sessions.Create(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		res, err := s.deps.Tokens.ValidToken(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		out, err = s.grant(user, sess.ID, res.Token, res.Subscription)
		return err
	})
	if err != nil {
		if tokenrefresh.IsRefreshFailed(err) {
			s.deps.Tokens.Cascade(ctx, userID)
		}
		if errors.Is(err, ErrBadUsername) || errors.Is(err, ErrBadPassword) {
			audit.Log(ctx, audit.EventLoginFailed, zap.String("username", strings.TrimSpace(username)))
		}
		return nil, err
	}
	audit.Log(ctx, audit.EventLogin, logger.UserID(out.User.UserID))
	return out, nil
}

// ─── spotify ───

// AuthorizeURL returns the Spotify consent URL for the given intent.
func (s *Service) AuthorizeURL(ctx context.Context, intent Intent) (string, error) {
	if intent != IntentConnect && intent != IntentLink {
		return "", ErrInvalidState.WithMessage("intent must be connect or link")
	}
	state := string(intent)
	if s.deps.States != nil {
		st, err := s.deps.States.Issue(ctx, intent)
		if err != nil {
			return "", err
		}
		state = st
	}
	return s.deps.Spotify.AuthorizeURL(state), nil
}

func (s *Service) exchange(ctx context.Context, code, state string, intent Intent) (oauthlink.TokenSet, error) {
	if strings.TrimSpace(code) == "" {
		return oauthlink.TokenSet{}, errs.New(errs.KindClientInput, "missing_code", "auth_code is required")
	}
	if s.deps.States != nil {
		if err := s.deps.States.Consume(ctx, state, intent); err != nil {
			return oauthlink.TokenSet{}, err
		}
	}
	return s.deps.Spotify.ExchangeCode(ctx, code)
}

// ConnectSpotify signs in with Spotify: a new provider identity creates an
// OAuth-only account, a known one refreshes the stored tokens.
func (s *Service) ConnectSpotify(ctx context.Context, code, state string) (*Grant, error) {
	ts, err := s.exchange(ctx, code, state, IntentConnect)
	if err != nil {
		return nil, err
	}

	var out *Grant
	connect := func(ctx context.Context, repos repository.Repos) error {
		user, _, err := s.deps.Links.CreateWithNewUser(ctx, repos, ts)
		if oauthlink.LostRace(err) {
			return err
		}
		if errors.Is(err, oauthlink.ErrProviderAccountLinked) {
			user, err = s.reconnect(ctx, repos, ts)
		}
		if err != nil {
			return err
		}
		sess, err := s.deps.Sessions.Create(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		out, err = s.grant(user, sess.ID, ts.AccessToken, ts.Subscription)
		return err
	}
	err = s.deps.UoW.WithTx(ctx, connect)
	if oauthlink.LostRace(err) {
		// a concurrent first connect created the link; this time it is found
		s.log(ctx, "ConnectSpotify").Debug("lost first-connect race, retrying", logger.Provider("spotify"))
		err = s.deps.UoW.WithTx(ctx, connect)
	}
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.EventSpotifyConnect, logger.UserID(out.User.UserID), logger.Provider("spotify"))
	return out, nil
}

func (s *Service) reconnect(ctx context.Context, repos repository.Repos, ts oauthlink.TokenSet) (*repository.User, error) {
	lk, err := s.deps.Links.LookupByProvider(ctx, repos, ts.ProviderUserID)
	if err != nil {
		return nil, err
	}
	if !lk.Found() {
		return nil, oauthlink.ErrProviderAccountLinked
	}
	user, err := repos.Users.GetByID(ctx, lk.Link.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsOAuthAccount {
		return nil, ErrLinkedToPasswordAccount
	}
	refresh := optional(ts.RefreshToken)
	if _, err := s.deps.Links.UpdateTokens(ctx, repos, user.ID, ts.AccessToken, ts.ExpiresIn, ts.Subscription, refresh); err != nil {
		return nil, err
	}
	return user, nil
}

// LinkSpotify attaches a Spotify identity to the signed-in user and opens a
// new session carrying the provider token.
func (s *Service) LinkSpotify(ctx context.Context, c *jwt.Claims, code, state string) (*Grant, error) {
	ts, err := s.exchange(ctx, code, state, IntentLink)
	if err != nil {
		return nil, err
	}

	var out *Grant
	err = s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		if _, err := s.deps.Links.AttachToExistingUser(ctx, repos, c.UserID, ts); err != nil {
			return err
		}
		user, err := repos.Users.GetByID(ctx, c.UserID)
		if err != nil {
			return err
		}
		sess, err := s.deps.Sessions.Create(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		out, err = s.grant(user, sess.ID, ts.AccessToken, ts.Subscription)
		return err
	})
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.EventSpotifyLink, logger.UserID(c.UserID), logger.Provider("spotify"))
	return out, nil
}

// CompleteSpotify sets the username of an OAuth-only account.
func (s *Service) CompleteSpotify(ctx context.Context, c *jwt.Claims, username string) (string, error) {
	username = strings.TrimSpace(username)
	if !password.ValidUsername(username) {
		return "", ErrInvalidUsername
	}
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		user, err := repos.Users.GetByID(ctx, c.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound.WithCause(err)
			}
			return err
		}
		if user.Username != nil {
			return ErrUsernameAlreadySet
		}
		if !user.IsOAuthAccount {
			return ErrNotOAuthAccount
		}
		if err := repos.Users.SetUsername(ctx, user.ID, username); err != nil {
			if repository.IsConflict(err) {
				return ErrUsernameTaken.WithCause(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	audit.Log(ctx, audit.EventSpotifyComplete, logger.UserID(c.UserID))
	return username, nil
}

// UnlinkSpotify drops the link of a password account and reissues the
// token for the same session without the provider token.
func (s *Service) UnlinkSpotify(ctx context.Context, c *jwt.Claims) (*Grant, error) {
	var out *Grant
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		user, err := repos.Users.GetByID(ctx, c.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound.WithCause(err)
			}
			return err
		}
		if !user.HasPassword() {
			return ErrPasswordRequired
		}
		if err := s.deps.Links.Unlink(ctx, repos, user.ID); err != nil {
			return err
		}
		out, err = s.grant(user, c.SessionID, "", "")
		return err
	})
	if err != nil {
		return nil, err
	}
	audit.Log(ctx, audit.EventSpotifyUnlink, logger.UserID(c.UserID), logger.Provider("spotify"))
	return out, nil
}

// ─── sessions ───

// Logout invalidates the session behind the token.
func (s *Service) Logout(ctx context.Context, c *jwt.Claims) error {
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		_, err := s.deps.Sessions.Invalidate(ctx, repos, c.SessionID)
		return err
	})
	if err != nil {
		return err
	}
	audit.Log(ctx, audit.EventLogout, logger.UserID(c.UserID), logger.SessionID(c.SessionID))
	return nil
}

// Refresh trades an expired access token for a new one while its session
// is still active. A session found past its expiry is invalidated and that
// write is committed before ErrExpired is returned.
func (s *Service) Refresh(ctx context.Context, v *jwt.Validated) (*Grant, error) {
	if v == nil || v.Claims == nil {
		return nil, jwt.ErrInvalidToken
	}
	if !v.Expired {
		return nil, ErrTokenStillValid
	}
	c := v.Claims

	var (
		out     *Grant
		expired bool
	)
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		sess, err := s.deps.Sessions.Validate(ctx, repos, c.SessionID)
		if errors.Is(err, session.ErrExpired) {
			expired = true
			return nil
		}
		if err != nil {
			return err
		}
		if sess.UserID != c.UserID {
			return session.ErrInvalid
		}
		user, err := repos.Users.GetByID(ctx, c.UserID)
		if err != nil {
			if repository.IsNotFound(err) {
				return session.ErrInvalid
			}
			return err
		}

		res, err := s.deps.Tokens.ValidToken(ctx, repos, user.ID)
		if err != nil {
			return err
		}
		if _, err := s.deps.Sessions.Refresh(ctx, repos, sess.ID); err != nil {
			return err
		}
		out, err = s.grant(user, sess.ID, res.Token, res.Subscription)
		return err
	})
	if err != nil {
		if tokenrefresh.IsRefreshFailed(err) {
			s.deps.Tokens.Cascade(ctx, c.UserID)
		}
		return nil, err
	}
	if expired {
		s.log(ctx, "Refresh").Debug("session expired", logger.SessionID(c.SessionID), logger.UserID(c.UserID))
		return nil, session.ErrExpired
	}
	return out, nil
}

// RevokeUserSessions invalidates every session of userID. Admin only.
func (s *Service) RevokeUserSessions(ctx context.Context, admin *jwt.Claims, userID int64) (*repository.User, int, error) {
	if admin == nil || !admin.IsAdmin {
		return nil, 0, ErrForbidden
	}
	var (
		user *repository.User
		n    int
	)
	err := s.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		var err error
		user, err = repos.Users.GetByID(ctx, userID)
		if err != nil {
			if repository.IsNotFound(err) {
				return ErrUserNotFound.WithCause(err)
			}
			return err
		}
		n, err = s.deps.Sessions.InvalidateAll(ctx, repos, userID)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	audit.Log(ctx, audit.EventSessionsRevoked, logger.UserID(userID),
		zap.Int64("admin_id", admin.UserID), zap.Int("sessions", n))
	return user, n, nil
}
