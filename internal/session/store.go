// Package session manages long-lived login sessions.
//
// A session is Active until its expiry passes (Expired) and becomes
// Invalidated on logout, admin revoke, or a failed provider refresh.
// Invalidated is terminal; rows are never deleted.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

// DefaultTTL is how long a session lives without a refresh.
const DefaultTTL = 7 * 24 * time.Hour

var (
	ErrNotFound     = errs.New(errs.KindNotFound, "session_not_found", "session not found")
	ErrUserNotFound = errs.New(errs.KindNotFound, "user_not_found", "user not found")
	ErrInvalid      = errs.New(errs.KindAuthentication, "session_invalid", "Invalid session")
	ErrExpired      = errs.New(errs.KindAuthentication, "session_expired", "Session expired")
)

type Store struct {
	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

type Option func(*Store)

func WithTTL(d time.Duration) Option { return func(s *Store) { s.ttl = d } }

func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

func New(opts ...Option) *Store {
	s := &Store{ttl: DefaultTTL, now: time.Now, newID: func() string { return uuid.NewString() }}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) TTL() time.Duration { return s.ttl }

func (s *Store) expiry() time.Time { return s.now().UTC().Add(s.ttl) }

// Create opens a session for an existing user.
func (s *Store) Create(ctx context.Context, repos repository.Repos, userID int64) (*repository.Session, error) {
	sess, err := repos.Sessions.Create(ctx, repository.CreateSessionInput{
		ID:        s.newID(),
		UserID:    userID,
		ExpiresAt: s.expiry(),
	})
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrUserNotFound.WithCause(err)
		}
		return nil, err
	}
	logger.From(ctx).Debug("session created",
		logger.Component("session"), logger.UserID(userID), logger.SessionID(sess.ID))
	return sess, nil
}

func (s *Store) Get(ctx context.Context, repos repository.Repos, id string) (*repository.Session, error) {
	sess, err := repos.Sessions.Get(ctx, id)
	return sess, mapNotFound(err)
}

// Refresh pushes expiry to now+TTL. It does not look at the invalidation
// flag; callers that must not revive a revoked session check first.
func (s *Store) Refresh(ctx context.Context, repos repository.Repos, id string) (*repository.Session, error) {
	sess, err := repos.Sessions.UpdateExpiry(ctx, id, s.expiry())
	return sess, mapNotFound(err)
}

// Invalidate is idempotent.
func (s *Store) Invalidate(ctx context.Context, repos repository.Repos, id string) (*repository.Session, error) {
	sess, err := repos.Sessions.Invalidate(ctx, id)
	if err != nil {
		return nil, mapNotFound(err)
	}
	logger.From(ctx).Info("session invalidated",
		logger.Component("session"), logger.UserID(sess.UserID), logger.SessionID(id))
	return sess, nil
}

// InvalidateAll flags every non-invalidated session of the user and returns
// how many changed.
func (s *Store) InvalidateAll(ctx context.Context, repos repository.Repos, userID int64) (int, error) {
	n, err := repos.Sessions.InvalidateAllByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	logger.From(ctx).Info("user sessions invalidated",
		logger.Component("session"), logger.UserID(userID), logger.Count(n))
	return n, nil
}

// Validate returns the session when Active. A session found past its expiry
// is flagged invalidated before ErrExpired is returned; that write belongs to
// the caller's unit of work, so callers that want it to stick must commit.
func (s *Store) Validate(ctx context.Context, repos repository.Repos, id string) (*repository.Session, error) {
	sess, err := repos.Sessions.Get(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, ErrInvalid
		}
		return nil, err
	}
	switch sess.Status(s.now()) {
	case repository.SessionInvalidated:
		return nil, ErrInvalid
	case repository.SessionExpired:
		if _, err := repos.Sessions.Invalidate(ctx, id); err != nil {
			return nil, err
		}
		return sess, ErrExpired
	}
	return sess, nil
}

func mapNotFound(err error) error {
	if err != nil && errors.Is(err, repository.ErrNotFound) {
		return ErrNotFound.WithCause(err)
	}
	return err
}
