// Package tokenrefresh hands out a usable Spotify access token for a user,
// refreshing it through the provider when the stored one is about to expire.
//
// A failed refresh means the stored grant is dead. Users that can still log
// in with a password lose the link; OAuth-only users lose every session.
// ValidToken only reports the failure; the caller runs Cascade once its own
// unit of work has finished.
package tokenrefresh

import (
	"context"
	"errors"
	"time"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/metrics"
	"github.com/tunetrail/tunetrail/internal/oauthlink"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
	"github.com/tunetrail/tunetrail/internal/session"
)

// DefaultSafetyMargin: a stored token expiring within this window is refreshed.
const DefaultSafetyMargin = 5 * time.Minute

// DefaultCascadeTimeout bounds the cascade writes, which outlive the request.
const DefaultCascadeTimeout = 10 * time.Second

var ErrRefreshFailed = errs.New(errs.KindAuthentication, "provider_refresh_failed", "could not refresh Spotify access; please re-authenticate")

// IsRefreshFailed reports whether err asks the caller to run Cascade.
func IsRefreshFailed(err error) bool { return errors.Is(err, ErrRefreshFailed) }

// Refresher performs the provider refresh_token grant. The returned
// RefreshToken is empty when the provider did not rotate it.
type Refresher interface {
	RefreshUserToken(ctx context.Context, refreshToken string) (oauthlink.TokenSet, error)
}

// Result of ValidToken. Linked=false means the user has no Spotify link.
type Result struct {
	Token        string
	Subscription string
	Linked       bool
}

// Deps contains dependencies for the orchestrator.
type Deps struct {
	UoW            repository.UnitOfWork
	Links          *oauthlink.Manager
	Sessions       *session.Store
	Refresher      Refresher
	SafetyMargin   time.Duration
	CascadeTimeout time.Duration
	Now            func() time.Time
}

type Orchestrator struct {
	deps Deps
}

func New(deps Deps) *Orchestrator {
	if deps.SafetyMargin <= 0 {
		deps.SafetyMargin = DefaultSafetyMargin
	}
	if deps.CascadeTimeout <= 0 {
		deps.CascadeTimeout = DefaultCascadeTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{deps: deps}
}

// ValidToken returns the user's current provider access token, refreshing and
// persisting it inside repos when needed. A dead grant yields ErrRefreshFailed
// and nothing else is written; the caller then rolls back and calls Cascade.
func (o *Orchestrator) ValidToken(ctx context.Context, repos repository.Repos, userID int64) (Result, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("tokenrefresh"),
		logger.Op("ValidToken"),
		logger.UserID(userID),
	)

	lk, err := o.deps.Links.Lookup(ctx, repos, userID)
	if err != nil {
		return Result{}, err
	}
	if !lk.Found() {
		return Result{}, nil
	}
	link := lk.Link

	if link.AccessTokenExpiresAt.Add(-o.deps.SafetyMargin).After(o.deps.Now()) {
		tok, err := o.deps.Links.DecryptAccess(link)
		if err != nil {
			return Result{}, err
		}
		return Result{Token: tok, Subscription: link.Subscription, Linked: true}, nil
	}

	refreshed, err := o.refresh(ctx, link)
	if err != nil {
		log.Warn("provider token refresh failed", logger.Err(err))
		return Result{}, ErrRefreshFailed.WithCause(err)
	}

	var rotated *string
	if refreshed.RefreshToken != "" {
		rotated = &refreshed.RefreshToken
	}
	if _, err := o.deps.Links.UpdateTokens(ctx, repos, userID,
		refreshed.AccessToken, refreshed.ExpiresIn, refreshed.Subscription, rotated); err != nil {
		return Result{}, err
	}
	log.Debug("provider token refreshed", logger.Bool("rotated_refresh", rotated != nil))
	return Result{Token: refreshed.AccessToken, Subscription: refreshed.Subscription, Linked: true}, nil
}

func (o *Orchestrator) refresh(ctx context.Context, link *repository.OAuthLink) (oauthlink.TokenSet, error) {
	rt, err := o.deps.Links.DecryptRefresh(link)
	if err != nil {
		return oauthlink.TokenSet{}, err
	}
	return o.deps.Refresher.RefreshUserToken(ctx, rt)
}

// Cascade applies the consequences of a dead grant in its own unit of work.
// Call it after the unit of work that got ErrRefreshFailed has ended, never
// from inside it. It survives the request being cancelled but gives up after
// CascadeTimeout. Failures are logged and counted only.
func (o *Orchestrator) Cascade(ctx context.Context, userID int64) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.deps.CascadeTimeout)
	defer cancel()
	log := logger.From(ctx).With(logger.Component("tokenrefresh"), logger.Op("cascade"), logger.UserID(userID))

	err := o.deps.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		user, err := repos.Users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.HasPassword() {
			if err := o.deps.Links.Unlink(ctx, repos, userID); err != nil {
				return err
			}
			metrics.RefreshCascades.WithLabelValues("unlink").Inc()
			log.Info("dead provider grant unlinked")
			return nil
		}
		n, err := o.deps.Sessions.InvalidateAll(ctx, repos, userID)
		if err != nil {
			return err
		}
		metrics.RefreshCascades.WithLabelValues("invalidate_sessions").Inc()
		log.Info("oauth-only user signed out everywhere", logger.Count(n))
		return nil
	})
	if err != nil {
		metrics.RefreshCascades.WithLabelValues("failed").Inc()
		log.Error("refresh cascade failed", logger.Err(err))
	}
}
