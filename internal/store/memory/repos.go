package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
)

func copyStr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ───────────────────────── users ─────────────────────────

type userRepo struct {
	s  *Store
	tx *tx
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Username = copyStr(u.Username)
	u.PasswordHash = copyStr(u.PasswordHash)
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	r.s.mu.Lock()
	id, ok := r.s.usernames[strings.ToLower(username)]
	r.s.mu.Unlock()
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *userRepo) Create(ctx context.Context, in repository.CreateUserInput) (*repository.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if in.Username != nil {
		if _, taken := r.s.usernames[strings.ToLower(*in.Username)]; taken {
			return nil, fmt.Errorf("username %q: %w", *in.Username, repository.ErrConflict)
		}
	}
	r.s.nextUserID++
	now := r.s.now().UTC()
	u := repository.User{
		ID:             r.s.nextUserID,
		Username:       copyStr(in.Username),
		PasswordHash:   copyStr(in.PasswordHash),
		IsOAuthAccount: in.IsOAuthAccount,
		IsAdmin:        in.IsAdmin,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	r.s.users[u.ID] = u
	if u.Username != nil {
		r.s.usernames[strings.ToLower(*u.Username)] = u.ID
	}
	r.tx.record(func() {
		delete(r.s.users, u.ID)
		if u.Username != nil {
			delete(r.s.usernames, strings.ToLower(*u.Username))
		}
	})
	out := u
	return &out, nil
}

func (r *userRepo) SetUsername(ctx context.Context, id int64, username string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	key := strings.ToLower(username)
	if owner, taken := r.s.usernames[key]; taken && owner != id {
		return fmt.Errorf("username %q: %w", username, repository.ErrConflict)
	}
	prev := u
	if u.Username != nil {
		delete(r.s.usernames, strings.ToLower(*u.Username))
	}
	u.Username = &username
	u.UpdatedAt = r.s.now().UTC()
	r.s.users[id] = u
	r.s.usernames[key] = id
	r.tx.record(func() {
		delete(r.s.usernames, key)
		if prev.Username != nil {
			r.s.usernames[strings.ToLower(*prev.Username)] = id
		}
		r.s.users[id] = prev
	})
	return nil
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	if u.Username != nil {
		delete(r.s.usernames, strings.ToLower(*u.Username))
	}
	var sessions []repository.Session
	for sid, sess := range r.s.sessions {
		if sess.UserID == id {
			sessions = append(sessions, sess)
			delete(r.s.sessions, sid)
		}
	}
	link, hadLink := r.s.links[id]
	if hadLink {
		delete(r.s.links, id)
		delete(r.s.providers, link.ProviderUserID)
	}
	r.tx.record(func() {
		r.s.users[id] = u
		if u.Username != nil {
			r.s.usernames[strings.ToLower(*u.Username)] = id
		}
		for _, sess := range sessions {
			r.s.sessions[sess.ID] = sess
		}
		if hadLink {
			r.s.links[id] = link
			r.s.providers[link.ProviderUserID] = id
		}
	})
	return nil
}

// ───────────────────────── sessions ─────────────────────────

type sessionRepo struct {
	s  *Store
	tx *tx
}

func (r *sessionRepo) Create(ctx context.Context, in repository.CreateSessionInput) (*repository.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[in.UserID]; !ok {
		// FK user_sessions.user_id
		return nil, fmt.Errorf("user %d: %w", in.UserID, repository.ErrNotFound)
	}
	if _, dup := r.s.sessions[in.ID]; dup {
		return nil, fmt.Errorf("session id: %w", repository.ErrConflict)
	}
	now := r.s.now().UTC()
	sess := repository.Session{
		ID:        in.ID,
		UserID:    in.UserID,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: in.ExpiresAt.UTC(),
	}
	r.s.sessions[sess.ID] = sess
	r.tx.record(func() { delete(r.s.sessions, sess.ID) })
	out := sess
	return &out, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (r *sessionRepo) update(id string, mutate func(*repository.Session)) (*repository.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	prev := sess
	mutate(&sess)
	sess.UpdatedAt = r.s.now().UTC()
	r.s.sessions[id] = sess
	r.tx.record(func() { r.s.sessions[id] = prev })
	out := sess
	return &out, nil
}

func (r *sessionRepo) UpdateExpiry(ctx context.Context, id string, expiresAt time.Time) (*repository.Session, error) {
	return r.update(id, func(s *repository.Session) { s.ExpiresAt = expiresAt.UTC() })
}

func (r *sessionRepo) Invalidate(ctx context.Context, id string) (*repository.Session, error) {
	return r.update(id, func(s *repository.Session) { s.Invalidated = true })
}

func (r *sessionRepo) InvalidateAllByUser(ctx context.Context, userID int64) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	n := 0
	for id, sess := range r.s.sessions {
		if sess.UserID != userID || sess.Invalidated {
			continue
		}
		prev := sess
		sess.Invalidated = true
		sess.UpdatedAt = now
		r.s.sessions[id] = sess
		r.tx.record(func() { r.s.sessions[prev.ID] = prev })
		n++
	}
	return n, nil
}

// ───────────────────────── oauth links ─────────────────────────

type linkRepo struct {
	s  *Store
	tx *tx
}

func (r *linkRepo) GetByUserID(ctx context.Context, userID int64) (*repository.OAuthLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r *linkRepo) GetByProviderUserID(ctx context.Context, providerUserID string) (*repository.OAuthLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	uid, ok := r.s.providers[providerUserID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	l := r.s.links[uid]
	return &l, nil
}

func (r *linkRepo) Create(ctx context.Context, in repository.CreateOAuthLinkInput) (*repository.OAuthLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[in.UserID]; !ok {
		return nil, fmt.Errorf("user %d: %w", in.UserID, repository.ErrNotFound)
	}
	if _, dup := r.s.links[in.UserID]; dup {
		return nil, fmt.Errorf("user_id unique: %w", repository.ErrConflict)
	}
	if _, dup := r.s.providers[in.ProviderUserID]; dup {
		return nil, fmt.Errorf("provider_user_id unique: %w", repository.ErrConflict)
	}
	now := r.s.now().UTC()
	l := repository.OAuthLink{
		UserID:                in.UserID,
		ProviderUserID:        in.ProviderUserID,
		EncryptedAccessToken:  in.EncryptedAccessToken,
		EncryptedRefreshToken: in.EncryptedRefreshToken,
		AccessTokenExpiresAt:  in.AccessTokenExpiresAt.UTC(),
		Subscription:          in.Subscription,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	r.s.links[l.UserID] = l
	r.s.providers[l.ProviderUserID] = l.UserID
	r.tx.record(func() {
		delete(r.s.links, l.UserID)
		delete(r.s.providers, l.ProviderUserID)
	})
	out := l
	return &out, nil
}

func (r *linkRepo) UpdateTokens(ctx context.Context, userID int64, in repository.UpdateOAuthTokensInput) (*repository.OAuthLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	prev := l
	l.EncryptedAccessToken = in.EncryptedAccessToken
	l.AccessTokenExpiresAt = in.AccessTokenExpiresAt.UTC()
	l.Subscription = in.Subscription
	if in.EncryptedRefreshToken != nil {
		l.EncryptedRefreshToken = *in.EncryptedRefreshToken
	}
	l.UpdatedAt = r.s.now().UTC()
	r.s.links[userID] = l
	r.tx.record(func() { r.s.links[userID] = prev })
	out := l
	return &out, nil
}

func (r *linkRepo) Delete(ctx context.Context, userID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	l, ok := r.s.links[userID]
	if !ok {
		return repository.ErrNotFound
	}
	delete(r.s.links, userID)
	delete(r.s.providers, l.ProviderUserID)
	r.tx.record(func() {
		r.s.links[userID] = l
		r.s.providers[l.ProviderUserID] = userID
	})
	return nil
}
