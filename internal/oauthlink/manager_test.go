package oauthlink

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/security/secretbox"
	"github.com/tunetrail/tunetrail/internal/store/memory"
)

var testNow = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)

func newManager(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	box, err := secretbox.New(make([]byte, 32))
	require.NoError(t, err)
	now := func() time.Time { return testNow }
	return NewManager(box).WithClock(now), memory.New(memory.WithClock(now))
}

func tokens(providerID string) TokenSet {
	return TokenSet{
		ProviderUserID: providerID,
		Subscription:   "premium",
		AccessToken:    "A1",
		RefreshToken:   "R1",
		ExpiresIn:      time.Hour,
	}
}

func createPasswordUser(t *testing.T, db *memory.Store, name string) int64 {
	t.Helper()
	hash := "$argon2id$stub"
	var id int64
	require.NoError(t, db.WithTx(context.Background(), func(ctx context.Context, r repository.Repos) error {
		u, err := r.Users.Create(ctx, repository.CreateUserInput{Username: &name, PasswordHash: &hash})
		if err != nil {
			return err
		}
		id = u.ID
		return nil
	}))
	return id
}

func TestCreateWithNewUser(t *testing.T) {
	t.Parallel()
	m, db := newManager(t)

	var user *repository.User
	var link *repository.OAuthLink
	require.NoError(t, db.WithTx(context.Background(), func(ctx context.Context, r repository.Repos) error {
		var err error
		user, link, err = m.CreateWithNewUser(ctx, r, tokens("spotify-u1"))
		return err
	}))
	assert.True(t, user.IsOAuthAccount)
	assert.False(t, user.HasPassword())
	assert.Equal(t, user.ID, link.UserID)
	assert.Equal(t, testNow.Add(time.Hour), link.AccessTokenExpiresAt)
	assert.NotEqual(t, "A1", link.EncryptedAccessToken)

	access, err := m.DecryptAccess(link)
	require.NoError(t, err)
	assert.Equal(t, "A1", access)
	refresh, err := m.DecryptRefresh(link)
	require.NoError(t, err)
	assert.Equal(t, "R1", refresh)

	// same provider identity again: conflict, and no orphan user is left
	err = db.WithTx(context.Background(), func(ctx context.Context, r repository.Repos) error {
		_, _, err := m.CreateWithNewUser(ctx, r, tokens("spotify-u1"))
		return err
	})
	require.ErrorIs(t, err, ErrProviderAccountLinked)
	require.Equal(t, errs.KindConflict, errs.KindOf(err))
	_, ok := db.User(user.ID + 1)
	assert.False(t, ok)
}

func TestAttachToExistingUser_DistinctConflicts(t *testing.T) {
	t.Parallel()
	m, db := newManager(t)
	alice := createPasswordUser(t, db, "alice")
	bob := createPasswordUser(t, db, "bob")
	ctx := context.Background()

	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := m.AttachToExistingUser(ctx, r, alice, tokens("spotify-a"))
		return err
	}))

	// alice already has a link
	err := db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := m.AttachToExistingUser(ctx, r, alice, tokens("spotify-other"))
		return err
	})
	require.ErrorIs(t, err, ErrUserAlreadyLinked)
	require.NotErrorIs(t, err, ErrProviderAccountLinked)

	// spotify-a belongs to alice
	err = db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := m.AttachToExistingUser(ctx, r, bob, tokens("spotify-a"))
		return err
	})
	require.ErrorIs(t, err, ErrProviderAccountLinked)
	require.NotErrorIs(t, err, ErrUserAlreadyLinked)

	err = db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := m.AttachToExistingUser(ctx, r, 9999, tokens("spotify-z"))
		return err
	})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateTokens_PreservesRefreshWhenAbsent(t *testing.T) {
	t.Parallel()
	m, db := newManager(t)
	uid := createPasswordUser(t, db, "carol")
	ctx := context.Background()

	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		_, err := m.AttachToExistingUser(ctx, r, uid, tokens("spotify-c"))
		return err
	}))

	var link *repository.OAuthLink
	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		link, err = m.UpdateTokens(ctx, r, uid, "A2", 30*time.Minute, "free", nil)
		return err
	}))
	access, err := m.DecryptAccess(link)
	require.NoError(t, err)
	assert.Equal(t, "A2", access)
	refresh, err := m.DecryptRefresh(link)
	require.NoError(t, err)
	assert.Equal(t, "R1", refresh)
	assert.Equal(t, "free", link.Subscription)
	assert.Equal(t, testNow.Add(30*time.Minute), link.AccessTokenExpiresAt)

	rotated := "R2"
	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		var err error
		link, err = m.UpdateTokens(ctx, r, uid, "A3", time.Hour, "premium", &rotated)
		return err
	}))
	refresh, err = m.DecryptRefresh(link)
	require.NoError(t, err)
	assert.Equal(t, "R2", refresh)
}

func TestUnlinkAndLookup(t *testing.T) {
	t.Parallel()
	m, db := newManager(t)
	uid := createPasswordUser(t, db, "dave")
	ctx := context.Background()

	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		l, err := m.Lookup(ctx, r, uid)
		require.NoError(t, err)
		assert.False(t, l.Found())
		_, err = m.AttachToExistingUser(ctx, r, uid, tokens("spotify-d"))
		return err
	}))

	require.NoError(t, db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		l, err := m.LookupByProvider(ctx, r, "spotify-d")
		require.NoError(t, err)
		assert.True(t, l.Found())
		assert.Equal(t, uid, l.Link.UserID)
		return m.Unlink(ctx, r, uid)
	}))

	err := db.WithTx(ctx, func(ctx context.Context, r repository.Repos) error {
		return m.Unlink(ctx, r, uid)
	})
	require.ErrorIs(t, err, ErrLinkNotFound)
	_, ok := db.Link(uid)
	assert.False(t, ok)
}

func TestDecrypt_Corrupt(t *testing.T) {
	t.Parallel()
	m, _ := newManager(t)
	_, err := m.DecryptAccess(&repository.OAuthLink{EncryptedAccessToken: "garbage"})
	require.ErrorIs(t, err, ErrTokenCorrupt)
}
