package jwt

import (
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestIssuer(t *testing.T, now time.Time) *Issuer {
	t.Helper()
	iss, err := NewIssuer(testSecret, 0)
	require.NoError(t, err)
	return iss.WithClock(func() time.Time { return now })
}

func TestIssueValidate_RoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	iss := newTestIssuer(t, now)

	tok, exp, err := iss.Issue(42, "8f14e45f-ceea-4e7a-9f1b-2b6c1a0e2d3c", true, "BQD-spotify")
	require.NoError(t, err)
	require.Equal(t, now.Add(15*time.Minute), exp)

	v, err := iss.Validate(tok)
	require.NoError(t, err)
	assert.False(t, v.Expired)
	assert.Equal(t, int64(42), v.Claims.UserID)
	assert.Equal(t, "8f14e45f-ceea-4e7a-9f1b-2b6c1a0e2d3c", v.Claims.SessionID)
	assert.True(t, v.Claims.IsAdmin)
	assert.True(t, v.Claims.HasSpotify())
}

func TestIssue_OmitsEmptySpotifyToken(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, time.Now())
	tok, _, err := iss.Issue(1, "sid", false, "")
	require.NoError(t, err)

	var mc jwtv5.MapClaims
	_, _, err = jwtv5.NewParser().ParseUnverified(tok, &mc)
	require.NoError(t, err)
	_, present := mc["spotify_access_token"]
	assert.False(t, present)
}

func TestValidate_ExpiredReturnsPayload(t *testing.T) {
	t.Parallel()
	issuedAt := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	tok, _, err := newTestIssuer(t, issuedAt).Issue(7, "sid-7", false, "")
	require.NoError(t, err)

	later := newTestIssuer(t, issuedAt.Add(16*time.Minute))
	v, err := later.Validate(tok)
	require.NoError(t, err)
	assert.True(t, v.Expired)
	assert.Equal(t, int64(7), v.Claims.UserID)
	assert.Equal(t, "sid-7", v.Claims.SessionID)

	// exactly at exp counts as expired
	atExp := newTestIssuer(t, issuedAt.Add(15*time.Minute))
	v, err = atExp.Validate(tok)
	require.NoError(t, err)
	assert.True(t, v.Expired)
}

func TestValidate_Tampered(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, time.Now())
	tok, _, err := iss.Issue(1, "sid", false, "")
	require.NoError(t, err)

	parts := strings.Split(tok, ".")
	require.Len(t, parts, 3)
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	_, err = iss.Validate(parts[0] + "." + parts[1] + "." + string(sig))
	require.ErrorIs(t, err, ErrInvalidToken)
	require.Equal(t, errs.KindAuthentication, errs.KindOf(err))
}

func TestValidate_WrongSecret(t *testing.T) {
	t.Parallel()
	a := newTestIssuer(t, time.Now())
	b, err := NewIssuer("another-secret-another-secret-xx", 0)
	require.NoError(t, err)

	tok, _, err := a.Issue(1, "sid", false, "")
	require.NoError(t, err)
	_, err = b.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, time.Now())
	claims := Claims{
		UserID:    1,
		SessionID: "sid",
		RegisteredClaims: jwtv5.RegisteredClaims{
			ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = iss.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwtv5.NewWithClaims(jwtv5.SigningMethodNone, claims).SignedString(jwtv5.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = iss.Validate(none)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidate_MissingClaims(t *testing.T) {
	t.Parallel()
	iss := newTestIssuer(t, time.Now())
	claims := jwtv5.MapClaims{"user_id": 1, "exp": time.Now().Add(time.Hour).Unix()}
	tok, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = iss.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Validate("not.a.jwt")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	t.Parallel()
	_, err := NewIssuer("", time.Minute)
	require.ErrorIs(t, err, ErrEmptySecret)
}
