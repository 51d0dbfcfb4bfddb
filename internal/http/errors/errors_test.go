package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/upstream"
)

func TestFromError(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"client input", errs.New(errs.KindClientInput, "weak_password", "too weak"), 400, "WEAK_PASSWORD"},
		{"authentication", fmt.Errorf("wrapped: %w", errs.New(errs.KindAuthentication, "session_expired", "Session expired")), 401, "SESSION_EXPIRED"},
		{"forbidden", errs.New(errs.KindForbidden, "forbidden", "no"), 403, "FORBIDDEN"},
		{"conflict", errs.New(errs.KindConflict, "username_taken", "taken"), 409, "USERNAME_TAKEN"},
		{"not found", errs.New(errs.KindNotFound, "user_not_found", "missing"), 404, "USER_NOT_FOUND"},
		{"exhausted", upstream.ErrExhausted, 503, "UPSTREAM_EXHAUSTED"},
		{"internal kind hides message", errs.New(errs.KindInternal, "token_corrupt", "secret detail"), 500, "INTERNAL_SERVER_ERROR"},
		{"upstream status", &upstream.StatusError{Provider: "spotify", StatusCode: 400}, 502, "BAD_GATEWAY"},
		{"plain", fmt.Errorf("boom"), 500, "INTERNAL_SERVER_ERROR"},
		{"app error", ErrTokenMissing, 401, "TOKEN_MISSING"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromError(tc.err)
			assert.Equal(t, tc.status, got.HTTPStatus)
			assert.Equal(t, tc.code, got.Code)
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	WriteError(rec, ErrForbidden.WithDetail("admin only"))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FORBIDDEN", body["code"])
	assert.Equal(t, "admin only", body["detail"])
}

func TestWithDetailDoesNotMutateBase(t *testing.T) {
	t.Parallel()
	_ = ErrBadRequest.WithDetail("x")
	assert.Empty(t, ErrBadRequest.Detail)
}
