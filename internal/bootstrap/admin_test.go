package bootstrap

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/security/password"
	"github.com/tunetrail/tunetrail/internal/store/memory"
)

func TestCreateAdmin(t *testing.T) {
	t.Parallel()
	db := memory.New()
	ctx := context.Background()

	u, err := CreateAdmin(ctx, db, password.Fast, "ops_root", "Sup3r$ecret")
	require.NoError(t, err)
	assert.True(t, u.IsAdmin)
	assert.True(t, u.HasPassword())
	assert.True(t, password.Verify("Sup3r$ecret", *u.PasswordHash))

	_, err = CreateAdmin(ctx, db, password.Fast, "ops_root", "Sup3r$ecret")
	require.ErrorIs(t, err, ErrUsernameTaken)

	_, err = CreateAdmin(ctx, db, password.Fast, "x", "Sup3r$ecret")
	require.ErrorIs(t, err, ErrInvalidUsername)

	_, err = CreateAdmin(ctx, db, password.Fast, "ops_two", "short")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weak password")
}

func TestPrompterCredentials(t *testing.T) {
	t.Parallel()
	answers := [][]byte{[]byte("Sup3r$ecret"), []byte("Sup3r$ecret")}
	p := &Prompter{
		In:  strings.NewReader("ops_root\n"),
		Out: &bytes.Buffer{},
		ReadPassword: func() ([]byte, error) {
			a := answers[0]
			answers = answers[1:]
			return a, nil
		},
	}
	user, pw, err := p.Credentials()
	require.NoError(t, err)
	assert.Equal(t, "ops_root", user)
	assert.Equal(t, "Sup3r$ecret", pw)

	p.In = strings.NewReader("ops_root\n")
	answers = [][]byte{[]byte("one"), []byte("two")}
	_, _, err = p.Credentials()
	require.ErrorIs(t, err, ErrPasswordMismatch)
}
