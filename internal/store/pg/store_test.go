package pg

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
	migrations "github.com/tunetrail/tunetrail/migrations/postgres"
)

func TestMapErr(t *testing.T) {
	assert.NoError(t, mapErr(nil))
	assert.True(t, repository.IsNotFound(mapErr(pgx.ErrNoRows)))
	assert.True(t, repository.IsNotFound(mapErr(fmt.Errorf("scan: %w", pgx.ErrNoRows))))

	err := mapErr(&pgconn.PgError{Code: pgUniqueViolation, ConstraintName: "users_username_key"})
	assert.True(t, repository.IsConflict(err))
	assert.Contains(t, err.Error(), "users_username_key")

	err = mapErr(&pgconn.PgError{Code: pgForeignKeyViolation, ConstraintName: "user_sessions_user_id_fkey"})
	assert.True(t, repository.IsNotFound(err))

	other := errors.New("connection reset")
	assert.Same(t, other, mapErr(other))
	assert.Equal(t, "42P01", mapErr(&pgconn.PgError{Code: "42P01"}).(*pgconn.PgError).Code)
}

func TestListSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b_up.sql":   {Data: []byte("select 2;")},
		"0001_a_up.sql":   {Data: []byte("select 1;")},
		"0001_a_down.sql": {Data: []byte("select -1;")},
		"README.md":       {Data: []byte("x")},
	}
	up, err := listSQL(fsys, "_up.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a_up.sql", "0002_b_up.sql"}, up)

	down, err := listSQL(fsys, "_down.sql")
	require.NoError(t, err)
	reverseInPlace(down)
	assert.Equal(t, []string{"0001_a_down.sql"}, down)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	up, err := listSQL(migrations.PostgresFS, "_up.sql")
	require.NoError(t, err)
	down, err := listSQL(migrations.PostgresFS, "_down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, up)
	require.Len(t, down, len(up))
}

type noRow struct{}

func (noRow) Scan(...any) error { return pgx.ErrNoRows }

// recordingDB guarda cada QueryRow y responde sin filas.
type recordingDB struct {
	sql  []string
	args [][]any
}

func (d *recordingDB) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errors.New("not used")
}

func (d *recordingDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not used")
}

func (d *recordingDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	d.sql = append(d.sql, sql)
	d.args = append(d.args, args)
	return noRow{}
}

func TestSessionRepo_QueriesByTypedUUID(t *testing.T) {
	ctx := context.Background()
	db := &recordingDB{}
	r := &sessionRepo{db: db}
	id := uuid.New()

	_, err := r.Get(ctx, id.String())
	assert.True(t, repository.IsNotFound(err))
	_, err = r.UpdateExpiry(ctx, id.String(), time.Now())
	assert.True(t, repository.IsNotFound(err))
	_, err = r.Invalidate(ctx, id.String())
	assert.True(t, repository.IsNotFound(err))

	require.Len(t, db.sql, 3)
	for i, q := range db.sql {
		assert.Contains(t, q, "WHERE user_session_id = $1")
		assert.False(t, strings.Contains(q, "user_session_id::text ="), q)
		assert.Equal(t, id, db.args[i][0])
	}
}

func TestSessionRepo_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	db := &recordingDB{}
	r := &sessionRepo{db: db}

	_, err := r.Get(ctx, "not-a-uuid")
	assert.True(t, repository.IsNotFound(err))
	_, err = r.UpdateExpiry(ctx, "", time.Now())
	assert.True(t, repository.IsNotFound(err))
	_, err = r.Invalidate(ctx, "s-1")
	assert.True(t, repository.IsNotFound(err))
	assert.Empty(t, db.sql)
}
