// Package memory implementa repository.UnitOfWork en memoria.
//
// Pensado para tests y desarrollo local (STORAGE_DRIVER=memory). Cada
// operación toma el mutex del store; WithTx registra un undo-log y lo aplica
// en orden inverso si el callback falla, así una unidad de trabajo fallida no
// deja escrituras parciales. No hay aislamiento entre transacciones
// concurrentes (read-uncommitted).
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
)

// Store es el backend en memoria.
type Store struct {
	mu  sync.Mutex
	now func() time.Time

	nextUserID int64
	users      map[int64]repository.User
	usernames  map[string]int64
	sessions   map[string]repository.Session
	links      map[int64]repository.OAuthLink
	providers  map[string]int64
}

// Option configura el Store.
type Option func(*Store)

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New crea un Store vacío.
func New(opts ...Option) *Store {
	s := &Store{
		now:       time.Now,
		users:     make(map[int64]repository.User),
		usernames: make(map[string]int64),
		sessions:  make(map[string]repository.Session),
		links:     make(map[int64]repository.OAuthLink),
		providers: make(map[string]int64),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// tx acumula las operaciones inversas de una unidad de trabajo.
type tx struct {
	undo []func()
}

func (t *tx) record(fn func()) { t.undo = append(t.undo, fn) }

// WithTx implementa repository.UnitOfWork.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := &tx{}
	repos := repository.Repos{
		Users:      &userRepo{s: s, tx: t},
		Sessions:   &sessionRepo{s: s, tx: t},
		OAuthLinks: &linkRepo{s: s, tx: t},
	}
	if err := fn(ctx, repos); err != nil {
		s.mu.Lock()
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// Snapshot helpers para tests (fuera de cualquier transacción).

// Session devuelve una copia de la sesión almacenada.
func (s *Store) Session(id string) (repository.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sessions[id]
	return v, ok
}

// Link devuelve una copia del link del usuario.
func (s *Store) Link(userID int64) (repository.OAuthLink, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.links[userID]
	return v, ok
}

// User devuelve una copia del usuario.
func (s *Store) User(id int64) (repository.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.users[id]
	return v, ok
}

// SessionsOf lista las sesiones del usuario.
func (s *Store) SessionsOf(userID int64) []repository.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []repository.Session
	for _, v := range s.sessions {
		if v.UserID == userID {
			out = append(out, v)
		}
	}
	return out
}

var _ repository.UnitOfWork = (*Store)(nil)
