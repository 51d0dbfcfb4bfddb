package auth

import (
	"context"
	"time"

	"github.com/tunetrail/tunetrail/internal/cache"
	tokens "github.com/tunetrail/tunetrail/internal/security/token"
)

// StateTTL: ventana para volver del consentimiento de Spotify.
const StateTTL = 10 * time.Minute

// Intent del flujo OAuth que originó el state.
type Intent string

const (
	IntentConnect Intent = "connect"
	IntentLink    Intent = "link"
)

// StateStore guarda los state emitidos por AuthorizeURL. Cada state se
// consume una sola vez.
type StateStore struct {
	c   cache.Client
	ttl time.Duration
}

func NewStateStore(c cache.Client) *StateStore {
	return &StateStore{c: c, ttl: StateTTL}
}

func stateKey(state string) string { return "oauth_state:" + state }

// Issue genera un state opaco ligado al intent.
func (s *StateStore) Issue(ctx context.Context, intent Intent) (string, error) {
	st, err := tokens.GenerateOpaqueToken(24)
	if err != nil {
		return "", err
	}
	if err := s.c.Set(ctx, stateKey(st), string(intent), s.ttl); err != nil {
		return "", err
	}
	return st, nil
}

// Consume valida y borra el state de forma atómica; un error del cache
// se propaga y el state no se da por válido.
func (s *StateStore) Consume(ctx context.Context, state string, intent Intent) error {
	if state == "" {
		return ErrInvalidState
	}
	v, err := s.c.Take(ctx, stateKey(state))
	if err != nil {
		if cache.IsNotFound(err) {
			return ErrInvalidState
		}
		return err
	}
	if Intent(v) != intent {
		return ErrInvalidState
	}
	return nil
}
