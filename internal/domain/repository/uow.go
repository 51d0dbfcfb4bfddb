package repository

import "context"

// Repos agrupa los repositorios que comparten una misma transacción.
type Repos struct {
	Users      UserRepository
	Sessions   SessionRepository
	OAuthLinks OAuthLinkRepository
}

// UnitOfWork abre una transacción, entrega los repos ligados a ella y hace
// commit si fn retorna nil o rollback en cualquier otro caso.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Repos) error) error
}
