// Package bootstrap crea la primera cuenta de administrador.
package bootstrap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/security/password"
)

var (
	ErrInvalidUsername  = errors.New("bootstrap: username must be 3-20 letters, digits or underscores")
	ErrPasswordMismatch = errors.New("bootstrap: passwords do not match")
	ErrUsernameTaken    = errors.New("bootstrap: username already taken")
)

// CreateAdmin crea un usuario con password e is_admin.
func CreateAdmin(ctx context.Context, uow repository.UnitOfWork, hashing password.Params, username, plain string) (*repository.User, error) {
	username = strings.TrimSpace(username)
	if !password.ValidUsername(username) {
		return nil, ErrInvalidUsername
	}
	if ok, reasons := password.Registration.Validate(plain); !ok {
		return nil, fmt.Errorf("bootstrap: weak password: %s", strings.Join(reasons, ", "))
	}
	hash, err := password.Hash(hashing, plain)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: hash password: %w", err)
	}

	var admin *repository.User
	err = uow.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
		u, err := repos.Users.Create(ctx, repository.CreateUserInput{
			Username:     &username,
			PasswordHash: &hash,
			IsAdmin:      true,
		})
		if err != nil {
			if repository.IsConflict(err) {
				return ErrUsernameTaken
			}
			return err
		}
		admin = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return admin, nil
}

// Prompter lee credenciales de forma interactiva. ReadPassword por defecto
// usa la terminal sin eco.
type Prompter struct {
	In           io.Reader
	Out          io.Writer
	ReadPassword func() ([]byte, error)
}

func NewPrompter() *Prompter {
	return &Prompter{
		In:  os.Stdin,
		Out: os.Stdout,
		ReadPassword: func() ([]byte, error) {
			return term.ReadPassword(int(os.Stdin.Fd()))
		},
	}
}

// Credentials pide username, password y confirmación.
func (p *Prompter) Credentials() (username, plain string, err error) {
	reader := bufio.NewReader(p.In)

	fmt.Fprint(p.Out, "Admin username: ")
	username, err = reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", "", err
	}
	username = strings.TrimSpace(username)
	if !password.ValidUsername(username) {
		return "", "", ErrInvalidUsername
	}

	fmt.Fprint(p.Out, "Admin password: ")
	pw, err := p.ReadPassword()
	if err != nil {
		return "", "", err
	}
	fmt.Fprintln(p.Out)

	fmt.Fprint(p.Out, "Confirm password: ")
	confirm, err := p.ReadPassword()
	if err != nil {
		return "", "", err
	}
	fmt.Fprintln(p.Out)

	if string(pw) != string(confirm) {
		return "", "", ErrPasswordMismatch
	}
	return username, string(pw), nil
}
