package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tunetrail/tunetrail/internal/app"
	"github.com/tunetrail/tunetrail/internal/bootstrap"
	"github.com/tunetrail/tunetrail/internal/domain/repository"
	"github.com/tunetrail/tunetrail/internal/security/secretbox"
	tokens "github.com/tunetrail/tunetrail/internal/security/token"
	"github.com/tunetrail/tunetrail/internal/session"
	"github.com/tunetrail/tunetrail/internal/store/pg"
	migrations "github.com/tunetrail/tunetrail/migrations/postgres"
)

func newMigrateCmd(g *globals) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:       "migrate up|down",
		Short:     "Aplica o revierte las migraciones embebidas de Postgres",
		Args:      cobra.ExactValidArgs(1),
		ValidArgs: []string{"up", "down"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate needs storage.driver=postgres (got %q)", cfg.Storage.Driver)
			}
			ctx := cmd.Context()
			st, err := pg.New(ctx, cfg.Storage.DSN, pg.PoolConfig{MaxConns: 2})
			if err != nil {
				return err
			}
			defer st.Close()

			n, err := st.Migrate(ctx, migrations.PostgresFS, pg.Direction(args[0]), steps)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d %s migration(s) applied\n", n, args[0])
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "cantidad de archivos a aplicar (0 = todos)")
	return cmd
}

func newSessionsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "sessions", Short: "Gestión de sesiones"}

	var userID int64
	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Invalida todas las sesiones de un usuario",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return errors.New("--user is required")
			}
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			st, err := app.OpenStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions := session.New(session.WithTTL(cfg.Session.TTL))
			var n int
			err = st.UoW.WithTx(ctx, func(ctx context.Context, repos repository.Repos) error {
				if _, err := repos.Users.GetByID(ctx, userID); err != nil {
					return err
				}
				n, err = sessions.InvalidateAll(ctx, repos, userID)
				return err
			})
			if repository.IsNotFound(err) {
				return fmt.Errorf("user %d not found", userID)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d session(s) invalidated for user %d\n", n, userID)
			return nil
		},
	}
	revoke.Flags().Int64Var(&userID, "user", 0, "id del usuario")
	cmd.AddCommand(revoke)
	return cmd
}

func newAdminCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Cuentas de administrador"}

	var (
		username      string
		passwordStdin bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Crea un usuario administrador con password",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			var plain string
			switch {
			case passwordStdin:
				if username == "" {
					return errors.New("--username is required with --password-stdin")
				}
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read password: %w", err)
				}
				plain = strings.TrimRight(line, "\r\n")
			default:
				p := bootstrap.NewPrompter()
				p.Out = cmd.OutOrStdout()
				username, plain, err = p.Credentials()
				if err != nil {
					return err
				}
			}

			ctx := cmd.Context()
			st, err := app.OpenStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()
			if st.PG == nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "warning: memory storage, the admin will not persist")
			}

			u, err := bootstrap.CreateAdmin(ctx, st.UoW, app.Hashing(cfg), username, plain)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created with id %d\n", u.DisplayName(), u.ID)
			return nil
		},
	}
	create.Flags().StringVar(&username, "username", "", "username del admin")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "leer el password de stdin")
	cmd.AddCommand(create)
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Genera SECRETBOX_MASTER_KEY y JWT_SECRET nuevos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			box, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			jwtSecret, err := tokens.GenerateOpaqueToken(48)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "SECRETBOX_MASTER_KEY=%s\n", box)
			fmt.Fprintf(out, "JWT_SECRET=%s\n", jwtSecret)
			return nil
		},
	}
}
