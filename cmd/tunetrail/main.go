package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tunetrail/tunetrail/internal/config"
	"github.com/tunetrail/tunetrail/internal/observability/logger"
)

type globals struct {
	configPath string
	envFile    string
}

func (g *globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, ServiceName: "tunetrail-cli"})
	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func newRoot() *cobra.Command {
	g := &globals{}
	root := &cobra.Command{
		Use:           "tunetrail",
		Short:         "Herramientas operativas de TuneTrail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.envFile != "" {
				_ = godotenv.Load(g.envFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", envOr("CONFIG_PATH", "configs/config.yaml"), "ruta a config.yaml (opcional)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "ruta a .env")

	root.AddCommand(
		newMigrateCmd(g),
		newSessionsCmd(g),
		newAdminCmd(g),
		newKeygenCmd(),
	)
	return root
}

func main() {
	if err := newRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
