package main

import (
	"fmt"
	"log/slog"
	"os"

	"pickme-intel/internal/auth"
	"pickme-intel/internal/config"
	"pickme-intel/pkg/logger"

	"github.com/spf13/cobra"
)

const programName = "api"

// cli carries state prepared by the root PersistentPreRunE.
type cli struct {
	envFile string
	cfg     config.Config
	log     *slog.Logger
}

func newRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Officer credit ledger admin API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(c.envFile); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			c.cfg = cfg
			c.log = logger.New(cfg.App.Env)
			slog.SetDefault(c.log)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), c)
		},
	}
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file to load (missing files are ignored)")

	rootCmd.AddCommand(serveCommand(c))
	rootCmd.AddCommand(migrateCommand(c))
	rootCmd.AddCommand(reconcileCommand(c))
	rootCmd.AddCommand(hashPasswordCommand())
	return rootCmd
}

// hashPasswordCommand prints a bcrypt hash for ADMIN_PASSWORD_HASH. It needs no config.
func hashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash for ADMIN_PASSWORD_HASH",
		Args:  cobra.ExactArgs(1),
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), h)
			return nil
		},
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		slog.Error(err.Error(), "component", programName)
		os.Exit(1)
	}
}
