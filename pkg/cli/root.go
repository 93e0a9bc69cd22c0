// Package cli implements the strands command line: the server run loop
// plus the operator commands for replaying recorded incidents, checking
// configuration, driving the playbook lifecycle, and probing a running
// server.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/strands/pkg/config"
	"github.com/codeready-toolchain/strands/pkg/version"
)

// app carries the state shared across subcommands.
type app struct {
	configDir string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the strands root command wired to the process
// streams.
func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdin, os.Stdout, os.Stderr)
}

func newRootCommand(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{
		stdin:  in,
		stdout: out,
		stderr: errOut,
	}

	cmd := &cobra.Command{
		Use:           "strands",
		Short:         "Autonomous incident response: ingest, investigate, decide, recommend",
		Long:          "strands collects alerts from the configured providers, fans each cluster out to the specialist swarm, fuses the results into a decision, and resolves it to a playbook. Low-risk decisions above the policy bar auto-approve; everything else waits for a reviewer.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version.GitCommit,
	}

	cmd.PersistentFlags().StringVar(&a.configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"path to the configuration directory")

	cmd.AddCommand(
		newRunCmd(a),
		newReplayCmd(a),
		newValidateConfigCmd(a),
		newPlaybookCmd(a),
		newHealthCmd(a),
	)

	cmd.SetVersionTemplate("strands {{.Version}}\n")
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)
	return cmd
}

// getEnv returns the environment value or the fallback when unset.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// loadConfig loads the .env file from the configuration directory and
// initialises the resolved configuration.
func (a *app) loadConfig(ctx context.Context) (*config.Config, error) {
	envPath := filepath.Join(a.configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"path", envPath, "error", err)
	} else {
		slog.Info("Loaded environment", "path", envPath)
	}
	return config.Initialize(ctx, a.configDir)
}

// newLogger builds the process logger at the configured level and makes
// it the slog default so package-level logging lands in the same stream.
func (a *app) newLogger(sys config.SystemConfig) *slog.Logger {
	logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: sys.SlogLevel()}))
	slog.SetDefault(logger)
	return logger
}
