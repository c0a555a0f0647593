package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
	"github.com/senvtool/senv/pkg/telemetry"
)

var (
	// Global flags
	rootDir string
	key     string
	force   bool
	debug   bool
)

// ExitError carries a child process exit status through cobra.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "senv",
		Short: "senv - per-profile environment composition",
		Long: `senv composes named profiles of environment variables from fragments
kept in a project's .senv directory.

Fragments are loaded in order:
  - <profile>.star scripts first, which may import other profiles
  - then <profile>.yml, .json, .toml and .cue data files, templated
    against the environment the scripts produced

Fragments named <profile>.enc.<ext> are encrypted with the project key,
taken from --key, SENV_KEY or .senv/.key.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "configuration root (overrides SENV_ROOT)")
	rootCmd.PersistentFlags().StringVar(&key, "key", "", "encryption key (overrides SENV_KEY and .senv/.key)")
	rootCmd.PersistentFlags().BoolVarP(&force, "force", "f", false, "recompose even if the environment already carries the profile")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log every fragment as it loads")

	rootCmd.AddCommand(newEnvCommand())
	rootCmd.AddCommand(newExecCommand())
	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newReadCommand())
	rootCmd.AddCommand(newWriteCommand())
	rootCmd.AddCommand(newRecryptCommand())
	rootCmd.AddCommand(newKeyCommand())
	rootCmd.AddCommand(newWatchCommand())

	return rootCmd
}

// withEngine builds an engine from the global flags and the process
// environment, runs fn and flushes telemetry.
func withEngine(cmd *cobra.Command, fn func(*senv.Engine) error) error {
	cfg := telemetry.ConfigFromEnviron(os.LookupEnv)
	if debug {
		cfg.Logging.Level = "debug"
	}
	tel, err := telemetry.NewTelemetry(cfg, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := tel.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("failed to flush traces")
		}
	}()

	opts := senv.OptionsFromEnviron(os.Environ())
	if rootDir != "" {
		opts.Root = rootDir
	}
	opts.Key = key
	opts.Telemetry = tel

	engine, err := senv.New(opts)
	if err != nil {
		return err
	}
	return fn(engine)
}

// load composes profile (or the default) honouring --force.
func load(cmd *cobra.Command, engine *senv.Engine, profile string) (string, error) {
	return engine.Load(cmd.Context(), profile, senv.LoadOptions{Force: force})
}

func profileArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return ""
}
