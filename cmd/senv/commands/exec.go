package commands

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
)

func newExecCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [profile] -- command [args...]",
		Short: "Run a command inside a profile's environment",
		Long: `Compose a profile and run a command with the resulting environment.

The child inherits SENV, SENV_LOADED and SENV_ENVIRONMENT, so a senv-aware
child reuses the composition instead of loading it again.`,
		Example: `  # Start the server with production settings
  senv exec production -- ./server --port 8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dash := cmd.ArgsLenAtDash()
			if dash < 0 || dash == len(args) {
				return fmt.Errorf("missing command after --")
			}
			if dash > 1 {
				return fmt.Errorf("expected at most one profile before --")
			}
			profile := profileArg(args[:dash])
			argv := args[dash:]

			return withEngine(cmd, func(engine *senv.Engine) error {
				name, err := load(cmd, engine, profile)
				if err != nil {
					return err
				}

				child := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
				child.Env = engine.Ambient().Environ()
				child.Stdin = os.Stdin
				child.Stdout = cmd.OutOrStdout()
				child.Stderr = cmd.ErrOrStderr()

				log.Debug().Str("senv", name).Strs("command", argv).Msg("running command")

				if err := child.Run(); err != nil {
					var exitErr *exec.ExitError
					if errors.As(err, &exitErr) {
						return &ExitError{Code: exitErr.ExitCode()}
					}
					return err
				}
				return nil
			})
		},
	}

	return cmd
}
