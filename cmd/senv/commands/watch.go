package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
	"github.com/senvtool/senv/pkg/tracker"
)

func newWatchCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "watch [profile]",
		Short: "Print a profile's environment every time its fragments change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return withEngine(cmd, func(engine *senv.Engine) error {
				return engine.Watch(cmd.Context(), profileArg(args), func(env *tracker.Env, err error) {
					if err != nil {
						log.Error().Err(err).Msg("reload failed")
						return
					}
					if format == "yaml" {
						fmt.Fprintln(out, "---")
					}
					if err := writeEnv(out, env, format); err != nil {
						log.Error().Err(err).Msg("failed to print environment")
					}
				})
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json, shell)")

	return cmd
}
