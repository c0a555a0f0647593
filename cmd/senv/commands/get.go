package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
)

func newGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get profile key",
		Short: "Print one variable of a profile",
		Long: `Evaluate a profile in a separate senv process and print one variable.

The current environment is left alone, so this works from inside another
profile.`,
		Example: `  senv get production DATABASE_URL`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(engine *senv.Engine) error {
				value, ok, err := engine.GetFresh(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%s is not set in profile %s", args[1], args[0])
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
				return err
			})
		},
	}

	return cmd
}
