package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
)

func newKeyCommand() *cobra.Command {
	var showSource bool

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the encryption key in effect",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(engine *senv.Engine) error {
				k, err := engine.Key()
				if err != nil {
					return err
				}
				if showSource {
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, engine.KeySource())
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), k)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&showSource, "source", false, "also print where the key came from")

	return cmd
}
