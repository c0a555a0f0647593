package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/senvtool/senv/pkg/senv"
	"github.com/senvtool/senv/pkg/tracker"
)

func newEnvCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "env [profile]",
		Short: "Print the composed environment of a profile",
		Long: `Compose a profile and print the variables its fragments set.

The profile defaults to $SENV, then to "development".`,
		Example: `  # Print the development profile as YAML
  senv env

  # Export production into the current shell
  eval "$(senv env production --format shell)"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(engine *senv.Engine) error {
				if _, err := load(cmd, engine, profileArg(args)); err != nil {
					return err
				}
				return writeEnv(cmd.OutOrStdout(), engine.Environment(), format)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "yaml", "output format (yaml, json, shell)")

	return cmd
}

func writeEnv(w io.Writer, env *tracker.Env, format string) error {
	switch format {
	case "yaml", "yml":
		out, err := yaml.Marshal(env)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)

	case "shell", "sh":
		for _, k := range env.Keys() {
			if _, err := fmt.Fprintf(w, "export %s=%s\n", k, shellQuote(env.Get(k))); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q (want yaml, json or shell)", format)
	}
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
