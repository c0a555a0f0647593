package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/senvtool/senv/pkg/senv"
)

func ioOptions(cmd *cobra.Command, encrypted bool) senv.IOOptions {
	if cmd.Flags().Changed("encrypted") {
		return senv.IOOptions{Encrypted: senv.Encrypted(encrypted)}
	}
	return senv.IOOptions{}
}

func newReadCommand() *cobra.Command {
	var encrypted bool

	cmd := &cobra.Command{
		Use:   "read file",
		Short: "Print a file, decrypting it if its name carries .enc",
		Example: `  senv read .senv/production.enc.yml`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, func(engine *senv.Engine) error {
				data, err := engine.Read(args[0], ioOptions(cmd, encrypted))
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&encrypted, "encrypted", false, "override the .enc file name marker")

	return cmd
}

func newWriteCommand() *cobra.Command {
	var encrypted bool

	cmd := &cobra.Command{
		Use:   "write file",
		Short: "Write stdin to a file, encrypting it if its name carries .enc",
		Example: `  # Encrypt a secrets file
  cat secrets.yml | senv write .senv/production.enc.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			return withEngine(cmd, func(engine *senv.Engine) error {
				if err := engine.Write(args[0], data, ioOptions(cmd, encrypted)); err != nil {
					return err
				}
				log.Info().Str("path", args[0]).Int("bytes", len(data)).Msg("file written")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&encrypted, "encrypted", false, "override the .enc file name marker")

	return cmd
}

func newRecryptCommand() *cobra.Command {
	var newKey string

	cmd := &cobra.Command{
		Use:   "recrypt file...",
		Short: "Re-encrypt files with a new key",
		Example: `  senv recrypt .senv/*.enc.* --new-key "$NEW_KEY"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if newKey == "" {
				newKey = os.Getenv("SENV_NEW_KEY")
			}
			if newKey == "" {
				return fmt.Errorf("--new-key or SENV_NEW_KEY is required")
			}
			return withEngine(cmd, func(engine *senv.Engine) error {
				for _, path := range args {
					if err := engine.Recrypt(path, newKey); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&newKey, "new-key", "", "key to re-encrypt with")

	return cmd
}
