package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gitduel/internal/infra/config"
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt [value]",
	Short: "Encrypt a secret for the config file",
	Long: `Encrypt a secret (API key, GitHub token) with the passphrase in
GITDUEL_CONFIG_KEY. Paste the output into config.yaml; it is decrypted on load.

The value is read from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		passphrase := os.Getenv(config.EnvPrefix + "CONFIG_KEY")
		if passphrase == "" {
			return fmt.Errorf("%sCONFIG_KEY is not set", config.EnvPrefix)
		}

		var value string
		if len(args) == 1 {
			value = args[0]
		} else {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("read value: %w", err)
			}
			value = strings.TrimRight(line, "\r\n")
		}
		if value == "" {
			return fmt.Errorf("nothing to encrypt")
		}

		out, err := config.EncryptValue(value, passphrase)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "enc:"+out)
		return nil
	},
}
