package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tyler-smith/go-bip39"
)

var overwriteMnemonic bool

func init() {
	mnemonicCmd.Flags().BoolVar(&overwriteMnemonic, "force", false, "replace an existing mnemonic file")
	rootCmd.AddCommand(mnemonicCmd)
}

var mnemonicCmd = &cobra.Command{
	Use:   "mnemonic",
	Short: "generates a random mnemonic used to derive linking keys",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(mnemonicFile); err == nil && !overwriteMnemonic {
			return fmt.Errorf("%s already exists, pass --force to replace it", mnemonicFile)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}

		mnemonic, err := newMnemonic()
		if err != nil {
			return err
		}
		if err := os.WriteFile(mnemonicFile, []byte(mnemonic+"\n"), 0o600); err != nil {
			return fmt.Errorf("write mnemonic: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Mnemonic has been written to %s:\n  %s\n", mnemonicFile, mnemonic)
		return nil
	},
}

func newMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", fmt.Errorf("bip39 entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("bip39 mnemonic: %w", err)
	}
	return mnemonic, nil
}
