// Package cmd is a small wallet-side tool for poking at the gateway: it keeps
// a BIP-39 mnemonic on disk, signs LNURL-auth challenges with the LUD-05
// linking key and decodes LNURL strings.
package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	mnemonicFile string
	httpTimeout  time.Duration
)

var rootCmd = &cobra.Command{
	Use:           "lnurlctl",
	Short:         "wallet-side helper for the LNURL gateway",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&mnemonicFile, "mnemonic-file", "mnemonic.txt", "file holding the BIP-39 mnemonic")
	rootCmd.PersistentFlags().DurationVar(&httpTimeout, "timeout", 15*time.Second, "timeout for requests to the service")
}

func Execute() error {
	return rootCmd.Execute()
}
