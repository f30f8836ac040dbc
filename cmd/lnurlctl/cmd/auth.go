package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/spf13/cobra"
)

var dryRun bool

func init() {
	authCmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the signed callback URL without calling it")
	rootCmd.AddCommand(authCmd)
}

var authCmd = &cobra.Command{
	Use:   "auth <lnurl>",
	Short: "signs an LNURL-auth challenge and calls the service",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		seed, err := seedFromFile(mnemonicFile)
		if err != nil {
			return fmt.Errorf("mnemonic: %w", err)
		}

		authURL, err := decodeLNURL(args[0])
		if err != nil {
			return err
		}
		// Wallets only sign for tag=login, otherwise the URL is for another flow.
		if authURL.Query().Get("tag") != lnurl.TagLogin {
			return errors.New("lnurl is not an auth url")
		}

		priv, err := linkingKey(seed, authURL.Hostname())
		if err != nil {
			return err
		}
		signed, err := signURL(authURL, priv)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		q := signed.Query()
		fmt.Fprintf(out, "Domain      = %s\n", signed.Hostname())
		fmt.Fprintf(out, "Challenge   = %s\n", q.Get("k1"))
		fmt.Fprintf(out, "Linking key = %s\n", q.Get("key"))
		fmt.Fprintf(out, "Signed URL  = %s\n", signed.String())

		if dryRun {
			return nil
		}
		if err := callService(&http.Client{Timeout: httpTimeout}, signed); err != nil {
			return err
		}
		fmt.Fprintln(out, "Authentication succeeded")
		return nil
	},
}

// signURL returns a copy of u with sig and key added for its k1.
func signURL(u *url.URL, priv *btcec.PrivateKey) (*url.URL, error) {
	q := u.Query()
	sig, key, err := signChallenge(priv, q.Get("k1"))
	if err != nil {
		return nil, err
	}
	q.Set("sig", sig)
	q.Set("key", key)

	signed := *u
	signed.RawQuery = q.Encode()
	return &signed, nil
}

// callService GETs an LNURL callback and turns an ERROR status into an error.
func callService(client *http.Client, u *url.URL) error {
	res, err := client.Get(u.String())
	if err != nil {
		return err
	}
	defer res.Body.Close()

	var body struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode response (HTTP %d): %w", res.StatusCode, err)
	}
	if body.Status != "OK" {
		return fmt.Errorf("service refused: %s", body.Reason)
	}
	return nil
}
