package cmd

import (
	"fmt"
	"net/url"
	"sort"

	"github.com/lnurl-gateway/backend/internal/lnurl"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(decodeCmd)
}

var decodeCmd = &cobra.Command{
	Use:   "decode <lnurl>",
	Short: "prints the URL behind an LNURL and its query parameters",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u, err := decodeLNURL(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "URL  = %s\n", u.String())
		fmt.Fprintf(out, "Host = %s\n", u.Hostname())

		q := u.Query()
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "  %s = %s\n", k, q.Get(k))
		}
		return nil
	},
}

func decodeLNURL(code string) (*url.URL, error) {
	raw, err := lnurl.Decode(code)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	return u, nil
}
