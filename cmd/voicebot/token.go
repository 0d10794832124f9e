package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coringa/voicebot/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <room>",
		Short: "Mint a stream token for a room's event websocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				ttl = a.cfg.Auth.StreamTokenTTL
			}
			exp := auth.Expiry(time.Now(), ttl)
			tok, err := auth.GenerateStreamToken(a.cfg.Auth.StreamTokenSecret, args[0], exp)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", time.Unix(exp, 0).UTC().Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from STREAM_TOKEN_TTL)")
	return cmd
}
