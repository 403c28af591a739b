package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/justestif/albumrank/internal/web"
)

// tokenCommand signs a bearer token with the configured secret, for local
// use against the API.
func tokenCommand(configPath *string) *cobra.Command {
	var (
		name string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue a bearer token for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer app.Close()

			auth, err := app.authenticator()
			if err != nil {
				return err
			}
			token, err := auth.Issue(web.Identity{UserID: args[0], Name: name}, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name carried in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
