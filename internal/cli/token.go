package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quiz-session-engine/internal/config"
)

// NewTokenCmd issues a bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var user, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			tok, err := buildProvider(cfg).Issue(user, role)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "username the token is issued for")
	cmd.Flags().StringVar(&role, "role", "student", "role claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
