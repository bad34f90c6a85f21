package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"looprec/backend/pkg/auth"
)

func newTokenCmd() *cobra.Command {
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with the configured JWT secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			auth.InitJWT(appCfg.JWT.Secret)
			token, err := auth.GenerateToken(subject, appCfg.JWT.ExpireTime)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "name recorded in the token")
	return cmd
}
