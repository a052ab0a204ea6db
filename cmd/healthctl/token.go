package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/config"
	"github.com/supahealth/supahealth/internal/store"
)

func init() {
	tokenCmd := &cobra.Command{Use: "token", Short: "Token operations"}

	var email string
	issueCmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st store.Store) error {
				user, err := st.Users().GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
				if err != nil {
					return err
				}
				issuer := auth.NewTokenIssuer(cfg.SecretKey, cfg.TokenTTL(), st.Users())
				token, expiresAt, err := issuer.Issue(user)
				if err != nil {
					return err
				}
				return printJSON(map[string]any{
					"accessToken": token,
					"tokenType":   "bearer",
					"expiresAt":   expiresAt,
				})
			})
		},
	}
	issueCmd.Flags().StringVarP(&email, "email", "e", "", "User email (required)")
	_ = issueCmd.MarkFlagRequired("email")
	tokenCmd.AddCommand(issueCmd)

	rootCmd.AddCommand(tokenCmd)
}
