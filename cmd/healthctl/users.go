package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/supahealth/supahealth/healthservice"
	"github.com/supahealth/supahealth/internal/auth"
	"github.com/supahealth/supahealth/internal/config"
	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

func init() {
	userCmd := &cobra.Command{Use: "user", Short: "User operations"}

	var email, password, fullName string
	var superuser bool
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st store.Store) error {
				hash, err := auth.HashPassword(password)
				if err != nil {
					return err
				}
				user := &model.User{
					ID:           rid.New("user"),
					Email:        strings.ToLower(strings.TrimSpace(email)),
					PasswordHash: hash,
					IsActive:     true,
					IsSuperuser:  superuser,
				}
				if fullName != "" {
					user.FullName = &fullName
				}
				created, err := st.Users().Create(ctx, user)
				if err != nil {
					return err
				}
				return printJSON(created)
			})
		},
	}
	createCmd.Flags().StringVarP(&email, "email", "e", "", "User email (required)")
	createCmd.Flags().StringVarP(&password, "password", "p", "", "Password (required)")
	createCmd.Flags().StringVarP(&fullName, "name", "n", "", "Full name")
	createCmd.Flags().BoolVar(&superuser, "superuser", false, "Grant superuser")
	_ = createCmd.MarkFlagRequired("email")
	_ = createCmd.MarkFlagRequired("password")
	userCmd.AddCommand(createCmd)

	getCmd := &cobra.Command{
		Use:   "get EMAIL",
		Short: "Get a user by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), func(ctx context.Context, cfg *config.Config, st store.Store) error {
				user, err := st.Users().GetByEmail(ctx, strings.ToLower(args[0]))
				if err != nil {
					return err
				}
				return printJSON(user)
			})
		},
	}
	userCmd.AddCommand(getCmd)

	rootCmd.AddCommand(userCmd)
}

// withStore loads config, opens the store, runs fn, and closes up.
func withStore(ctx context.Context, fn func(context.Context, *config.Config, store.Store) error) error {
	cfg, err := config.New()
	if err != nil {
		return err
	}
	st, err := healthservice.NewStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	return fn(ctx, cfg, st)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
