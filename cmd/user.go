/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petcare/apiserver/config"
	"github.com/petcare/apiserver/internal/db"
	"github.com/petcare/apiserver/internal/store"
)

var userEmail string

// userCmd groups account administration commands.
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Administer user accounts",
}

func setActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userEmail == "" {
				return fmt.Errorf("--email is required")
			}

			cfg := config.LoadConfig()
			conn, err := db.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer conn.Close()

			if err := store.NewUserRepository(conn).SetActive(cmd.Context(), userEmail, active); err != nil {
				return fmt.Errorf("%s %s: %w", use, userEmail, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", userEmail, use+"d")
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.PersistentFlags().StringVar(&userEmail, "email", "", "Email address of the account")
	userCmd.AddCommand(
		setActiveCommand("activate", "Allow an account to sign in again", true),
		setActiveCommand("deactivate", "Block an account from signing in", false),
	)
}
