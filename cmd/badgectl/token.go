package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skillbadge/internal/platform/config"
	id "skillbadge/pkg/domain"
	"skillbadge/pkg/platform/middleware/auth"
)

var (
	tokenUser string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Signs a token with JWT_SIGNING_KEY (the development key when unset).
Tokens minted with the development key are rejected by any deployment that
configures its own key.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, err := id.ParseUserID(tokenUser)
		if err != nil {
			return err
		}
		server := config.FromEnv().Server
		token, err := auth.NewHMACValidator(server.JWTSigningKey, server.JWTIssuer).Sign(userID, tokenTTL, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "User handle placed in the token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 15*time.Minute, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}
