// Package main is the operator CLI for the badge issuance service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "badgectl",
	Short: "Operate the skill badge issuance service",
	Long: `Operator tooling for skill badge issuance.
Inspects the badge catalog, applies database migrations, repairs stuck
attempts and mints development tokens. Configuration comes from the same
environment variables the server reads.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
