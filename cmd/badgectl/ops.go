package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"skillbadge/internal/app"
	"skillbadge/internal/badge/store/profile"
	"skillbadge/internal/platform/config"
	"skillbadge/internal/platform/database"
	"skillbadge/internal/platform/logger"
	platformmongo "skillbadge/internal/platform/mongo"
	"skillbadge/migrations"
	id "skillbadge/pkg/domain"
	dErrors "skillbadge/pkg/domain-errors"
)

var (
	walletUser    string
	walletAddress string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending SQL migrations to DATABASE_URL",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		pool, err := database.New(ctx, config.FromEnv().Database)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := database.Migrate(ctx, pool.DB(), migrations.FS)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		}
		for _, name := range applied {
			fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
		}
		return nil
	},
}

var repairCmd = &cobra.Command{
	Use:   "repair <attempt-id>",
	Short: "Finish a stuck attempt: re-append a minted badge or reconcile an unconfirmed mint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		attemptID, err := id.ParseAttemptID(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			result, err := a.Service.Repair(ctx, attemptID)
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeTimeout) {
					fmt.Fprintln(cmd.OutOrStdout(), "mint still pending, try again later")
					return nil
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", attemptID, result.Outcome, result.Reason)
			return nil
		})
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run one repair sweep over stuck attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
			report, err := a.Sweeper.RunOnce(ctx)
			fmt.Fprintf(cmd.OutOrStdout(), "candidates=%d issued=%d pending=%d failed=%d\n",
				report.Candidates, report.Issued, report.Pending, report.Failed)
			return err
		})
	},
}

var walletCmd = &cobra.Command{
	Use:   "wallet",
	Short: "Manage linked ledger wallets",
}

var walletLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link a wallet address to a user profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		userID, err := id.ParseUserID(walletUser)
		if err != nil {
			return err
		}
		if !common.IsHexAddress(walletAddress) {
			return fmt.Errorf("invalid wallet address %q", walletAddress)
		}
		if err := linkWallet(ctx, config.FromEnv(), userID, walletAddress); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "linked %s to %s\n", walletAddress, userID)
		return nil
	},
}

func linkWallet(ctx context.Context, cfg config.Config, userID id.UserID, wallet string) error {
	switch cfg.Store.Profiles {
	case config.BackendPostgres:
		pool, err := database.New(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		return profile.NewPostgres(pool.DB()).SetWallet(ctx, userID, wallet)
	case config.BackendMongo:
		client, err := platformmongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		defer client.Close(context.WithoutCancel(ctx))
		return profile.NewMongo(client.Database()).SetWallet(ctx, userID, wallet)
	default:
		return errors.New("wallet link needs PROFILE_STORE=postgres or mongo; use SEED_WALLETS for the memory store")
	}
}

// withApp assembles the service against the shared stores. The memory attempt
// journal lives inside a server process, so there is nothing to repair from here.
func withApp(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.FromEnv()
	if cfg.Store.Attempts != config.BackendPostgres {
		return errors.New("repair tooling needs ATTEMPT_STORE=postgres")
	}
	cfg.Sweeper.Enabled = false

	log := logger.New(cfg.Server.LogLevel)
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Error("shutdown failed", slog.Any("error", err))
		}
	}()
	return fn(ctx, a)
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(repairCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(walletCmd)
	walletCmd.AddCommand(walletLinkCmd)

	walletLinkCmd.Flags().StringVar(&walletUser, "user", "", "User handle")
	walletLinkCmd.Flags().StringVar(&walletAddress, "address", "", "Wallet address (0x...)")
	_ = walletLinkCmd.MarkFlagRequired("user")
	_ = walletLinkCmd.MarkFlagRequired("address")
}
