package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/huudong03uet/credit-scoring/internal/apperr"
	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/huudong03uet/credit-scoring/internal/database"
	"github.com/huudong03uet/credit-scoring/internal/models"
	"github.com/huudong03uet/credit-scoring/internal/scoring"
	"github.com/huudong03uet/credit-scoring/internal/token"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			logrus.Info("Database migrated")
			return nil
		},
	}
}

type seedToken struct {
	address   common.Address
	symbol    string
	name      string
	decimals  uint8
	price     int64
	threshold uint16
}

var defaultTokens = []seedToken{
	{token.NativeToken, "ETH", "Ether", 18, 2000, 8000},
	{common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"), "USDC", "USD Coin", 6, 1, 9000},
	{common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599"), "WBTC", "Wrapped Bitcoin", 8, 30000, 7500},
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the default collateral tokens and prices",
		Long:  `Creates ETH, USDC and WBTC in the token ledger with prices and liquidation thresholds. Requires ADMIN_ADDRESSES.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if len(rt.cfg.Admins) == 0 {
				return errors.New("seed requires ADMIN_ADDRESSES")
			}
			return seedTokens(ctx, rt, rt.cfg.Admins[0])
		},
	}
}

func seedTokens(ctx context.Context, rt *app, admin common.Address) error {
	for _, t := range defaultTokens {
		price := decimal.NewFromInt(t.price)
		_, err := rt.deps.Tokens.GetToken(ctx, t.address)
		switch {
		case errors.Is(err, apperr.ErrNotFound):
			err = rt.deps.Tokens.CreateToken(ctx, admin, &models.Token{
				Address:  t.address.Hex(),
				Symbol:   t.symbol,
				Name:     t.name,
				Decimals: t.decimals,
				Price:    price,
			})
		case err == nil:
			err = rt.deps.Tokens.SetPrice(ctx, admin, t.address, price)
		}
		if err != nil {
			return fmt.Errorf("seed token %s: %w", t.symbol, err)
		}

		if err := rt.deps.Collateral.AddSupportedToken(ctx, admin, t.address, t.threshold); err != nil {
			return fmt.Errorf("support token %s: %w", t.symbol, err)
		}
		logrus.WithFields(logrus.Fields{"token": t.symbol, "price": t.price}).Info("Token seeded")
	}
	return nil
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Recompute every missing or expired score once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if rt.cfg.ScorerAddress == (common.Address{}) {
				return errors.New("refresh requires SCORER_ADDRESS")
			}
			refresher, err := scoring.NewRefresher(rt.deps.Scoring, rt.deps.Identity, rt.cfg.ScorerAddress,
				refreshInterval(rt.cfg), rt.clock, rt.log)
			if err != nil {
				return err
			}
			n, err := refresher.RefreshStale(ctx)
			if err != nil {
				return err
			}
			logrus.WithField("refreshed", n).Info("Score refresh finished")
			return nil
		},
	}
}

// refreshInterval only satisfies NewRefresher; a one-shot refresh never
// schedules the job.
func refreshInterval(cfg *config.Config) time.Duration {
	if cfg.RefreshInterval > 0 {
		return cfg.RefreshInterval
	}
	return time.Hour
}
