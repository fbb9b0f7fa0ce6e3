package main

import (
	"fmt"
	"os"

	"github.com/huudong03uet/credit-scoring/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var policyFile string

func main() {
	rootCmd := &cobra.Command{
		Use:          "creditd",
		Short:        "Decentralized credit scoring ledger",
		Long:         `Runs the credit scoring API over a shared ledger of identities, metrics, collateral, loans and scores.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&policyFile, "policy", "", "scoring policy TOML file (overrides SCORING_POLICY_FILE)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(refreshCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and policy and configures logrus.
func loadConfig() (*config.Config, config.Policy, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, config.Policy{}, err
	}
	setupLogging(cfg.Log)

	path := cfg.PolicyFile
	if policyFile != "" {
		path = policyFile
	}
	policy, err := config.LoadPolicy(path)
	if err != nil {
		return nil, config.Policy{}, err
	}
	return cfg, policy, nil
}

func setupLogging(cfg config.LogConfig) {
	if cfg.Format == "text" {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
}
