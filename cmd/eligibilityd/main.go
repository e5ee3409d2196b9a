package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"controller-eligibility-backend/config"
	"controller-eligibility-backend/internal/logger"
)

const programName = "eligibilityd"

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   programName,
		Short: "Controller eligibility backend",
		Long:  "Computes and serves per-controller promotion-eligibility records.",
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to config file")

	rootCmd.AddCommand(
		serveCommand(),
		recacheCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commonSetup loads configuration and builds the logger shared by all
// subcommands.
func commonSetup() (*config.Config, *logger.Logger, error) {
	path := configFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if path == "" {
		path = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration from %s: %w", path, err)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	log.Info("configuration loaded", "path", path)

	return cfg, log, nil
}
