package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AlibekovAA/authcore/internal/common/config"
	"github.com/AlibekovAA/authcore/internal/common/logger"
)

var configFile string

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "authcore",
		Short:        "Account registration, login and bearer token service",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewAccountCmd())

	return cmd
}

// loadRuntime reads configuration and opens the service logger.
func loadRuntime() (config.AuthConfig, *logger.Logger, error) {
	cfg, err := config.LoadAuthConfig(configFile)
	if err != nil {
		return config.AuthConfig{}, nil, err
	}
	log, err := logger.New(cfg.LogDir, "auth", cfg.LogLevel)
	if err != nil {
		return config.AuthConfig{}, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
