package main

import (
	"os"

	"github.com/spf13/cobra"

	"taskboard-backend/pkg/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taskboard",
		Short:         "Task board API server and maintenance tools",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		// 日志尚未初始化时也要能看到错误
		cfg, cfgErr := config.GetCached()
		if cfgErr != nil {
			cfg = &config.Config{LogLevel: "info"}
		}
		cfg.NewLogger().WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// loadConfig loads and validates the process configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.GetCached()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
