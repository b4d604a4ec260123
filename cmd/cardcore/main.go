// Package main is the entry point for the cardcore controller.
//
// cardcore scans a fixed array of DI/DO/AI/SIO/MATH/RTC cards against
// physical or MQTT-backed I/O and exposes the running state over HTTP,
// WebSocket and MQTT.
//
// Usage:
//
//	cardcore [serve] [--config path]
//	cardcore validate layout.yaml
//	cardcore import layout.yaml
//	cardcore token --subject alice --role operator
//	cardcore migrate status|down
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Version information (set at build time via ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path.
const defaultConfigPath = "configs/cardcore.yaml"

func main() {
	// Create context that cancels on SIGINT or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The root command runs the controller.
func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "cardcore",
		Short:         "Multi-channel card automation controller",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", getConfigPath(),
		"configuration file (env CARDCORE_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath),
		newValidateCmd(&configPath),
		newImportCmd(&configPath),
		newTokenCmd(&configPath),
		newMigrateCmd(&configPath),
	)
	return root
}

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the controller until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), *configPath)
		},
	}
}

// getConfigPath returns the configuration file path.
// Uses CARDCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("CARDCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
