// Package main provides the main entry point for the trivia admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sportstrivia/cmd/adm/commands"
	"sportstrivia/internal/config"
	"sportstrivia/internal/observability"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set default config file if not already set
	if os.Getenv(config.ConfigFileEnv) == "" {
		defaultPaths := []string{
			"../config.yaml",    // From cmd/adm/
			"../../config.yaml", // From cmd/adm/ (alternative)
			"config.yaml",       // Current directory
		}

		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := os.Setenv(config.ConfigFileEnv, path); err != nil {
					fmt.Fprintf(os.Stderr, "Failed to set %s environment variable: %v\n", config.ConfigFileEnv, err)
					os.Exit(1)
				}
				break
			}
		}
	}

	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Keep the admin tool quiet and offline
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false
	cfg.Preload.Disabled = true

	providers, err := observability.SetupObservability(&cfg.OpenTelemetry, "trivia-admin", cfg.Server.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	logger := providers.Logger

	env := commands.NewEnv(cfg, logger, commands.NewPrinter(os.Stdout))

	var storage string
	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Sports Trivia Administration Tool",
		Long: `Sports Trivia Administration Tool

A CLI tool for administering the trivia question supply.
Provides commands for the question bank, selection, dedup scoring, and database operations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if storage != "" {
				cfg.Storage.Driver = storage
			}
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&storage, "storage", "", "Override storage.driver (postgres or memory)")

	rootCmd.AddCommand(commands.BankCommands(env))
	rootCmd.AddCommand(commands.QuestionCommands(env))
	rootCmd.AddCommand(commands.SimilarityCommand(env))
	rootCmd.AddCommand(commands.DatabaseCommands(env))
	rootCmd.AddCommand(commands.ConfigCommands(env))

	execErr := rootCmd.ExecuteContext(ctx)

	if err := env.Close(context.Background()); err != nil {
		logger.Warn(ctx, "Warning: failed to release services", map[string]interface{}{"error": err.Error()})
	}
	if err := providers.Shutdown(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to shut down observability: %v\n", err)
	}
	if execErr != nil {
		stop()
		os.Exit(1)
	}
}
