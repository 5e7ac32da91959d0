// Package cmd implements the newsharvest command-line interface.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/newsharvest/cmd/common"
	"github.com/jonesrussell/newsharvest/cmd/crawl"
	"github.com/jonesrussell/newsharvest/cmd/records"
	"github.com/jonesrussell/newsharvest/cmd/sites"
	"github.com/jonesrussell/newsharvest/internal/config"
)

// Version is set at build time with -ldflags "-X github.com/jonesrussell/newsharvest/cmd.Version=..."
var Version = "dev"

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// Debug enables debug logging for all commands
	Debug bool

	rootCmd = &cobra.Command{
		Use:   "newsharvest",
		Short: "Crawl news listing pages into article records",
		Long: `newsharvest crawls the listing pages configured for a news site, follows
every article link it finds and writes one record per article, together with
a statistics file describing the run.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command. SIGINT and SIGTERM cancel the run context so
// an interrupted crawl still flushes its statistics.
func Execute() error {
	// Load .env early so APP_DEBUG and friends are visible to viper
	_ = godotenv.Load()

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		common.KeyConfig,
		config.DefaultConfigPath,
		"config file",
	)
	rootCmd.PersistentFlags().BoolVar(&Debug, common.KeyDebug, false, "enable debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "newsharvest version %s\n", Version)
		},
	})

	rootCmd.AddCommand(crawl.Command())
	rootCmd.AddCommand(sites.Command())
	rootCmd.AddCommand(records.Command())
}

// initConfig binds the persistent flags and their environment variables.
func initConfig() error {
	if err := viper.BindPFlag(common.KeyConfig, rootCmd.PersistentFlags().Lookup(common.KeyConfig)); err != nil {
		return fmt.Errorf("failed to bind config flag: %w", err)
	}
	if err := viper.BindPFlag(common.KeyDebug, rootCmd.PersistentFlags().Lookup(common.KeyDebug)); err != nil {
		return fmt.Errorf("failed to bind debug flag: %w", err)
	}
	if err := viper.BindEnv(common.KeyConfig, "NEWSHARVEST_CONFIG"); err != nil {
		return fmt.Errorf("failed to bind NEWSHARVEST_CONFIG: %w", err)
	}
	if err := viper.BindEnv(common.KeyDebug, "APP_DEBUG"); err != nil {
		return fmt.Errorf("failed to bind APP_DEBUG: %w", err)
	}
	if err := viper.BindEnv(common.KeyLogLevel, "LOG_LEVEL"); err != nil {
		return fmt.Errorf("failed to bind LOG_LEVEL: %w", err)
	}
	return nil
}
