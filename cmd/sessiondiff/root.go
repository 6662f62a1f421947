package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/godsownf/sessiondiff/pkg/config"
	"github.com/godsownf/sessiondiff/pkg/observability"
)

const version = "0.1.0"

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "sessiondiff",
	Short:   "Concurrent browser-session orchestrator with network capture and diff",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The diff subcommand works offline and does not need a target URL.
		if cmd.Name() == "diff" {
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "sessiondiff",
			})
			return nil
		}

		v := viper.GetViper()
		config.SetDefaults(v)
		v.SetEnvPrefix("SESSIONDIFF")
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
			if err := v.ReadInConfig(); err != nil {
				return fmt.Errorf("reading config file: %w", err)
			}
		} else {
			v.AddConfigPath(".")
			v.SetConfigName("config")
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return fmt.Errorf("reading config file: %w", err)
				}
			}
		}

		loaded, err := config.Load(v)
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{
				Level: "info", Format: "console", ServiceName: "sessiondiff",
			})
			return fmt.Errorf("invalid configuration: %w", err)
		}
		cfg = loaded

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Info("Starting sessiondiff", zap.String("version", version))
		return nil
	},
}

// Execute runs the root command with the signal-cancelled context.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newDiffCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if ctx.Err() == nil {
			observability.GetLogger().Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
}
