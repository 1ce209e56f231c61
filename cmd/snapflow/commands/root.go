package commands

import (
	"fmt"
	"os"

	"github.com/bryanchriswhite/snapflow/internal/app"
	"github.com/bryanchriswhite/snapflow/internal/config"
	"github.com/bryanchriswhite/snapflow/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "snapflow",
		Short: "snapflow - screen and window capture pipelines",
		Long: `snapflow captures the screen, a region or a single window and sends the
result through configurable processors to one or more destinations.

Features:
  • Multi-monitor aware screen and region capture
  • Compositor window capture with real transparency
  • Title fixes, screen selection and overlay stamping
  • File, live MJPEG stream and work item tracker destinations
  • REST API with a live capture event feed`,
		SilenceUsage:      true,
		PersistentPreRunE: initLogging,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/snapflow/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("platform", "", "native backend (x11, win32, virtual; default from config)")
	rootCmd.PersistentFlags().Bool("pretty", true, "human readable log output")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("platform", rootCmd.PersistentFlags().Lookup("platform"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.SetEnvPrefix("snapflow")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

func initLogging(cmd *cobra.Command, args []string) error {
	level := viper.GetString("log_level")
	if level == "" {
		if cfg, err := config.NewManager(GetConfigFile()); err == nil {
			level = cfg.GetLogLevel()
		}
	}
	logger.Init(level, viper.GetBool("pretty"))
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// openApp loads the config and connects to the selected platform.
func openApp() (*app.App, error) {
	return app.Open(GetConfigFile(), viper.GetString("platform"))
}
