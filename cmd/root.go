package cmd

import (
	"fmt"
	"os"

	"user-api/internal/config"
	"user-api/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "user-api",
	Short: "User management REST API",
	Long: `A REST API for managing users built with Go.
This system provides:
- CRUD endpoints under /api/users with JSON and XML payloads
- Paged listings with an X-Pagination header
- In-memory or PostgreSQL storage with an optional Redis cache
Example usage:
  user-api server --port 8080    # Start the HTTP server
  user-api migrate up            # Apply database migrations`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg := config.Get()
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		if err := logger.InitWithConfig(level, cfg.Log.Format, cfg.Log.Output, cfg.Log.FilePath); err != nil {
			logger.Init(verbose)
			logger.Warn("Failed to initialize logger with config, using fallback: %v", err)
		}
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.user-api.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.AddConfigPath("./configs")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".user-api")
	}

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	config.Init()
}
