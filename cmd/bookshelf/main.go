package main

import (
	"fmt"
	"os"

	"github.com/codefionn/bookshelf/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	configFile string
	portFlag   int
	dataDir    string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "bookshelf",
	Short: "Social reading tracker served over a line-oriented TCP protocol",
	Long: `Bookshelf lets clients connected over TCP search the Google Books catalog,
keep named reading lists, follow friends and share recommendations.

Use 'bookshelf serve' to start the server and 'bookshelf client' to talk to it.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath(), "Configuration file (JSON)")
	rootCmd.PersistentFlags().IntVar(&portFlag, "port", 0, "TCP port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Snapshot directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error, none (overrides config)")
}

// loadConfig reads the config file, then the environment, then the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = portFlag
	}
	if flags.Changed("data-dir") {
		cfg.Storage.DataDir = dataDir
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
