package main

import (
	"fmt"
	"syscall"

	"github.com/codefionn/bookshelf/internal/pidfile"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop a running server via its pid file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		pid, err := pidfile.New(cfg.PidFile).Signal(syscall.SIGTERM)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGTERM to bookshelf (pid %d)\n", pid)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "bookshelf", version)
	},
}

func init() {
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(versionCmd)
}
