package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	once       bool
	force      bool
)

var rootCmd = &cobra.Command{
	Use:   "searchd",
	Short: "Scheduler daemon for automated Radarr/Sonarr searches",
	Long: `searchd polls configured Radarr and Sonarr instances on a
per-instance schedule, triggering missing/cutoff-unmet searches subject to
cooldown, rate-limit, and quiet-hours rules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		err := runScheduler(configPath, once, force)
		var ece *exitCodeError
		if errors.As(err, &ece) {
			fmt.Fprintln(os.Stderr, "error:", ece.err)
			os.Exit(ece.code)
		}
		return err
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("searchd %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: discovered via SEARCHD_CONFIG, ./config.yaml, XDG, /etc/searchd)")
	rootCmd.PersistentFlags().BoolVar(&once, "once", false, "Run every enabled instance exactly once, then exit")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Run every instance immediately on startup, bypassing due times and quiet hours (cooldowns still apply)")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("searchd {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
