package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath  string
	host        string
	port        int
	allowPublic bool
)

var rootCmd = &cobra.Command{
	Use:   "searchd-webui",
	Short: "Web dashboard and control API for searchd",
	Long: `searchd-webui serves a password-protected dashboard and JSON API for
inspecting and controlling a searchd scheduler: run history, per-instance
settings, manual run triggers, and the autorun switch.

Binds to localhost only unless --allow-public is set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runWebUI(configPath, host, port, allowPublic)
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
		fmt.Printf("searchd-webui %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: discovered via SEARCHD_CONFIG, ./config.yaml, XDG, /etc/searchd)")
	rootCmd.PersistentFlags().StringVar(&host, "host", "127.0.0.1", "Address to bind")
	rootCmd.PersistentFlags().IntVar(&port, "port", 8788, "Port to bind")
	rootCmd.PersistentFlags().BoolVar(&allowPublic, "allow-public", false, "Allow binding to a non-loopback address")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("searchd-webui {{.Version}}\n")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	Execute()
}
