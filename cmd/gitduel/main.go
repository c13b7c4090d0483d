// Command gitduel compares two GitHub profiles and narrates the result.
//
// Usage:
//
//	gitduel [--config PATH] <command> [args]
//
// Commands:
//
//	serve     - run the HTTP API
//	compare   - compare two users against a running API (TUI or --plain)
//	encrypt   - encrypt a secret for the config file
//
// Configuration:
//
//	Settings are read from ./config.yaml unless --config is given.
//	GITDUEL_* environment variables override the file, and
//	GITDUEL_CONFIG_KEY decrypts "enc:" secrets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"gitduel/internal/infra/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "gitduel",
	Short: "Compare GitHub profiles with AI narration",
	Long: `gitduel fetches two GitHub profiles, compares them side by side, and
streams an AI-written comparison or roast of the pair.

Run 'gitduel serve' to start the API, then 'gitduel compare <user1> <user2>'.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd, compareCmd, encryptCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
