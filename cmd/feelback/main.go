package main

import (
	"fmt"
	"os"

	"github.com/cuemby/feelback/pkg/config"
	"github.com/cuemby/feelback/pkg/device"
	"github.com/cuemby/feelback/pkg/log"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "feelback",
	Short: "feelback - frustration-aware feedback and telemetry",
	Long: `feelback infers user frustration from taps, failures and successes,
asks for store reviews only when users are happy, and delivers telemetry
to a collector without losing events across restarts or network failures.

This tool runs a local collector, drives simulated sessions through the SDK
and inspects the SDK's durable state.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debug, _ := cmd.Flags().GetBool("debug")
		log.Init(log.Config{
			Level:      log.LevelFor(debug),
			JSONOutput: false,
			Output:     os.Stderr,
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"feelback version %s\nSDK: %s\nCommit: %s\nBuilt: %s\n",
		Version, device.SDKVersion, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (YAML, or TOML with a .toml extension)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("feelback %s (sdk %s, commit %s, built %s)\n", Version, device.SDKVersion, Commit, BuildTime)
	},
}

// loadConfig reads --config if given, then applies FEELBACK_* overrides
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfg.ApplyEnv()

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		cfg.DebugLogging = true
	}
	return cfg, nil
}
