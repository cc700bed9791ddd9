package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	prefsPath  string
)

var rootCmd = &cobra.Command{
	Use:   "agriscan",
	Short: "On-device soil-water monitor",
	Long: `AgriScan samples a capacitive soil-moisture probe, learns the site's
field capacity and refill point from observed wetting and drainage
episodes, and serves the current irrigation status over a local HTTP API.

Everything runs offline on the device; no cloud connection is required.`,
	Version: "1.0.0",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "agriscan.yaml", "engine config file")
	rootCmd.PersistentFlags().StringVar(&prefsPath, "preferences", "preferences.json", "operator preferences file")
}
