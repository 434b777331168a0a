// Otaportal is the captive-portal and OTA-update daemon for headless
// network devices.
//
// It brings the device's radio up in access-point, station, or dual mode,
// serves the provisioning portal over HTTP, streams scan results and
// debug output over a shared WebSocket channel, and announces itself on
// the local network over mDNS once a station address is held.
//
// Usage:
//
//	otaportal serve [flags]
//
// See 'otaportal serve --help' for available options.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/otaportal/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "otaportal",
	Short: "Captive Portal and OTA Update Daemon",
	Long: `A provisioning daemon for headless network devices.

Serves the captive portal used to hand the device network credentials,
accepts over-the-air firmware uploads, and manages the station link with
automatic reconnection once the device is provisioned.`,
	Version: version.Version,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("otaportal %s (commit: %s)\n", version.Version, version.Commit)
	},
}
