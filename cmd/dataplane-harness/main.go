package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev" // set by build flags
)

var rootCmd = &cobra.Command{
	Use:   "dataplane-harness",
	Short: "Dataplane reboot-disruption test harness",
	Long: `dataplane-harness drives a single reboot-disruption test against a
device under test: it probes the ASIC and CPU dataplanes, reboots the
device, reconstructs the outage window, and watches neighbor devices'
control-plane state across the event.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
