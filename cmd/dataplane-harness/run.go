package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aristanetworks/dataplane-harness/pkg/config"
	"github.com/aristanetworks/dataplane-harness/pkg/localfw"
	"github.com/aristanetworks/dataplane-harness/pkg/metrics"
	"github.com/aristanetworks/dataplane-harness/pkg/orchestrator"
	"github.com/aristanetworks/dataplane-harness/pkg/report"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Execute one reboot-disruption test",
	Long:  `Loads the harness config, runs a single reboot-disruption test against the configured DUT, and reports the verdict.`,
	RunE:  runHarness,
}

func init() {
	runCmd.Flags().String("format", "text", "output format (text, json)")
	runCmd.Flags().String("report-out", "", "write the JSON report to this path in addition to stdout")
	runCmd.Flags().String("capture-iface", "", "host interface localfw uses for capture and the ARP responder")
}

func runHarness(cmd *cobra.Command, args []string) error {
	outputFormat, _ := cmd.Flags().GetString("format")
	reportOut, _ := cmd.Flags().GetString("report-out")
	captureIface, _ := cmd.Flags().GetString("capture-iface")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logLevel := report.ParseLevel(cfg.Framework.LogLevel)
	if verbose {
		logLevel = zerolog.DebugLevel
	}
	logger := report.NewLogger(report.LoggerConfig{
		Level:  logLevel,
		Format: report.LogFormat(cfg.Framework.LogFormat),
		Output: os.Stdout,
	})
	logger.Info().Str("version", version).Msg("dataplane-harness starting")

	topo, err := config.LoadPortTopology(cfg)
	if err != nil {
		return fmt.Errorf("failed to load port topology: %w", err)
	}

	if captureIface == "" {
		return fmt.Errorf("--capture-iface is required for the local framework stub")
	}
	fw := localfw.New(localfw.Config{Interfaces: interfaceMapFromTopology(topo, captureIface)})

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		metricsCtx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			if err := reg.Serve(metricsCtx, cfg.Metrics.Listen); err != nil {
				logger.Warn().Err(err).Msg("metrics server stopped")
			}
		}()
	}

	orch := orchestrator.New(cfg, topo, fw, logger)

	ctx := context.Background()
	result, err := orch.Execute(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	switch report.LogFormat(outputFormat) {
	case report.LogFormatJSON:
		if err := report.WriteJSON(os.Stdout, result); err != nil {
			return fmt.Errorf("failed to write json report: %w", err)
		}
	default:
		fmt.Println(report.FormatText(result))
	}

	if reportOut != "" {
		f, err := os.Create(reportOut)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", reportOut, err)
		}
		defer f.Close()
		if err := report.WriteJSON(f, result); err != nil {
			return fmt.Errorf("failed to write report to %s: %w", reportOut, err)
		}
	}

	if !result.Success {
		return fmt.Errorf("reboot-disruption test did not meet its verdict thresholds")
	}
	logger.Info().Msg("reboot-disruption test passed")
	return nil
}

// interfaceMapFromTopology builds localfw's logical-port-to-interface map:
// every port topology index maps to the single capture interface, since a
// development machine running localfw has no real multi-port fanout. The
// capture/ARP-responder sentinel port also maps to it.
func interfaceMapFromTopology(topo *config.PortTopology, captureIface string) map[int]string {
	out := map[int]string{-1: captureIface}
	for _, idx := range topo.Ports {
		out[idx] = captureIface
	}
	return out
}
