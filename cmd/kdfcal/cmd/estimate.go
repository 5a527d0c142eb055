package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/kdfcal/internal/calibrate"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/cpuperf"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/psantana5/kdfcal/pkg/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Measure salsa20/8 throughput on this machine",
	Long: `Runs scrypt with N=128, r=1, p=1 in a busy loop until the measurement window
exceeds --precision clock resolutions, and prints the achieved rate in
salsa20/8 cores per second. Clock read failures are retried up to --retries
times; any other failure ends the run.`,
	RunE: runEstimate,
}

func init() {
	rootCmd.AddCommand(estimateCmd)

	f := estimateCmd.Flags()
	f.Int("precision", cpuperf.DefaultPrecision, "clock resolutions the measurement window must exceed")
	f.Int("retries", 2, "retries after a clock read failure")
	f.String("metrics-file", "", "write Prometheus metrics to this file (node_exporter textfile format)")

	bindFlags(f, "estimate.", "precision", "retries", "metrics-file")
}

func runEstimate(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(tableFormats...)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()

	res, collector, err := calibrateOnce(ctx, logger)
	if res == nil {
		return err
	}

	if path := viper.GetString("estimate.metrics_file"); path != "" {
		if werr := report.WriteTextfile(path, collector.Registry()); werr != nil {
			logger.Error("failed to write metrics file", logging.Fields{"path": path, "error": werr.Error()})
		} else {
			logger.Debug("metrics file written", logging.Fields{"path": path})
		}
	}
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	return printEstimate(cmd.OutOrStdout(), res, format)
}

// calibrateOnce runs one traced, metered calibration on the process clock.
// The result is nil only if no runner could be built.
func calibrateOnce(ctx context.Context, logger *logging.Logger) (*report.Result, *metrics.Collector, error) {
	provider, err := startTracing(ctx, logger)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(sctx); err != nil {
			logger.Warn("failed to flush traces", logging.Fields{"error": err.Error()})
		}
	}()

	runner, err := calibrate.NewRunner(calibrationConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	collector := metrics.NewCollector(runner.Name)
	collector.SetClock(runner.ClockInfo)
	runner.Metrics = collector
	runner.Tracer = provider

	res, err := runner.Run(ctx)
	res.LogSummary(logger)
	return res, collector, err
}

func printEstimate(w io.Writer, res *report.Result, format string) error {
	if isStructured(format) {
		return encode(w, format, res)
	}

	m := res.Measurement
	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	table.Append([]string{"Workload", res.Workload})
	table.Append([]string{"Throughput", formatRate(m.OpsPerSecond)})
	table.Append([]string{"Operations", strconv.FormatUint(m.Operations, 10)})
	table.Append([]string{"Window", fmt.Sprintf("%s (%d calls)", m.Elapsed, m.MeasureCalls)})
	table.Append([]string{"Resolution", fmt.Sprintf("%s x %d", m.Resolution, m.Precision)})
	if res.Clock != nil {
		table.Append([]string{"Clock", res.Clock.Source})
	}
	table.Append([]string{"Run ID", res.ID})
	return table.Render()
}
