package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/psantana5/kdfcal/internal/calibrate"
	"github.com/psantana5/kdfcal/internal/hostinfo"
	"github.com/psantana5/kdfcal/internal/report"
	"github.com/psantana5/kdfcal/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Recommend scrypt parameters for this machine",
	Long: `Measures salsa20/8 throughput, reads the host's memory and process limits,
and picks scrypt N, r and p so one derivation takes about --max-time and
fits in the memory budget. The budget is --max-mem-frac of the usable memory,
capped at --max-mem bytes when that is non-zero.

Output formats: text, json, yaml, bash.`,
	RunE: runRecommend,
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	def := calibrate.DefaultBudget()
	f := recommendCmd.Flags()
	f.Duration("max-time", def.MaxTime, "time one derivation may take")
	f.Uint64("max-mem", def.MaxMem, "memory cap in bytes, 0 for none")
	f.Float64("max-mem-frac", def.MaxMemFrac, "fraction of usable memory, values above 0.5 are treated as 0.5")

	bindFlags(f, "recommend.", "max-time", "max-mem", "max-mem-frac")
}

func runRecommend(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(append(tableFormats, "bash")...)
	if err != nil {
		return err
	}
	logger := newLogger(cmd)

	budget := calibrate.Budget{
		MaxTime:    viper.GetDuration("recommend.max_time"),
		MaxMem:     viper.GetUint64("recommend.max_mem"),
		MaxMemFrac: viper.GetFloat64("recommend.max_mem_frac"),
	}
	if budget.MaxTime <= 0 {
		return fmt.Errorf("--max-time must be positive, got %s", budget.MaxTime)
	}

	host, err := hostinfo.Detect()
	if err != nil {
		return fmt.Errorf("failed to probe host memory: %w", err)
	}
	logger.Debug("host probed", logging.Fields{
		"cpu":          host.CPUModel,
		"memory_total": host.MemoryTotal,
		"memory_limit": host.MemoryLimit,
	})

	res, _, err := calibrateOnce(cmd.Context(), logger)
	if err != nil {
		return fmt.Errorf("estimation failed: %w", err)
	}

	if _, err := calibrate.Recommend(res, host, budget); err != nil {
		return err
	}
	return printRecommendation(cmd.OutOrStdout(), res, format)
}

func printRecommendation(w io.Writer, res *report.Result, format string) error {
	if isStructured(format) {
		return encode(w, format, res)
	}

	rec := res.Recommendation
	host := res.Host
	p := rec.Params

	if format == "bash" {
		fmt.Fprintln(w, "# scrypt parameters recommended by kdfcal")
		fmt.Fprintf(w, "export SCRYPT_LOGN=%d\n", p.LogN)
		fmt.Fprintf(w, "export SCRYPT_N=%d\n", rec.N)
		fmt.Fprintf(w, "export SCRYPT_R=%d\n", p.R)
		fmt.Fprintf(w, "export SCRYPT_P=%d\n", p.P)
		fmt.Fprintln(w)
		fmt.Fprintf(w, "# measured %s, predicted %.3fs and %s per derivation\n",
			formatRate(res.Measurement.OpsPerSecond), rec.PredictedTime, hostinfo.FormatBytes(rec.MemoryBytes))
		return nil
	}

	fmt.Fprintln(w, "Host:")
	if host != nil {
		fmt.Fprintf(w, "  CPU: %s (%d threads)\n", host.CPUModel, host.CPUThreads)
		fmt.Fprintf(w, "  RAM: %s\n", hostinfo.FormatBytes(host.MemoryTotal))
		if host.MemoryLimit > 0 {
			fmt.Fprintf(w, "  Process limit: %s\n", hostinfo.FormatBytes(host.MemoryLimit))
		}
		fmt.Fprintf(w, "  OS: %s/%s\n", host.OS, host.Arch)
	}
	fmt.Fprintf(w, "  Throughput: %s\n", formatRate(res.Measurement.OpsPerSecond))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Budget:")
	fmt.Fprintf(w, "  Time: %s\n", time.Duration(rec.MaxTime*float64(time.Second)))
	fmt.Fprintf(w, "  Memory: %s\n", hostinfo.FormatBytes(rec.MemoryLimit))
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Recommended scrypt parameters:")
	fmt.Fprintf(w, "  N: %d (log2 %d)\n", rec.N, p.LogN)
	fmt.Fprintf(w, "  r: %d\n", p.R)
	fmt.Fprintf(w, "  p: %d\n", p.P)
	fmt.Fprintf(w, "  Memory per derivation: %s\n", hostinfo.FormatBytes(rec.MemoryBytes))
	fmt.Fprintf(w, "  Predicted time: %.3fs\n", rec.PredictedTime)
	return nil
}
