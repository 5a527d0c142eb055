package cmd

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/psantana5/kdfcal/pkg/precisetime"
	"github.com/spf13/cobra"
)

var clockCmd = &cobra.Command{
	Use:   "clock",
	Short: "Show the clock used for measurements",
	Long: `Probes the platform clocks once and prints the source kdfcal measures with,
whether it is monotonic, and its resolution. A resolution marked as estimated
comes from the C library's CLOCKS_PER_SEC rather than from the clock itself.`,
	RunE: runClock,
}

func init() {
	rootCmd.AddCommand(clockCmd)
}

func runClock(cmd *cobra.Command, args []string) error {
	format, err := outputFormat(tableFormats...)
	if err != nil {
		return err
	}

	clock, err := precisetime.Default()
	if err != nil {
		return fmt.Errorf("no usable clock: %w", err)
	}
	info, err := clock.Describe()
	if err != nil {
		return fmt.Errorf("failed to describe clock: %w", err)
	}
	return printClock(cmd.OutOrStdout(), info, format)
}

func printClock(w io.Writer, info precisetime.Info, format string) error {
	if isStructured(format) {
		return encode(w, format, info)
	}

	resolution := precisetime.Duration(info.ResolutionSeconds).String()
	if info.ResolutionEstimated {
		resolution += " (estimated)"
	}

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	table.Append([]string{"Source", info.Source})
	table.Append([]string{"Kind", info.Kind})
	table.Append([]string{"Monotonic", strconv.FormatBool(info.Monotonic)})
	table.Append([]string{"Resolution", resolution})
	return table.Render()
}
