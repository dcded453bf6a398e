package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/rbmap/pkg/config"
)

const (
	chartWidth  = "100%"
	chartHeight = "500px"
	lineWidth   = 2
)

func (sc *StressCommand) report(cmd *cobra.Command, result *stressResult, params config.StressConfig, runErr error) error {
	out := cmd.OutOrStdout()

	err := writeSummary(out, result, params)
	if err != nil {
		return err
	}

	if runErr != nil {
		painter(cmd, color.FgRed, color.Bold).Fprintf(out, "FAIL %v\n", runErr)
	} else {
		painter(cmd, color.FgGreen, color.Bold).Fprintf(out, "PASS %s operations\n", humanize.Comma(int64(result.Operations)))
	}

	if sc.plotPath == "" {
		return nil
	}

	err = writePlot(sc.plotPath, result.Samples)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "height chart written to %s\n", sc.plotPath)

	return nil
}

func writeSummary(w io.Writer, result *stressResult, params config.StressConfig) error {
	count := func(n int64) string { return humanize.Comma(n) }

	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("rbmap stress (seed " + strconv.FormatInt(params.Seed, 10) + ")")
	tbl.AppendHeader(table.Row{"Metric", "Value"})
	tbl.AppendRows([]table.Row{
		{"Operations", count(int64(result.Operations))},
		{"Sets", count(int64(result.Sets))},
		{"Deletes", count(int64(result.Deletes))},
		{"Checks", count(int64(result.Checks))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Keys", count(int64(result.Len))},
		{"Height", result.Height},
		{"Black height", result.BlackHeight},
		{"Height bound", fmt.Sprintf("%.2f", heightBound(result.Len))},
	})
	tbl.AppendSeparator()
	tbl.AppendRows([]table.Row{
		{"Inserts", count(result.Stats.Inserts)},
		{"Updates", count(result.Stats.Updates)},
		{"Removals", count(result.Stats.Deletes)},
		{"Rotations", count(result.Stats.Rotations)},
		{"Insert fixups", count(result.Stats.InsertFixups)},
		{"Delete fixups", count(result.Stats.DeleteFixups)},
		{"Black leaf removals", count(result.Stats.Deficits)},
	})
	tbl.AppendFooter(table.Row{"Duration", result.Duration.Round(time.Microsecond).String()})

	_, err := fmt.Fprintln(w, tbl.Render())
	if err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	return nil
}

func writePlot(path string, samples []stressSample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	err = buildHeightChart(samples).Render(f)
	if err != nil {
		_ = f.Close()

		return fmt.Errorf("render plot: %w", err)
	}

	err = f.Close()
	if err != nil {
		return fmt.Errorf("close plot: %w", err)
	}

	return nil
}

func buildHeightChart(samples []stressSample) *charts.Line {
	labels := make([]string, len(samples))
	heights := make([]opts.LineData, len(samples))
	blackHeights := make([]opts.LineData, len(samples))
	bounds := make([]opts.LineData, len(samples))

	for i, sample := range samples {
		labels[i] = strconv.Itoa(sample.Operation)
		heights[i] = opts.LineData{Value: sample.Height}
		blackHeights[i] = opts.LineData{Value: sample.BlackHeight}
		bounds[i] = opts.LineData{Value: fmt.Sprintf("%.2f", sample.Bound)}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: chartHeight}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Tree height over time",
			Subtitle: "Height stays under 2*log2(n+1); black height grows with log n.",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Operation"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Levels"}),
	)
	line.SetXAxis(labels)
	line.AddSeries("Height", heights, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))
	line.AddSeries("Black height", blackHeights, charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth}))
	line.AddSeries("2*log2(n+1)", bounds,
		charts.WithLineStyleOpts(opts.LineStyle{Width: lineWidth, Type: "dashed"}),
	)

	return line
}
