package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/alanwang67/activation_registry/client"
	"github.com/alanwang67/activation_registry/workload"
)

func newBenchCmd() *cobra.Command {
	g := workload.NewWorkloadGenerator()
	var resultsDir string

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a generated workload against a daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			instrs, err := g.Generate()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			dialCtx, cancel := context.WithTimeout(ctx, timeout)
			c, err := dial(dialCtx)
			cancel()
			if err != nil {
				return err
			}
			defer c.Close()

			log.Debugf("starting workload of %d operations", len(instrs))
			report, err := c.Run(ctx, instrs)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), report)

			if resultsDir == "" {
				return nil
			}
			if err := os.MkdirAll(resultsDir, 0o755); err != nil {
				return err
			}
			return writeCharts(report, resultsDir)
		},
	}
	cmd.Flags().IntVar(&g.OperationCount, "ops", g.OperationCount, "Number of operations")
	cmd.Flags().Float64Var(&g.ReadPercentage, "read", g.ReadPercentage, "Share of read operations")
	cmd.Flags().Float64Var(&g.ZipfianS, "zipf-s", g.ZipfianS, "Skew of name popularity")
	cmd.Flags().Uint64Var(&g.ZipfianV, "names", g.ZipfianV, "Distinct application names")
	cmd.Flags().Int64Var(&g.Seed, "seed", g.Seed, "Workload seed")
	cmd.Flags().DurationVar(&g.InstructionDelay, "delay", 0, "Pause after each operation")
	cmd.Flags().StringVar(&resultsDir, "charts", "", "Directory for latency.png and throughput.png")
	return cmd
}

func printSummary(w io.Writer, r *client.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "op\tcount\terrors\tmean\tp50\tp99")
	summary := r.Summary()
	for _, op := range workload.Ops {
		st, ok := summary[op]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%v\t%v\n", op, st.Count, st.Errors, st.Mean, st.P50, st.P99)
	}
	fmt.Fprintf(tw, "total\t%d\t\t%v elapsed\t%.0f ops/s\t\n", len(r.Results), r.Elapsed, r.Throughput())
	tw.Flush()
}

// writeCharts plots per-operation latency and running throughput.
func writeCharts(r *client.Report, dir string) error {
	latency := make(plotter.XYs, len(r.Results))
	throughput := make(plotter.XYs, len(r.Results))
	for i, res := range r.Results {
		latency[i].X = float64(i + 1)
		latency[i].Y = float64(res.Latency.Microseconds()) / 1000

		done := res.Start + res.Latency
		throughput[i].X = done.Seconds()
		if done > 0 {
			throughput[i].Y = float64(i+1) / done.Seconds()
		}
	}

	if err := saveLine("Latency", "Operation", "Latency (ms)", latency, filepath.Join(dir, "latency.png")); err != nil {
		return err
	}
	return saveLine("Throughput", "Time (s)", "Throughput (operations/s)", throughput, filepath.Join(dir, "throughput.png"))
}

func saveLine(title, xLabel, yLabel string, pts plotter.XYs, path string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("chart %s: %w", title, err)
	}
	p.Add(line)
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("chart %s: %w", title, err)
	}
	return nil
}
