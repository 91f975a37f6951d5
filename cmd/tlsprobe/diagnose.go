package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/diagnose"
)

func diagnoseCommand() *cobra.Command {
	var (
		flags   targetFlags
		jsonOut bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "diagnose [host] [port]",
		Short: "Run the firewall diagnostic suite against a target",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := flags.resolve(cmd, args)
			if err != nil {
				return err
			}

			runner := &diagnose.Runner{
				Host:    t.host,
				Port:    t.port,
				Options: t.opts,
				Logger:  log.Log,
			}
			report, err := runner.Run(cmd.Context(), diagnose.Suite())
			if report == nil {
				return err
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}

			if output == "" && !jsonOut {
				output = fmt.Sprintf("firewall_diagnostic_%s_%d.json",
					strings.ReplaceAll(t.host, ".", "_"), time.Now().Unix())
			}
			if output != "" {
				if err := writeJSONFile(output, report); err != nil {
					return err
				}
				log.Infof("report written to %s", output)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printReport(cmd.OutOrStdout(), report)
			return err
		},
	}

	flags.register(cmd, false)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the JSON report to this file")
	return cmd
}

var severityColor = map[diagnose.Severity]*color.Color{
	diagnose.SeverityHigh:   color.New(color.FgRed, color.Bold),
	diagnose.SeverityMedium: color.New(color.FgYellow, color.Bold),
	diagnose.SeverityLow:    color.New(color.FgGreen, color.Bold),
}

func printReport(w io.Writer, r *diagnose.Report) {
	a := r.Analysis

	heading.Fprintf(w, "Firewall diagnostic for %s:%d (%s)\n\n", r.Host, r.Port, r.ID)
	for _, t := range a.Tests {
		fmt.Fprintf(w, "%s\n  TCP: %.0f%% | Hello: %.0f%% | Response: %.0f%% (%d attempts)\n",
			t.Name, t.TCPRate*100, t.HelloRate*100, t.ResponseRate*100, t.Attempts)
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "Firewall indicators:")
	if len(a.Indicators) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, i := range a.Indicators {
		severityColor[i.Severity].Fprintf(w, "  [%s] %s\n", i.Severity, i.Summary)
		for _, d := range i.Details {
			fmt.Fprintf(w, "    - %s\n", d)
		}
	}

	if sizes, ok := a.HelloSizes.Get(); ok {
		fmt.Fprintf(w, "\nClient Hello sizes: %d to %d bytes", sizes.Min, sizes.Max)
		if sizes.Significant {
			fmt.Fprint(w, " (large spread, may matter to the firewall)")
		}
		fmt.Fprintln(w)
	}
	if timing, ok := a.ConnectTime.Get(); ok {
		fmt.Fprintf(w, "TCP connect: mean %.1fms | median %.1fms | p95 %.1fms | stddev %.1fms (%d samples)\n",
			ms(timing.Mean.Duration()), ms(timing.Median.Duration()), ms(timing.P95.Duration()),
			ms(timing.StdDev.Duration()), timing.Samples)
	}

	fmt.Fprintln(w)
	heading.Fprintln(w, "Recommendations:")
	if len(a.Recommendations) == 0 {
		fmt.Fprintln(w, "  none")
	}
	for _, rec := range a.Recommendations {
		fmt.Fprintf(w, "  %s %s\n", okMark, rec.Summary)
		for _, s := range rec.Steps {
			fmt.Fprintf(w, "    -> %s\n", s)
		}
	}
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
