package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/diagnose"
)

func proxyCheckCommand() *cobra.Command {
	var (
		flags   targetFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "proxy-check [host] [port]",
		Short: "Check a CONNECT proxy step by step",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := flags.resolve(cmd, args)
			if err != nil {
				return err
			}
			if t.proxy == nil {
				return errors.New("no proxy configured, use --proxy-host or --config")
			}

			report, err := diagnose.Proxy(cmd.Context(), t.host, t.port, *t.proxy, t.opts...)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			printProxyReport(cmd.OutOrStdout(), report)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the report as JSON")
	return cmd
}

func printProxyReport(w io.Writer, r *diagnose.ProxyReport) {
	heading.Fprintf(w, "Proxy %s -> %s:%d\n", r.Proxy, r.Host, r.Port)
	fmt.Fprintf(w, "Authentication: %t\n", r.Authenticated)

	fmt.Fprintf(w, "%s Proxy reachable", mark(r.Reachable))
	if d, ok := r.ConnectTime.Get(); ok {
		fmt.Fprintf(w, " in %.3fs", d.Duration().Seconds())
	}
	fmt.Fprintln(w)

	if r.Reachable {
		fmt.Fprintf(w, "%s CONNECT accepted", mark(r.TunnelEstablished))
		if r.TunnelError != "" {
			fmt.Fprintf(w, ": %s", r.TunnelError)
		}
		fmt.Fprintln(w)
	}

	if res, ok := r.TLS.Get(); ok {
		fmt.Fprintln(w)
		printResult(w, res)
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		heading.Fprintln(w, "Recommendations:")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "  -> %s\n", rec)
		}
	}
}
