package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mel2oo/tlsprobe/capture"
)

func analyzeCommand() *cobra.Command {
	var (
		port    int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <pcap>",
		Short: "Decode the TLS handshakes in a pcap file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []capture.Option
			if port != 0 {
				opts = append(opts, capture.WithServerPort(port))
			}
			analyses, err := capture.AnalyzeFile(cmd.Context(), args[0], opts...)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), analyses)
			}
			for i := range analyses {
				if i > 0 {
					fmt.Fprintln(cmd.OutOrStdout())
				}
				printAnalysis(cmd.OutOrStdout(), &analyses[i])
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "Server port, used to tell client from server")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the analyses as JSON")
	return cmd
}

func printAnalysis(w io.Writer, a *capture.Analysis) {
	heading.Fprintf(w, "%s -> %s\n", a.Client, a.Server)
	if a.Tunneled {
		fmt.Fprintln(w, "Tunneled through an HTTP CONNECT proxy")
	}
	fmt.Fprintf(w, "Client sent %d bytes, server sent %d bytes\n", a.ClientBytes, a.ServerBytes)

	if h, ok := a.Hello.Get(); ok {
		sni := h.ServerName
		if sni == "" {
			sni = "(none)"
		}
		fmt.Fprintf(w, "%s Client Hello: version 0x%04x | %d ciphers | %d extensions | SNI: %s\n",
			okMark, h.Version, len(h.CipherSuites), len(h.Extensions), sni)
	} else {
		fmt.Fprintf(w, "%s no Client Hello found\n", failMark)
	}
	if fp, ok := a.Fingerprint.Get(); ok {
		fmt.Fprintf(w, "  JA3: %s\n  %s\n", fp.Hash, fp.String)
	}

	if resp, ok := a.Response.Get(); ok {
		fmt.Fprintf(w, "%s Response\n", mark(a.ServerBytes > 0))
		printResponse(w, resp)
	}
	for _, rec := range a.Records {
		fmt.Fprintf(w, "  Record: %s\n", rec.Summary())
	}
}
