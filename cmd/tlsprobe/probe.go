package main

import (

	"github.com/apex/log"
	"github.com/spf13/cobra"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/capture"
)

func probeCommand() *cobra.Command {
	var (
		flags    targetFlags
		jsonOut  bool
		pcapPath string
	)

	cmd := &cobra.Command{
		Use:   "probe [host] [port]",
		Short: "Send one Client Hello and classify the response",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := flags.resolve(cmd, args)
			if err != nil {
				return err
			}
			p, err := tlsprobe.NewProber(t.host, t.port, t.opts...)
			if err != nil {
				return err
			}

			res := p.Probe(cmd.Context())

			if pcapPath != "" {
				if err := capture.WriteFile(pcapPath, capture.FromResult(res)); err != nil {
					return err
				}
				log.Infof("exchange written to %s", pcapPath)
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	flags.register(cmd, true)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	cmd.Flags().StringVar(&pcapPath, "pcap", "", "Write the exchange to a pcap file")
	return cmd
}
