package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var verbose bool

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "tlsprobe",
		Short:         "Probe whether a TLS handshake gets through to an endpoint",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			log.SetHandler(cli.New(os.Stderr))
			log.SetLevel(log.InfoLevel)
			if verbose {
				log.SetLevel(log.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose log output")

	root.AddCommand(
		probeCommand(),
		diagnoseCommand(),
		proxyCheckCommand(),
		analyzeCommand(),
		configCommand(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}
