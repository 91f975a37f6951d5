package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/mel2oo/tlsprobe/config"
	"github.com/mel2oo/tlsprobe/hello"
)

func configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage saved target configurations",
	}
	cmd.AddCommand(configSaveCommand(), configListCommand())
	return cmd
}

func configSaveCommand() *cobra.Command {
	var (
		profile   string
		noSNI     bool
		timeout   float64
		proxyHost string
		proxyPort int
		proxyUser string
		proxyPass string
	)

	cmd := &cobra.Command{
		Use:   "save <file> <host> [port]",
		Short: "Write a configuration file",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := hello.ParseProfile(profile)
			if err != nil {
				return err
			}
			c := &config.Config{
				TargetHost: args[1],
				Timeout:    timeout,
				Profile:    p,
				ProxyHost:  proxyHost,
			}
			if len(args) > 2 {
				port, err := strconv.Atoi(args[2])
				if err != nil {
					return errors.Wrapf(err, "invalid port %q", args[2])
				}
				c.TargetPort = port
			}
			if proxyHost != "" {
				c.ProxyPort = proxyPort
				c.ProxyUsername = proxyUser
				c.ProxyPassword = proxyPass
			}
			if noSNI {
				sni := false
				c.SNI = &sni
			}

			c.Default()
			if err := c.Validate(); err != nil {
				return err
			}
			c.Stamp("tlsprobe", time.Now())
			if err := c.Write(args[0]); err != nil {
				return err
			}
			log.Infof("config written to %s", c.Path())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&profile, "profile", "p", hello.Standard.String(), "Client Hello profile: standard, minimal or legacy")
	flags.BoolVar(&noSNI, "no-sni", false, "Do not send Server Name Indication")
	flags.Float64VarP(&timeout, "timeout", "t", config.DefaultTimeout, "Timeout in seconds")
	flags.StringVar(&proxyHost, "proxy-host", "", "HTTP CONNECT proxy host")
	flags.IntVar(&proxyPort, "proxy-port", 8080, "HTTP CONNECT proxy port")
	flags.StringVar(&proxyUser, "proxy-user", "", "Proxy Basic auth username")
	flags.StringVar(&proxyPass, "proxy-pass", "", "Proxy Basic auth password")
	return cmd
}

func configListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list [dir]",
		Short: "List the valid configuration files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			configs, err := config.List(dir)
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no configurations found")
				return nil
			}

			names := maps.Keys(configs)
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, configs[name])
			}
			return nil
		},
	}
}
