package main

import (
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/config"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/proxy"
)

// targetFlags are shared by every command that talks to a target.
type targetFlags struct {
	configName string
	profile    string
	noSNI      bool
	serverName string
	timeout    time.Duration

	proxyHost string
	proxyPort int
	proxyUser string
	proxyPass string
}

func (f *targetFlags) register(cmd *cobra.Command, withProfile bool) {
	flags := cmd.Flags()
	flags.StringVarP(&f.configName, "config", "c", "", "Read target and proxy settings from a config file")
	flags.DurationVarP(&f.timeout, "timeout", "t", tlsprobe.DefaultTimeout, "Timeout for each network operation")
	flags.StringVar(&f.proxyHost, "proxy-host", "", "HTTP CONNECT proxy host")
	flags.IntVar(&f.proxyPort, "proxy-port", 8080, "HTTP CONNECT proxy port")
	flags.StringVar(&f.proxyUser, "proxy-user", "", "Proxy Basic auth username")
	flags.StringVar(&f.proxyPass, "proxy-pass", "", "Proxy Basic auth password")
	if withProfile {
		flags.StringVarP(&f.profile, "profile", "p", hello.Standard.String(), "Client Hello profile: standard, minimal or legacy")
		flags.BoolVar(&f.noSNI, "no-sni", false, "Do not send Server Name Indication")
		flags.StringVar(&f.serverName, "server-name", "", "Send this SNI instead of the target host")
	}
}

// target resolves host, port and probe options from the arguments, the
// config file and the flags, in increasing order of precedence.
type target struct {
	host  string
	port  int
	proxy *proxy.Config
	opts  []tlsprobe.Option
}

func (f *targetFlags) resolve(cmd *cobra.Command, args []string) (*target, error) {
	t := &target{port: 443}
	flags := cmd.Flags()

	if f.configName != "" {
		c, err := config.Load(f.configName)
		if err != nil {
			return nil, err
		}
		log.Debugf("using config %s", c.Path())
		t.host, t.port = c.TargetHost, c.TargetPort
		if p, ok := c.Proxy().Get(); ok {
			t.proxy = &p
		}
		t.opts = append(t.opts, c.Options()...)
	}

	if len(args) > 0 {
		t.host = args[0]
	}
	if len(args) > 1 {
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, errors.Wrapf(err, "invalid port %q", args[1])
		}
		t.port = port
	}
	if t.host == "" {
		return nil, errors.New("missing target host")
	}

	if f.configName == "" || flags.Changed("timeout") {
		t.opts = append(t.opts, tlsprobe.WithTimeout(f.timeout))
	}
	if flags.Lookup("profile") != nil && (f.configName == "" || flags.Changed("profile")) {
		p, err := hello.ParseProfile(f.profile)
		if err != nil {
			return nil, err
		}
		t.opts = append(t.opts, tlsprobe.WithProfile(p))
	}
	if f.noSNI {
		t.opts = append(t.opts, tlsprobe.WithSNI(false))
	}
	if f.serverName != "" {
		t.opts = append(t.opts, tlsprobe.WithServerName(f.serverName))
	}

	if f.proxyHost != "" {
		t.proxy = &proxy.Config{
			Host:     f.proxyHost,
			Port:     f.proxyPort,
			Username: f.proxyUser,
			Password: f.proxyPass,
		}
	}
	if t.proxy != nil {
		t.opts = append(t.opts, tlsprobe.WithProxy(*t.proxy))
	}

	t.opts = append(t.opts, tlsprobe.WithLogger(log.Log))
	return t, nil
}
