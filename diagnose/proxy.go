package diagnose

import (
	"context"
	"time"

	"github.com/pkg/errors"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/proxy"
)

// ProxyReport is the outcome of a step-by-step proxy check.
type ProxyReport struct {
	ID            gid.DiagnosticID `json:"id"`
	Host          string           `json:"host"`
	Port          int              `json:"port"`
	Proxy         string           `json:"proxy"`
	Authenticated bool             `json:"authenticated"`

	// TCP to the proxy.
	Reachable   bool                                      `json:"reachable"`
	ConnectTime optionals.Optional[tlsprobe.Milliseconds] `json:"connect_time_ms"`

	// A bare CONNECT on the first connection.
	TunnelEstablished bool   `json:"tunnel_established"`
	TunnelError       string `json:"tunnel_error,omitempty"`

	// A full probe through the proxy. Absent when the proxy was unreachable.
	TLS optionals.Optional[*tlsprobe.Result] `json:"tls"`

	Recommendations []string `json:"recommendations"`
}

// Proxy checks in order that the proxy accepts TCP, that it grants a CONNECT
// tunnel to the target and that a TLS handshake gets through it.
func Proxy(ctx context.Context, host string, port int, cfg proxy.Config, opt ...tlsprobe.Option) (*ProxyReport, error) {
	opt = append(append([]tlsprobe.Option(nil), opt...), tlsprobe.WithProxy(cfg))
	prober, err := tlsprobe.NewProber(host, port, opt...)
	if err != nil {
		return nil, errors.Wrap(err, "invalid proxy diagnostic configuration")
	}
	// Defaults are already filled in by NewProber.
	opts := prober.Options()
	logger, clock := opts.Logger, opts.Clock

	report := &ProxyReport{
		ID:            gid.GenerateDiagnosticID(),
		Host:          host,
		Port:          port,
		Proxy:         cfg.Address(),
		Authenticated: cfg.Credentials() != nil,
	}

	logger.Infof("1. checking TCP connectivity to proxy %s", cfg.Redacted())
	dialCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	start := clock.Now()
	conn, err := opts.Dialer.DialContext(dialCtx, "tcp", cfg.Address())
	cancel()
	if err != nil {
		logger.Warnf("proxy unreachable: %s", err)
		report.Recommendations = []string{"verify that the proxy is reachable and the port is correct"}
		return report, nil
	}
	report.Reachable = true
	report.ConnectTime = optionals.Some(tlsprobe.Milliseconds(clock.Now().Sub(start)))
	logger.Infof("connected to proxy in %.3fs", report.ConnectTime.GetOrDefault(0).Duration().Seconds())

	logger.Info("2. checking CONNECT")
	conn.SetDeadline(time.Now().Add(opts.Timeout))
	t := &proxy.Tunnel{Logger: logger, Now: clock.Now}
	if _, err := t.Establish(conn, host, port, cfg.Credentials()); err != nil {
		report.TunnelError = err.Error()
		logger.Warnf("CONNECT failed: %s", err)
	} else {
		report.TunnelEstablished = true
	}
	conn.Close()

	logger.Info("3. checking TLS handshake through the proxy")
	res := prober.Probe(ctx)
	report.TLS = optionals.Some(res)
	report.Recommendations = proxyRecommendations(res)
	return report, nil
}

func proxyRecommendations(res *tlsprobe.Result) []string {
	var out []string
	if !res.TunnelEstablished {
		out = append(out,
			"check the proxy authentication credentials",
			"confirm that the proxy supports the CONNECT method",
		)
	}
	if res.HelloSent && res.ResponseSize == 0 {
		out = append(out,
			"the proxy may be blocking TLS traffic",
			"check the proxy firewall policies",
		)
	}
	if resp, ok := res.Response.Get(); ok && resp.Kind == classify.KindHTTPResponse {
		out = append(out,
			"the proxy answered with HTTP and may be intercepting TLS",
			"check the SSL/TLS inspection settings of the proxy",
		)
	}
	return out
}
