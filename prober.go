package tlsprobe

import (
	"context"
	"encoding/hex"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/google/martian/v3/har"
	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/model"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/proxy"
	"github.com/mel2oo/tlsprobe/record"
)

// Prober sends one hand-built ClientHello per Probe call and reports what
// came back. A Prober only holds configuration; every Probe call opens and
// closes its own socket.
type Prober struct {
	host string
	port int
	opts Options
}

// NewProber validates the configuration. Invalid configuration is reported
// as a *Failure of kind ConfigurationInvalid before any socket is opened.
func NewProber(host string, port int, opt ...Option) (*Prober, error) {
	opts := NewOptions()
	for _, o := range opt {
		o(&opts)
	}

	invalid := func(err error) (*Prober, error) {
		return nil, newFailure(ConfigurationInvalid, PhaseInit, err)
	}
	switch {
	case host == "":
		return invalid(errors.New("missing target host"))
	case port < 1 || port > 65535:
		return invalid(errors.Errorf("target port %d out of range", port))
	case opts.Timeout <= 0:
		return invalid(errors.Errorf("timeout must be positive, got %s", opts.Timeout))
	case opts.ReadSize <= 0:
		return invalid(errors.Errorf("read size must be positive, got %d", opts.ReadSize))
	}
	if _, err := opts.Profile.MarshalText(); err != nil {
		return invalid(err)
	}
	if opts.Proxy != nil {
		if err := opts.Proxy.Validate(); err != nil {
			return invalid(err)
		}
	}

	opts.Logger = model.ValidLoggerOrDefault(opts.Logger)
	opts.Clock = model.ValidClockOrDefault(opts.Clock)
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Dialer == nil {
		opts.Dialer = &net.Dialer{Timeout: opts.Timeout}
	}

	return &Prober{host: host, port: port, opts: opts}, nil
}

func (p *Prober) Host() string {
	return p.host
}

func (p *Prober) Port() int {
	return p.port
}

func (p *Prober) Options() Options {
	return p.opts
}

// serverName is the SNI to send, or "" for none.
func (p *Prober) serverName() string {
	if !p.opts.SNI {
		return ""
	}
	if p.opts.ServerName != "" {
		return p.opts.ServerName
	}
	return p.host
}

func (p *Prober) target() string {
	return net.JoinHostPort(p.host, strconv.Itoa(p.port))
}

// Probe runs one attempt. Network and protocol failures are recorded in the
// result, never returned.
func (p *Prober) Probe(ctx context.Context) *Result {
	a := &attempt{
		Prober: p,
		logger: p.opts.Logger,
		clock:  p.opts.Clock,
		result: &Result{
			ID:         gid.GenerateProbeID(),
			Host:       p.host,
			Port:       p.port,
			Profile:    p.opts.Profile,
			ServerName: p.serverName(),
			Phase:      PhaseInit,
		},
	}
	a.result.StartedAt = a.clock.Now()
	if cfg := p.opts.Proxy; cfg != nil {
		a.result.Proxy = optionals.Some(ProxyInfo{
			Address:       cfg.Address(),
			Authenticated: cfg.Credentials() != nil,
		})
	}

	a.run(ctx)
	a.result.FinishedAt = a.clock.Now()
	return a.result
}

type attempt struct {
	*Prober
	logger model.Logger
	clock  model.Clock
	result *Result
}

func (a *attempt) enter(phase Phase) {
	a.result.Phase = phase
	a.opts.Observer.ObservePhase(a.result.ID, phase)
}

func (a *attempt) fail(phase Phase, err error) {
	f := ClassifyFailure(phase, err)
	a.logger.Warnf("probe %s: %s", a.result.ID, f)
	a.result.Error = optionals.Some(*f)
	a.enter(PhaseFailed)
}

func (a *attempt) deadline() time.Time {
	return time.Now().Add(a.opts.Timeout)
}

func (a *attempt) record(fromClient bool, data []byte) {
	a.result.Segments = append(a.result.Segments, Segment{
		FromClient: fromClient,
		At:         a.clock.Now(),
		Data:       append([]byte(nil), data...),
	})
}

func (a *attempt) run(ctx context.Context) {
	r := a.result

	a.enter(PhaseConnecting)
	addr := a.target()
	if a.opts.Proxy != nil {
		addr = a.opts.Proxy.Address()
		a.logger.Infof("connecting to %s through proxy %s", a.target(), a.opts.Proxy.Redacted())
	} else {
		a.logger.Infof("connecting to %s", addr)
	}

	dialCtx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	start := a.clock.Now()
	conn, err := a.opts.Dialer.DialContext(dialCtx, "tcp", addr)
	cancel()
	if err != nil {
		a.fail(PhaseConnecting, err)
		return
	}
	defer conn.Close()

	connectTime := a.clock.Now().Sub(start)
	r.Connected = true
	r.ConnectTime = optionals.Some(Milliseconds(connectTime))
	r.LocalAddr = conn.LocalAddr().String()
	r.RemoteAddr = conn.RemoteAddr().String()
	a.logger.Infof("TCP connection established in %.3fs", connectTime.Seconds())

	if cfg := a.opts.Proxy; cfg != nil {
		if !a.tunnel(conn, cfg) {
			return
		}
	}

	data, ok := a.exchange(conn)
	if !ok {
		return
	}

	a.enter(PhaseClassifying)
	a.classify(data)
	a.enter(PhaseDone)
}

func (a *attempt) tunnel(conn net.Conn, cfg *proxy.Config) bool {
	a.enter(PhaseTunneling)
	if err := conn.SetDeadline(a.deadline()); err != nil {
		a.fail(PhaseTunneling, err)
		return false
	}

	t := &proxy.Tunnel{Logger: a.logger, Now: a.clock.Now}
	entry, err := t.Establish(conn, a.host, a.port, cfg.Credentials())
	if entry != nil {
		a.result.Tunnel = optionals.Some(entry)
		a.recordTunnel(entry, cfg)
	}
	if err != nil {
		a.fail(PhaseTunneling, err)
		return false
	}

	a.result.TunnelEstablished = true
	a.logger.Infof("tunnel to %s established", a.target())
	if err := conn.SetDeadline(time.Time{}); err != nil {
		a.fail(PhaseTunneling, err)
		return false
	}
	return true
}

// recordTunnel keeps the CONNECT exchange as segments, without credentials.
func (a *attempt) recordTunnel(entry *har.Entry, cfg *proxy.Config) {
	req := proxy.ConnectRequest(a.host, a.port, cfg.Credentials())
	a.record(true, []byte(proxy.RedactRequest(req)))
	if entry.Response != nil && entry.Response.Content != nil {
		a.record(false, entry.Response.Content.Text)
	}
}

// exchange sends the hello and performs the single response read.
func (a *attempt) exchange(conn net.Conn) ([]byte, bool) {
	r := a.result

	a.enter(PhaseSendingHello)
	h, err := hello.Build(a.opts.Profile, r.ServerName, a.opts.Random)
	if err != nil {
		a.fail(PhaseSendingHello, err)
		return nil, false
	}
	frame := h.Bytes()
	if fp, err := h.Fingerprint(); err == nil {
		r.Fingerprint = optionals.Some(fp)
	}

	a.logger.Infof("sending %s Client Hello (%d bytes)", a.opts.Profile, len(frame))
	a.logger.Debugf("Client Hello hex: %s", hex.EncodeToString(frame))
	if err := conn.SetWriteDeadline(a.deadline()); err != nil {
		a.fail(PhaseSendingHello, err)
		return nil, false
	}
	if _, err := conn.Write(frame); err != nil {
		a.fail(PhaseSendingHello, err)
		return nil, false
	}
	r.HelloSent = true
	r.HelloSize = len(frame)
	a.record(true, frame)

	a.enter(PhaseAwaitingResponse)
	a.logger.Info("waiting for server response")
	if err := conn.SetReadDeadline(a.deadline()); err != nil {
		a.fail(PhaseAwaitingResponse, err)
		return nil, false
	}
	buf := make([]byte, a.opts.ReadSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil || errors.Is(err, io.EOF) {
			a.logger.Warn("connection closed by server without a response")
			r.Response = optionals.Some(classify.Classify(nil))
			err = newFailure(EmptyResponse, PhaseAwaitingResponse, errors.New("connection closed without response"))
		}
		a.fail(PhaseAwaitingResponse, err)
		return nil, false
	}
	// Bytes that arrived before an error still count.
	data := buf[:n]
	r.RawResponse = append(HexBytes(nil), data...)
	r.ResponseSize = n
	a.record(false, data)
	a.logger.Infof("response received: %d bytes", n)
	a.logger.Debugf("response hex: %s", hex.EncodeToString(data))
	return data, true
}

func (a *attempt) classify(data []byte) {
	r := a.result
	resp := classify.Classify(data)
	r.Response = optionals.Some(resp)

	if !resp.IsTLS() {
		a.logger.Warnf("non-TLS response detected: %s", resp.Kind)
		a.logger.Warnf("likely source: %s", resp.Source)
		if info, ok := resp.Firewall.Get(); ok {
			if info.Vendor != "" {
				a.logger.Infof("  firewall_brand: %s", info.Vendor)
			}
			for _, k := range info.HeaderNames() {
				a.logger.Infof("  %s: %s", k, info.Headers[k])
			}
			if len(info.Keywords) > 0 {
				a.logger.Infof("  firewall_keywords: %s", info.KeywordList())
			}
		}
		return
	}

	rec, err := record.Parse(data)
	if err != nil {
		// Partial results are still useful; the classification stands.
		a.logger.Warnf("could not decode TLS record: %s", err)
		return
	}
	r.Record = optionals.Some(rec)
	r.Records = record.ParseAll(data)

	a.logger.Infof("TLS response: %s", rec.TypeName)
	if hs, ok := rec.Handshake.Get(); ok {
		a.logger.Infof("handshake type: %s", hs.TypeName)
	}
	if alert, ok := rec.Alert.Get(); ok {
		a.logger.Warnf("alert received: %s - %s", alert.LevelName, alert.DescriptionName)
	}
}
