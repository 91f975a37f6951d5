package tlsprobe

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/model"
	"github.com/mel2oo/tlsprobe/proxy"
)

const (
	DefaultTimeout = 10 * time.Second

	// The response is read with a single read of at most this many bytes.
	DefaultReadSize = 4096
)

// Dialer opens the probe's TCP connection. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type Options struct {
	// Governs the dial, the tunnel exchange and the response read, each on
	// its own.
	Timeout time.Duration

	Profile hello.Profile

	// Send SNI. The name is the target host unless ServerName is set.
	SNI        bool
	ServerName string

	// Reach the target through an HTTP CONNECT proxy.
	Proxy *proxy.Config

	ReadSize int

	Logger   model.Logger
	Observer Observer
	Clock    model.Clock
	Dialer   Dialer

	// Entropy for the hello. nil means crypto/rand.
	Random io.Reader
}

func NewOptions() Options {
	return Options{
		Timeout:  DefaultTimeout,
		Profile:  hello.Standard,
		SNI:      true,
		ReadSize: DefaultReadSize,
	}
}

type Option func(*Options)

func WithTimeout(t time.Duration) Option {
	return func(o *Options) {
		o.Timeout = t
	}
}

func WithProfile(p hello.Profile) Option {
	return func(o *Options) {
		o.Profile = p
	}
}

func WithSNI(enabled bool) Option {
	return func(o *Options) {
		o.SNI = enabled
	}
}

// WithServerName sends name as SNI instead of the target host.
func WithServerName(name string) Option {
	return func(o *Options) {
		o.SNI = true
		o.ServerName = name
	}
}

func WithProxy(cfg proxy.Config) Option {
	return func(o *Options) {
		o.Proxy = &cfg
	}
}

func WithReadSize(n int) Option {
	return func(o *Options) {
		o.ReadSize = n
	}
}

func WithLogger(l model.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Options) {
		o.Observer = obs
	}
}

func WithClock(c model.Clock) Option {
	return func(o *Options) {
		o.Clock = c
	}
}

func WithDialer(d Dialer) Option {
	return func(o *Options) {
		o.Dialer = d
	}
}

func WithRandom(r io.Reader) Option {
	return func(o *Options) {
		o.Random = r
	}
}
