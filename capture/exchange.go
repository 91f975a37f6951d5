package capture

import (
	"net"
	"strconv"
	"time"

	tlsprobe "github.com/mel2oo/tlsprobe"
)

// Endpoint is one side of a TCP connection.
type Endpoint struct {
	IP   net.IP `json:"ip"`
	Port int    `json:"port"`
}

func (e Endpoint) String() string {
	return net.JoinHostPort(e.IP.String(), strconv.Itoa(e.Port))
}

// Segment is one payload carried in a single direction.
type Segment struct {
	FromClient bool
	At         time.Time
	Data       []byte
}

// Exchange is the payload history of one TCP connection.
type Exchange struct {
	Client   Endpoint
	Server   Endpoint
	Segments []Segment
}

func (e *Exchange) ClientPayload() []byte {
	return e.payload(true)
}

func (e *Exchange) ServerPayload() []byte {
	return e.payload(false)
}

func (e *Exchange) payload(fromClient bool) []byte {
	var out []byte
	for _, s := range e.Segments {
		if s.FromClient == fromClient {
			out = append(out, s.Data...)
		}
	}
	return out
}

func (e *Exchange) start() time.Time {
	if len(e.Segments) == 0 {
		return time.Now()
	}
	return e.Segments[0].At
}

func (e *Exchange) end() time.Time {
	if len(e.Segments) == 0 {
		return e.start()
	}
	return e.Segments[len(e.Segments)-1].At
}

// FromResult turns the socket history of a probe into an exchange. Addresses
// that cannot be parsed fall back to loopback with the probe's ports.
func FromResult(r *tlsprobe.Result) Exchange {
	ex := Exchange{
		Client: parseEndpoint(r.LocalAddr, Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: 49152}),
		Server: parseEndpoint(r.RemoteAddr, Endpoint{IP: net.IPv4(127, 0, 0, 1), Port: r.Port}),
	}
	for _, s := range r.Segments {
		ex.Segments = append(ex.Segments, Segment{FromClient: s.FromClient, At: s.At, Data: s.Data})
	}
	return ex
}

func parseEndpoint(addr string, fallback Endpoint) Endpoint {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return fallback
	}
	ip := net.ParseIP(host)
	p, err := strconv.Atoi(port)
	if ip == nil || err != nil {
		return fallback
	}
	return Endpoint{IP: ip, Port: p}
}
