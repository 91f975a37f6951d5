package tlsprobe

import (
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/martian/v3/har"

	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/record"
)

// Result is the outcome of one probe attempt. It is built by Probe and not
// modified after Probe returns.
type Result struct {
	ID         gid.ProbeID   `json:"id"`
	Host       string        `json:"host"`
	Port       int           `json:"port"`
	Profile    hello.Profile `json:"profile"`
	ServerName string        `json:"server_name,omitempty"`

	Proxy optionals.Optional[ProxyInfo] `json:"proxy"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// The last phase entered. PhaseDone on success, PhaseFailed otherwise.
	Phase Phase `json:"phase"`

	Connected         bool `json:"connected"`
	TunnelEstablished bool `json:"tunnel_established"`
	HelloSent         bool `json:"hello_sent"`

	LocalAddr   string                           `json:"local_addr,omitempty"`
	RemoteAddr  string                           `json:"remote_addr,omitempty"`
	ConnectTime optionals.Optional[Milliseconds] `json:"connect_time_ms"`

	HelloSize   int                                   `json:"hello_size"`
	Fingerprint optionals.Optional[hello.Fingerprint] `json:"fingerprint"`

	ResponseSize int      `json:"response_size"`
	RawResponse  HexBytes `json:"raw_response,omitempty"`

	Tunnel   optionals.Optional[*har.Entry]        `json:"tunnel"`
	Response optionals.Optional[classify.Response] `json:"response"`
	Record   optionals.Optional[record.Record]     `json:"record"`
	Records  []record.Record                       `json:"records,omitempty"`
	Error    optionals.Optional[Failure]           `json:"error"`

	// Every payload exchanged on the socket, in order.
	Segments []Segment `json:"-"`
}

type ProxyInfo struct {
	Address       string `json:"address"`
	Authenticated bool   `json:"authenticated"`
}

// Segment is one payload written to or read from the socket.
type Segment struct {
	FromClient bool
	At         time.Time
	Data       []byte
}

func (r *Result) Succeeded() bool {
	return r.Error.IsNone()
}

func (r *Result) FailureKind() optionals.Optional[FailureKind] {
	return optionals.Map(r.Error, func(f Failure) FailureKind { return f.Kind })
}

// GotResponse reports whether any bytes came back.
func (r *Result) GotResponse() bool {
	return r.ResponseSize > 0
}

// HexBytes serializes as a hex string.
type HexBytes []byte

func (b HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(b))
}

func (b *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// Milliseconds serializes a duration as fractional milliseconds.
type Milliseconds time.Duration

func (m Milliseconds) Duration() time.Duration {
	return time.Duration(m)
}

func (m Milliseconds) MarshalJSON() ([]byte, error) {
	return json.Marshal(float64(m) / float64(time.Millisecond))
}

func (m *Milliseconds) UnmarshalJSON(data []byte) error {
	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*m = Milliseconds(ms * float64(time.Millisecond))
	return nil
}
