package capture

import (
	"bytes"
	"context"

	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/record"
)

// Analysis is what an exchange tells about a TLS handshake attempt.
type Analysis struct {
	Client string `json:"client"`
	Server string `json:"server"`

	// The exchange starts with an HTTP CONNECT.
	Tunneled bool `json:"tunneled"`

	ClientBytes int `json:"client_bytes"`
	ServerBytes int `json:"server_bytes"`

	Hello       optionals.Optional[*hello.Summary]    `json:"client_hello"`
	Fingerprint optionals.Optional[hello.Fingerprint] `json:"fingerprint"`
	Response    optionals.Optional[classify.Response] `json:"response"`
	Records     []record.Record                       `json:"records,omitempty"`
}

var connectPrefix = []byte("CONNECT ")

// Analyze decodes the ClientHello sent by the client and classifies what the
// server sent back. When the exchange starts with a CONNECT, the proxy's
// answer is skipped and the tunneled bytes are analyzed.
func Analyze(ex *Exchange) Analysis {
	a := Analysis{
		Client: ex.Client.String(),
		Server: ex.Server.String(),
	}

	var client, server [][]byte
	for _, s := range ex.Segments {
		if s.FromClient {
			client = append(client, s.Data)
			a.ClientBytes += len(s.Data)
		} else {
			server = append(server, s.Data)
			a.ServerBytes += len(s.Data)
		}
	}

	if len(client) > 0 && bytes.HasPrefix(client[0], connectPrefix) {
		a.Tunneled = true
		client = client[1:]
		if len(server) > 0 {
			server = server[1:]
		}
	}

	if len(client) > 0 {
		if summary, err := hello.Inspect(client[0]); err == nil {
			a.Hello = optionals.Some(summary)
			a.Fingerprint = optionals.Some(hello.JA3(summary))
		}
	}

	if len(server) > 0 {
		data := bytes.Join(server, nil)
		resp := classify.Classify(data)
		a.Response = optionals.Some(resp)
		if resp.IsTLS() {
			a.Records = record.ParseAll(data)
		}
	}
	return a
}

// AnalyzeFile analyzes every exchange in a pcap file.
func AnalyzeFile(ctx context.Context, path string, opt ...Option) ([]Analysis, error) {
	exchanges, err := ReadFile(ctx, path, opt...)
	if err != nil {
		return nil, err
	}
	out := make([]Analysis, 0, len(exchanges))
	for _, ex := range exchanges {
		out = append(out, Analyze(ex))
	}
	return out, nil
}
