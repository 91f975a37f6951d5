package capture

import (
	"bytes"
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/classify"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/record"
)

var (
	alert = []byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28}
	t0    = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
)

func clientHello(t *testing.T, serverName string) []byte {
	t.Helper()
	h, err := hello.Build(hello.Minimal, serverName, nil)
	require.NoError(t, err)
	return h.Bytes()
}

// bigRecord is a handshake record that does not fit in one TCP segment.
func bigRecord() []byte {
	payload := bytes.Repeat([]byte{0x0b}, 3000)
	return append([]byte{0x16, 0x03, 0x03, byte(len(payload) >> 8), byte(len(payload))}, payload...)
}

func testExchange(t *testing.T, client, server net.IP) Exchange {
	return Exchange{
		Client: Endpoint{IP: client, Port: 50123},
		Server: Endpoint{IP: server, Port: 443},
		Segments: []Segment{
			{FromClient: true, At: t0, Data: clientHello(t, "example.com")},
			{FromClient: false, At: t0.Add(20 * time.Millisecond), Data: bigRecord()},
		},
	}
}

func roundTrip(t *testing.T, exchanges ...Exchange) []*Exchange {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, exchanges...))

	packets, err := NewStreamReader(&buf).Packets(context.Background())
	require.NoError(t, err)
	out, err := Assemble(context.Background(), packets)
	require.NoError(t, err)
	return out
}

func TestWriteAndAssemble(t *testing.T) {
	testCases := []struct {
		name   string
		client net.IP
		server net.IP
	}{
		{name: "ipv4", client: net.IPv4(10, 0, 0, 1).To4(), server: net.IPv4(10, 0, 0, 2).To4()},
		{name: "ipv6", client: net.ParseIP("2001:db8::1"), server: net.ParseIP("2001:db8::2")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ex := testExchange(t, tc.client, tc.server)
			got := roundTrip(t, ex)
			require.Len(t, got, 1)

			assert.Equal(t, ex.Client.String(), got[0].Client.String())
			assert.Equal(t, ex.Server.String(), got[0].Server.String())
			if diff := cmp.Diff(ex.Segments, got[0].Segments); diff != "" {
				t.Errorf("found unexpected diff in segments:\n%s", diff)
			}
		})
	}
}

func TestWriteMultipleExchanges(t *testing.T) {
	first := testExchange(t, net.IPv4(10, 0, 0, 1).To4(), net.IPv4(10, 0, 0, 2).To4())
	second := testExchange(t, net.IPv4(10, 0, 0, 3).To4(), net.IPv4(10, 0, 0, 4).To4())
	second.Segments[1].Data = alert

	got := roundTrip(t, first, second)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1:50123", got[0].Client.String())
	assert.Equal(t, "10.0.0.3:50123", got[1].Client.String())
	assert.Equal(t, alert, got[1].ServerPayload())
}

func TestWrittenPacketsDecodeAsTLS(t *testing.T) {
	ex := testExchange(t, net.IPv4(10, 0, 0, 1).To4(), net.IPv4(10, 0, 0, 2).To4())
	ex.Segments[1].Data = alert

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, ex))
	packets, err := NewStreamReader(&buf).Packets(context.Background())
	require.NoError(t, err)

	var decoded []*layers.TLS
	var flags []string
	for p := range packets {
		tcp, ok := p.Layer(layers.LayerTypeTCP).(*layers.TCP)
		require.True(t, ok)
		switch {
		case tcp.SYN && tcp.ACK:
			flags = append(flags, "SA")
		case tcp.SYN:
			flags = append(flags, "S")
		case tcp.FIN:
			flags = append(flags, "F")
		case len(tcp.Payload) == 0:
			flags = append(flags, "A")
		default:
			flags = append(flags, "P")
			var tls layers.TLS
			require.NoError(t, tls.DecodeFromBytes(tcp.Payload, gopacket.NilDecodeFeedback))
			decoded = append(decoded, &tls)
		}
	}

	assert.Equal(t, []string{"S", "SA", "A", "P", "P", "F", "F", "A"}, flags)
	require.Len(t, decoded, 2)
	assert.Len(t, decoded[0].Handshake, 1)
	require.Len(t, decoded[1].Alert, 1)
	assert.EqualValues(t, 2, decoded[1].Alert[0].Level)
	assert.EqualValues(t, 40, decoded[1].Alert[0].Description)
}

func TestAnalyze(t *testing.T) {
	frame := clientHello(t, "example.com")
	testCases := []struct {
		name     string
		segments []Segment
		tunneled bool
		kind     classify.Kind
		records  int
	}{
		{
			name: "direct",
			segments: []Segment{
				{FromClient: true, Data: frame},
				{FromClient: false, Data: alert},
			},
			kind:    classify.KindTLSRecord,
			records: 1,
		},
		{
			name: "tunneled",
			segments: []Segment{
				{FromClient: true, Data: []byte("CONNECT example.com:443 HTTP/1.1\r\nHost: example.com:443\r\n\r\n")},
				{FromClient: false, Data: []byte("HTTP/1.1 200 Connection established\r\n\r\n")},
				{FromClient: true, Data: frame},
				{FromClient: false, Data: alert},
			},
			tunneled: true,
			kind:     classify.KindTLSRecord,
			records:  1,
		},
		{
			name: "firewall page",
			segments: []Segment{
				{FromClient: true, Data: frame},
				{FromClient: false, Data: []byte("HTTP/1.1 403 Forbidden\r\nServer: FortiGate\r\n\r\n")},
			},
			kind: classify.KindHTTPResponse,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := Analyze(&Exchange{
				Client:   Endpoint{IP: net.IPv4(10, 0, 0, 1), Port: 50000},
				Server:   Endpoint{IP: net.IPv4(10, 0, 0, 2), Port: 443},
				Segments: tc.segments,
			})

			assert.Equal(t, tc.tunneled, a.Tunneled)
			summary, ok := a.Hello.Get()
			require.True(t, ok)
			assert.Equal(t, "example.com", summary.ServerName)
			fp, ok := a.Fingerprint.Get()
			require.True(t, ok)
			assert.Equal(t, "771,49199-49200-156-157-47-53,0-10-11-13,23-24-25,0", fp.String)

			resp, ok := a.Response.Get()
			require.True(t, ok)
			assert.Equal(t, tc.kind, resp.Kind)
			assert.Len(t, a.Records, tc.records)
		})
	}
}

func TestAnalyzeWithoutServerBytes(t *testing.T) {
	a := Analyze(&Exchange{Segments: []Segment{{FromClient: true, Data: []byte("not a hello")}}})
	assert.True(t, a.Hello.IsNone())
	assert.True(t, a.Response.IsNone())
	assert.Equal(t, 11, a.ClientBytes)
}

func TestAnalyzeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.pcap")
	ex := testExchange(t, net.IPv4(192, 0, 2, 10).To4(), net.IPv4(192, 0, 2, 20).To4())
	require.NoError(t, WriteFile(path, ex))

	analyses, err := AnalyzeFile(context.Background(), path, WithServerPort(443))
	require.NoError(t, err)
	require.Len(t, analyses, 1)

	a := analyses[0]
	assert.Equal(t, "192.0.2.10:50123", a.Client)
	assert.Equal(t, "192.0.2.20:443", a.Server)
	require.Len(t, a.Records, 1)
	assert.Equal(t, record.Handshake, a.Records[0].Type)
	assert.False(t, a.Records[0].Truncated)
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(context.Background(), filepath.Join(t.TempDir(), "missing.pcap"))
	assert.Error(t, err)
}

func TestFromResult(t *testing.T) {
	r := &tlsprobe.Result{
		Port:       443,
		LocalAddr:  "192.0.2.1:40000",
		RemoteAddr: "[2001:db8::5]:443",
		Segments: []tlsprobe.Segment{
			{FromClient: true, At: t0, Data: []byte{1}},
			{FromClient: false, At: t0, Data: []byte{2}},
		},
	}

	ex := FromResult(r)
	assert.Equal(t, "192.0.2.1:40000", ex.Client.String())
	assert.Equal(t, "[2001:db8::5]:443", ex.Server.String())
	assert.Len(t, ex.Segments, 2)

	// A probe that never connected has no addresses.
	ex = FromResult(&tlsprobe.Result{Port: 8443})
	assert.Equal(t, "127.0.0.1:8443", ex.Server.String())
	assert.Empty(t, ex.Segments)
}
