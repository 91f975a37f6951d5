package classify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	randomish := make([]byte, 64)
	for i := range randomish {
		randomish[i] = byte(i*37 + 11)
	}

	testCases := []struct {
		name           string
		input          []byte
		expectedKind   Kind
		expectedSource string
	}{
		{
			name:           "empty",
			input:          nil,
			expectedKind:   KindEmpty,
			expectedSource: SourceClosedImmediately,
		},
		{
			name:           "tls handshake",
			input:          []byte{0x16, 0x03, 0x03, 0x00, 0x4a, 0x02},
			expectedKind:   KindTLSRecord,
			expectedSource: SourceTLSServer,
		},
		{
			name:           "tls alert",
			input:          []byte{0x15, 0x03, 0x01, 0x00, 0x02, 0x02, 0x28},
			expectedKind:   KindTLSRecord,
			expectedSource: SourceTLSServer,
		},
		{
			name:           "firewall block page",
			input:          []byte("HTTP/1.1 403 Forbidden\r\nServer: FortiGate\r\n\r\n"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceContentFilter,
		},
		{
			name:           "proxy auth required",
			input:          []byte("HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceProxyAuth,
		},
		{
			name:           "proxy error page",
			input:          []byte("HTTP/1.1 502 Bad Gateway\r\nVia: 1.1 squid-proxy\r\n\r\n"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceProxyServer,
		},
		{
			name:           "plain http",
			input:          []byte("HTTP/1.0 400 Bad Request\r\n\r\n"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceHTTPServer,
		},
		{
			name:           "html page",
			input:          []byte("<!DOCTYPE html><title>Access</title>"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceHTTPServer,
		},
		{
			name:           "ssh banner",
			input:          []byte("SSH-2.0-OpenSSH_8.9\r\n"),
			expectedKind:   KindSSHBanner,
			expectedSource: SourceSSHServer,
		},
		{
			name:           "ftp banner",
			input:          []byte("220 ProFTPD Server ready\r\n"),
			expectedKind:   KindFTPResponse,
			expectedSource: SourceFTPServer,
		},
		{
			name:           "firewall text",
			input:          []byte("Access denied by policy\n"),
			expectedKind:   KindFirewallMessage,
			expectedSource: SourceCorporateFirewall,
		},
		{
			name:           "other text",
			input:          []byte("hello there\n"),
			expectedKind:   KindText,
			expectedSource: SourceUnknownText,
		},
		{
			name:           "connect success with binary tail",
			input:          append([]byte("HTTP/1.1 200 OK\r\n\r\n"), 0x00, 0xff),
			expectedKind:   KindConnectSuccess,
			expectedSource: SourceProxyServer,
		},
		{
			name:           "proxy auth with binary tail",
			input:          append([]byte("HTTP/1.0 407 Auth\r\n\r\n"), 0x01),
			expectedKind:   KindProxyAuthRequired,
			expectedSource: SourceProxyServer,
		},
		{
			name:           "short null",
			input:          make([]byte, 4),
			expectedKind:   KindNullResponse,
			expectedSource: SourceSilentDrop,
		},
		{
			name:           "zero padding",
			input:          make([]byte, 32),
			expectedKind:   KindZeroFilledResponse,
			expectedSource: SourcePadding,
		},
		{
			name:           "latin-1 block page",
			input:          []byte("HTTP/1.1 403 Forbidden\r\nServer: FortiGate\r\n\r\n<html>Acc\xe8s refus\xe9 - blocked</html>"),
			expectedKind:   KindHTTPResponse,
			expectedSource: SourceContentFilter,
		},
		{
			name:           "ssh banner with binary tail",
			input:          []byte("SSH-2.0-OpenSSH_8.9\r\n\x00\x00\x01\x14\x0a\x14"),
			expectedKind:   KindSSHBanner,
			expectedSource: SourceSSHServer,
		},
		{
			name:           "text with control bytes",
			input:          []byte("status\x00\x01\x02 ok"),
			expectedKind:   KindBinary,
			expectedSource: SourceUnknownBinary,
		},
		{
			name:           "socks5",
			input:          []byte{0x05, 0xff},
			expectedKind:   KindSOCKS5Response,
			expectedSource: SourceSOCKSProxy,
		},
		{
			name:           "short binary",
			input:          []byte{0x12, 0x34, 0x56, 0x78, 0x9a},
			expectedKind:   KindBinary,
			expectedSource: SourceUnknownBinary,
		},
		{
			name:           "low entropy",
			input:          append([]byte{0x01}, bytes.Repeat([]byte{0xaa}, 40)...),
			expectedKind:   KindBinary,
			expectedSource: SourceLowEntropy,
		},
		{
			name:           "high entropy",
			input:          append([]byte{0x80}, randomish...),
			expectedKind:   KindBinary,
			expectedSource: SourceRandomData,
		},
		{
			name:           "tls type with bad version",
			input:          []byte{0x16, 0x02, 0x00, 0x00, 0x10, 0x99},
			expectedKind:   KindBinary,
			expectedSource: SourceUnknownBinary,
		},
		{
			name:           "tls header with zero length",
			input:          []byte{0x16, 0x03, 0x03, 0x00, 0x00},
			expectedKind:   KindBinary,
			expectedSource: SourceUnknownBinary,
		},
	}

	for _, tc := range testCases {
		resp := Classify(tc.input)
		if resp.Kind != tc.expectedKind {
			t.Errorf("[%s] expected kind %q, got %q", tc.name, tc.expectedKind, resp.Kind)
		}
		if resp.Source != tc.expectedSource {
			t.Errorf("[%s] expected source %q, got %q", tc.name, tc.expectedSource, resp.Source)
		}
		assert.Equal(t, len(tc.input), resp.Length, tc.name)
		assert.Equal(t, tc.expectedKind == KindTLSRecord, resp.LikelyTLS, tc.name)
	}
}

func TestClassifyAttachesFirewallInfo(t *testing.T) {
	resp := Classify([]byte("HTTP/1.1 403 Forbidden\r\nServer: FortiGate\r\n\r\n"))
	require.Equal(t, KindHTTPResponse, resp.Kind)

	info, ok := resp.Firewall.Get()
	require.True(t, ok)
	assert.Equal(t, "FortiGate", info.Headers["server"])
	assert.Equal(t, "fortigate", info.Vendor)
	assert.Contains(t, info.Keywords, "forbidden")

	// TLS records never carry firewall info.
	tls := Classify([]byte{0x16, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28})
	assert.True(t, tls.Firewall.IsNone())
	assert.True(t, tls.IsTLS())

	// Neither does a reply with nothing to extract.
	plain := Classify([]byte("hello there\n"))
	assert.True(t, plain.Firewall.IsNone())
}

func TestClassifyLossyPreview(t *testing.T) {
	resp := Classify([]byte("HTTP/1.1 403 Forbidden\r\n\r\nAcc\xe8s refus\xe9"))
	assert.Equal(t, "HTTP/1.1 403 Forbidden\r\n\r\nAccs refus", resp.Preview)

	info, ok := resp.Firewall.Get()
	require.True(t, ok)
	assert.Contains(t, info.Keywords, "forbidden")
}

func TestLossyPrefix(t *testing.T) {
	assert.Equal(t, "abc", lossyPrefix([]byte{'a', 0xff, 'b', 0xc3, 'c'}))
	assert.Equal(t, "", lossyPrefix(bytes.Repeat([]byte{0x80}, 10)))

	long := bytes.Repeat([]byte("é"), 300)
	assert.Equal(t, strings.Repeat("é", 200), lossyPrefix(long))
}

func TestTextPrefixRejectsControlBytes(t *testing.T) {
	_, ok := textPrefix([]byte("abc\x00def"))
	assert.False(t, ok)
	_, ok = textPrefix([]byte{0xc3, 0x28})
	assert.False(t, ok)
	_, ok = textPrefix(bytes.Repeat([]byte{0x80}, 300))
	assert.False(t, ok)

	text, ok := textPrefix([]byte("line one\r\n\tline two"))
	assert.True(t, ok)
	assert.Equal(t, "line one\r\n\tline two", text)

	// Long input is cut on a rune boundary.
	long := bytes.Repeat([]byte("é"), 150)
	text, ok = textPrefix(long)
	assert.True(t, ok)
	assert.Equal(t, 200, len(text))
}

func TestUniqueByteRatio(t *testing.T) {
	assert.Equal(t, 0.0, UniqueByteRatio(nil))
	assert.Equal(t, 1.0, UniqueByteRatio([]byte{1, 2, 3, 4}))
	assert.Equal(t, 0.25, UniqueByteRatio([]byte{7, 7, 7, 7}))
}

func TestClassifyLowEntropySource(t *testing.T) {
	resp := Classify(append([]byte{0x01}, bytes.Repeat([]byte{0xaa}, 40)...))
	assert.Equal(t, KindBinary, resp.Kind)
	assert.Equal(t, "Firewall (Low Entropy Response)", resp.Source)
}
