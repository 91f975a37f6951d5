package classify

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/mel2oo/tlsprobe/optionals"
)

// Response is the classification of the first bytes a peer sent back.
type Response struct {
	Kind      Kind                             `json:"detected_type"`
	Source    string                           `json:"likely_source"`
	LikelyTLS bool                             `json:"likely_tls"`
	Length    int                              `json:"length"`
	Preview   string                           `json:"preview,omitempty"`
	Firewall  optionals.Optional[FirewallInfo] `json:"firewall_info"`
}

// IsTLS reports whether the response looks like a TLS record and is worth
// handing to the record parser.
func (r Response) IsTLS() bool {
	return r.Kind == KindTLSRecord
}

type sample struct {
	data  []byte
	text  string
	lower string
}

// A detector inspects a sample and claims it or passes. Detectors are tried
// in order and the first claim wins. Text detectors see a lossy decode, so a
// banner or block page with stray invalid bytes is still recognized.
type detector struct {
	name   string
	detect func(s *sample) (Kind, string, bool)
}

var textDetectors = []detector{
	{"http", detectHTTP},
	{"ssh", detectSSH},
	{"ftp", detectFTP},
	{"firewall message", detectFirewallMessage},
}

var binaryDetectors = []detector{
	{"connect success", detectConnectSuccess},
	{"proxy auth", detectProxyAuth},
	{"null", detectNull},
	{"socks5", detectSOCKS5},
	{"binary", detectBinary},
}

// Classify assigns a type and likely source to raw response bytes. It never
// fails and has no side effects.
func Classify(data []byte) Response {
	resp := Response{Length: len(data)}

	if len(data) == 0 {
		resp.Kind = KindEmpty
		resp.Source = SourceClosedImmediately
		return resp
	}

	if looksLikeTLSRecord(data) {
		resp.Kind = KindTLSRecord
		resp.Source = SourceTLSServer
		resp.LikelyTLS = true
		resp.Preview = hexPreview(data)
		return resp
	}

	text := lossyPrefix(data)
	s := &sample{data: data, text: text, lower: strings.ToLower(text)}
	if kind, source, ok := detect(textDetectors, s); ok {
		resp.Kind, resp.Source, resp.Preview = kind, source, text
	} else if strict, ok := textPrefix(data); ok {
		resp.Kind, resp.Source, resp.Preview = KindText, SourceUnknownText, strict
	} else {
		resp.Kind, resp.Source, _ = detect(binaryDetectors, s)
		resp.Preview = hexPreview(data)
	}

	if info := ExtractFirewallInfo(data); !info.IsEmpty() {
		resp.Firewall = optionals.Some(info)
	}
	return resp
}

func looksLikeTLSRecord(data []byte) bool {
	if len(data) < 5 {
		return false
	}
	if bytes.IndexByte(tlsContentTypes, data[0]) < 0 {
		return false
	}
	version := binary.BigEndian.Uint16(data[1:3])
	if version < 0x0301 || version > 0x0304 {
		return false
	}
	return binary.BigEndian.Uint16(data[3:5]) > 0
}

func detect(detectors []detector, s *sample) (Kind, string, bool) {
	for _, d := range detectors {
		if kind, source, ok := d.detect(s); ok {
			return kind, source, true
		}
	}
	return "", "", false
}

// lossyPrefix decodes the leading runes as UTF-8, dropping invalid bytes.
func lossyPrefix(data []byte) string {
	text := strings.ToValidUTF8(string(data), "")
	n := 0
	for i := range text {
		if n == textInspectLimit {
			return text[:i]
		}
		n++
	}
	return text
}

// textPrefix returns the leading bytes as text when they are valid UTF-8
// without control characters other than tab, CR and LF.
func textPrefix(data []byte) (string, bool) {
	cut := len(data)
	if cut > textInspectLimit {
		cut = textInspectLimit
		for cut > 0 && !utf8.RuneStart(data[cut]) {
			cut--
		}
	}
	head := data[:cut]
	if len(head) == 0 || !utf8.Valid(head) {
		return "", false
	}
	for _, r := range string(head) {
		switch {
		case r == '\t' || r == '\r' || r == '\n':
		case r < 0x20 || r == 0x7f:
			return "", false
		}
	}
	return string(head), true
}

func hexPreview(data []byte) string {
	if len(data) > previewLimit/4 {
		return hex.EncodeToString(data[:previewLimit/4]) + "..."
	}
	return hex.EncodeToString(data)
}

func detectHTTP(s *sample) (Kind, string, bool) {
	if !hasAnyPrefix(s.text, htmlPrefixes) {
		return "", "", false
	}
	switch {
	case strings.Contains(s.lower, "blocked") || strings.Contains(s.lower, "forbidden"):
		return KindHTTPResponse, SourceContentFilter, true
	case strings.Contains(s.text, "407") || strings.Contains(s.lower, "proxy authentication"):
		return KindHTTPResponse, SourceProxyAuth, true
	case strings.Contains(s.lower, "proxy"):
		return KindHTTPResponse, SourceProxyServer, true
	}
	return KindHTTPResponse, SourceHTTPServer, true
}

func detectSSH(s *sample) (Kind, string, bool) {
	return KindSSHBanner, SourceSSHServer, strings.HasPrefix(s.text, "SSH-")
}

func detectFTP(s *sample) (Kind, string, bool) {
	ok := strings.Contains(s.text, "FTP") &&
		(strings.Contains(s.text, "220") || strings.Contains(s.text, "421"))
	return KindFTPResponse, SourceFTPServer, ok
}

func detectFirewallMessage(s *sample) (Kind, string, bool) {
	return KindFirewallMessage, SourceCorporateFirewall, containsAny(s.lower, firewallMessageWords)
}

func detectConnectSuccess(s *sample) (Kind, string, bool) {
	ok := bytes.HasPrefix(s.data, []byte("HTTP/1.1 200")) || bytes.HasPrefix(s.data, []byte("HTTP/1.0 200"))
	return KindConnectSuccess, SourceProxyServer, ok
}

func detectProxyAuth(s *sample) (Kind, string, bool) {
	ok := bytes.HasPrefix(s.data, []byte("HTTP/1.1 407")) || bytes.HasPrefix(s.data, []byte("HTTP/1.0 407"))
	return KindProxyAuthRequired, SourceProxyServer, ok
}

func detectNull(s *sample) (Kind, string, bool) {
	if !allZero(s.data) {
		return "", "", false
	}
	if len(s.data) < nullResponseLimit {
		return KindNullResponse, SourceSilentDrop, true
	}
	return KindZeroFilledResponse, SourcePadding, true
}

func detectSOCKS5(s *sample) (Kind, string, bool) {
	return KindSOCKS5Response, SourceSOCKSProxy, len(s.data) >= 2 && s.data[0] == 0x05
}

func detectBinary(s *sample) (Kind, string, bool) {
	source := SourceUnknownBinary
	if len(s.data) > minEntropySample {
		ratio := UniqueByteRatio(s.data)
		if ratio < lowEntropyRatio {
			source = SourceLowEntropy
		} else if ratio > highEntropyRatio {
			source = SourceRandomData
		}
	}
	return KindBinary, source, true
}

// UniqueByteRatio is the number of distinct byte values divided by the
// length. It returns 0 for empty input.
func UniqueByteRatio(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var seen [256]bool
	unique := 0
	for _, b := range data {
		if !seen[b] {
			seen[b] = true
			unique++
		}
	}
	return float64(unique) / float64(len(data))
}

func allZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
