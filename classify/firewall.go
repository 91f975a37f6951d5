package classify

import (
	"bufio"
	"bytes"
	"net/http"
	"strings"

	"golang.org/x/exp/maps"

	"github.com/mel2oo/tlsprobe/sets"
)

// FirewallInfo is what a non-TLS reply gives away about the middlebox that
// produced it.
type FirewallInfo struct {
	Vendor   string            `json:"firewall_brand,omitempty"`
	Headers  map[string]string `json:"headers,omitempty"`
	Keywords []string          `json:"firewall_keywords,omitempty"`
}

func (f FirewallInfo) IsEmpty() bool {
	return f.Vendor == "" && len(f.Headers) == 0 && len(f.Keywords) == 0
}

var interestingHeaders = sets.NewFoldedSet(headersOfInterest...)

// ExtractFirewallInfo pulls headers of interest, firewall keywords and a
// vendor name out of a reply. Undecodable bytes are dropped before matching.
func ExtractFirewallInfo(data []byte) FirewallInfo {
	var info FirewallInfo
	text := strings.ToValidUTF8(string(data), "")
	lower := strings.ToLower(text)

	if strings.Contains(text, "HTTP/") {
		info.Headers = httpHeadersOfInterest(data)
		if len(info.Headers) == 0 {
			info.Headers = scanHeaderLines(text)
		}
	}

	for _, kw := range firewallKeywords {
		if strings.Contains(lower, kw) {
			info.Keywords = append(info.Keywords, kw)
		}
	}

	for _, vendor := range firewallVendors {
		if strings.Contains(lower, vendor) {
			info.Vendor = vendor
			break
		}
	}

	return info
}

func httpHeadersOfInterest(data []byte) map[string]string {
	if !bytes.HasPrefix(data, []byte("HTTP/")) {
		return nil
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	var headers map[string]string
	for k := range resp.Header {
		if sets.ContainsFold(interestingHeaders, k) {
			if headers == nil {
				headers = make(map[string]string)
			}
			headers[strings.ToLower(k)] = resp.Header.Get(k)
		}
	}
	return headers
}

// scanHeaderLines looks for "key: value" pairs in the first lines of text
// that did not parse as an HTTP response.
func scanHeaderLines(text string) map[string]string {
	var headers map[string]string
	lines := strings.Split(text, "\n")
	if len(lines) > headerScanLines {
		lines = lines[:headerScanLines]
	}
	for _, line := range lines {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if interestingHeaders.Contains(key) {
			if headers == nil {
				headers = make(map[string]string)
			}
			headers[key] = strings.TrimSpace(value)
		}
	}
	return headers
}

// KeywordList renders the matched keywords the way reports show them.
func (f FirewallInfo) KeywordList() string {
	return strings.Join(f.Keywords, ", ")
}

// HeaderNames lists the captured header names in sorted order.
func (f FirewallInfo) HeaderNames() []string {
	return sets.Sorted(sets.NewSet(maps.Keys(f.Headers)...))
}
