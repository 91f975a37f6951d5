package proxy

import (
	"bufio"
	"bytes"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/martian/v3/har"
)

// newEntry records a CONNECT exchange as a HAR entry. resp may be nil when
// the proxy closed without answering.
func newEntry(req, resp []byte, started, sent, done time.Time) *har.Entry {
	entry := &har.Entry{
		StartedDateTime: started.UTC(),
		Time:            done.Sub(started).Milliseconds(),
		Request:         harRequest(req),
		Timings: &har.Timings{
			Send: sent.Sub(started).Milliseconds(),
			Wait: done.Sub(sent).Milliseconds(),
		},
	}
	if resp != nil {
		entry.Response = harResponse(resp)
	}
	return entry
}

func harRequest(raw []byte) *har.Request {
	r := &har.Request{
		Method:      http.MethodConnect,
		HTTPVersion: "HTTP/1.1",
		HeadersSize: int64(len(raw)),
		BodySize:    0,
		Cookies:     []har.Cookie{},
		QueryString: []har.QueryString{},
	}

	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		r.Headers = []har.Header{}
		return r
	}
	r.URL = req.RequestURI
	r.HTTPVersion = req.Proto

	// ReadRequest moves Host out of the header map.
	header := req.Header.Clone()
	header.Set("Host", req.Host)
	r.Headers = toHARHeaders(header)
	return r
}

func harResponse(raw []byte) *har.Response {
	r := &har.Response{
		HeadersSize: int64(len(raw)),
		BodySize:    -1,
		Cookies:     []har.Cookie{},
		Headers:     []har.Header{},
		Content: &har.Content{
			Size:     int64(len(raw)),
			MimeType: "text/plain",
			Text:     raw,
		},
	}

	resp := parseResponse(raw)
	if resp == nil {
		r.StatusText = firstLine(string(raw))
		return r
	}
	r.Status = resp.StatusCode
	_, r.StatusText, _ = strings.Cut(resp.Status, " ")
	r.HTTPVersion = resp.Proto
	r.Headers = toHARHeaders(resp.Header)
	return r
}

// toHARHeaders flattens a header map in name order, masking credentials.
func toHARHeaders(h http.Header) []har.Header {
	names := make([]string, 0, len(h))
	for name := range h {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]har.Header, 0, len(h))
	for _, name := range names {
		for _, v := range h[name] {
			if strings.EqualFold(name, "Proxy-Authorization") {
				scheme, _, _ := strings.Cut(v, " ")
				v = scheme + " " + redactedValue
			}
			results = append(results, har.Header{Name: name, Value: v})
		}
	}
	return results
}

// StatusCode returns the proxy's status from a recorded entry, or 0 when
// none was parsed.
func StatusCode(entry *har.Entry) int {
	if entry == nil || entry.Response == nil {
		return 0
	}
	return entry.Response.Status
}
