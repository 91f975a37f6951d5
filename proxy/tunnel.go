package proxy

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/martian/v3/har"
	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/model"
)

const (
	UserAgent = "tlsprobe/1.0"

	// The proxy's answer is read with a single read of at most this size.
	maxResponseSize = 4096
)

// Substrings that mark a successful CONNECT. Matching is deliberately loose
// and case-sensitive.
var successMarkers = []string{"200 Connection established", "200 OK"}

// RejectedError is returned when the proxy answers CONNECT with anything
// other than success.
type RejectedError struct {
	Response string
}

func (e *RejectedError) Error() string {
	line, _, _ := strings.Cut(e.Response, "\n")
	line = strings.TrimSpace(line)
	if line == "" {
		return "proxy rejected CONNECT without a response"
	}
	return "proxy rejected CONNECT: " + line
}

// Tunnel negotiates a CONNECT tunnel over an already connected socket.
type Tunnel struct {
	Logger model.Logger
	Now    func() time.Time
}

// ConnectRequest renders the CONNECT request for host:port. The
// Proxy-Authorization header is present only when creds is non-nil.
func ConnectRequest(targetHost string, targetPort int, creds *Credentials) []byte {
	target := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))

	var b bytes.Buffer
	fmt.Fprintf(&b, "CONNECT %s HTTP/1.1\r\n", target)
	fmt.Fprintf(&b, "Host: %s\r\n", target)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", UserAgent)
	if creds != nil {
		token := base64.StdEncoding.EncodeToString([]byte(creds.Username + ":" + creds.Password))
		fmt.Fprintf(&b, "Proxy-Authorization: Basic %s\r\n", token)
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// Establish sends CONNECT and reads the proxy's answer. On success conn is a
// byte pipe to the target. The returned HAR entry records the exchange with
// credentials redacted, and is returned on rejection too.
func (t *Tunnel) Establish(conn net.Conn, targetHost string, targetPort int, creds *Credentials) (*har.Entry, error) {
	logger := model.ValidLoggerOrDefault(t.Logger)
	now := t.Now
	if now == nil {
		now = time.Now
	}

	req := ConnectRequest(targetHost, targetPort, creds)
	logger.Debugf("proxy: sending %q", RedactRequest(req))

	started := now()
	if _, err := conn.Write(req); err != nil {
		return nil, errors.Wrap(err, "failed to send CONNECT")
	}
	sent := now()

	buf := make([]byte, maxResponseSize)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			return nil, &RejectedError{}
		}
		if isEOF(err) {
			return newEntry(req, nil, started, sent, now()), &RejectedError{}
		}
		return nil, errors.Wrap(err, "failed to read CONNECT response")
	}
	resp := buf[:n]
	entry := newEntry(req, resp, started, sent, now())

	text := string(resp)
	logger.Debugf("proxy: received %d bytes: %q", n, firstLine(text))
	for _, marker := range successMarkers {
		if strings.Contains(text, marker) {
			return entry, nil
		}
	}
	return entry, &RejectedError{Response: text}
}

// Establish negotiates a tunnel with a default Tunnel.
func Establish(conn net.Conn, targetHost string, targetPort int, creds *Credentials) (*har.Entry, error) {
	return (&Tunnel{}).Establish(conn, targetHost, targetPort, creds)
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return strings.TrimSpace(line)
}

// parseResponse reads the status and headers of a CONNECT answer. Unparseable
// answers give nil.
func parseResponse(resp []byte) *http.Response {
	r, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(resp)), &http.Request{Method: http.MethodConnect})
	if err != nil {
		return nil
	}
	r.Body.Close()
	return r
}
