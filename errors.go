package tlsprobe

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/pkg/errors"

	"github.com/mel2oo/tlsprobe/proxy"
	"github.com/mel2oo/tlsprobe/record"
)

// FailureKind classifies why a probe did not complete.
type FailureKind string

const (
	DNSResolutionFailed     FailureKind = "dns_resolution_failed"
	ConnectionRefused       FailureKind = "connection_refused"
	ConnectionReset         FailureKind = "connection_reset"
	ConnectTimeout          FailureKind = "connect_timeout"
	ResponseTimeout         FailureKind = "response_timeout"
	TunnelRejected          FailureKind = "tunnel_rejected"
	DecodeInsufficientBytes FailureKind = "decode_insufficient_bytes"
	ConfigurationInvalid    FailureKind = "configuration_invalid"

	// The peer closed the connection without sending anything.
	EmptyResponse FailureKind = "empty_response"
	Unknown       FailureKind = "unknown_failure"
)

// Failure is the error recorded in a probe result. It is also returned by
// NewProber for invalid configuration.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Phase  Phase       `json:"phase"`
	Reason string      `json:"reason"`
	Err    error       `json:"-"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s during %s: %s", f.Kind, f.Phase, f.Reason)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

func newFailure(kind FailureKind, phase Phase, err error) *Failure {
	reason := string(kind)
	if err != nil {
		reason = err.Error()
	}
	return &Failure{Kind: kind, Phase: phase, Reason: reason, Err: err}
}

// ClassifyFailure maps an error seen during phase onto the failure taxonomy.
// Timeouts count as ConnectTimeout while connecting and ResponseTimeout
// afterwards.
func ClassifyFailure(phase Phase, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return newFailure(classifyError(phase, err), phase, err)
}

func classifyError(phase Phase, err error) FailureKind {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return DNSResolutionFailed
	}

	var rejected *proxy.RejectedError
	if errors.As(err, &rejected) {
		return TunnelRejected
	}

	if errors.Is(err, proxy.ErrConfigurationInvalid) {
		return ConfigurationInvalid
	}

	if errors.Is(err, record.ErrInsufficientBytes) {
		return DecodeInsufficientBytes
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return ConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ECONNABORTED):
		return ConnectionReset
	case errors.Is(err, io.EOF):
		return EmptyResponse
	}

	if isTimeout(err) {
		if phase == PhaseConnecting {
			return ConnectTimeout
		}
		return ResponseTimeout
	}

	return classifyWithStringSuffix(err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Some platforms only expose these conditions through the message text.
func classifyWithStringSuffix(err error) FailureKind {
	s := err.Error()
	switch {
	case strings.HasSuffix(s, "connection refused"):
		return ConnectionRefused
	case strings.HasSuffix(s, "connection reset by peer"), strings.HasSuffix(s, "broken pipe"):
		return ConnectionReset
	case strings.HasSuffix(s, "no such host"):
		return DNSResolutionFailed
	}
	return Unknown
}
