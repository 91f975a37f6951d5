package hello

import (
	"crypto/rand"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

const (
	// client_version inside the ClientHello body (TLS 1.2).
	clientVersionTLS12 = 0x0303

	randomLength    = 32
	sessionIDLength = 32

	nullCompression = 0x00
)

// ClientHello is a framed, ready-to-send ClientHello. It is never mutated
// after Build returns; accessors hand out copies.
type ClientHello struct {
	profile    Profile
	serverName string
	random     [randomLength]byte
	sessionID  [sessionIDLength]byte
	body       []byte
	frame      []byte
}

func (h *ClientHello) Profile() Profile {
	return h.profile
}

// ServerName is the SNI carried by the hello, or "" when none was sent.
func (h *ClientHello) ServerName() string {
	return h.serverName
}

func (h *ClientHello) Random() [randomLength]byte {
	return h.random
}

func (h *ClientHello) SessionID() [sessionIDLength]byte {
	return h.sessionID
}

// Body returns the unframed handshake body.
func (h *ClientHello) Body() []byte {
	return append([]byte(nil), h.body...)
}

// Bytes returns the full record as written to the wire.
func (h *ClientHello) Bytes() []byte {
	return append([]byte(nil), h.frame...)
}

func (h *ClientHello) Len() int {
	return len(h.frame)
}

// Build assembles and frames a fresh ClientHello. A nil rand uses
// crypto/rand. Legacy ignores rand and always uses zeros.
func Build(p Profile, serverName string, rand io.Reader) (*ClientHello, error) {
	h := &ClientHello{
		profile:    p,
		serverName: serverName,
	}

	body, err := buildBody(p, serverName, entropySource(p, rand), h)
	if err != nil {
		return nil, err
	}
	frame, err := Frame(body)
	if err != nil {
		return nil, err
	}
	h.body = body
	h.frame = frame
	return h, nil
}

// BuildBody returns the unframed ClientHello handshake body.
func BuildBody(p Profile, serverName string, rand io.Reader) ([]byte, error) {
	return buildBody(p, serverName, entropySource(p, rand), &ClientHello{})
}

func buildBody(p Profile, serverName string, rnd io.Reader, h *ClientHello) ([]byte, error) {
	if !p.valid() {
		return nil, errors.Wrapf(ErrUnknownProfile, "%d", int(p))
	}

	if _, err := io.ReadFull(rnd, h.random[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read client random")
	}
	if _, err := io.ReadFull(rnd, h.sessionID[:]); err != nil {
		return nil, errors.Wrap(err, "failed to read session id")
	}

	exts, err := EncodeExtensions(p, serverName, rnd)
	if err != nil {
		return nil, err
	}

	b := cryptobyte.NewBuilder(nil)
	b.AddUint16(clientVersionTLS12)
	b.AddBytes(h.random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(h.sessionID[:])
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range p.CipherSuites() {
			b.AddUint16(cs)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(nullCompression)
	})
	if len(exts) > 0 {
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(exts)
		})
	}

	body, err := b.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build client hello body")
	}
	return body, nil
}

func entropySource(p Profile, rnd io.Reader) io.Reader {
	if p == Legacy {
		return zeroReader{}
	}
	if rnd == nil {
		return rand.Reader
	}
	return rnd
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}
