package hello

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

const (
	// type(1) + version(2) + length(2)
	RecordHeaderLength = 5
	// type(1) + length(3)
	HandshakeHeaderLength = 4

	recordTypeHandshake      = 0x16
	handshakeTypeClientHello = 0x01

	// The outer record claims TLS 1.0 regardless of the body's version, as
	// common TLS stacks do. Some middleboxes key on it.
	recordVersionTLS10 = 0x0301

	maxRecordPayload = 0xffff
)

// Frame wraps a ClientHello body in a handshake header and a TLS record
// header.
func Frame(body []byte) ([]byte, error) {
	if len(body)+HandshakeHeaderLength > maxRecordPayload {
		return nil, errors.Errorf("handshake message of %d bytes does not fit in one record", len(body)+HandshakeHeaderLength)
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, RecordHeaderLength+HandshakeHeaderLength+len(body)))
	b.AddUint8(recordTypeHandshake)
	b.AddUint16(recordVersionTLS10)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(handshakeTypeClientHello)
		b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(body)
		})
	})

	frame, err := b.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to frame client hello")
	}
	return frame, nil
}
