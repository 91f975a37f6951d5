package record

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"

	"github.com/mel2oo/tlsprobe/optionals"
)

var ErrInsufficientBytes = errors.New("insufficient bytes for a TLS record header")

// Record is one decoded TLS record header plus whatever inner header could be
// decoded from the bytes that were present.
type Record struct {
	Type        ContentType `json:"type"`
	TypeName    string      `json:"type_name"`
	Version     Version     `json:"version"`
	VersionName string      `json:"version_name"`
	Length      uint16      `json:"length"`

	// Payload is bounded by Length, or by the bytes available if fewer.
	Payload   []byte `json:"-"`
	Truncated bool   `json:"truncated"`

	Handshake   optionals.Optional[HandshakeHeader] `json:"handshake"`
	Alert       optionals.Optional[AlertMessage]    `json:"alert"`
	ServerHello optionals.Optional[ServerHelloInfo] `json:"server_hello"`
}

type HandshakeHeader struct {
	Type     HandshakeType `json:"type"`
	TypeName string        `json:"type_name"`
	Length   uint32        `json:"length"`
}

type AlertMessage struct {
	Level           AlertLevel       `json:"level"`
	LevelName       string           `json:"level_name"`
	Description     AlertDescription `json:"description"`
	DescriptionName string           `json:"description_name"`
}

// Parse decodes the first record in data. Only a missing record header is an
// error; inner fields that do not fit are left unset.
func Parse(data []byte) (Record, error) {
	if len(data) < HeaderLength {
		return Record{}, errors.Wrapf(ErrInsufficientBytes, "got %d bytes", len(data))
	}

	s := cryptobyte.String(data)
	var contentType uint8
	var version, length uint16
	s.ReadUint8(&contentType)
	s.ReadUint16(&version)
	s.ReadUint16(&length)

	r := Record{
		Type:        ContentType(contentType),
		TypeName:    ContentType(contentType).String(),
		Version:     Version(version),
		VersionName: Version(version).Display(),
		Length:      length,
	}

	payload := []byte(s)
	if len(payload) > int(length) {
		payload = payload[:length]
	} else if len(payload) < int(length) {
		r.Truncated = true
	}
	r.Payload = payload

	switch r.Type {
	case Handshake:
		if len(payload) >= handshakeHeaderLength {
			hs := cryptobyte.String(payload)
			var msgType uint8
			var msgLen uint32
			hs.ReadUint8(&msgType)
			hs.ReadUint24(&msgLen)
			r.Handshake = optionals.Some(HandshakeHeader{
				Type:     HandshakeType(msgType),
				TypeName: HandshakeType(msgType).String(),
				Length:   msgLen,
			})
			if HandshakeType(msgType) == ServerHello {
				if sh, ok := parseServerHello(hs); ok {
					r.ServerHello = optionals.Some(sh)
				}
			}
		}
	case Alert:
		if len(payload) >= alertLength {
			level, desc := AlertLevel(payload[0]), AlertDescription(payload[1])
			r.Alert = optionals.Some(AlertMessage{
				Level:           level,
				LevelName:       level.String(),
				Description:     desc,
				DescriptionName: desc.String(),
			})
		}
	}

	return r, nil
}

// ParseAll decodes consecutive records until the data runs out or a record
// is truncated.
func ParseAll(data []byte) []Record {
	var records []Record
	for len(data) >= HeaderLength {
		r, err := Parse(data)
		if err != nil {
			break
		}
		records = append(records, r)
		if r.Truncated {
			break
		}
		data = data[HeaderLength+len(r.Payload):]
	}
	return records
}

// Summary is a one-line rendering for logs and CLI output.
func (r Record) Summary() string {
	out := r.TypeName + " " + r.VersionName
	if hs, ok := r.Handshake.Get(); ok {
		out += " " + hs.TypeName
	}
	if a, ok := r.Alert.Get(); ok {
		out += " " + a.LevelName + " " + a.DescriptionName
	}
	return out
}
