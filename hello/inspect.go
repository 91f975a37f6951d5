package hello

import (
	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
)

var (
	ErrNotClientHello = errors.New("not a TLS ClientHello record")
	ErrMalformed      = errors.New("malformed TLS ClientHello")
)

// Summary is the decoded shape of a ClientHello record. It is what the JA3
// fingerprint and the offline analyzer work from.
type Summary struct {
	RecordVersion     uint16   `json:"record_version"`
	Version           uint16   `json:"version"`
	SessionIDLength   int      `json:"session_id_length"`
	CipherSuites      []uint16 `json:"cipher_suites"`
	Extensions        []uint16 `json:"extensions"`
	ServerName        string   `json:"server_name,omitempty"`
	SupportedGroups   []uint16 `json:"supported_groups,omitempty"`
	PointFormats      []uint8  `json:"point_formats,omitempty"`
	SupportedVersions []uint16 `json:"supported_versions,omitempty"`
}

// Inspect decodes a framed ClientHello, as produced by Build or seen in a
// capture.
func Inspect(frame []byte) (*Summary, error) {
	s := cryptobyte.String(frame)

	var contentType uint8
	var summary Summary
	var record cryptobyte.String
	if !s.ReadUint8(&contentType) || contentType != recordTypeHandshake {
		return nil, ErrNotClientHello
	}
	if !s.ReadUint16(&summary.RecordVersion) || !s.ReadUint16LengthPrefixed(&record) {
		return nil, errors.Wrap(ErrMalformed, "truncated record")
	}

	var msgType uint8
	var body cryptobyte.String
	if !record.ReadUint8(&msgType) || msgType != handshakeTypeClientHello {
		return nil, ErrNotClientHello
	}
	if !record.ReadUint24LengthPrefixed(&body) {
		return nil, errors.Wrap(ErrMalformed, "truncated handshake message")
	}

	var sessionID, suites, compression cryptobyte.String
	if !body.ReadUint16(&summary.Version) ||
		!body.Skip(randomLength) ||
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16LengthPrefixed(&suites) ||
		!body.ReadUint8LengthPrefixed(&compression) {
		return nil, errors.Wrap(ErrMalformed, "truncated hello fields")
	}
	summary.SessionIDLength = len(sessionID)

	for !suites.Empty() {
		var cs uint16
		if !suites.ReadUint16(&cs) {
			return nil, errors.Wrap(ErrMalformed, "odd cipher suite list")
		}
		summary.CipherSuites = append(summary.CipherSuites, cs)
	}

	// Extensions are optional.
	if body.Empty() {
		return &summary, nil
	}
	var exts cryptobyte.String
	if !body.ReadUint16LengthPrefixed(&exts) {
		return nil, errors.Wrap(ErrMalformed, "truncated extensions")
	}

	for !exts.Empty() {
		var extType uint16
		var data cryptobyte.String
		if !exts.ReadUint16(&extType) || !exts.ReadUint16LengthPrefixed(&data) {
			return nil, errors.Wrap(ErrMalformed, "truncated extension")
		}
		summary.Extensions = append(summary.Extensions, extType)

		var ok bool
		switch ExtensionType(extType) {
		case ServerNameExtension:
			summary.ServerName, ok = parseServerName(data)
		case SupportedGroupsExtension:
			summary.SupportedGroups, ok = readUint16List(data)
		case ECPointFormatsExtension:
			var formats cryptobyte.String
			ok = data.ReadUint8LengthPrefixed(&formats)
			summary.PointFormats = append([]uint8(nil), formats...)
		case SupportedVersionsExtension:
			var versions cryptobyte.String
			ok = data.ReadUint8LengthPrefixed(&versions)
			for ok && !versions.Empty() {
				var v uint16
				ok = versions.ReadUint16(&v)
				summary.SupportedVersions = append(summary.SupportedVersions, v)
			}
		default:
			ok = true
		}
		if !ok {
			return nil, errors.Wrapf(ErrMalformed, "bad %s extension", ExtensionType(extType))
		}
	}

	return &summary, nil
}

// Only DNS host names (type 0, RFC 6066) are recognised.
func parseServerName(data cryptobyte.String) (string, bool) {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return "", false
	}
	for !list.Empty() {
		var nameType uint8
		var name cryptobyte.String
		if !list.ReadUint8(&nameType) || !list.ReadUint16LengthPrefixed(&name) {
			return "", false
		}
		if nameType == dnsHostnameSNIType {
			return string(name), true
		}
	}
	return "", true
}

func readUint16List(data cryptobyte.String) ([]uint16, bool) {
	var list cryptobyte.String
	if !data.ReadUint16LengthPrefixed(&list) {
		return nil, false
	}
	var rv []uint16
	for !list.Empty() {
		var v uint16
		if !list.ReadUint16(&v) {
			return nil, false
		}
		rv = append(rv, v)
	}
	return rv, true
}
