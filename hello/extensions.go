package hello

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/cryptobyte"
	"golang.org/x/crypto/curve25519"
)

type ExtensionType uint16

// TLS extension numbers
const (
	ServerNameExtension           ExtensionType = 0x0000
	SupportedGroupsExtension      ExtensionType = 0x000a
	ECPointFormatsExtension       ExtensionType = 0x000b
	SignatureAlgorithmsExtension  ExtensionType = 0x000d
	EncryptThenMACExtension       ExtensionType = 0x0016
	ExtendedMasterSecretExtension ExtensionType = 0x0017
	SessionTicketExtension        ExtensionType = 0x0023
	SupportedVersionsExtension    ExtensionType = 0x002b
	PSKKeyExchangeModesExtension  ExtensionType = 0x002d
	KeyShareExtension             ExtensionType = 0x0033
)

var extensionNames = map[ExtensionType]string{
	ServerNameExtension:           "server_name",
	SupportedGroupsExtension:      "supported_groups",
	ECPointFormatsExtension:       "ec_point_formats",
	SignatureAlgorithmsExtension:  "signature_algorithms",
	EncryptThenMACExtension:       "encrypt_then_mac",
	ExtendedMasterSecretExtension: "extended_master_secret",
	SessionTicketExtension:        "session_ticket",
	SupportedVersionsExtension:    "supported_versions",
	PSKKeyExchangeModesExtension:  "psk_key_exchange_modes",
	KeyShareExtension:             "key_share",
}

func (t ExtensionType) String() string {
	if name, ok := extensionNames[t]; ok {
		return name
	}
	return "unknown"
}

const (
	dnsHostnameSNIType = 0x00
	x25519Group        = 0x001d
	x25519KeyLength    = 32
)

var (
	standardGroups = []uint16{
		0x001d, 0x0017, 0x001e, 0x0019, 0x0018,
		0x0100, 0x0101, 0x0102, 0x0103, 0x0104,
	}

	// Legacy codes 0x0303/0x0301/0x0302 appear after the modern ones, as in
	// the OpenSSL capture this list reproduces.
	standardSignatureAlgorithms = []uint16{
		0x0403, 0x0503, 0x0603, 0x0807, 0x0808, 0x0809, 0x080a,
		0x080b, 0x0804, 0x0805, 0x0806, 0x0401, 0x0501, 0x0601,
		0x0303, 0x0301, 0x0302, 0x0402, 0x0502, 0x0602,
	}

	standardPointFormats = []byte{0x00, 0x01, 0x02}
	// TLS 1.3, TLS 1.2
	standardVersions = []uint16{0x0304, 0x0303}
	// psk_dhe_ke
	standardPSKModes = []byte{0x01}

	minimalGroups              = []uint16{0x0017, 0x0018, 0x0019}
	minimalPointFormats        = []byte{0x00}
	minimalSignatureAlgorithms = []uint16{0x0401, 0x0501, 0x0403, 0x0503}
)

// Extension is one encoded TLS extension. Payload excludes the 4-byte
// type/length header.
type Extension struct {
	Type    ExtensionType
	Payload []byte
}

func (e Extension) marshal(b *cryptobyte.Builder) {
	b.AddUint16(uint16(e.Type))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(e.Payload)
	})
}

// Extensions returns the profile's extensions in wire order. An empty
// serverName omits SNI. rand feeds the Standard key share.
func Extensions(p Profile, serverName string, rand io.Reader) ([]Extension, error) {
	switch p {
	case Standard:
		return standardExtensions(serverName, rand)
	case Minimal:
		return minimalExtensions(serverName)
	case Legacy:
		if serverName == "" {
			return nil, nil
		}
		raw := legacyServerName(serverName)
		return []Extension{{Type: ServerNameExtension, Payload: raw[4:]}}, nil
	}
	return nil, errors.Wrapf(ErrUnknownProfile, "%d", int(p))
}

// EncodeExtensions returns the concatenated extension block without its
// outer length prefix.
func EncodeExtensions(p Profile, serverName string, rand io.Reader) ([]byte, error) {
	if p == Legacy {
		if serverName == "" {
			return nil, nil
		}
		return legacyServerName(serverName), nil
	}

	exts, err := Extensions(p, serverName, rand)
	if err != nil {
		return nil, err
	}
	b := cryptobyte.NewBuilder(nil)
	for _, e := range exts {
		e.marshal(b)
	}
	out, err := b.Bytes()
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode extensions")
	}
	return out, nil
}

func standardExtensions(serverName string, rand io.Reader) ([]Extension, error) {
	var exts []Extension
	if serverName != "" {
		sni, err := serverNamePayload(serverName)
		if err != nil {
			return nil, err
		}
		exts = append(exts, Extension{ServerNameExtension, sni})
	}

	keyShare, err := x25519KeyShare(rand)
	if err != nil {
		return nil, err
	}

	exts = append(exts,
		Extension{ECPointFormatsExtension, uint8Prefixed(standardPointFormats)},
		Extension{SupportedGroupsExtension, uint16ListPayload(standardGroups)},
		Extension{SessionTicketExtension, nil},
		Extension{EncryptThenMACExtension, nil},
		Extension{ExtendedMasterSecretExtension, nil},
		Extension{SignatureAlgorithmsExtension, uint16ListPayload(standardSignatureAlgorithms)},
		Extension{SupportedVersionsExtension, versionsPayload(standardVersions)},
		Extension{PSKKeyExchangeModesExtension, uint8Prefixed(standardPSKModes)},
		Extension{KeyShareExtension, keyShare},
	)
	return exts, nil
}

func minimalExtensions(serverName string) ([]Extension, error) {
	var exts []Extension
	if serverName != "" {
		sni, err := serverNamePayload(serverName)
		if err != nil {
			return nil, err
		}
		exts = append(exts, Extension{ServerNameExtension, sni})
	}
	exts = append(exts,
		Extension{SupportedGroupsExtension, uint16ListPayload(minimalGroups)},
		Extension{ECPointFormatsExtension, uint8Prefixed(minimalPointFormats)},
		Extension{SignatureAlgorithmsExtension, uint16ListPayload(minimalSignatureAlgorithms)},
	)
	return exts, nil
}

// server_name_list(2) | name_type(1) | host_name(2+n)
func serverNamePayload(name string) ([]byte, error) {
	b := cryptobyte.NewBuilder(nil)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(dnsHostnameSNIType)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes([]byte(name))
		})
	})
	out, err := b.Bytes()
	if err != nil {
		return nil, errors.Wrapf(err, "server name of %d bytes does not fit", len(name))
	}
	return out, nil
}

// legacyServerName writes the whole SNI extension with precomputed lengths
// instead of nested length prefixes. Lengths wrap silently for names beyond
// 64 KiB.
func legacyServerName(name string) []byte {
	n := len(name)
	out := make([]byte, 0, n+9)
	out = binary.BigEndian.AppendUint16(out, uint16(ServerNameExtension))
	out = binary.BigEndian.AppendUint16(out, uint16(n+5))
	out = binary.BigEndian.AppendUint16(out, uint16(n+3))
	out = append(out, dnsHostnameSNIType)
	out = binary.BigEndian.AppendUint16(out, uint16(n))
	return append(out, name...)
}

// client_shares(2) | group(2) | key_exchange(2+32)
func x25519KeyShare(rand io.Reader) ([]byte, error) {
	scalar := make([]byte, curve25519.ScalarSize)
	if _, err := io.ReadFull(rand, scalar); err != nil {
		return nil, errors.Wrap(err, "failed to read key share scalar")
	}
	public, err := curve25519.X25519(scalar, curve25519.Basepoint)
	if err != nil {
		return nil, errors.Wrap(err, "failed to derive x25519 key share")
	}

	b := cryptobyte.NewBuilder(make([]byte, 0, 2+4+x25519KeyLength))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint16(x25519Group)
		b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddBytes(public)
		})
	})
	return b.BytesOrPanic(), nil
}

func uint16ListPayload(vs []uint16) []byte {
	b := cryptobyte.NewBuilder(make([]byte, 0, 2+2*len(vs)))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range vs {
			b.AddUint16(v)
		}
	})
	return b.BytesOrPanic()
}

func versionsPayload(vs []uint16) []byte {
	b := cryptobyte.NewBuilder(make([]byte, 0, 1+2*len(vs)))
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, v := range vs {
			b.AddUint16(v)
		}
	})
	return b.BytesOrPanic()
}

func uint8Prefixed(bs []byte) []byte {
	return append([]byte{byte(len(bs))}, bs...)
}
