package record

import "fmt"

const (
	// type(1) + version(2) + length(2)
	HeaderLength = 5
	// type(1) + length(3)
	handshakeHeaderLength = 4
	// level(1) + description(1)
	alertLength = 2

	serverRandomLength = 32
)

type ContentType uint8

const (
	ChangeCipherSpec ContentType = 20
	Alert            ContentType = 21
	Handshake        ContentType = 22
	ApplicationData  ContentType = 23
)

var contentTypeNames = map[ContentType]string{
	ChangeCipherSpec: "Change Cipher Spec",
	Alert:            "Alert",
	Handshake:        "Handshake",
	ApplicationData:  "Application Data",
}

func (t ContentType) String() string {
	return lookup(contentTypeNames, t)
}

type Version uint16

func (v Version) String() string {
	switch v {
	case 0x0300:
		return "SSLv3"
	case 0x0301:
		return "TLSv1.0"
	case 0x0302:
		return "TLSv1.1"
	case 0x0303:
		return "TLSv1.2"
	case 0x0304:
		return "TLSv1.3"
	default:
		return "unknown"
	}
}

// Display renders the raw version bytes as "major.minor", e.g. "3.3".
func (v Version) Display() string {
	return fmt.Sprintf("%d.%d", uint8(v>>8), uint8(v))
}

type HandshakeType uint8

const (
	HelloRequest       HandshakeType = 0
	ClientHello        HandshakeType = 1
	ServerHello        HandshakeType = 2
	Certificate        HandshakeType = 11
	ServerKeyExchange  HandshakeType = 12
	CertificateRequest HandshakeType = 13
	ServerHelloDone    HandshakeType = 14
	CertificateVerify  HandshakeType = 15
	ClientKeyExchange  HandshakeType = 16
	Finished           HandshakeType = 20
)

var handshakeTypeNames = map[HandshakeType]string{
	HelloRequest:       "Hello Request",
	ClientHello:        "Client Hello",
	ServerHello:        "Server Hello",
	Certificate:        "Certificate",
	ServerKeyExchange:  "Server Key Exchange",
	CertificateRequest: "Certificate Request",
	ServerHelloDone:    "Server Hello Done",
	CertificateVerify:  "Certificate Verify",
	ClientKeyExchange:  "Client Key Exchange",
	Finished:           "Finished",
}

func (t HandshakeType) String() string {
	return lookup(handshakeTypeNames, t)
}

type AlertLevel uint8

const (
	Warning AlertLevel = 1
	Fatal   AlertLevel = 2
)

var alertLevelNames = map[AlertLevel]string{
	Warning: "Warning",
	Fatal:   "Fatal",
}

func (l AlertLevel) String() string {
	return lookup(alertLevelNames, l)
}

type AlertDescription uint8

var alertDescriptionNames = map[AlertDescription]string{
	0:   "close_notify",
	10:  "unexpected_message",
	20:  "bad_record_mac",
	21:  "decryption_failed",
	22:  "record_overflow",
	30:  "decompression_failure",
	40:  "handshake_failure",
	41:  "no_certificate",
	42:  "bad_certificate",
	43:  "unsupported_certificate",
	44:  "certificate_revoked",
	45:  "certificate_expired",
	46:  "certificate_unknown",
	47:  "illegal_parameter",
	48:  "unknown_ca",
	49:  "access_denied",
	50:  "decode_error",
	51:  "decrypt_error",
	70:  "protocol_version",
	71:  "insufficient_security",
	80:  "internal_error",
	86:  "inappropriate_fallback",
	90:  "user_canceled",
	100: "no_renegotiation",
	109: "missing_extension",
	110: "unsupported_extension",
	112: "unrecognized_name",
	116: "no_application_protocol",
}

func (d AlertDescription) String() string {
	return lookup(alertDescriptionNames, d)
}

func lookup[K ~uint8](names map[K]string, k K) string {
	if name, ok := names[k]; ok {
		return name
	}
	return fmt.Sprintf("Unknown (%d)", k)
}
