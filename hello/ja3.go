package hello

// https://github.com/salesforce/ja3

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/mel2oo/tlsprobe/slices"
)

// Fingerprint is a JA3 string and its MD5 hash.
type Fingerprint struct {
	String string `json:"ja3"`
	Hash   string `json:"ja3_hash"`
}

// JA3 fingerprints a decoded ClientHello.
// SSLVersion,Cipher,SSLExtension,EllipticCurve,EllipticCurvePointFormat
func JA3(s *Summary) Fingerprint {
	fields := []string{
		strconv.FormatUint(uint64(s.Version), 10),
		joinDecimal(s.CipherSuites),
		joinDecimal(s.Extensions),
		joinDecimal(s.SupportedGroups),
		joinDecimal(slices.Map(s.PointFormats, func(v uint8) uint16 { return uint16(v) })),
	}
	str := strings.Join(fields, ",")

	h := md5.Sum([]byte(str))
	return Fingerprint{
		String: str,
		Hash:   hex.EncodeToString(h[:]),
	}
}

// Fingerprint computes the JA3 of a built hello.
func (h *ClientHello) Fingerprint() (Fingerprint, error) {
	s, err := Inspect(h.frame)
	if err != nil {
		return Fingerprint{}, err
	}
	return JA3(s), nil
}

func joinDecimal(vs []uint16) string {
	return strings.Join(slices.Map(vs, func(v uint16) string {
		return strconv.FormatUint(uint64(v), 10)
	}), "-")
}
