package hello

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Profile selects a fixed ClientHello shape: an ordered cipher-suite list and
// an ordered extension set.
type Profile int

const (
	// Standard mirrors a modern OpenSSL client offering TLS 1.3 and 1.2.
	Standard Profile = iota
	// Minimal offers a handful of classic TLS 1.2 suites and curves.
	Minimal
	// Legacy offers three RSA suites, zeroed random and session id, and at
	// most an SNI extension.
	Legacy
)

var ErrUnknownProfile = errors.New("unknown hello profile")

var profileNames = map[Profile]string{
	Standard: "standard",
	Minimal:  "minimal",
	Legacy:   "legacy",
}

var standardCipherSuites = []uint16{
	0x1302, 0x1303, 0x1301, // TLS 1.3
	0xc02c, 0xc030, 0x009f, 0xcca9, 0xcca8, 0xccaa,
	0xc02b, 0xc02f, 0x009e, 0xc024, 0xc028, 0x006b,
	0xc023, 0xc027, 0x0067, 0xc00a, 0xc014, 0x0039,
	0xc009, 0xc013, 0x0033, 0x009d, 0x009c, 0x003d,
	0x003c, 0x0035, 0x002f,
	0x00ff, // renegotiation SCSV
}

var minimalCipherSuites = []uint16{
	0xc02f, 0xc030, 0x009c, 0x009d, 0x002f, 0x0035,
}

var legacyCipherSuites = []uint16{
	0x002f, 0x0035, 0x000a,
}

// Profiles lists every profile in diagnostic order.
func Profiles() []Profile {
	return []Profile{Standard, Minimal, Legacy}
}

func ParseProfile(s string) (Profile, error) {
	for p, name := range profileNames {
		if strings.EqualFold(s, name) {
			return p, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownProfile, "%q", s)
}

func (p Profile) String() string {
	if name, ok := profileNames[p]; ok {
		return name
	}
	return "unknown"
}

// CipherSuites returns a copy of the profile's ordered suite list.
func (p Profile) CipherSuites() []uint16 {
	switch p {
	case Standard:
		return slices.Clone(standardCipherSuites)
	case Minimal:
		return slices.Clone(minimalCipherSuites)
	case Legacy:
		return slices.Clone(legacyCipherSuites)
	}
	return nil
}

func (p Profile) valid() bool {
	_, ok := profileNames[p]
	return ok
}

func (p Profile) MarshalText() ([]byte, error) {
	if !p.valid() {
		return nil, errors.Wrapf(ErrUnknownProfile, "%d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Profile) UnmarshalText(data []byte) error {
	parsed, err := ParseProfile(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
