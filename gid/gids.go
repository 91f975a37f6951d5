package gid

import (
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	DiagnosticTag = "dgn"
	ProbeTag      = "prb"
)

type tagToIDConstructor func(uuid.UUID) ID

var idConstructorMap = map[string]tagToIDConstructor{
	DiagnosticTag: func(ID uuid.UUID) ID { return NewDiagnosticID(ID) },
	ProbeTag:      func(ID uuid.UUID) ID { return NewProbeID(ID) },
}

func parseIDParts(str string) (string, uuid.UUID, error) {
	parts := strings.Split(str, "_")
	if len(parts) != 2 {
		return "", uuid.Nil, errors.New("invalid GID structure")
	}
	idPart, err := decodeUUID(parts[1])
	if err != nil {
		return "", uuid.Nil, errors.Wrap(err, "invalid unique id part of GID")
	}
	return parts[0], idPart, nil
}

func ParseID(str string) (ID, error) {
	tagName, uniquePart, err := parseIDParts(str)
	if err != nil {
		return nil, err
	}

	constructor := idConstructorMap[tagName]
	if constructor == nil {
		return nil, errors.Errorf("no known gid for tag %s", tagName)
	}

	return constructor(uniquePart), nil
}

func ParseIDAs(str string, destID interface{}) error {
	id, err := ParseID(str)
	if err != nil {
		return errors.Wrapf(err, "parse ID failed: %s", str)
	}
	return assignTo(id, destID)
}

// ProbeIDs identify a single handshake probe attempt.
type ProbeID struct {
	baseID
}

func (ProbeID) GetType() string {
	return ProbeTag
}

func (id ProbeID) String() string {
	return String(id)
}

func NewProbeID(ID uuid.UUID) ProbeID {
	return ProbeID{baseID(ID)}
}

func GenerateProbeID() ProbeID {
	return NewProbeID(uuid.New())
}

func (id ProbeID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *ProbeID) UnmarshalText(data []byte) error {
	return fromText(id, data)
}

// DiagnosticIDs identify one run of the diagnostic suite.
type DiagnosticID struct {
	baseID
}

func (DiagnosticID) GetType() string {
	return DiagnosticTag
}

func (id DiagnosticID) String() string {
	return String(id)
}

func NewDiagnosticID(ID uuid.UUID) DiagnosticID {
	return DiagnosticID{baseID(ID)}
}

func GenerateDiagnosticID() DiagnosticID {
	return NewDiagnosticID(uuid.New())
}

func (id DiagnosticID) MarshalText() ([]byte, error) {
	return toText(id)
}

func (id *DiagnosticID) UnmarshalText(data []byte) error {
	return fromText(id, data)
}
