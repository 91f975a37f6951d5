package gid

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeIDRoundTrip(t *testing.T) {
	id := GenerateProbeID()
	s := id.String()
	assert.True(t, strings.HasPrefix(s, "prb_"))
	assert.Len(t, s, len("prb_")+22)

	var parsed ProbeID
	require.NoError(t, ParseIDAs(s, &parsed))
	assert.Equal(t, id, parsed)
}

func TestZeroUUIDEncoding(t *testing.T) {
	id := NewDiagnosticID(uuid.Nil)
	assert.Equal(t, "dgn_0000000000000000000000", id.String())

	var parsed DiagnosticID
	require.NoError(t, ParseIDAs(id.String(), &parsed))
	assert.Equal(t, uuid.Nil, parsed.GetUUID())
}

func TestIDJSON(t *testing.T) {
	type wrapper struct {
		ID ProbeID `json:"id"`
	}
	in := wrapper{ID: GenerateProbeID()}
	bs, err := json.Marshal(in)
	require.NoError(t, err)

	var out wrapper
	require.NoError(t, json.Unmarshal(bs, &out))
	assert.Equal(t, in, out)
}

func TestParseIDErrors(t *testing.T) {
	testCases := []struct {
		name  string
		input string
	}{
		{"no separator", "prb"},
		{"unknown tag", "zzz_0000000000000000000000"},
		{"bad character", "prb_00000000000000000000-0"},
	}
	for _, tc := range testCases {
		_, err := ParseID(tc.input)
		assert.Error(t, err, tc.name)
	}

	// Parsing into the wrong ID type fails.
	var d DiagnosticID
	assert.Error(t, ParseIDAs(GenerateProbeID().String(), &d))
}
