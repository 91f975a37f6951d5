package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFatalAlert(t *testing.T) {
	r, err := Parse([]byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28})
	require.NoError(t, err)

	assert.Equal(t, "Alert", r.TypeName)
	assert.Equal(t, "3.3", r.VersionName)
	assert.Equal(t, "TLSv1.2", r.Version.String())
	assert.Equal(t, uint16(2), r.Length)

	alert, ok := r.Alert.Get()
	require.True(t, ok)
	assert.Equal(t, "Fatal", alert.LevelName)
	assert.Equal(t, "handshake_failure", alert.DescriptionName)
	assert.True(t, r.Handshake.IsNone())
	assert.Equal(t, "Alert 3.3 Fatal handshake_failure", r.Summary())
}

func TestParseInsufficientBytes(t *testing.T) {
	for n := 0; n < HeaderLength; n++ {
		_, err := Parse(make([]byte, n))
		assert.ErrorIs(t, err, ErrInsufficientBytes, "%d bytes", n)
	}
}

func TestParseDegradesGracefully(t *testing.T) {
	testCases := []struct {
		name          string
		input         []byte
		payloadLen    int
		truncated     bool
		haveHandshake bool
		haveAlert     bool
	}{
		{
			name:       "header only",
			input:      []byte{0x16, 0x03, 0x03, 0x00, 0x40},
			payloadLen: 0,
			truncated:  true,
		},
		{
			name:       "short handshake header",
			input:      []byte{0x16, 0x03, 0x03, 0x00, 0x40, 0x02, 0x00},
			payloadLen: 2,
			truncated:  true,
		},
		{
			name:       "alert missing description",
			input:      []byte{0x15, 0x03, 0x01, 0x00, 0x02, 0x02},
			payloadLen: 1,
			truncated:  true,
		},
		{
			name:          "handshake header present",
			input:         []byte{0x16, 0x03, 0x03, 0x00, 0x04, 0x0e, 0x00, 0x00, 0x00},
			payloadLen:    4,
			haveHandshake: true,
		},
		{
			name:       "payload bounded by length",
			input:      []byte{0x17, 0x03, 0x03, 0x00, 0x01, 0xaa, 0xbb, 0xcc},
			payloadLen: 1,
		},
	}

	for _, tc := range testCases {
		r, err := Parse(tc.input)
		require.NoError(t, err, tc.name)
		assert.Len(t, r.Payload, tc.payloadLen, tc.name)
		assert.Equal(t, tc.truncated, r.Truncated, tc.name)
		assert.Equal(t, tc.haveHandshake, r.Handshake.IsSome(), tc.name)
		assert.Equal(t, tc.haveAlert, r.Alert.IsSome(), tc.name)
	}
}

func TestNameTables(t *testing.T) {
	assert.Equal(t, "Unknown (24)", ContentType(24).String())
	assert.Equal(t, "Change Cipher Spec", ChangeCipherSpec.String())
	assert.Equal(t, "Server Hello Done", ServerHelloDone.String())
	assert.Equal(t, "Unknown (3)", HandshakeType(3).String())
	assert.Equal(t, "Warning", Warning.String())
	assert.Equal(t, "Unknown (7)", AlertLevel(7).String())
	assert.Equal(t, "close_notify", AlertDescription(0).String())
	assert.Equal(t, "no_renegotiation", AlertDescription(100).String())
	assert.Equal(t, "unrecognized_name", AlertDescription(112).String())
	assert.Equal(t, "Unknown (255)", AlertDescription(255).String())
	assert.Equal(t, "3.1", Version(0x0301).Display())
	assert.Equal(t, "unknown", Version(0x0305).String())
}

func serverHelloRecord() []byte {
	body := []byte{0x03, 0x03}
	body = append(body, make([]byte, 32)...)
	body = append(body, 0x00)       // empty session id
	body = append(body, 0x13, 0x01) // TLS_AES_128_GCM_SHA256
	body = append(body, 0x00)       // null compression
	body = append(body,
		0x00, 0x06, // extensions length
		0x00, 0x2b, 0x00, 0x02, 0x03, 0x04, // supported_versions: TLS 1.3
	)

	msg := append([]byte{0x02, 0x00, 0x00, byte(len(body))}, body...)
	return append([]byte{0x16, 0x03, 0x03, 0x00, byte(len(msg))}, msg...)
}

func TestParseServerHello(t *testing.T) {
	r, err := Parse(serverHelloRecord())
	require.NoError(t, err)

	hs, ok := r.Handshake.Get()
	require.True(t, ok)
	assert.Equal(t, "Server Hello", hs.TypeName)

	sh, ok := r.ServerHello.Get()
	require.True(t, ok)
	assert.Equal(t, Version(0x0303), sh.Version)
	assert.Equal(t, Version(0x0304), sh.SelectedVersion)
	assert.Equal(t, uint16(0x1301), sh.CipherSuite)
	assert.Equal(t, []uint16{0x002b}, sh.Extensions)
	assert.Equal(t, "771,4865,43", sh.JA3S)
	assert.Len(t, sh.JA3SHash, 32)
}

func TestParseAll(t *testing.T) {
	data := serverHelloRecord()
	data = append(data, 0x14, 0x03, 0x03, 0x00, 0x01, 0x01)
	data = append(data, 0x15, 0x03, 0x03, 0x00, 0x02, 0x01)

	records := ParseAll(data)
	require.Len(t, records, 3)
	assert.Equal(t, Handshake, records[0].Type)
	assert.Equal(t, ChangeCipherSpec, records[1].Type)
	assert.Equal(t, Alert, records[2].Type)
	assert.True(t, records[2].Truncated)

	assert.Empty(t, ParseAll([]byte{0x16, 0x03}))
}

func TestRecordJSON(t *testing.T) {
	r, err := Parse([]byte{0x15, 0x03, 0x03, 0x00, 0x02, 0x02, 0x28})
	require.NoError(t, err)

	bs, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(bs, &decoded))
	assert.Nil(t, decoded["handshake"])
	alert := decoded["alert"].(map[string]interface{})
	assert.Equal(t, "handshake_failure", alert["description_name"])
}
