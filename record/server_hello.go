package record

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"

	"golang.org/x/crypto/cryptobyte"
)

const supportedVersionsExtension = 0x002b

// ServerHelloInfo is what a ServerHello reveals about the negotiated
// parameters.
type ServerHelloInfo struct {
	Version         Version  `json:"version"`
	SelectedVersion Version  `json:"selected_version"`
	CipherSuite     uint16   `json:"cipher_suite"`
	Extensions      []uint16 `json:"extensions"`
	JA3S            string   `json:"ja3s"`
	JA3SHash        string   `json:"ja3s_hash"`
}

// body starts right after the handshake header.
func parseServerHello(body cryptobyte.String) (ServerHelloInfo, bool) {
	var info ServerHelloInfo
	var version, cipher uint16
	var sessionID cryptobyte.String
	var compression uint8
	if !body.ReadUint16(&version) ||
		!body.Skip(serverRandomLength) ||
		!body.ReadUint8LengthPrefixed(&sessionID) ||
		!body.ReadUint16(&cipher) ||
		!body.ReadUint8(&compression) {
		return info, false
	}
	info.Version = Version(version)
	info.SelectedVersion = Version(version)
	info.CipherSuite = cipher

	var exts cryptobyte.String
	if body.ReadUint16LengthPrefixed(&exts) {
		for !exts.Empty() {
			var extType uint16
			var data cryptobyte.String
			if !exts.ReadUint16(&extType) || !exts.ReadUint16LengthPrefixed(&data) {
				break
			}
			info.Extensions = append(info.Extensions, extType)

			var selected uint16
			if extType == supportedVersionsExtension && data.ReadUint16(&selected) {
				info.SelectedVersion = Version(selected)
			}
		}
	}

	info.JA3S, info.JA3SHash = ja3s(info)
	return info, true
}

// https://github.com/salesforce/ja3
// SSLVersion,Cipher,SSLExtension
func ja3s(info ServerHelloInfo) (string, string) {
	exts := make([]string, 0, len(info.Extensions))
	for _, e := range info.Extensions {
		exts = append(exts, strconv.FormatUint(uint64(e), 10))
	}
	str := strconv.FormatUint(uint64(info.Version), 10) + "," +
		strconv.FormatUint(uint64(info.CipherSuite), 10) + "," +
		strings.Join(exts, "-")

	h := md5.Sum([]byte(str))
	return str, hex.EncodeToString(h[:])
}
