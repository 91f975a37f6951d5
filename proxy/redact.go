package proxy

import (
	"regexp"
)

const redactedValue = "***"

var authorizationPattern = regexp.MustCompile(`(?im)^(proxy-authorization:\s*\S+\s+)\S+`)

// RedactRequest masks credentials in a raw CONNECT request so it can be
// logged.
func RedactRequest(raw []byte) string {
	return authorizationPattern.ReplaceAllString(string(raw), "${1}"+redactedValue)
}
