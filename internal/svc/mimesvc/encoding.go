package mimesvc

import (
	"encoding/base64"
	"strings"
)

// EncodeRawURL makes the message transport safe: standard base64 with
// '+' as '-', '/' as '_' and no trailing '='.
func EncodeRawURL(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}

func DecodeRawURL(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
}
