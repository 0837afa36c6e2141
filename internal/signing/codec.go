// Package signing implements the canonical parameter encoding and the
// HMAC-SHA512 signatures exchanged with the payment gateway.
package signing

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"slices"
	"strings"
)

// HashFields are the parameters carrying the signature itself. They never take
// part in the canonical string.
var HashFields = []string{"vnp_SecureHash", "vnp_SecureHashType"}

// Canonicalize drops empty values, orders keys byte-wise and joins them as
// key=value pairs with percent-encoded values.
func Canonicalize(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if v == "" {
			continue
		}
		keys = append(keys, k)
	}
	// slices.Sort compares strings byte-wise; no collation is involved.
	slices.Sort(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(PercentEncode(params[k]))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of data keyed by secret.
func Sign(secret, data string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignFields signs the pipe-joined fields, the layout used by the gateway's
// server-to-server API.
func SignFields(secret string, fields ...string) string {
	return Sign(secret, strings.Join(fields, "|"))
}

// Verify recomputes the signature of params without the hash fields and
// compares it to provided in constant time. Hex case is ignored.
func Verify(secret string, params map[string]string, provided string) bool {
	filtered := make(map[string]string, len(params))
	for k, v := range params {
		if slices.Contains(HashFields, k) {
			continue
		}
		filtered[k] = v
	}
	return Equal(Sign(secret, Canonicalize(filtered)), provided)
}

// Equal compares two hex signatures in constant time, ignoring case.
func Equal(expected, provided string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(provided)
	if err != nil || len(got) == 0 {
		return false
	}
	return hmac.Equal(want, got)
}

const upperHex = "0123456789ABCDEF"

// PercentEncode escapes every byte outside the RFC 3986 unreserved set.
func PercentEncode(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(upperHex[c>>4])
		b.WriteByte(upperHex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '.', c == '_', c == '~':
		return true
	}
	return false
}
