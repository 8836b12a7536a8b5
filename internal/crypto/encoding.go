package crypto

import "strings"

// Encode converts text to its UTF-8 bytes.
func Encode(s string) []byte {
	return []byte(s)
}

// Decode converts UTF-8 bytes back to text. Invalid sequences become U+FFFD.
func Decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}
