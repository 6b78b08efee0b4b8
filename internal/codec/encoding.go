package codec

import (
	"encoding/base64"
	"encoding/hex"
	"hash/crc32"
)

// DecodeBase64 decodes standard (non-URL) base64, as used by Gateway
// PIPE;...;B64;... commands (OSC 52 decodes with encoding/base64 itself).
func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// EncodeBase64 mirrors DecodeBase64.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeHex decodes the hex encoding accepted by Gateway
// PIPE;...;HEX;... payloads.
func DecodeHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// EncodeHex mirrors DecodeHex.
func EncodeHex(b []byte) string {
	return hex.EncodeToString(b)
}

// CRC32 checksums a framed-protocol payload; the knet framer appends it to
// every packet it encodes and checks it on every packet it decodes.
func CRC32(b []byte) uint32 {
	return crc32.ChecksumIEEE(b)
}
