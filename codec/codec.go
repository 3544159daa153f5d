// Package codec converts radio payloads to and from their text form on the
// host link (standard base64 with padding).
package codec

import (
	"encoding/base64"

	"lorabridge/errcode"
)

// Encode returns the text form of b.
func Encode(b []byte) string { return base64.StdEncoding.EncodeToString(b) }

// Decode parses s. Malformed input yields an invalid_payload error.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidPayload, Op: "decode", Msg: "payload is not valid base64", Err: err}
	}
	return b, nil
}
