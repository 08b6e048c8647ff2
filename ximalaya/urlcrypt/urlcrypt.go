// Package urlcrypt decodes the obfuscated play URLs returned by the track
// detail endpoint.
package urlcrypt

import (
	"crypto/aes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/xeptore/xmlydl/must"
)

const keyHex = "aaad3e4fd540b0f79dca95606e72bf93"

var key = mustDecodeKey(keyHex)

func mustDecodeKey(s string) []byte {
	k := must.Get(hex.DecodeString(s))
	must.Be(len(k) == aes.BlockSize, "url key must be a single AES block")

	return k
}

var (
	ErrInvalidCiphertext = errors.New("invalid url ciphertext")
	ErrInvalidPlaintext  = errors.New("decrypted url is not valid UTF-8")
)

// DecryptURL decodes URL-safe base64 input (padding optional), decrypts it
// with AES-128 in ECB mode, and drops every byte outside printable ASCII.
func DecryptURL(ciphertext string) (string, error) {
	if rem := len(ciphertext) % 4; rem != 0 {
		ciphertext += strings.Repeat("=", 4-rem)
	}

	data, err := base64.URLEncoding.DecodeString(ciphertext)
	if nil != err {
		return "", fmt.Errorf("%w: failed to decode base64: %v", ErrInvalidCiphertext, err)
	}

	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: length %d is not a multiple of block size", ErrInvalidCiphertext, len(data))
	}

	block := must.Get(aes.NewCipher(key))

	plain := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(plain[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}

	if !utf8.Valid(plain) {
		return "", ErrInvalidPlaintext
	}

	return printable(plain), nil
}

func printable(b []byte) string {
	var out strings.Builder
	out.Grow(len(b))
	for _, c := range b {
		if c >= 0x20 && c <= 0x7e {
			out.WriteByte(c)
		}
	}

	return out.String()
}
