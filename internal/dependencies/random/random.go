package random

import (
	"crypto/rand"
)

// Random generates identifiers and can be mocked for testing
type Random interface {
	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// String draws each character uniformly from alphabet. Bytes that would bias
// the draw are discarded. Alphabets longer than 256 characters are truncated.
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	if len(alphabet) > 256 {
		alphabet = alphabet[:256]
	}

	limit := 256 - 256%len(alphabet)
	result := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(result) < length {
		if _, err := rand.Read(buf); err != nil {
			// crypto/rand does not fail on supported platforms
			panic(err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			result = append(result, alphabet[int(b)%len(alphabet)])
			if len(result) == length {
				break
			}
		}
	}
	return string(result)
}
