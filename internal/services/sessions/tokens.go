package sessions

import (
	"crypto/rand"
	"fmt"
)

const (
	joinCodeLen = 10
	seedLen     = 32
)

// newToken returns a 128-bit base32 capability token.
func newToken() string {
	return rand.Text()
}

// newJoinCode returns a short public code, 50 bits of entropy.
func newJoinCode() string {
	return rand.Text()[:joinCodeLen]
}

func newSeed() ([]byte, error) {
	seed := make([]byte, seedLen)

	_, err := rand.Read(seed)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}

	return seed, nil
}
