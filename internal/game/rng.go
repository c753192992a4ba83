package game

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"
	"strconv"
)

// NewRNG derives a deterministic generator for one transition of one session:
// HMAC-SHA256(seed, sessionID|seq) split into the two PCG state words.
func NewRNG(seed []byte, sessionID string, seq int64) *rand.Rand {
	mac := hmac.New(sha256.New, seed)
	mac.Write([]byte(sessionID + "|" + strconv.FormatInt(seq, 10)))
	sum := mac.Sum(nil)

	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:16])))
}
