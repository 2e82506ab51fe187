// Package shortid generates compact, human-shareable identifiers for saved
// designs. A short ID is distinct from the design's primary key: it is what
// appears in /result/{shortId} links.
package shortid

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Length of a generated short ID. 8 characters over a 32-symbol alphabet give
// 40 bits; collisions are caught by the unique index at persistence time.
const Length = 8

// alphabet avoids visually ambiguous symbols (0/O, 1/I/l).
const alphabet = "23456789abcdefghjkmnpqrstuvwxyz_"

// New returns a fresh short ID.
func New() string {
	b := make([]byte, Length)
	if _, err := rand.Read(b); err != nil {
		// fallback: derive from current nanoseconds
		return fmt.Sprintf("t%07x", time.Now().UnixNano()&0xFFFFFFF)
	}
	for i, c := range b {
		b[i] = alphabet[int(c)%len(alphabet)]
	}
	return string(b)
}
