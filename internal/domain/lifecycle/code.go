package lifecycle

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Bytes at or above this bound are rejected to keep the alphabet uniform.
const unbiasedBound = 256 - 256%len(codeAlphabet)

// CodeGenerator produces candidate codes. Collisions are resolved by the caller.
type CodeGenerator func() (string, error)

var randSource io.Reader = rand.Reader

// NewCode returns a random XXXX-XXXX-XXXX code.
func NewCode() (string, error) {
	return generate(randSource, 3, 4)
}

// NewBindingCode returns a random 6 character code.
func NewBindingCode() (string, error) {
	return generate(randSource, 1, 6)
}

func generate(r io.Reader, groups, size int) (string, error) {
	var b strings.Builder
	b.Grow(groups*size + groups - 1)

	buf := make([]byte, 1)
	for g := 0; g < groups; g++ {
		if g > 0 {
			b.WriteByte('-')
		}
		for n := 0; n < size; {
			if _, err := io.ReadFull(r, buf); err != nil {
				return "", fmt.Errorf("failed to read random bytes: %w", err)
			}
			if int(buf[0]) >= unbiasedBound {
				continue
			}
			b.WriteByte(codeAlphabet[int(buf[0])%len(codeAlphabet)])
			n++
		}
	}
	return b.String(), nil
}

// ValidCode reports whether code has the XXXX-XXXX-XXXX shape.
func ValidCode(code string) bool {
	if len(code) != 14 {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if i == 4 || i == 9 {
			if c != '-' {
				return false
			}
			continue
		}
		if !strings.ContainsRune(codeAlphabet, rune(c)) {
			return false
		}
	}
	return true
}

// NormalizeCode upper-cases and trims user supplied codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
