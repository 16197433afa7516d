package verification

import "crypto/rand"

// DefaultCodeLength is used when a non-positive length is configured.
const DefaultCodeLength = 6

// DigitGenerator produces fixed-length decimal codes from crypto/rand.
type DigitGenerator struct {
	length int
}

func NewDigitGenerator(length int) *DigitGenerator {
	if length <= 0 {
		length = DefaultCodeLength
	}
	return &DigitGenerator{length: length}
}

// Length is the number of digits every generated code has.
func (g *DigitGenerator) Length() int { return g.length }

// Generate returns a code of exactly Length digits. Bytes >= 250 are rejected so
// every digit is uniformly distributed.
func (g *DigitGenerator) Generate() string {
	code := make([]byte, 0, g.length)
	buf := make([]byte, g.length*2)
	for len(code) < g.length {
		// crypto/rand.Read never returns an error; it aborts the process if the
		// system entropy source fails.
		_, _ = rand.Read(buf)
		for _, b := range buf {
			if b >= 250 {
				continue
			}
			code = append(code, '0'+b%10)
			if len(code) == g.length {
				break
			}
		}
	}
	return string(code)
}
