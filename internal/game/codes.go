package game

import "math/rand"

// Join codes avoid glyphs that are easy to misread on a phone screen:
// 0, O, I, 1 and L are all out.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	codeLength     = 4
	codeMaxRetries = 5
)

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}
