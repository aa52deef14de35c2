package service

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// codePrefix strips a name to A-Z0-9 and takes the first 4 characters.
// Shorter names yield shorter prefixes; an empty result falls back to "REF".
func codePrefix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(name) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			if b.Len() == 4 {
				break
			}
		}
	}
	if b.Len() == 0 {
		return "REF"
	}
	return b.String()
}

func randomSuffix(n int) string {
	var b strings.Builder
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing is effectively unreachable; degrade to a
			// fixed character rather than failing code issuance.
			b.WriteByte('0')
			continue
		}
		b.WriteByte(codeAlphabet[idx.Int64()])
	}
	return b.String()
}

// generateUniqueCode builds name-prefixed codes (prefix + 4 random base-36
// chars) and checks each against exists. After attempts collisions it
// returns the last candidate anyway: a residual collision risk is preferred
// over failing a registration, and the insert's unique index still backstops.
func generateUniqueCode(name string, attempts int, exists func(string) (bool, error)) (string, error) {
	if attempts <= 0 {
		attempts = 10
	}
	prefix := codePrefix(name)
	var code string
	for i := 0; i < attempts; i++ {
		code = prefix + randomSuffix(4)
		taken, err := exists(code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return code, nil
}
