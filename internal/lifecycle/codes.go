package lifecycle

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

// codeAlphabet omits O, 0, I, 1 and L, which are easily misread on printed invitations.
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const (
	suffixLength    = 4
	bareCodeLength  = 8
	maxPrefixLength = 10
	maxCodeAttempts = 100
)

// GenerateCode returns PREFIX-XXXX, or a bare random code when prefix is empty.
func GenerateCode(prefix string) (string, error) {
	prefix = NormalizePrefix(prefix)
	if prefix == "" {
		return randomString(bareCodeLength)
	}
	suffix, err := randomString(suffixLength)
	if err != nil {
		return "", err
	}
	return prefix + "-" + suffix, nil
}

// NormalizePrefix keeps letters and digits, uppercased and truncated.
func NormalizePrefix(p string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(p) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
		if b.Len() == maxPrefixLength {
			break
		}
	}
	return b.String()
}

// NormalizeCode is the stored and looked-up form of an attendance code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomString(n int) (string, error) {
	max := big.NewInt(int64(len(codeAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = codeAlphabet[idx.Int64()]
	}
	return string(out), nil
}
