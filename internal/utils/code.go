package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const (
	accessCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	accessCodeLength   = 16
	accessCodeGroup    = 4
)

// GenerateAccessCode returns a 16-char code grouped 4×4, e.g. "ABCD-EFGH-1234-5678".
func GenerateAccessCode() (string, error) {
	var b strings.Builder
	for i := 0; i < accessCodeLength; i++ {
		if i > 0 && i%accessCodeGroup == 0 {
			b.WriteByte('-')
		}
		idxBig, err := rand.Int(rand.Reader, big.NewInt(int64(len(accessCodeAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(accessCodeAlphabet[idxBig.Int64()])
	}
	return b.String(), nil
}

// NormalizeAccessCode upper-cases the code and re-inserts group separators,
// so "abcdefgh12345678" and "ABCD-EFGH-1234-5678" compare equal.
// Returns "" when the input is not a well-formed code.
func NormalizeAccessCode(code string) string {
	raw := strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(code)))
	if len(raw) != accessCodeLength {
		return ""
	}
	var b strings.Builder
	for i, r := range raw {
		if !strings.ContainsRune(accessCodeAlphabet, r) {
			return ""
		}
		if i > 0 && i%accessCodeGroup == 0 {
			b.WriteByte('-')
		}
		b.WriteRune(r)
	}
	return b.String()
}
