package utils

import (
	"regexp"
	"testing"
)

var accessCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}-[A-Z0-9]{4}$`)

func TestGenerateAccessCode(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 50; i++ {
		code, err := GenerateAccessCode()
		if err != nil {
			t.Fatalf("GenerateAccessCode: %v", err)
		}
		if !accessCodePattern.MatchString(code) {
			t.Fatalf("malformed code %q", code)
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("too many repeats: %d distinct of 50", len(seen))
	}
}

func TestNormalizeAccessCode(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ABCD-EFGH-1234-5678", "ABCD-EFGH-1234-5678"},
		{"abcd-efgh-1234-5678", "ABCD-EFGH-1234-5678"},
		{"ABCDEFGH12345678", "ABCD-EFGH-1234-5678"},
		{"  abcd efgh 1234 5678 ", "ABCD-EFGH-1234-5678"},
		{"ABCD-EFGH-1234", ""},
		{"ABCD-EFGH-1234-567!", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizeAccessCode(c.in); got != c.want {
			t.Fatalf("NormalizeAccessCode(%q)=%q, want %q", c.in, got, c.want)
		}
	}
}
