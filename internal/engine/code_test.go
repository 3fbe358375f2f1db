package engine

import (
	"strings"
	"testing"
)

func TestNewVerificationCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := NewVerificationCode()
		if err != nil {
			t.Fatalf("code generation failed: %v", err)
		}
		if len(code) != VerificationCodeLen {
			t.Fatalf("expected %d characters, got %q", VerificationCodeLen, code)
		}
		if code != strings.ToUpper(code) {
			t.Fatalf("code should be uppercase: %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune("0123456789ABCDEF", r) {
				t.Fatalf("non-hex character %q in code %q", r, code)
			}
		}
		if seen[code] {
			t.Fatalf("duplicate code %q within 200 draws", code)
		}
		seen[code] = true
	}
}
