package engine

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

// VerificationCodeLen is the length of the code printed on a pass and
// embedded in its QR representation: 8 uppercase hex characters, short
// enough to read out loud at a door check.
const VerificationCodeLen = 8

// NewVerificationCode returns a fresh verification code. Codes are
// random enough to be collision-resistant within a school (uniqueness is
// still enforced by the storage layer and generation retried on the rare
// collision); they are identifiers for a hallway check, not secrets.
func NewVerificationCode() (string, error) {
	b := make([]byte, VerificationCodeLen/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
