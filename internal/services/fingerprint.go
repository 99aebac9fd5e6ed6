package services

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// NormalizeText lower-cases text and collapses runs of whitespace
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// Fingerprint is the hex blake2b-256 digest of the normalized text.
// The bank keeps it unique per category.
func Fingerprint(text string) string {
	sum := blake2b.Sum256([]byte(NormalizeText(text)))
	return hex.EncodeToString(sum[:])
}
