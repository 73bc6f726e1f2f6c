package value

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainStatement prefixes statement fingerprints.
// The version suffix allows the algorithm to change later.
const DomainStatement = "cypherq/statement/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator keeps the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint computes the content-addressed ID of a compiled statement.
// Equal text with canonically equal parameters yields the same ID.
func Fingerprint(text string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	canonical, err := MarshalCanonical(map[string]any{
		"params": params,
		"text":   text,
	})
	if err != nil {
		return "", fmt.Errorf("Fingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainStatement, canonical), nil
}
