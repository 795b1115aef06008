// Package cryptox computes content digests of protocol values.
package cryptox

import (
	"encoding/hex"

	"github.com/donets/jtrack/internal/codec"
	"golang.org/x/crypto/blake2b"
)

// Digest returns the hex blake2b-256 sum of the canonical CBOR encoding
// of v. Equal values give equal digests regardless of map order.
func Digest(v any) (string, error) {
	b, err := codec.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := blake2b.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
