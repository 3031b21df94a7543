package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SameAddress reports whether two account addresses refer to the same
// account. Hex addresses compare by their parsed 20-byte value, so checksum
// casing never matters; anything else falls back to a case-insensitive
// string compare.
func SameAddress(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if common.IsHexAddress(a) && common.IsHexAddress(b) {
		return common.HexToAddress(a) == common.HexToAddress(b)
	}
	return strings.EqualFold(a, b)
}

// ValidAddress reports whether s looks like a hex account address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}
