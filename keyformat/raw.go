package keyformat

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/samber/lo"

	"github.com/bastionzero/rsakit"
)

var (
	rawExponentNames = []string{"e", "exponent", "publicexponent", "0"}
	rawModulusNames  = []string{"n", "modulo", "modulus", "1"}
)

// FromRaw builds a public key from a map of components. Names are matched case-insensitively and
// several spellings are accepted: e, exponent, publicExponent or "0" for the exponent and n,
// modulo, modulus or "1" for the modulus
func FromRaw(components map[string]*big.Int) (*rsakit.Key, error) {
	lookup := func(names []string) *big.Int {
		for name, value := range components {
			if lo.Contains(names, strings.ToLower(name)) && value != nil {
				return new(big.Int).Set(value)
			}
		}
		return nil
	}

	key := &rsakit.Key{N: lookup(rawModulusNames), E: lookup(rawExponentNames)}
	if key.N == nil || key.E == nil {
		return nil, fmt.Errorf("%w: raw key needs a modulus and an exponent", rsakit.ErrMalformedKey)
	}
	if key.N.Sign() <= 0 || key.E.Sign() <= 0 {
		return nil, fmt.Errorf("%w: zero or negative modulus or exponent", rsakit.ErrMalformedKey)
	}
	return key, nil
}

// ToRaw returns the public components of key under the names "e" and "n"
func ToRaw(key *rsakit.Key) map[string]*big.Int {
	return map[string]*big.Int{
		"e": new(big.Int).Set(key.E),
		"n": new(big.Int).Set(key.N),
	}
}
