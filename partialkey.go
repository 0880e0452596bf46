package rsakit

import (
	"bytes"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/samber/lo"
)

const partialKeyPEMType = "RSA PARTIAL KEY"

// A PartialKey records how far an interrupted GenerateKey got. Handing it back through
// GenerateOptions.Partial resumes the search with the same layout and the primes already found
type PartialKey struct {
	Bits      int
	NumPrimes int
	E         *big.Int
	Primes    []*big.Int
}

// used exclusively as a placeholder for encoding-decoding
type partialKey struct {
	Bits      int
	NumPrimes int
	E         []byte
	Primes    [][]byte
}

func (pk *PartialKey) matches(l *primeLayout, e *big.Int) error {
	switch {
	case pk.Bits != l.bits:
		return fmt.Errorf("partial key is for %d bits, not %d", pk.Bits, l.bits)
	case pk.NumPrimes != l.numPrimes:
		return fmt.Errorf("partial key is for %d primes, not %d", pk.NumPrimes, l.numPrimes)
	case pk.E == nil || pk.E.Cmp(e) != 0:
		return fmt.Errorf("partial key was started with a different public exponent")
	case len(pk.Primes) >= pk.NumPrimes:
		return fmt.Errorf("partial key already holds %d primes", len(pk.Primes))
	}

	// the file may have been edited or damaged since it was written
	for i, p := range pk.Primes {
		switch {
		case p == nil || p.Cmp(l.min) < 0 || p.Cmp(l.max) > 0:
			return fmt.Errorf("%w: partial key prime %d is outside the expected range", ErrMalformedKey, i)
		case !p.ProbablyPrime(primalityRounds):
			return fmt.Errorf("%w: partial key prime %d is not prime", ErrMalformedKey, i)
		case new(big.Int).GCD(nil, nil, e, new(big.Int).Sub(p, bigOne)).Cmp(bigOne) != 0:
			return fmt.Errorf("%w: partial key prime %d does not suit the public exponent", ErrMalformedKey, i)
		case lo.ContainsBy(pk.Primes[:i], func(q *big.Int) bool { return q.Cmp(p) == 0 }):
			return fmt.Errorf("%w: partial key repeats prime %d", ErrMalformedKey, i)
		}
	}
	return nil
}

func (pk *PartialKey) EncodePEM() (string, error) {
	// we perform this conversion because asn1.Marshal cannot handle nil pointers
	if pk.E == nil {
		return "", fmt.Errorf("failed to DER-encode: missing public exponent")
	}
	pkToMarshal := partialKey{
		Bits:      pk.Bits,
		NumPrimes: pk.NumPrimes,
		E:         pk.E.Bytes(),
		Primes: lo.Map(pk.Primes, func(p *big.Int, _ int) []byte {
			return p.Bytes()
		}),
	}
	b, err := asn1.Marshal(pkToMarshal)
	if err != nil {
		return "", fmt.Errorf("failed to DER-encode: %s", err)
	}

	keyPEM := new(bytes.Buffer)
	err = pem.Encode(keyPEM, &pem.Block{
		Type:  partialKeyPEMType,
		Bytes: b,
	})
	if err != nil {
		return "", fmt.Errorf("failed to PEM-encode: %s", err)
	}

	return keyPEM.String(), nil
}

func DecodePartialKeyPEM(encoded string) (*PartialKey, error) {
	block, _ := pem.Decode([]byte(encoded))
	if block == nil || block.Type != partialKeyPEMType {
		return nil, fmt.Errorf("failed to decode PEM block containing partial key")
	}

	var pkToUnmarshal partialKey
	rest, err := asn1.Unmarshal(block.Bytes, &pkToUnmarshal)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedKey, err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("%w: trailing data after partial key", ErrMalformedKey)
	}

	return &PartialKey{
		Bits:      pkToUnmarshal.Bits,
		NumPrimes: pkToUnmarshal.NumPrimes,
		E:         new(big.Int).SetBytes(pkToUnmarshal.E),
		Primes: lo.Map(pkToUnmarshal.Primes, func(b []byte, _ int) *big.Int {
			return new(big.Int).SetBytes(b)
		}),
	}, nil
}
