package keyformat

import (
	"encoding/pem"
	"fmt"
	"math/big"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/der"
)

// RSAPrivateKey ::= SEQUENCE {
//     version           Version,
//     modulus           INTEGER,  -- n
//     publicExponent    INTEGER,  -- e
//     privateExponent   INTEGER,  -- d
//     prime1            INTEGER,  -- p
//     prime2            INTEGER,  -- q
//     exponent1         INTEGER,  -- d mod (p-1)
//     exponent2         INTEGER,  -- d mod (q-1)
//     coefficient       INTEGER,  -- (inverse of q) mod p
//     otherPrimeInfos   OtherPrimeInfos OPTIONAL
// }
//
// OtherPrimeInfo ::= SEQUENCE {
//     prime             INTEGER,  -- ri
//     exponent          INTEGER,  -- di
//     coefficient       INTEGER   -- ti
// }

const (
	versionTwoPrime   = 0
	versionMultiPrime = 1
)

func parsePKCS1(data []byte, opts *Options) (*rsakit.Key, bool, error) {
	block, derBytes, err := unarmor(data)
	if err != nil {
		return nil, false, err
	}

	if block != nil {
		switch block.Type {
		case pemRSAPrivateKey:
			plain, encrypted, err := decryptLegacyPEM(block, opts.Password)
			if err != nil {
				return nil, true, err
			}
			key, err := decodePKCS1Private(plain)
			if err != nil && encrypted {
				// garbage out of a wrong password usually fails here rather than at the padding
				return nil, true, fmt.Errorf("%w: %s", rsakit.ErrDecryption, err)
			}
			return key, true, err
		case pemRSAPublicKey:
			key, err := decodePKCS1Public(block.Bytes)
			return key, true, err
		}
		return nil, false, fmt.Errorf("%w: unexpected PEM type %q", rsakit.ErrMalformedKey, block.Type)
	}

	if !looksLikeDER(derBytes) {
		return nil, false, fmt.Errorf("%w: not DER", rsakit.ErrMalformedKey)
	}
	if key, err := decodePKCS1Private(derBytes); err == nil {
		return key, true, nil
	}
	if key, err := decodePKCS1Public(derBytes); err == nil {
		return key, true, nil
	}
	return nil, false, fmt.Errorf("%w: not a PKCS#1 structure", rsakit.ErrMalformedKey)
}

func decodePKCS1Private(b []byte) (*rsakit.Key, error) {
	outer := der.NewReader(b)
	seq, err := outer.ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	if !outer.Empty() {
		return nil, fmt.Errorf("%w: trailing data after RSAPrivateKey", rsakit.ErrMalformedKey)
	}

	version, err := seq.ReadSmallInteger()
	if err != nil {
		return nil, malformed(err)
	}
	if version != versionTwoPrime && version != versionMultiPrime {
		return nil, fmt.Errorf("%w: unknown RSAPrivateKey version %d", rsakit.ErrMalformedKey, version)
	}

	// n, e, d, p, q, dP, dQ, qInv
	var values [8]*big.Int
	for i := range values {
		if values[i], err = seq.ReadInteger(); err != nil {
			return nil, malformed(err)
		}
	}

	key := &rsakit.Key{
		N:            values[0],
		E:            values[1],
		D:            values[2],
		Primes:       []*big.Int{values[3], values[4]},
		Exponents:    []*big.Int{values[5], values[6]},
		Coefficients: []*big.Int{values[7]},
	}

	if !seq.Empty() {
		others, err := seq.ReadSequence()
		if err != nil {
			return nil, malformed(err)
		}
		for !others.Empty() {
			info, err := others.ReadSequence()
			if err != nil {
				return nil, malformed(err)
			}
			var triple [3]*big.Int
			for i := range triple {
				if triple[i], err = info.ReadInteger(); err != nil {
					return nil, malformed(err)
				}
			}
			key.Primes = append(key.Primes, triple[0])
			key.Exponents = append(key.Exponents, triple[1])
			key.Coefficients = append(key.Coefficients, triple[2])
		}
	}
	if !seq.Empty() {
		return nil, fmt.Errorf("%w: trailing data inside RSAPrivateKey", rsakit.ErrMalformedKey)
	}

	if key.N.Sign() == 0 || key.E.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero modulus or exponent", rsakit.ErrMalformedKey)
	}
	return key, nil
}

// RSAPublicKey ::= SEQUENCE { modulus INTEGER, publicExponent INTEGER }
func decodePKCS1Public(b []byte) (*rsakit.Key, error) {
	outer := der.NewReader(b)
	seq, err := outer.ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	n, err := seq.ReadInteger()
	if err != nil {
		return nil, malformed(err)
	}
	e, err := seq.ReadInteger()
	if err != nil {
		return nil, malformed(err)
	}
	if !seq.Empty() || !outer.Empty() {
		return nil, fmt.Errorf("%w: trailing data after RSAPublicKey", rsakit.ErrMalformedKey)
	}
	if n.Sign() == 0 || e.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero modulus or exponent", rsakit.ErrMalformedKey)
	}
	return &rsakit.Key{N: n, E: e}, nil
}

// withCRT returns key itself if it carries every CRT value, or a copy with them computed
func withCRT(key *rsakit.Key) (*rsakit.Key, error) {
	if len(key.Primes) < 2 {
		return nil, fmt.Errorf("%w: the format needs the prime factors", rsakit.ErrUnsupportedFormat)
	}
	if len(key.Exponents) == len(key.Primes) && len(key.Coefficients) == len(key.Primes)-1 {
		return key, nil
	}
	full := key.Clone()
	if err := full.Precompute(); err != nil {
		return nil, err
	}
	return full, nil
}

func encodePKCS1Private(key *rsakit.Key) ([]byte, error) {
	key, err := withCRT(key)
	if err != nil {
		return nil, err
	}

	version := versionTwoPrime
	if len(key.Primes) > 2 {
		version = versionMultiPrime
	}

	elements := [][]byte{
		der.SmallInteger(version),
		der.Integer(key.N),
		der.Integer(key.E),
		der.Integer(key.D),
		der.Integer(key.Primes[0]),
		der.Integer(key.Primes[1]),
		der.Integer(key.Exponents[0]),
		der.Integer(key.Exponents[1]),
		der.Integer(key.Coefficients[0]),
	}

	if version == versionMultiPrime {
		var infos [][]byte
		for i := 2; i < len(key.Primes); i++ {
			infos = append(infos, der.Sequence(
				der.Integer(key.Primes[i]),
				der.Integer(key.Exponents[i]),
				der.Integer(key.Coefficients[i-1]),
			))
		}
		elements = append(elements, der.Sequence(infos...))
	}

	return der.Sequence(elements...), nil
}

func marshalPKCS1Public(key *rsakit.Key) []byte {
	return der.Sequence(der.Integer(key.N), der.Integer(key.E))
}

func marshalPKCS1Private(key *rsakit.Key, opts *Options) ([]byte, error) {
	derBytes, err := encodePKCS1Private(key)
	if err != nil {
		return nil, err
	}
	if len(opts.Password) == 0 {
		return armor(pemRSAPrivateKey, derBytes, opts), nil
	}
	if opts.DER {
		return nil, fmt.Errorf("%w: encrypted PKCS#1 keys only exist as PEM", rsakit.ErrUnsupportedFormat)
	}

	block, err := encryptLegacyPEM(pemRSAPrivateKey, derBytes, opts)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(block), nil
}
