package rsakit

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	kmath "github.com/bastionzero/rsakit/math"
)

// encrypt performs the public RSA operation (RSAEP / RSAVP1): c = m^e mod n
func encrypt(pub *Key, m *big.Int) (*big.Int, error) {
	if pub.N == nil || pub.N.Sign() <= 0 || pub.E == nil {
		return nil, fmt.Errorf("%w: missing modulus or public exponent", ErrMalformedKey)
	}
	if m.Cmp(pub.N) >= 0 {
		return nil, fmt.Errorf("%w: message representative out of range", ErrMessageTooLong)
	}

	return new(big.Int).Exp(m, pub.E, pub.N), nil
}

// decrypt performs the private RSA operation (RSADP / RSASP1), resulting in a plaintext integer
func decrypt(random io.Reader, priv *Key, c *big.Int, blind bool) (*big.Int, error) {
	if !priv.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}
	if priv.N == nil || priv.N.Sign() == 0 || c.Cmp(priv.N) >= 0 {
		return nil, ErrDecryption
	}

	return priv.exponentiate(random, c, blind)
}

// exponentiate computes x^d mod n.
//
// With the full set of CRT parameters it works prime by prime and recombines with Garner's
// algorithm; otherwise it falls back to one exponentiation mod n. When blind is set, a random
// r in [1, min(primes) - 1] is drawn once and used to blind every per-prime exponentiation.
func (k *Key) exponentiate(random io.Reader, x *big.Int, blind bool) (*big.Int, error) {
	if !k.hasCRT() {
		return new(big.Int).Exp(x, k.D, k.N), nil
	}

	var r *big.Int
	if blind {
		if random == nil {
			random = rand.Reader
		}

		smallest := k.Primes[0]
		for _, p := range k.Primes[1:] {
			if p.Cmp(smallest) < 0 {
				smallest = p
			}
		}

		var err error
		r, err = kmath.RandomRange(random, bigOne, new(big.Int).Sub(smallest, bigOne))
		if err != nil {
			return nil, err
		}
	}

	m1, err := k.crtPart(x, r, 0)
	if err != nil {
		return nil, err
	}
	m2, err := k.crtPart(x, r, 1)
	if err != nil {
		return nil, err
	}

	// h <- (m1 - m2) * qInv mod p
	h := new(big.Int).Sub(m1, m2)
	h.Mul(h, k.Coefficients[0])
	h.Mod(h, k.Primes[0])

	// m <- m2 + h * q
	m := h.Mul(h, k.Primes[1])
	m.Add(m, m2)

	// fold in any further primes, r being the product of the primes used so far
	product := new(big.Int).Mul(k.Primes[0], k.Primes[1])
	for i := 2; i < len(k.Primes); i++ {
		mi, err := k.crtPart(x, r, i)
		if err != nil {
			return nil, err
		}

		// h <- (m[i] - m) * coeff[i] mod p[i]
		h := new(big.Int).Sub(mi, m)
		h.Mul(h, k.Coefficients[i-1])
		h.Mod(h, k.Primes[i])

		// m <- m + r * h
		m.Add(m, h.Mul(h, product))
		product.Mul(product, k.Primes[i])
	}

	return m, nil
}

// crtPart computes x^dP[i] mod p[i], blinded by r when r is not nil:
// ((x * r^e mod p)^dP mod p) * r^-1 mod p
//
// r has no inverse only when p[i] is not prime, which a key that passed Validate rules out
func (k *Key) crtPart(x, r *big.Int, i int) (*big.Int, error) {
	p := k.Primes[i]
	if r == nil {
		return new(big.Int).Exp(x, k.Exponents[i], p), nil
	}

	rInv := new(big.Int).ModInverse(r, p)
	if rInv == nil {
		return nil, fmt.Errorf("%w: prime %d is not coprime with the blinding value", ErrDecryption, i)
	}

	blinded := new(big.Int).Exp(r, k.E, p)
	blinded.Mul(blinded, x)
	blinded.Mod(blinded, p)

	m := blinded.Exp(blinded, k.Exponents[i], p)
	m.Mul(m, rInv)
	return m.Mod(m, p), nil
}
