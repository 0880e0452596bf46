package rsakit

import (
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/samber/lo"

	kmath "github.com/bastionzero/rsakit/math"
)

// A Key is an RSA key pair, or just its public half when D is nil.
//
// Primes, Exponents and Coefficients carry the CRT parameters for private keys:
//   - Exponents[i] = D mod (Primes[i] - 1), parallel to Primes
//   - Coefficients[0] = Primes[1]^-1 mod Primes[0] (the PKCS#1 qInv)
//   - Coefficients[i-1] = (Primes[0] * ... * Primes[i-1])^-1 mod Primes[i] for every further prime
//
// Any of them may be absent, in which case private operations fall back to a plain D exponentiation.
type Key struct {
	N *big.Int // modulus
	E *big.Int // public exponent
	D *big.Int // private exponent

	Primes       []*big.Int
	Exponents    []*big.Int
	Coefficients []*big.Int

	Comment string
}

// Size returns the modulus length in bytes, the k of PKCS#1
func (k *Key) Size() int {
	return (k.N.BitLen() + 7) / 8
}

// BitLen returns the modulus length in bits
func (k *Key) BitLen() int {
	return k.N.BitLen()
}

// IsPrivate reports whether the key can decrypt and sign
func (k *Key) IsPrivate() bool {
	return k.D != nil && k.D.Sign() > 0
}

func cloneInt(x *big.Int, _ int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}

func cloneInts(xs []*big.Int) []*big.Int {
	if xs == nil {
		return nil
	}
	return lo.Map(xs, cloneInt)
}

// Clone returns a deep copy; no big.Int or slice is shared with k
func (k *Key) Clone() *Key {
	return &Key{
		N:            cloneInt(k.N, 0),
		E:            cloneInt(k.E, 0),
		D:            cloneInt(k.D, 0),
		Primes:       cloneInts(k.Primes),
		Exponents:    cloneInts(k.Exponents),
		Coefficients: cloneInts(k.Coefficients),
		Comment:      k.Comment,
	}
}

// Public returns a deep copy of the public half of the key
func (k *Key) Public() *Key {
	return &Key{
		N:       cloneInt(k.N, 0),
		E:       cloneInt(k.E, 0),
		Comment: k.Comment,
	}
}

// Precompute derives Exponents and Coefficients from D and Primes
func (k *Key) Precompute() error {
	if !k.IsPrivate() || len(k.Primes) < 2 {
		return fmt.Errorf("%w: need a private exponent and at least two primes", ErrMalformedKey)
	}

	exponents := make([]*big.Int, len(k.Primes))
	coefficients := make([]*big.Int, len(k.Primes)-1)

	for i, p := range k.Primes {
		if p == nil || p.Cmp(bigOne) <= 0 {
			return fmt.Errorf("%w: prime %d is not usable", ErrMalformedKey, i)
		}
		// dP[i] <- d mod (p[i] - 1)
		pm1 := new(big.Int).Sub(p, bigOne)
		exponents[i] = new(big.Int).Mod(k.D, pm1)
	}

	// qInv <- q^-1 mod p
	coefficients[0] = new(big.Int).ModInverse(k.Primes[1], k.Primes[0])
	if coefficients[0] == nil {
		return fmt.Errorf("%w: primes are not coprime", ErrMalformedKey)
	}

	// coeff[i] <- (p[0] * ... * p[i-1])^-1 mod p[i]
	r := new(big.Int).Mul(k.Primes[0], k.Primes[1])
	for i := 2; i < len(k.Primes); i++ {
		coefficients[i-1] = new(big.Int).ModInverse(r, k.Primes[i])
		if coefficients[i-1] == nil {
			return fmt.Errorf("%w: primes are not coprime", ErrMalformedKey)
		}
		r.Mul(r, k.Primes[i])
	}

	k.Exponents = exponents
	k.Coefficients = coefficients
	return nil
}

// hasCRT reports whether every CRT parameter is present and non-zero
func (k *Key) hasCRT() bool {
	if len(k.Primes) < 2 || len(k.Exponents) != len(k.Primes) || len(k.Coefficients) != len(k.Primes)-1 {
		return false
	}
	nonZero := func(x *big.Int) bool {
		return x != nil && x.Sign() > 0
	}
	return lo.EveryBy(k.Primes, nonZero) && lo.EveryBy(k.Exponents, nonZero) && lo.EveryBy(k.Coefficients, nonZero)
}

// Miller-Rabin rounds used when checking the factors of a loaded key
const primalityRounds = 20

// Validate checks the public parameters and, for private keys, that the factors are prime and multiply to N,
// that e * d ≡ 1 (mod λ(N)) and that any CRT parameters agree with D
func (k *Key) Validate() error {
	if k.N == nil || k.E == nil {
		return fmt.Errorf("%w: missing modulus or public exponent", ErrMalformedKey)
	}
	if k.N.Sign() <= 0 || k.E.Cmp(bigOne) <= 0 || k.E.Cmp(k.N) >= 0 {
		return fmt.Errorf("%w: modulus or public exponent out of range", ErrMalformedKey)
	}
	if !k.IsPrivate() {
		return nil
	}
	if len(k.Primes) == 0 {
		// nothing else to check without the factorisation
		return nil
	}
	if len(k.Primes) < 2 {
		return fmt.Errorf("%w: a single prime cannot make an RSA modulus", ErrMalformedKey)
	}

	for i, p := range k.Primes {
		if p == nil || !p.ProbablyPrime(primalityRounds) {
			return fmt.Errorf("%w: factor %d is not prime", ErrMalformedKey, i)
		}
	}

	if kmath.Product(k.Primes).Cmp(k.N) != 0 {
		return fmt.Errorf("%w: primes do not multiply to the modulus", ErrMalformedKey)
	}

	lambda := kmath.Carmichael(k.Primes)
	if !kmath.CongruentModN(new(big.Int).Mul(k.E, k.D), bigOne, lambda) {
		return fmt.Errorf("%w: private exponent does not invert the public exponent", ErrMalformedKey)
	}

	if len(k.Exponents) == 0 && len(k.Coefficients) == 0 {
		return nil
	}

	expected := &Key{D: k.D, Primes: k.Primes}
	if err := expected.Precompute(); err != nil {
		return err
	}
	if len(k.Exponents) != len(expected.Exponents) || len(k.Coefficients) != len(expected.Coefficients) {
		return fmt.Errorf("%w: wrong number of CRT parameters", ErrMalformedKey)
	}
	for i := range expected.Exponents {
		if k.Exponents[i] == nil || k.Exponents[i].Cmp(expected.Exponents[i]) != 0 {
			return fmt.Errorf("%w: CRT exponent %d is wrong", ErrMalformedKey, i)
		}
	}
	for i := range expected.Coefficients {
		if k.Coefficients[i] == nil || k.Coefficients[i].Cmp(expected.Coefficients[i]) != 0 {
			return fmt.Errorf("%w: CRT coefficient %d is wrong", ErrMalformedKey, i)
		}
	}

	return nil
}

// Equal reports whether two keys carry the same N, E, D and primes
func (k *Key) Equal(other *Key) bool {
	eq := func(a, b *big.Int) bool {
		if a == nil || b == nil {
			return a == b
		}
		return a.Cmp(b) == 0
	}
	if !eq(k.N, other.N) || !eq(k.E, other.E) || !eq(k.D, other.D) || len(k.Primes) != len(other.Primes) {
		return false
	}
	for i := range k.Primes {
		if !eq(k.Primes[i], other.Primes[i]) {
			return false
		}
	}
	return true
}

// FromStdlib converts a crypto/rsa private key
func FromStdlib(priv *rsa.PrivateKey) (*Key, error) {
	key := &Key{
		N:      cloneInt(priv.N, 0),
		E:      big.NewInt(int64(priv.E)),
		D:      cloneInt(priv.D, 0),
		Primes: cloneInts(priv.Primes),
	}
	if len(key.Primes) >= 2 {
		if err := key.Precompute(); err != nil {
			return nil, err
		}
	}
	return key, nil
}

// FromStdlibPublic converts a crypto/rsa public key
func FromStdlibPublic(pub *rsa.PublicKey) *Key {
	return &Key{
		N: cloneInt(pub.N, 0),
		E: big.NewInt(int64(pub.E)),
	}
}

// StdPublicKey converts to a crypto/rsa public key. E must fit in an int
func (k *Key) StdPublicKey() (*rsa.PublicKey, error) {
	if k.E == nil || !k.E.IsInt64() || k.E.Int64() > int64(^uint32(0)>>1) {
		return nil, fmt.Errorf("%w: public exponent does not fit crypto/rsa", ErrUnsupportedFormat)
	}
	return &rsa.PublicKey{N: cloneInt(k.N, 0), E: int(k.E.Int64())}, nil
}

// StdPrivateKey converts to a crypto/rsa private key
func (k *Key) StdPrivateKey() (*rsa.PrivateKey, error) {
	if !k.IsPrivate() || len(k.Primes) < 2 {
		return nil, ErrPublicKeyOnly
	}
	pub, err := k.StdPublicKey()
	if err != nil {
		return nil, err
	}

	priv := &rsa.PrivateKey{
		PublicKey: *pub,
		D:         cloneInt(k.D, 0),
		Primes:    cloneInts(k.Primes),
	}
	priv.Precompute()
	return priv, nil
}
