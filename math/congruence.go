package math

import (
	"math/big"
)

var (
	bigOne = big.NewInt(1)
	bigTwo = big.NewInt(2)
)

// check that n divides (a - b)
func CongruentModN(a *big.Int, b *big.Int, N *big.Int) bool {
	aModN := new(big.Int).Mod(a, N)
	bModN := new(big.Int).Mod(b, N)

	return aModN.Cmp(bModN) == 0
}

// LCM returns the least common multiple of a and b
func LCM(a, b *big.Int) *big.Int {
	gcd := new(big.Int).GCD(nil, nil, a, b)
	lcm := new(big.Int).Div(a, gcd)
	return lcm.Mul(lcm, b)
}

// Totient calculates the Euler totient of n using its prime factors, however many there are
func Totient(primes []*big.Int) *big.Int {
	// phi <- (p[0] - 1) * (p[1] - 1) * ... * (p[k] - 1)
	phi := big.NewInt(1)
	for _, p := range primes {
		pm1 := new(big.Int).Sub(p, bigOne)
		phi.Mul(phi, pm1)
	}

	return phi
}

// Carmichael calculates λ(n) = lcm(p[0] - 1, ..., p[k] - 1) from the prime factors of n
func Carmichael(primes []*big.Int) *big.Int {
	lambda := big.NewInt(1)
	for _, p := range primes {
		// lambda[i] <- lcm(lambda[i-1], p[i] - 1)
		pm1 := new(big.Int).Sub(p, bigOne)
		lambda = LCM(lambda, pm1)
	}

	return lambda
}

// Product multiplies all of xs together
func Product(xs []*big.Int) *big.Int {
	result := big.NewInt(1)
	for _, x := range xs {
		result.Mul(result, x)
	}
	return result
}
