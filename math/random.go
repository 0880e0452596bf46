package math

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// number of Miller-Rabin rounds used by RandomPrime, on top of the Baillie-PSW test ProbablyPrime always runs
const primalityRounds = 20

// MinMax returns the smallest and largest integers that are exactly bits long,
// i.e. 2^(bits-1) and 2^bits - 1
func MinMax(bits int) (min *big.Int, max *big.Int) {
	min = new(big.Int).Lsh(bigOne, uint(bits-1))
	max = new(big.Int).Lsh(bigOne, uint(bits))
	max.Sub(max, bigOne)
	return
}

// RandomRange returns a uniformly random integer in [min, max]
func RandomRange(random io.Reader, min, max *big.Int) (*big.Int, error) {
	if random == nil {
		random = rand.Reader
	}
	if min.Cmp(max) > 0 {
		return nil, fmt.Errorf("empty range [%v, %v]", min, max)
	}

	// r <- min + rand[0, max - min]
	span := new(big.Int).Sub(max, min)
	span.Add(span, bigOne)
	r, err := rand.Int(random, span)
	if err != nil {
		return nil, fmt.Errorf("failed to produce random number: %w", err)
	}

	return r.Add(r, min), nil
}

// RandomPrime searches for a probable prime in [min, max]. It starts at a random odd
// candidate and walks upwards, wrapping around to min when it runs past max.
//
// ctx is polled between candidates, so a deadline interrupts a long search with ctx.Err()
func RandomPrime(ctx context.Context, random io.Reader, min, max *big.Int) (*big.Int, error) {
	if min.Cmp(bigTwo) < 0 {
		min = bigTwo
	}
	if min.Cmp(max) > 0 {
		return nil, fmt.Errorf("no room for a prime in [%v, %v]", min, max)
	}

	start, err := RandomRange(random, min, max)
	if err != nil {
		return nil, err
	}

	candidate := new(big.Int).Set(start)
	if candidate.Bit(0) == 0 && candidate.Cmp(bigTwo) != 0 {
		candidate.Add(candidate, bigOne)
	}

	wrapped := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if candidate.Cmp(max) > 0 {
			if wrapped {
				return nil, fmt.Errorf("no prime found in [%v, %v]", min, max)
			}
			wrapped = true
			candidate.Set(min)
			if candidate.Bit(0) == 0 && candidate.Cmp(bigTwo) != 0 {
				candidate.Add(candidate, bigOne)
			}
			continue
		}

		if wrapped && candidate.Cmp(start) >= 0 {
			return nil, fmt.Errorf("no prime found in [%v, %v]", min, max)
		}

		if candidate.ProbablyPrime(primalityRounds) {
			return candidate, nil
		}

		if candidate.Cmp(bigTwo) == 0 {
			candidate.Add(candidate, bigOne)
		} else {
			candidate.Add(candidate, bigTwo)
		}
	}
}
