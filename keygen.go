package rsakit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"time"

	"github.com/samber/lo"

	kmath "github.com/bastionzero/rsakit/math"
)

const (
	// DefaultSmallestPrime is the bit size above which GenerateKey switches to more than two primes
	DefaultSmallestPrime = 4096
	minimumPrimeBits     = 16
)

// DefaultExponent is F4, 65537
var DefaultExponent = big.NewInt(65537)

// GenerateOptions controls GenerateKey. Only Bits is required
type GenerateOptions struct {
	Bits     int
	Exponent *big.Int

	// NumPrimes forces the number of primes. When zero, two primes are used unless half the modulus
	// would be larger than SmallestPrime bits, in which case Bits / SmallestPrime primes are used
	NumPrimes     int
	SmallestPrime int

	// Timeout bounds the search on top of any deadline ctx already carries. Zero means no bound
	Timeout time.Duration
	// Partial resumes a search that previously timed out
	Partial *PartialKey

	Random io.Reader
	Logger *slog.Logger
}

type primeLayout struct {
	bits      int
	numPrimes int
	min, max  *big.Int // range for every prime but the last
	finalMax  *big.Int
	absMin    *big.Int // 2^(bits-1), the smallest acceptable modulus
}

func (o *GenerateOptions) layout() (*primeLayout, error) {
	smallest := o.SmallestPrime
	if smallest <= 0 {
		smallest = DefaultSmallestPrime
	}

	numPrimes := o.NumPrimes
	temp := o.Bits >> 1
	switch {
	case numPrimes > 0:
		temp = o.Bits / numPrimes
	case temp > smallest:
		numPrimes = o.Bits / smallest
		temp = smallest
	default:
		numPrimes = 2
	}

	if numPrimes < 2 || temp < minimumPrimeBits {
		return nil, fmt.Errorf("%w: cannot split %d bits into %d primes", ErrModulusTooShort, o.Bits, numPrimes)
	}

	l := &primeLayout{bits: o.Bits, numPrimes: numPrimes}
	l.absMin, _ = kmath.MinMax(o.Bits)
	l.min, l.max = kmath.MinMax(temp)
	_, l.finalMax = kmath.MinMax(o.Bits - temp*(numPrimes-1))
	return l, nil
}

// GenerateKey creates a new key of exactly opts.Bits bits.
//
// If ctx is done or opts.Timeout runs out first, the returned error is a *TimeoutError whose
// Partial field can be passed back through opts.Partial to carry on from the primes already found.
func GenerateKey(ctx context.Context, opts GenerateOptions) (*Key, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	e := opts.Exponent
	if e == nil {
		e = DefaultExponent
	}
	if e.Cmp(big.NewInt(3)) < 0 || e.Bit(0) == 0 {
		return nil, fmt.Errorf("public exponent must be odd and at least 3, got %v", e)
	}

	l, err := opts.layout()
	if err != nil {
		return nil, err
	}

	var primes []*big.Int
	if opts.Partial != nil {
		if err := opts.Partial.matches(l, e); err != nil {
			return nil, err
		}
		primes = cloneInts(opts.Partial.Primes)
		logger.Debug("resuming key generation", "bits", l.bits, "primes_found", len(primes), "num_primes", l.numPrimes)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	for {
		for len(primes) < l.numPrimes {
			p, err := nextPrime(ctx, opts.Random, l, primes)
			if errors.Is(err, errRestart) {
				logger.Debug("final prime range is empty, starting over", "primes_found", len(primes))
				primes = nil
				continue
			}
			if err != nil {
				if ctx.Err() != nil {
					partial := &PartialKey{Bits: l.bits, NumPrimes: l.numPrimes, E: cloneInt(e, 0), Primes: primes}
					logger.Info("key generation timed out", "bits", l.bits, "primes_found", len(primes), "elapsed", time.Since(start))
					return nil, &TimeoutError{Partial: partial, Err: ctx.Err()}
				}
				return nil, fmt.Errorf("failed to generate prime %d: %w", len(primes)+1, err)
			}

			// e must be invertible mod p - 1, otherwise no d exists for this prime
			pm1 := new(big.Int).Sub(p, bigOne)
			if new(big.Int).GCD(nil, nil, e, pm1).Cmp(bigOne) != 0 || lo.ContainsBy(primes, func(q *big.Int) bool { return q.Cmp(p) == 0 }) {
				continue
			}

			primes = append(primes, p)
			logger.Debug("found prime", "index", len(primes), "bits", p.BitLen())
		}

		// d <- e^-1 mod λ(n)
		lambda := kmath.Carmichael(primes)
		d := new(big.Int).ModInverse(e, lambda)
		n := kmath.Product(primes)
		if d == nil || n.BitLen() != l.bits {
			primes = nil
			continue
		}

		key := &Key{
			N:      n,
			E:      cloneInt(e, 0),
			D:      d,
			Primes: primes,
		}
		if err := key.Precompute(); err != nil {
			return nil, err
		}

		logger.Info("generated key", "bits", l.bits, "primes", l.numPrimes, "elapsed", time.Since(start))
		return key, nil
	}
}

var errRestart = errors.New("restart")

// nextPrime draws the next prime for the layout. The last prime is bounded below so that the
// modulus reaches the full bit length
func nextPrime(ctx context.Context, random io.Reader, l *primeLayout, found []*big.Int) (*big.Int, error) {
	if len(found) < l.numPrimes-1 {
		return kmath.RandomPrime(ctx, random, l.min, l.max)
	}

	// min <- ceil(2^(bits-1) / product)
	product := kmath.Product(found)
	min, rem := new(big.Int).QuoRem(l.absMin, product, new(big.Int))
	if rem.Sign() != 0 {
		min.Add(min, bigOne)
	}
	if min.Cmp(l.finalMax) > 0 {
		return nil, errRestart
	}

	p, err := kmath.RandomPrime(ctx, random, min, l.finalMax)
	if err != nil && ctx.Err() == nil {
		return nil, errRestart
	}
	return p, err
}
