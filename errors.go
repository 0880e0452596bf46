package rsakit

import (
	"errors"
	"fmt"
)

// These errors may be returned by key handling and RSA operations. They are always returned,
// never panicked, and are meant to be matched with errors.Is.
var (
	// ErrMalformedKey covers DER/ASN.1 violations, truncated buffers and unknown OIDs
	ErrMalformedKey = errors.New("rsakit: malformed key")
	// ErrUnsupportedFormat is returned when a format cannot carry the key, e.g. a multi-prime key as XML
	ErrUnsupportedFormat = errors.New("rsakit: unsupported key format")
	// ErrDecryption deliberately does not say which check failed
	ErrDecryption       = errors.New("rsakit: decryption error")
	ErrMessageTooLong   = errors.New("rsakit: message too long")
	ErrModulusTooShort  = errors.New("rsakit: modulus too short for the chosen padding")
	ErrInvalidSignature = errors.New("rsakit: invalid signature")
	ErrTimeout          = errors.New("rsakit: key generation timed out")
	ErrPublicKeyOnly    = errors.New("rsakit: operation requires a private key")
	ErrUnsupportedHash  = errors.New("rsakit: unsupported hash function")
)

// TimeoutError is returned by GenerateKey when its time budget runs out. Partial holds the primes
// found so far and can be handed back to GenerateKey to carry on.
type TimeoutError struct {
	Partial *PartialKey
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after finding %d of %d primes: %v", ErrTimeout, len(e.Partial.Primes), e.Partial.NumPrimes, e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Err}
}
