package keyformat

import (
	"fmt"
	"math/big"

	"golang.org/x/crypto/cryptobyte"

	"github.com/bastionzero/rsakit"
)

const sshRSA = "ssh-rsa"

// readString reads an SSH string: a uint32 length followed by that many bytes
func readString(s *cryptobyte.String, out *[]byte) bool {
	var n uint32
	if !s.ReadUint32(&n) {
		return false
	}
	return s.ReadBytes(out, int(n))
}

// readMpint reads an SSH mpint, rejecting negative values
func readMpint(s *cryptobyte.String) (*big.Int, bool) {
	var b []byte
	if !readString(s, &b) {
		return nil, false
	}
	if len(b) > 0 && b[0]&0x80 != 0 {
		return nil, false
	}
	return new(big.Int).SetBytes(b), true
}

func addString(b *cryptobyte.Builder, data []byte) {
	b.AddUint32LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(data)
	})
}

// mpints are two's complement, so a leading zero keeps the top bit clear
func addMpint(b *cryptobyte.Builder, x *big.Int) {
	bytes := x.Bytes()
	if len(bytes) > 0 && bytes[0]&0x80 != 0 {
		bytes = append([]byte{0}, bytes...)
	}
	addString(b, bytes)
}

// publicBlob is the ssh-rsa public key encoding: string "ssh-rsa", mpint e, mpint n
func publicBlob(key *rsakit.Key) []byte {
	var b cryptobyte.Builder
	addString(&b, []byte(sshRSA))
	addMpint(&b, key.E)
	addMpint(&b, key.N)
	return b.BytesOrPanic()
}

func parsePublicBlob(blob []byte) (*rsakit.Key, error) {
	s := cryptobyte.String(blob)
	var keyType []byte
	if !readString(&s, &keyType) {
		return nil, fmt.Errorf("%w: truncated public key blob", rsakit.ErrMalformedKey)
	}
	if string(keyType) != sshRSA {
		return nil, fmt.Errorf("%w: key type %q", rsakit.ErrUnsupportedFormat, keyType)
	}
	e, ok := readMpint(&s)
	if !ok {
		return nil, fmt.Errorf("%w: bad public exponent", rsakit.ErrMalformedKey)
	}
	n, ok := readMpint(&s)
	if !ok {
		return nil, fmt.Errorf("%w: bad modulus", rsakit.ErrMalformedKey)
	}
	if !s.Empty() {
		return nil, fmt.Errorf("%w: trailing data in public key blob", rsakit.ErrMalformedKey)
	}
	if n.Sign() == 0 || e.Sign() == 0 {
		return nil, fmt.Errorf("%w: zero modulus or exponent", rsakit.ErrMalformedKey)
	}
	return &rsakit.Key{N: n, E: e}, nil
}

// twoPrime checks that key fits the formats that only know p and q
func twoPrime(key *rsakit.Key) (*rsakit.Key, error) {
	if len(key.Primes) != 2 {
		return nil, fmt.Errorf("%w: the format only holds two-prime keys, this one has %d primes", rsakit.ErrUnsupportedFormat, len(key.Primes))
	}
	return withCRT(key)
}

// fromPQ assembles a two-prime private key, deriving the CRT values
func fromPQ(n, e, d, p, q *big.Int) (*rsakit.Key, error) {
	key := &rsakit.Key{N: n, E: e, D: d, Primes: []*big.Int{p, q}}
	if err := key.Precompute(); err != nil {
		return nil, err
	}
	return key, nil
}
