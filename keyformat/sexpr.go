package keyformat

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/abesto/sexp"

	"github.com/bastionzero/rsakit"
)

const (
	sexpPrivateKey = "private-key"
	sexpPublicKey  = "public-key"
	sexpRSA        = "rsa"
)

// (private-key(rsa(n%m)(e%m)(d%m)(p%m)(q%m)(u%m)))
// (public-key(rsa(n%m)(e%m)))
//
// libgcrypt keeps p < q and u = p^-1 mod q.

// sexpInt is libgcrypt's %m: unsigned big-endian with a zero byte when the top bit is set
func sexpInt(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) == 0 || b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

func sexpParam(name string, x *big.Int) []interface{} {
	return []interface{}{[]byte(name), sexpInt(x)}
}

func marshalSExpr(key *rsakit.Key, private bool) ([]byte, error) {
	params := []interface{}{
		[]byte(sexpRSA),
		sexpParam("n", key.N),
		sexpParam("e", key.E),
	}
	kind := sexpPublicKey

	if private {
		if len(key.Primes) != 2 {
			return nil, fmt.Errorf("%w: the format only holds two-prime keys, this one has %d primes", rsakit.ErrUnsupportedFormat, len(key.Primes))
		}
		p, q := key.Primes[0], key.Primes[1]
		if p.Cmp(q) > 0 {
			p, q = q, p
		}
		u := new(big.Int).ModInverse(p, q)
		if u == nil {
			return nil, fmt.Errorf("%w: primes are not coprime", rsakit.ErrMalformedKey)
		}
		params = append(params,
			sexpParam("d", key.D),
			sexpParam("p", p),
			sexpParam("q", q),
			sexpParam("u", u),
		)
		kind = sexpPrivateKey
	}

	out, err := sexp.Marshal([]interface{}{[]byte(kind), params}, true)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal s-expression: %w", err)
	}
	return out, nil
}

func parseSExpr(data []byte, _ *Options) (*rsakit.Key, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("(")) {
		return nil, false, fmt.Errorf("%w: not an s-expression", rsakit.ErrMalformedKey)
	}
	exp, err := sexp.Unmarshal(trimmed)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
	}
	if len(exp) != 2 {
		return nil, false, fmt.Errorf("%w: unexpected s-expression shape", rsakit.ErrMalformedKey)
	}

	kind, ok := exp[0].([]byte)
	if !ok {
		return nil, false, fmt.Errorf("%w: unexpected s-expression shape", rsakit.ErrMalformedKey)
	}
	switch string(kind) {
	case sexpPrivateKey, sexpPublicKey:
	case "protected-private-key", "shadowed-private-key":
		return nil, true, fmt.Errorf("%w: %s", rsakit.ErrUnsupportedFormat, kind)
	default:
		return nil, false, fmt.Errorf("%w: s-expression is a %q", rsakit.ErrMalformedKey, kind)
	}

	algol, ok := exp[1].([]interface{})
	if !ok || len(algol) < 3 {
		return nil, true, fmt.Errorf("%w: unexpected s-expression shape", rsakit.ErrMalformedKey)
	}
	if algo, ok := algol[0].([]byte); !ok || string(algo) != sexpRSA {
		return nil, true, fmt.Errorf("%w: algorithm %q", rsakit.ErrUnsupportedFormat, algol[0])
	}

	values := map[string]*big.Int{}
	for _, item := range algol[1:] {
		l, ok := item.([]interface{})
		if !ok || len(l) != 2 {
			return nil, true, fmt.Errorf("%w: unexpected s-expression parameter", rsakit.ErrMalformedKey)
		}
		name, ok1 := l[0].([]byte)
		value, ok2 := l[1].([]byte)
		if !ok1 || !ok2 {
			return nil, true, fmt.Errorf("%w: unexpected s-expression parameter", rsakit.ErrMalformedKey)
		}
		values[string(name)] = new(big.Int).SetBytes(value)
	}

	n, e := values["n"], values["e"]
	if n == nil || e == nil || n.Sign() == 0 || e.Sign() == 0 {
		return nil, true, fmt.Errorf("%w: missing n or e", rsakit.ErrMalformedKey)
	}
	if string(kind) == sexpPublicKey {
		return &rsakit.Key{N: n, E: e}, true, nil
	}

	d, p, q := values["d"], values["p"], values["q"]
	if d == nil || p == nil || q == nil {
		return nil, true, fmt.Errorf("%w: private key without d, p and q", rsakit.ErrMalformedKey)
	}
	// with q first, the PKCS#1 coefficient q'^-1 mod p' is libgcrypt's u
	key, err := fromPQ(n, e, d, q, p)
	return key, true, err
}
