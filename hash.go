package rsakit

import (
	"crypto"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"strings"
)

// Hash identifies a digest usable for signatures, OAEP labels and MGF1
type Hash int

const (
	MD2 Hash = iota + 1
	MD5
	SHA1
	SHA224
	SHA256
	SHA384
	SHA512
)

var hashNames = map[Hash]string{
	MD2:    "md2",
	MD5:    "md5",
	SHA1:   "sha1",
	SHA224: "sha224",
	SHA256: "sha256",
	SHA384: "sha384",
	SHA512: "sha512",
}

// ParseHash looks a hash up by name ("sha256", "SHA-256" and so on)
func ParseHash(name string) (Hash, error) {
	normalized := strings.ToLower(strings.ReplaceAll(name, "-", ""))
	for h, n := range hashNames {
		if n == normalized {
			return h, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedHash, name)
}

func (h Hash) String() string {
	if name, ok := hashNames[h]; ok {
		return name
	}
	return fmt.Sprintf("Hash(%d)", int(h))
}

// Available reports whether h is a known hash
func (h Hash) Available() bool {
	_, ok := hashNames[h]
	return ok
}

func checkHashes(hashes ...Hash) error {
	for _, h := range hashes {
		if !h.Available() {
			return fmt.Errorf("%w: %s", ErrUnsupportedHash, h)
		}
	}
	return nil
}

// New returns a fresh hash.Hash. It panics for unknown hashes, like crypto.Hash.New
func (h Hash) New() hash.Hash {
	switch h {
	case MD2:
		return newMD2()
	case MD5:
		return md5.New()
	case SHA1:
		return sha1.New()
	case SHA224:
		return sha256.New224()
	case SHA256:
		return sha256.New()
	case SHA384:
		return sha512.New384()
	case SHA512:
		return sha512.New()
	}
	panic("rsakit: requested hash function #" + h.String() + " is unavailable")
}

// Size returns the digest length in bytes
func (h Hash) Size() int {
	switch h {
	case MD2, MD5:
		return 16
	case SHA1:
		return 20
	case SHA224:
		return 28
	case SHA256:
		return 32
	case SHA384:
		return 48
	case SHA512:
		return 64
	}
	return 0
}

// Sum hashes data in one go
func (h Hash) Sum(data []byte) []byte {
	hasher := h.New()
	hasher.Write(data)
	return hasher.Sum(nil)
}

// CryptoHash maps h to the standard library identifier; MD2 has none and maps to 0
func (h Hash) CryptoHash() crypto.Hash {
	switch h {
	case MD5:
		return crypto.MD5
	case SHA1:
		return crypto.SHA1
	case SHA224:
		return crypto.SHA224
	case SHA256:
		return crypto.SHA256
	case SHA384:
		return crypto.SHA384
	case SHA512:
		return crypto.SHA512
	}
	return 0
}
