package rsakit

import (
	"crypto/subtle"
)

// MGF1 returns maskLen bytes of Hash(seed || counter) for counter = 0, 1, 2, ... (RFC 8017 B.2.1)
func MGF1(h Hash, seed []byte, maskLen int) ([]byte, error) {
	if err := checkHashes(h); err != nil {
		return nil, err
	}
	mask := make([]byte, maskLen)
	mgf1XOR(mask, h, seed)
	return mask, nil
}

// mgf1XOR XORs the bytes in out with a mask generated using the MGF1 function
// specified in PKCS #1 v2.1.
func mgf1XOR(out []byte, h Hash, seed []byte) {
	hasher := h.New()
	var counter [4]byte
	var digest []byte

	done := 0
	for done < len(out) {
		hasher.Reset()
		hasher.Write(seed)
		hasher.Write(counter[0:4])
		digest = hasher.Sum(digest[:0])

		for i := 0; i < len(digest) && done < len(out); i++ {
			out[done] ^= digest[i]
			done++
		}
		incCounter(&counter)
	}
}

// incCounter increments a four byte, big-endian counter.
func incCounter(c *[4]byte) {
	if c[3]++; c[3] != 0 {
		return
	}
	if c[2]++; c[2] != 0 {
		return
	}
	if c[1]++; c[1] != 0 {
		return
	}
	c[0]++
}

// equals compares a and b over their full length without short-circuiting
func equals(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

func hashConcat(h Hash, parts ...[]byte) []byte {
	hasher := h.New()
	for _, p := range parts {
		hasher.Write(p)
	}
	return hasher.Sum(nil)
}
