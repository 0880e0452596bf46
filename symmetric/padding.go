package symmetric

import (
	"bytes"
	"fmt"
)

// pad appends PKCS#7 padding; a block aligned input gains a whole block of padding
func pad(in []byte, blockSize int) []byte {
	n := blockSize - len(in)%blockSize
	out := make([]byte, len(in), len(in)+n)
	copy(out, in)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(in []byte, blockSize int) ([]byte, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidPadding)
	}

	n := int(in[len(in)-1])
	if n == 0 || n > blockSize || n > len(in) {
		return nil, ErrInvalidPadding
	}
	for _, b := range in[len(in)-n:] {
		if int(b) != n {
			return nil, ErrInvalidPadding
		}
	}

	return in[:len(in)-n], nil
}
