package symmetric

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"fmt"
)

// des keys are padded with zero bytes to 8 bytes; anything past 8 is ignored
type desKind struct{}

func (desKind) block(key []byte) (cipher.Block, error) {
	k, err := fitKey(key, 8, 8)
	if err != nil {
		return nil, err
	}
	return des.NewCipher(k)
}

func (desKind) stages([]byte) ([3]cipher.Block, error) {
	return [3]cipher.Block{}, fmt.Errorf("%w: 3cbc needs TripleDES", ErrUnsupportedMode)
}

func (desKind) supports(mode Mode) bool {
	return mode != Mode3CBC && modeNames[mode] != ""
}

// NewDES returns single DES in the given mode
func NewDES(key []byte, mode Mode) (*Cipher, error) {
	return newCipher(desKind{}, key, mode)
}

// a TripleDES key of 8 bytes or fewer degrades to single DES (k1 = k2 = k3);
// longer keys are zero padded to 24 bytes and truncated beyond that
type tripleDESKind struct{}

func tripleDESKey(key []byte) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKeyLength)
	}
	if len(key) <= 8 {
		k, _ := fitKey(key, 8, 8)
		return append(append(append([]byte(nil), k...), k...), k...), nil
	}
	return fitKey(key, 24, 24)
}

func (tripleDESKind) block(key []byte) (cipher.Block, error) {
	k, err := tripleDESKey(key)
	if err != nil {
		return nil, err
	}
	return des.NewTripleDESCipher(k)
}

func (tripleDESKind) stages(key []byte) ([3]cipher.Block, error) {
	var stages [3]cipher.Block

	k, err := tripleDESKey(key)
	if err != nil {
		return stages, err
	}
	for i := range stages {
		if stages[i], err = des.NewCipher(k[8*i : 8*i+8]); err != nil {
			return stages, err
		}
	}
	return stages, nil
}

func (tripleDESKind) supports(mode Mode) bool {
	return modeNames[mode] != ""
}

// NewTripleDES returns EDE TripleDES in the given mode. ModeCBC is the usual outer CBC;
// Mode3CBC is the legacy inner CBC where each of the three DES passes keeps its own chain.
func NewTripleDES(key []byte, mode Mode) (*Cipher, error) {
	return newCipher(tripleDESKind{}, key, mode)
}

// aes keys are padded up to the next of 16, 24 or 32 bytes and truncated beyond 32
type aesKind struct{}

func (aesKind) block(key []byte) (cipher.Block, error) {
	size := 32
	switch {
	case len(key) <= 16:
		size = 16
	case len(key) <= 24:
		size = 24
	}
	k, err := fitKey(key, size, size)
	if err != nil {
		return nil, err
	}
	return aes.NewCipher(k)
}

func (aesKind) stages([]byte) ([3]cipher.Block, error) {
	return [3]cipher.Block{}, fmt.Errorf("%w: 3cbc needs TripleDES", ErrUnsupportedMode)
}

func (aesKind) supports(mode Mode) bool {
	return mode != Mode3CBC && modeNames[mode] != ""
}

// NewAES returns AES in the given mode
func NewAES(key []byte, mode Mode) (*Cipher, error) {
	return newCipher(aesKind{}, key, mode)
}

// fitKey zero pads key to min bytes and truncates it to max bytes. Empty keys are refused
func fitKey(key []byte, min, max int) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKeyLength)
	}

	k := append([]byte(nil), key...)
	if len(k) > max {
		k = k[:max]
	}
	for len(k) < min {
		k = append(k, 0)
	}
	return k, nil
}
