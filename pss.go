package rsakit

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// SaltLengthEqualsHash uses a salt as long as the digest. It is the default
	SaltLengthEqualsHash = 0
	// SaltLengthNone signs without a salt, which makes PSS deterministic
	SaltLengthNone = -1
)

func pssSaltLength(saltLength int, hash Hash) int {
	switch {
	case saltLength == SaltLengthEqualsHash:
		return hash.Size()
	case saltLength < 0:
		return 0
	}
	return saltLength
}

// SignPSS calculates the RSASSA-PSS signature of hashed (RFC 8017 8.1.1). hashed must be the digest
// of the message under hash; mgfHash drives MGF1.
func SignPSS(random io.Reader, priv *Key, hash, mgfHash Hash, hashed []byte, saltLength int, blind bool) ([]byte, error) {
	if !priv.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}
	if err := checkHashes(hash, mgfHash); err != nil {
		return nil, err
	}
	if random == nil {
		random = rand.Reader
	}
	if len(hashed) != hash.Size() {
		return nil, fmt.Errorf("input must be a %s digest", hash)
	}

	sLen := pssSaltLength(saltLength, hash)
	salt := make([]byte, sLen)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, fmt.Errorf("failed to read salt: %w", err)
	}

	emBits := priv.BitLen() - 1
	em, err := emsaPSSEncode(hashed, emBits, salt, hash, mgfHash)
	if err != nil {
		return nil, err
	}

	s, err := decrypt(random, priv, OS2IP(em), blind)
	if err != nil {
		return nil, err
	}
	return I2OSP(s, priv.Size())
}

// VerifyPSS verifies an RSASSA-PSS signature. A valid signature is indicated by a nil error
func VerifyPSS(pub *Key, hash, mgfHash Hash, hashed, sig []byte, saltLength int) error {
	if err := checkHashes(hash, mgfHash); err != nil {
		return err
	}
	if len(sig) != pub.Size() {
		return ErrInvalidSignature
	}
	if len(hashed) != hash.Size() {
		return ErrInvalidSignature
	}

	m, err := encrypt(pub, OS2IP(sig))
	if err != nil {
		return ErrInvalidSignature
	}

	emBits := pub.BitLen() - 1
	emLen := (emBits + 7) / 8
	if m.BitLen() > emLen*8 {
		return ErrInvalidSignature
	}
	em := m.FillBytes(make([]byte, emLen))

	return emsaPSSVerify(hashed, em, emBits, pssSaltLength(saltLength, hash), hash, mgfHash)
}

// EM = maskedDB || H || 0xBC, where DB = PS || 0x01 || salt and H = Hash(0x00*8 || mHash || salt)
func emsaPSSEncode(mHash []byte, emBits int, salt []byte, hash, mgfHash Hash) ([]byte, error) {
	hLen := hash.Size()
	sLen := len(salt)
	emLen := (emBits + 7) / 8

	if emLen < hLen+sLen+2 {
		return nil, ErrModulusTooShort
	}

	em := make([]byte, emLen)
	psLen := emLen - sLen - hLen - 2
	db := em[:psLen+1+sLen]
	h := em[psLen+1+sLen : emLen-1]

	// H <- Hash(M'), M' = 0x00 x 8 || mHash || salt
	var prefix [8]byte
	copy(h, hashConcat(hash, prefix[:], mHash, salt))

	db[psLen] = 0x01
	copy(db[psLen+1:], salt)

	mgf1XOR(db, mgfHash, h)

	// clear the leftmost 8 * emLen - emBits bits
	db[0] &= 0xff >> (8*emLen - emBits)

	em[emLen-1] = 0xbc
	return em, nil
}

func emsaPSSVerify(mHash, em []byte, emBits, sLen int, hash, mgfHash Hash) error {
	hLen := hash.Size()
	emLen := (emBits + 7) / 8
	if emLen != len(em) || emLen < hLen+sLen+2 {
		return ErrInvalidSignature
	}

	if em[emLen-1] != 0xbc {
		return ErrInvalidSignature
	}

	db := em[:emLen-hLen-1]
	h := em[emLen-hLen-1 : emLen-1]

	bitMask := byte(0xff >> (8*emLen - emBits))
	if em[0]&^bitMask != 0 {
		return ErrInvalidSignature
	}

	mgf1XOR(db, mgfHash, h)
	db[0] &= bitMask

	// DB must be emLen - hLen - sLen - 2 zero octets followed by 0x01
	psLen := emLen - hLen - sLen - 2
	for _, e := range db[:psLen] {
		if e != 0x00 {
			return ErrInvalidSignature
		}
	}
	if db[psLen] != 0x01 {
		return ErrInvalidSignature
	}

	salt := db[len(db)-sLen:]

	var prefix [8]byte
	if !equals(h, hashConcat(hash, prefix[:], mHash, salt)) {
		return ErrInvalidSignature
	}
	return nil
}
