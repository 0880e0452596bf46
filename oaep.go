package rsakit

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
)

// EncryptOAEP encrypts msg with RSAES-OAEP (RFC 8017 7.1.1). hash digests the label and mgfHash
// drives MGF1; they are usually the same. msg may be at most k - 2*hLen - 2 bytes long.
func EncryptOAEP(random io.Reader, pub *Key, hash, mgfHash Hash, msg, label []byte) ([]byte, error) {
	if err := checkHashes(hash, mgfHash); err != nil {
		return nil, err
	}
	if random == nil {
		random = rand.Reader
	}

	k := pub.Size()
	hLen := hash.Size()
	if k < 2*hLen+2 {
		return nil, ErrModulusTooShort
	}
	if len(msg) > k-2*hLen-2 {
		return nil, fmt.Errorf("%w: %d bytes, at most %d fit", ErrMessageTooLong, len(msg), k-2*hLen-2)
	}

	// EM = 0x00 || maskedSeed || maskedDB
	em := make([]byte, k)
	seed := em[1 : 1+hLen]
	db := em[1+hLen:]

	// DB = lHash || PS || 0x01 || M
	copy(db[0:hLen], hash.Sum(label))
	db[len(db)-len(msg)-1] = 1
	copy(db[len(db)-len(msg):], msg)

	if _, err := io.ReadFull(random, seed); err != nil {
		return nil, err
	}

	mgf1XOR(db, mgfHash, seed)
	mgf1XOR(seed, mgfHash, db)

	c, err := encrypt(pub, OS2IP(em))
	if err != nil {
		return nil, err
	}
	return c.FillBytes(em), nil
}

// DecryptOAEP decrypts an RSAES-OAEP ciphertext. Every failure is reported as ErrDecryption,
// and the checks run in constant time, so that callers cannot learn which check failed.
func DecryptOAEP(random io.Reader, priv *Key, hash, mgfHash Hash, ciphertext, label []byte, blind bool) ([]byte, error) {
	if !priv.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}
	if err := checkHashes(hash, mgfHash); err != nil {
		return nil, err
	}

	k := priv.Size()
	hLen := hash.Size()
	if len(ciphertext) > k || k < 2*hLen+2 {
		return nil, ErrDecryption
	}

	m, err := decrypt(random, priv, OS2IP(ciphertext), blind)
	if err != nil {
		return nil, ErrDecryption
	}
	em := m.FillBytes(make([]byte, k))

	lHash := hash.Sum(label)
	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)

	seed := em[1 : hLen+1]
	db := em[hLen+1:]

	mgf1XOR(seed, mgfHash, db)
	mgf1XOR(db, mgfHash, seed)

	lHash2Good := subtle.ConstantTimeCompare(lHash, db[0:hLen])

	// The remainder of the plaintext must be zero or more 0x00, followed
	// by 0x01, followed by the message.
	//   lookingForIndex: 1 iff we are still looking for the 0x01
	//   index: the offset of the first 0x01 byte
	//   invalid: 1 iff we saw a non-zero byte before the 0x01.
	var lookingForIndex, index, invalid int
	lookingForIndex = 1
	rest := db[hLen:]

	for i := 0; i < len(rest); i++ {
		equals0 := subtle.ConstantTimeByteEq(rest[i], 0)
		equals1 := subtle.ConstantTimeByteEq(rest[i], 1)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals1, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals1, 0, lookingForIndex)
		invalid = subtle.ConstantTimeSelect(lookingForIndex&^equals0, 1, invalid)
	}

	if firstByteIsZero&lHash2Good&^invalid&^lookingForIndex != 1 {
		return nil, ErrDecryption
	}

	return rest[index+1:], nil
}
