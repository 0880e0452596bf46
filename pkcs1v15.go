package rsakit

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
)

// These are ASN1 DER structures:
//
//	DigestInfo ::= SEQUENCE {
//	  digestAlgorithm AlgorithmIdentifier,
//	  digest OCTET STRING
//	}
//
// For performance, we don't use the generic ASN1 encoder. Rather, we
// precompute a prefix of the digest value that makes a valid ASN1 DER string
// with the correct contents.
var hashPrefixes = map[Hash][]byte{
	MD2:    {0x30, 0x20, 0x30, 0x0c, 0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x02, 0x05, 0x00, 0x04, 0x10},
	MD5:    {0x30, 0x20, 0x30, 0x0c, 0x06, 0x08, 0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x05, 0x05, 0x00, 0x04, 0x10},
	SHA1:   {0x30, 0x21, 0x30, 0x09, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x05, 0x00, 0x04, 0x14},
	SHA224: {0x30, 0x2d, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x04, 0x05, 0x00, 0x04, 0x1c},
	SHA256: {0x30, 0x31, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x05, 0x00, 0x04, 0x20},
	SHA384: {0x30, 0x41, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x05, 0x00, 0x04, 0x30},
	SHA512: {0x30, 0x51, 0x30, 0x0d, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x05, 0x00, 0x04, 0x40},
}

// Some signers leave the NULL parameters out of the AlgorithmIdentifier. We only ever emit the
// form above, but accept these when verifying.
var hashPrefixesWithoutNull = map[Hash][]byte{
	SHA1:   {0x30, 0x1f, 0x30, 0x07, 0x06, 0x05, 0x2b, 0x0e, 0x03, 0x02, 0x1a, 0x04, 0x14},
	SHA224: {0x30, 0x2b, 0x30, 0x0b, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x04, 0x04, 0x1c},
	SHA256: {0x30, 0x2f, 0x30, 0x0b, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x01, 0x04, 0x20},
	SHA384: {0x30, 0x3f, 0x30, 0x0b, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x02, 0x04, 0x30},
	SHA512: {0x30, 0x4f, 0x30, 0x0b, 0x06, 0x09, 0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x02, 0x03, 0x04, 0x40},
}

// EncryptPKCS1v15 encrypts msg with RSAES-PKCS1-v1_5. msg may be at most k - 11 bytes long
func EncryptPKCS1v15(random io.Reader, pub *Key, msg []byte) ([]byte, error) {
	if random == nil {
		random = rand.Reader
	}

	k := pub.Size()
	if k < 11 {
		return nil, ErrModulusTooShort
	}
	if len(msg) > k-11 {
		return nil, fmt.Errorf("%w: %d bytes, at most %d fit", ErrMessageTooLong, len(msg), k-11)
	}

	// EM = 0x00 || 0x02 || PS || 0x00 || M
	em := make([]byte, k)
	em[1] = 2
	ps, mm := em[2:len(em)-len(msg)-1], em[len(em)-len(msg):]
	if err := nonZeroRandomBytes(ps, random); err != nil {
		return nil, err
	}
	em[len(em)-len(msg)-1] = 0
	copy(mm, msg)

	c, err := encrypt(pub, OS2IP(em))
	if err != nil {
		return nil, err
	}
	return c.FillBytes(em), nil
}

// DecryptPKCS1v15 decrypts an RSAES-PKCS1-v1_5 ciphertext. Block types 1 and 2 are accepted and the
// padding string must be at least 8 bytes. Every failure is reported as ErrDecryption
func DecryptPKCS1v15(random io.Reader, priv *Key, ciphertext []byte, blind bool) ([]byte, error) {
	if !priv.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}

	valid, em, index, err := decryptPKCS1v15(random, priv, ciphertext, blind)
	if err != nil {
		return nil, err
	}
	if valid == 0 {
		return nil, ErrDecryption
	}
	return em[index:], nil
}

// decryptPKCS1v15 returns valid=1 and the index of the first message byte when em is well formed.
// The scan does not stop early, so timing does not reveal where the padding went wrong.
func decryptPKCS1v15(random io.Reader, priv *Key, ciphertext []byte, blind bool) (valid int, em []byte, index int, err error) {
	k := priv.Size()
	if k < 11 || len(ciphertext) > k {
		err = ErrDecryption
		return
	}

	m, err := decrypt(random, priv, OS2IP(ciphertext), blind)
	if err != nil {
		err = ErrDecryption
		return
	}

	em = m.FillBytes(make([]byte, k))
	firstByteIsZero := subtle.ConstantTimeByteEq(em[0], 0)
	blockTypeOK := subtle.ConstantTimeByteEq(em[1], 2) | subtle.ConstantTimeByteEq(em[1], 1)

	// The remainder of the plaintext must be a string of non-zero bytes,
	// followed by a zero byte, followed by the message.
	//   lookingForIndex: 1 iff we are still looking for the zero.
	//   index: the offset of the first zero byte.
	lookingForIndex := 1

	for i := 2; i < len(em); i++ {
		equals0 := subtle.ConstantTimeByteEq(em[i], 0)
		index = subtle.ConstantTimeSelect(lookingForIndex&equals0, i, index)
		lookingForIndex = subtle.ConstantTimeSelect(equals0, 0, lookingForIndex)
	}

	// The PS padding must be at least 8 bytes long, and it starts two
	// bytes into em.
	validPS := subtle.ConstantTimeLessOrEq(2+8, index)

	valid = firstByteIsZero & blockTypeOK & (^lookingForIndex & 1) & validPS
	index = subtle.ConstantTimeSelect(valid, index+1, 0)
	return valid, em, index, nil
}

// nonZeroRandomBytes fills the given slice with non-zero random octets.
func nonZeroRandomBytes(s []byte, random io.Reader) (err error) {
	_, err = io.ReadFull(random, s)
	if err != nil {
		return
	}

	for i := 0; i < len(s); i++ {
		for s[i] == 0 {
			_, err = io.ReadFull(random, s[i:i+1])
			if err != nil {
				return
			}
		}
	}

	return
}

// SignPKCS1v15 calculates the signature of hashed using
// RSASSA-PKCS1-V1_5-SIGN from RSA PKCS #1 v1.5.  Note that hashed must
// be the result of hashing the input message using the given hash
// function. If hash is zero, hashed is signed directly. This isn't
// advisable except for interoperability.
//
// If blind is set then RSA blinding will be used to avoid timing
// side-channel attacks.
//
// This function is deterministic. Thus, if the set of possible
// messages is small, an attacker may be able to build a map from
// messages to signatures and identify the signed messages. As ever,
// signatures provide authenticity, not confidentiality.
func SignPKCS1v15(random io.Reader, priv *Key, hash Hash, hashed []byte, blind bool) ([]byte, error) {
	if !priv.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}

	hashLen, prefix, err := pkcs1v15HashInfo(hash, len(hashed), hashPrefixes)
	if err != nil {
		return nil, err
	}

	em, err := emsaPKCS1v15Encode(prefix, hashed[:hashLen], priv.Size())
	if err != nil {
		return nil, err
	}

	s, err := decrypt(random, priv, OS2IP(em), blind)
	if err != nil {
		return nil, err
	}

	return s.FillBytes(em), nil
}

// VerifyPKCS1v15 verifies an RSASSA-PKCS1-V1_5 signature. hashed is the result of hashing
// the input message using the given hash function and sig is the signature.
// A valid signature is indicated by returning a nil error.
//
// Both DigestInfo encodings, with and without NULL algorithm parameters, are accepted.
func VerifyPKCS1v15(pub *Key, hash Hash, hashed []byte, sig []byte) error {
	hashLen, prefix, err := pkcs1v15HashInfo(hash, len(hashed), hashPrefixes)
	if err != nil {
		return err
	}

	k := pub.Size()
	if k != len(sig) {
		return ErrInvalidSignature
	}

	m, err := encrypt(pub, OS2IP(sig))
	if err != nil {
		return ErrInvalidSignature
	}
	em := m.FillBytes(make([]byte, k))

	ok := 0
	if expected, err := emsaPKCS1v15Encode(prefix, hashed[:hashLen], k); err == nil {
		ok |= subtle.ConstantTimeCompare(em, expected)
	}
	if noNull, found := hashPrefixesWithoutNull[hash]; found {
		if expected, err := emsaPKCS1v15Encode(noNull, hashed[:hashLen], k); err == nil {
			ok |= subtle.ConstantTimeCompare(em, expected)
		}
	}

	if ok != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// EM = 0x00 || 0x01 || PS || 0x00 || T, where PS is 0xff bytes and T = prefix || hashed
func emsaPKCS1v15Encode(prefix, hashed []byte, k int) ([]byte, error) {
	tLen := len(prefix) + len(hashed)
	if k < tLen+11 {
		return nil, ErrModulusTooShort
	}

	em := make([]byte, k)
	em[1] = 1
	for i := 2; i < k-tLen-1; i++ {
		em[i] = 0xff
	}
	copy(em[k-tLen:k-len(hashed)], prefix)
	copy(em[k-len(hashed):k], hashed)
	return em, nil
}

func pkcs1v15HashInfo(hash Hash, inLen int, prefixes map[Hash][]byte) (hashLen int, prefix []byte, err error) {
	// Special case: Hash(0) is used to indicate that the data is
	// signed directly.
	if hash == 0 {
		return inLen, nil, nil
	}

	hashLen = hash.Size()
	if inLen != hashLen {
		return 0, nil, errors.New("rsakit: input must be hashed message")
	}
	prefix, ok := prefixes[hash]
	if !ok {
		return 0, nil, ErrUnsupportedHash
	}
	return
}
