package keyformat

import (
	"crypto/rand"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/crypto/pbkdf2"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/der"
	"github.com/bastionzero/rsakit/symmetric"
)

var (
	oidRSAEncryption = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01}
	oidRSASSAPSS     = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x0a}

	oidPBEWithMD5AndDES  = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x03}
	oidPBEWithMD5AndRC2  = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x06}
	oidPBEWithSHA1AndDES = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x0a}
	oidPBEWithSHA1AndRC2 = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x0b}
	oidPBKDF2            = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x0c}
	oidPBES2             = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x05, 0x0d}

	oidHMACWithSHA1   = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x07}
	oidHMACWithSHA224 = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x08}
	oidHMACWithSHA256 = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x09}
	oidHMACWithSHA384 = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x0a}
	oidHMACWithSHA512 = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x02, 0x0b}

	oidDESCBC     = []byte{0x2b, 0x0e, 0x03, 0x02, 0x07}
	oidDESEDE3CBC = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x03, 0x07}
	oidRC2CBC     = []byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x03, 0x02}
	oidAES128CBC  = []byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x01, 0x02}
	oidAES192CBC  = []byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x01, 0x16}
	oidAES256CBC  = []byte{0x60, 0x86, 0x48, 0x01, 0x65, 0x03, 0x04, 0x01, 0x2a}
)

// PKCS8Scheme selects how encrypted PKCS#8 keys are written
type PKCS8Scheme int

const (
	PBES2AES256 PKCS8Scheme = iota
	PBES2AES128
	PBES2DES3
	PBES1MD5DES
	PBES1SHA1RC2
)

var pkcs8SchemeNames = map[PKCS8Scheme]string{
	PBES2AES256:  "pbes2-aes256",
	PBES2AES128:  "pbes2-aes128",
	PBES2DES3:    "pbes2-des3",
	PBES1MD5DES:  "pbes1-md5-des",
	PBES1SHA1RC2: "pbes1-sha1-rc2",
}

func (s PKCS8Scheme) String() string {
	if name, ok := pkcs8SchemeNames[s]; ok {
		return name
	}
	return fmt.Sprintf("PKCS8Scheme(%d)", int(s))
}

// ParsePKCS8Scheme looks a scheme up by name, e.g. "pbes2-aes256". The empty name is the default
func ParsePKCS8Scheme(name string) (PKCS8Scheme, error) {
	if name == "" {
		return PBES2AES256, nil
	}
	scheme, ok := lo.FindKey(pkcs8SchemeNames, strings.ToLower(name))
	if !ok {
		return 0, fmt.Errorf("%w: PKCS#8 scheme %q", rsakit.ErrUnsupportedFormat, name)
	}
	return scheme, nil
}

const (
	defaultIterations = 2048
	saltLength        = 8
)

type pbes1Scheme struct {
	oid  []byte
	hash rsakit.Hash
	new  func(key []byte) (*symmetric.Cipher, error)
}

var pbes1Schemes = []pbes1Scheme{
	{oidPBEWithMD5AndDES, rsakit.MD5, desCBC},
	{oidPBEWithSHA1AndDES, rsakit.SHA1, desCBC},
	{oidPBEWithMD5AndRC2, rsakit.MD5, rc2CBC64},
	{oidPBEWithSHA1AndRC2, rsakit.SHA1, rc2CBC64},
}

type pbes2Cipher struct {
	oid    []byte
	keyLen int
	new    func(key []byte) (*symmetric.Cipher, error)
}

var pbes2Ciphers = []pbes2Cipher{
	{oidAES128CBC, 16, aesCBC},
	{oidAES192CBC, 24, aesCBC},
	{oidAES256CBC, 32, aesCBC},
	{oidDESEDE3CBC, 24, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewTripleDES(key, symmetric.ModeCBC)
	}},
	{oidDESCBC, 8, desCBC},
	{oidRC2CBC, 16, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewRC2(key, 128, symmetric.ModeCBC)
	}},
}

type pbkdf2PRF struct {
	oid  []byte
	hash rsakit.Hash
}

var pbkdf2PRFs = []pbkdf2PRF{
	{oidHMACWithSHA1, rsakit.SHA1},
	{oidHMACWithSHA224, rsakit.SHA224},
	{oidHMACWithSHA256, rsakit.SHA256},
	{oidHMACWithSHA384, rsakit.SHA384},
	{oidHMACWithSHA512, rsakit.SHA512},
}

func desCBC(key []byte) (*symmetric.Cipher, error) {
	return symmetric.NewDES(key, symmetric.ModeCBC)
}

func rc2CBC64(key []byte) (*symmetric.Cipher, error) {
	return symmetric.NewRC2(key, 64, symmetric.ModeCBC)
}

func aesCBC(key []byte) (*symmetric.Cipher, error) {
	return symmetric.NewAES(key, symmetric.ModeCBC)
}

// pbkdf1 derives keyLen bytes as in PKCS #5 v1.5: T_1 = Hash(P || S), T_i = Hash(T_{i-1})
func pbkdf1(hash rsakit.Hash, password, salt []byte, iterations, keyLen int) ([]byte, error) {
	if keyLen > hash.Size() {
		return nil, fmt.Errorf("%w: PBKDF1 cannot produce %d bytes with %s", rsakit.ErrUnsupportedFormat, keyLen, hash)
	}
	t := hash.Sum(append(append([]byte(nil), password...), salt...))
	for i := 1; i < iterations; i++ {
		t = hash.Sum(t)
	}
	return t[:keyLen], nil
}

func parsePKCS8(data []byte, opts *Options) (*rsakit.Key, bool, error) {
	block, derBytes, err := unarmor(data)
	if err != nil {
		return nil, false, err
	}

	if block != nil {
		switch block.Type {
		case pemPrivateKey:
			plain, encrypted, err := decryptLegacyPEM(block, opts.Password)
			if err != nil {
				return nil, true, err
			}
			key, err := decodePKCS8Private(plain)
			if err != nil && encrypted {
				return nil, true, fmt.Errorf("%w: %s", rsakit.ErrDecryption, err)
			}
			return key, true, err
		case pemEncryptedPrivateKey:
			key, err := decodeEncryptedPKCS8(block.Bytes, opts.Password)
			return key, true, err
		case pemPublicKey:
			key, err := decodePKIX(block.Bytes)
			return key, true, err
		}
		return nil, false, fmt.Errorf("%w: unexpected PEM type %q", rsakit.ErrMalformedKey, block.Type)
	}

	if !looksLikeDER(derBytes) {
		return nil, false, fmt.Errorf("%w: not DER", rsakit.ErrMalformedKey)
	}

	// tell the three structures apart by their first two elements
	seq, _ := der.NewReader(derBytes).ReadSequence()
	first, _ := seq.PeekTag()
	if first == der.TagInteger {
		key, err := decodePKCS8Private(derBytes)
		if err != nil {
			return nil, false, err
		}
		return key, true, nil
	}
	if _, _, err := seq.ReadAlgorithmIdentifier(); err != nil || first != der.TagSequence {
		return nil, false, fmt.Errorf("%w: not a PKCS#8 structure", rsakit.ErrMalformedKey)
	}
	switch second, _ := seq.PeekTag(); second {
	case der.TagBitString:
		key, err := decodePKIX(derBytes)
		return key, err == nil, err
	case der.TagOctetString:
		key, err := decodeEncryptedPKCS8(derBytes, opts.Password)
		return key, true, err
	}
	return nil, false, fmt.Errorf("%w: not a PKCS#8 structure", rsakit.ErrMalformedKey)
}

func checkRSAAlgorithm(oid []byte) error {
	if der.EqualOID(oid, oidRSAEncryption) || der.EqualOID(oid, oidRSASSAPSS) {
		return nil
	}
	return fmt.Errorf("%w: not an RSA key (algorithm %x)", rsakit.ErrUnsupportedFormat, oid)
}

// PrivateKeyInfo ::= SEQUENCE {
//     version                   Version,
//     privateKeyAlgorithm       AlgorithmIdentifier,
//     privateKey                OCTET STRING,
//     attributes           [0]  IMPLICIT Attributes OPTIONAL
// }
func decodePKCS8Private(b []byte) (*rsakit.Key, error) {
	outer := der.NewReader(b)
	seq, err := outer.ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	if !outer.Empty() {
		return nil, fmt.Errorf("%w: trailing data after PrivateKeyInfo", rsakit.ErrMalformedKey)
	}

	version, err := seq.ReadSmallInteger()
	if err != nil {
		return nil, malformed(err)
	}
	if version > 1 {
		return nil, fmt.Errorf("%w: unknown PrivateKeyInfo version %d", rsakit.ErrMalformedKey, version)
	}
	oid, _, err := seq.ReadAlgorithmIdentifier()
	if err != nil {
		return nil, malformed(err)
	}
	if err := checkRSAAlgorithm(oid); err != nil {
		return nil, err
	}
	inner, err := seq.ReadOctetString()
	if err != nil {
		return nil, malformed(err)
	}
	// attributes and the v2 public key are ignored

	return decodePKCS1Private(inner)
}

// SubjectPublicKeyInfo ::= SEQUENCE {
//     algorithm         AlgorithmIdentifier,
//     subjectPublicKey  BIT STRING
// }
func decodePKIX(b []byte) (*rsakit.Key, error) {
	outer := der.NewReader(b)
	seq, err := outer.ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	oid, _, err := seq.ReadAlgorithmIdentifier()
	if err != nil {
		return nil, malformed(err)
	}
	if err := checkRSAAlgorithm(oid); err != nil {
		return nil, err
	}
	inner, err := seq.ReadBitString()
	if err != nil {
		return nil, malformed(err)
	}
	if !seq.Empty() || !outer.Empty() {
		return nil, fmt.Errorf("%w: trailing data after SubjectPublicKeyInfo", rsakit.ErrMalformedKey)
	}
	return decodePKCS1Public(inner)
}

// EncryptedPrivateKeyInfo ::= SEQUENCE {
//     encryptionAlgorithm  AlgorithmIdentifier,
//     encryptedData        OCTET STRING
// }
func decodeEncryptedPKCS8(b []byte, password []byte) (*rsakit.Key, error) {
	seq, err := der.NewReader(b).ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	oid, params, err := seq.ReadAlgorithmIdentifier()
	if err != nil {
		return nil, malformed(err)
	}
	encrypted, err := seq.ReadOctetString()
	if err != nil {
		return nil, malformed(err)
	}
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: key is encrypted and no password was given", rsakit.ErrDecryption)
	}

	c, err := pkcs8Cipher(oid, params, password)
	if err != nil {
		return nil, err
	}

	plain, err := c.Decrypt(encrypted)
	if errors.Is(err, symmetric.ErrInvalidPadding) || errors.Is(err, symmetric.ErrInvalidLength) {
		return nil, fmt.Errorf("%w: %w", rsakit.ErrDecryption, err)
	}
	if err != nil {
		return nil, err
	}

	key, err := decodePKCS8Private(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", rsakit.ErrDecryption, err)
	}
	return key, nil
}

// pkcs8Cipher builds the keyed cipher, IV already set, described by an encryption AlgorithmIdentifier
func pkcs8Cipher(oid, params, password []byte) (*symmetric.Cipher, error) {
	if scheme, ok := lo.Find(pbes1Schemes, func(s pbes1Scheme) bool {
		return der.EqualOID(s.oid, oid)
	}); ok {
		return pbes1Cipher(scheme, params, password)
	}
	if der.EqualOID(oid, oidPBES2) {
		return pbes2CipherFromParams(params, password)
	}
	return nil, fmt.Errorf("%w: unsupported PKCS#8 encryption algorithm %x", rsakit.ErrUnsupportedFormat, oid)
}

// PBEParameter ::= SEQUENCE { salt OCTET STRING (SIZE(8)), iterationCount INTEGER }
func pbes1Cipher(scheme pbes1Scheme, params, password []byte) (*symmetric.Cipher, error) {
	seq, err := der.NewReader(params).ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	salt, err := seq.ReadOctetString()
	if err != nil {
		return nil, malformed(err)
	}
	iterations, err := seq.ReadSmallInteger()
	if err != nil {
		return nil, malformed(err)
	}
	if iterations < 1 {
		return nil, fmt.Errorf("%w: iteration count %d", rsakit.ErrMalformedKey, iterations)
	}

	// DK = key (8) || IV (8)
	dk, err := pbkdf1(scheme.hash, password, salt, iterations, 16)
	if err != nil {
		return nil, err
	}
	c, err := scheme.new(dk[:8])
	if err != nil {
		return nil, err
	}
	if err := c.SetIV(dk[8:16]); err != nil {
		return nil, err
	}
	return c, nil
}

// PBES2-params ::= SEQUENCE {
//     keyDerivationFunc AlgorithmIdentifier {{PBES2-KDFs}},
//     encryptionScheme  AlgorithmIdentifier {{PBES2-Encs}}
// }
//
// PBKDF2-params ::= SEQUENCE {
//     salt            OCTET STRING,
//     iterationCount  INTEGER (1..MAX),
//     keyLength       INTEGER (1..MAX) OPTIONAL,
//     prf             AlgorithmIdentifier {{PBKDF2-PRFs}} DEFAULT algid-hmacWithSHA1
// }
func pbes2CipherFromParams(params, password []byte) (*symmetric.Cipher, error) {
	seq, err := der.NewReader(params).ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	kdfOID, kdfParams, err := seq.ReadAlgorithmIdentifier()
	if err != nil {
		return nil, malformed(err)
	}
	if !der.EqualOID(kdfOID, oidPBKDF2) {
		return nil, fmt.Errorf("%w: unsupported PBES2 key derivation %x", rsakit.ErrUnsupportedFormat, kdfOID)
	}
	encOID, encParams, err := seq.ReadAlgorithmIdentifier()
	if err != nil {
		return nil, malformed(err)
	}

	spec, ok := lo.Find(pbes2Ciphers, func(c pbes2Cipher) bool {
		return der.EqualOID(c.oid, encOID)
	})
	if !ok {
		return nil, fmt.Errorf("%w: unsupported PBES2 cipher %x", rsakit.ErrUnsupportedFormat, encOID)
	}
	iv, err := pbes2IV(encOID, encParams)
	if err != nil {
		return nil, err
	}

	kdf, err := der.NewReader(kdfParams).ReadSequence()
	if err != nil {
		return nil, malformed(err)
	}
	salt, err := kdf.ReadOctetString()
	if err != nil {
		return nil, malformed(err)
	}
	iterations, err := kdf.ReadSmallInteger()
	if err != nil {
		return nil, malformed(err)
	}
	keyLen := spec.keyLen
	if tag, ok := kdf.PeekTag(); ok && tag == der.TagInteger {
		if keyLen, err = kdf.ReadSmallInteger(); err != nil {
			return nil, malformed(err)
		}
	}
	prf := rsakit.SHA1
	if !kdf.Empty() {
		prfOID, _, err := kdf.ReadAlgorithmIdentifier()
		if err != nil {
			return nil, malformed(err)
		}
		found, ok := lo.Find(pbkdf2PRFs, func(p pbkdf2PRF) bool {
			return der.EqualOID(p.oid, prfOID)
		})
		if !ok {
			return nil, fmt.Errorf("%w: unsupported PBKDF2 PRF %x", rsakit.ErrUnsupportedFormat, prfOID)
		}
		prf = found.hash
	}
	if iterations < 1 || keyLen < 1 {
		return nil, fmt.Errorf("%w: bad PBKDF2 parameters", rsakit.ErrMalformedKey)
	}

	key := pbkdf2.Key(password, salt, iterations, keyLen, prf.New)
	c, err := spec.new(key)
	if err != nil {
		return nil, err
	}
	if err := c.SetIV(iv); err != nil {
		return nil, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
	}
	return c, nil
}

// the IV is a bare OCTET STRING, except for RC2 where it follows an optional version number
func pbes2IV(oid, params []byte) ([]byte, error) {
	r := der.NewReader(params)
	if der.EqualOID(oid, oidRC2CBC) {
		seq, err := r.ReadSequence()
		if err != nil {
			return nil, malformed(err)
		}
		if tag, ok := seq.PeekTag(); ok && tag == der.TagInteger {
			if _, err := seq.ReadInteger(); err != nil {
				return nil, malformed(err)
			}
		}
		r = seq
	}
	iv, err := r.ReadOctetString()
	if err != nil {
		return nil, malformed(err)
	}
	return iv, nil
}

func marshalPKIX(key *rsakit.Key) []byte {
	return der.Sequence(
		der.AlgorithmIdentifier(oidRSAEncryption, nil),
		der.BitString(marshalPKCS1Public(key)),
	)
}

func encodePKCS8Private(key *rsakit.Key) ([]byte, error) {
	inner, err := encodePKCS1Private(key)
	if err != nil {
		return nil, err
	}
	return der.Sequence(
		der.SmallInteger(0),
		der.AlgorithmIdentifier(oidRSAEncryption, nil),
		der.OctetString(inner),
	), nil
}

func marshalPKCS8Private(key *rsakit.Key, opts *Options) ([]byte, error) {
	plain, err := encodePKCS8Private(key)
	if err != nil {
		return nil, err
	}
	if len(opts.Password) == 0 {
		return armor(pemPrivateKey, plain, opts), nil
	}

	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	iterations := opts.Iterations
	if iterations <= 0 {
		iterations = defaultIterations
	}
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(random, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	var algorithm []byte
	var c *symmetric.Cipher

	switch opts.PKCS8Scheme {
	case PBES1MD5DES, PBES1SHA1RC2:
		scheme := pbes1Schemes[0]
		if opts.PKCS8Scheme == PBES1SHA1RC2 {
			scheme = pbes1Schemes[3]
		}
		params := der.Sequence(der.OctetString(salt), der.SmallInteger(iterations))
		algorithm = der.AlgorithmIdentifier(scheme.oid, params)
		if c, err = pbes1Cipher(scheme, params, opts.Password); err != nil {
			return nil, err
		}

	case PBES2AES256, PBES2AES128, PBES2DES3:
		encOID := map[PKCS8Scheme][]byte{
			PBES2AES256: oidAES256CBC,
			PBES2AES128: oidAES128CBC,
			PBES2DES3:   oidDESEDE3CBC,
		}[opts.PKCS8Scheme]
		spec, _ := lo.Find(pbes2Ciphers, func(c pbes2Cipher) bool {
			return der.EqualOID(c.oid, encOID)
		})

		prf := opts.PKCS8PRF
		if prf == 0 {
			prf = rsakit.SHA256
		}
		prfEntry, ok := lo.Find(pbkdf2PRFs, func(p pbkdf2PRF) bool {
			return p.hash == prf
		})
		if !ok {
			return nil, fmt.Errorf("%w: no PBKDF2 PRF for %s", rsakit.ErrUnsupportedHash, prf)
		}

		probe, err := spec.new(make([]byte, spec.keyLen))
		if err != nil {
			return nil, err
		}
		iv := make([]byte, probe.BlockSize())
		if _, err := io.ReadFull(random, iv); err != nil {
			return nil, fmt.Errorf("failed to generate IV: %w", err)
		}

		kdfParams := der.Sequence(der.OctetString(salt), der.SmallInteger(iterations), der.AlgorithmIdentifier(prfEntry.oid, nil))
		params := der.Sequence(
			der.AlgorithmIdentifier(oidPBKDF2, kdfParams),
			der.AlgorithmIdentifier(encOID, der.OctetString(iv)),
		)
		algorithm = der.AlgorithmIdentifier(oidPBES2, params)
		if c, err = pbes2CipherFromParams(params, opts.Password); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: unknown PKCS#8 scheme %d", rsakit.ErrUnsupportedFormat, opts.PKCS8Scheme)
	}

	encrypted, err := c.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	derBytes := der.Sequence(algorithm, der.OctetString(encrypted))
	if opts.DER {
		return derBytes, nil
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemEncryptedPrivateKey, Bytes: derBytes}), nil
}
