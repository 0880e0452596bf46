package rsakit

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// EncryptionMode picks the padding used by Engine.Encrypt and Engine.Decrypt
type EncryptionMode int

const (
	EncryptionOAEP EncryptionMode = iota
	EncryptionPKCS1
	EncryptionNone
)

func (m EncryptionMode) String() string {
	switch m {
	case EncryptionOAEP:
		return "oaep"
	case EncryptionPKCS1:
		return "pkcs1"
	case EncryptionNone:
		return "none"
	}
	return fmt.Sprintf("EncryptionMode(%d)", int(m))
}

// ParseEncryptionMode maps "oaep", "pkcs1" and "none"
func ParseEncryptionMode(name string) (EncryptionMode, error) {
	switch strings.ToLower(name) {
	case "", "oaep":
		return EncryptionOAEP, nil
	case "pkcs1", "pkcs1v15":
		return EncryptionPKCS1, nil
	case "none", "raw":
		return EncryptionNone, nil
	}
	return 0, fmt.Errorf("unknown encryption mode %q", name)
}

// SignatureMode picks the scheme used by Engine.Sign and Engine.Verify
type SignatureMode int

const (
	SignaturePSS SignatureMode = iota
	SignaturePKCS1
)

func (m SignatureMode) String() string {
	switch m {
	case SignaturePSS:
		return "pss"
	case SignaturePKCS1:
		return "pkcs1"
	}
	return fmt.Sprintf("SignatureMode(%d)", int(m))
}

// ParseSignatureMode maps "pss" and "pkcs1"
func ParseSignatureMode(name string) (SignatureMode, error) {
	switch strings.ToLower(name) {
	case "", "pss":
		return SignaturePSS, nil
	case "pkcs1", "pkcs1v15":
		return SignaturePKCS1, nil
	}
	return 0, fmt.Errorf("unknown signature mode %q", name)
}

// Options configures an Engine. The zero value means OAEP and PSS over SHA-1 with blinding on.
type Options struct {
	EncryptionMode EncryptionMode
	SignatureMode  SignatureMode

	// Hash digests messages and OAEP labels. Defaults to SHA1
	Hash Hash
	// MGFHash drives MGF1 for OAEP and PSS. Defaults to SHA1
	MGFHash Hash

	// SaltLength is the PSS salt length: SaltLengthEqualsHash, SaltLengthNone or a byte count
	SaltLength int
	Label      []byte

	DisableBlinding bool
	Random          io.Reader
}

// Engine performs encryption and signatures with one key under one set of Options
type Engine struct {
	key  *Key
	opts Options
}

// NewEngine checks the options against the key. opts may be nil. Whether the modulus is large
// enough for the padding is only checked once an operation needs it
func NewEngine(key *Key, opts *Options) (*Engine, error) {
	if key == nil || key.N == nil || key.E == nil {
		return nil, fmt.Errorf("%w: missing modulus or public exponent", ErrMalformedKey)
	}

	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Hash == 0 {
		o.Hash = SHA1
	}
	if o.MGFHash == 0 {
		o.MGFHash = SHA1
	}
	if !o.Hash.Available() || !o.MGFHash.Available() {
		return nil, ErrUnsupportedHash
	}
	if o.Random == nil {
		o.Random = rand.Reader
	}

	return &Engine{key: key, opts: o}, nil
}

// Key returns the key the engine was built with
func (e *Engine) Key() *Key {
	return e.key
}

// blockCapacity is the largest plaintext that fits in one RSA block
func (e *Engine) blockCapacity() int {
	k := e.key.Size()
	switch e.opts.EncryptionMode {
	case EncryptionPKCS1:
		return k - 11
	case EncryptionNone:
		return k
	}
	return k - 2*e.opts.Hash.Size() - 2
}

// Encrypt splits plaintext into blocks that fit the padding, encrypts each separately and
// concatenates the results. Each block of ciphertext is k bytes long.
func (e *Engine) Encrypt(plaintext []byte) ([]byte, error) {
	capacity := e.blockCapacity()
	if capacity <= 0 {
		return nil, e.tooShort()
	}

	var out bytes.Buffer
	for first := true; first || len(plaintext) > 0; first = false {
		n := min(capacity, len(plaintext))
		block, err := e.EncryptBlock(plaintext[:n])
		if err != nil {
			return nil, err
		}
		out.Write(block)
		plaintext = plaintext[n:]
	}
	return out.Bytes(), nil
}

func (e *Engine) tooShort() error {
	return fmt.Errorf("%w: %d-bit key with %s/%s", ErrModulusTooShort, e.key.BitLen(), e.opts.EncryptionMode, e.opts.Hash)
}

// EncryptBlock encrypts exactly one block. Oversized input is ErrMessageTooLong
func (e *Engine) EncryptBlock(plaintext []byte) ([]byte, error) {
	if e.blockCapacity() < 0 {
		return nil, e.tooShort()
	}

	switch e.opts.EncryptionMode {
	case EncryptionPKCS1:
		return EncryptPKCS1v15(e.opts.Random, e.key, plaintext)
	case EncryptionNone:
		k := e.key.Size()
		if len(plaintext) > k {
			return nil, fmt.Errorf("%w: %d bytes, at most %d fit", ErrMessageTooLong, len(plaintext), k)
		}
		c, err := encrypt(e.key, OS2IP(plaintext))
		if err != nil {
			return nil, err
		}
		return I2OSP(c, k)
	}
	return EncryptOAEP(e.opts.Random, e.key, e.opts.Hash, e.opts.MGFHash, plaintext, e.opts.Label)
}

// Decrypt splits ciphertext into k byte blocks and decrypts each. A short final block is treated
// as if it had been left-padded with zeros.
func (e *Engine) Decrypt(ciphertext []byte) ([]byte, error) {
	if !e.key.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}

	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: empty ciphertext", ErrDecryption)
	}

	k := e.key.Size()
	var out bytes.Buffer
	for len(ciphertext) > 0 {
		n := min(k, len(ciphertext))
		block, err := e.decryptBlock(leftPad(ciphertext[:n], k))
		if err != nil {
			return nil, err
		}
		out.Write(block)
		ciphertext = ciphertext[n:]
	}
	return out.Bytes(), nil
}

func (e *Engine) decryptBlock(block []byte) ([]byte, error) {
	blind := !e.opts.DisableBlinding
	switch e.opts.EncryptionMode {
	case EncryptionPKCS1:
		return DecryptPKCS1v15(e.opts.Random, e.key, block, blind)
	case EncryptionNone:
		m, err := decrypt(e.opts.Random, e.key, OS2IP(block), blind)
		if err != nil {
			return nil, err
		}
		return I2OSP(m, e.key.Size())
	}
	return DecryptOAEP(e.opts.Random, e.key, e.opts.Hash, e.opts.MGFHash, block, e.opts.Label, blind)
}

// Sign hashes message with the configured Hash and signs the digest
func (e *Engine) Sign(message []byte) ([]byte, error) {
	if !e.key.IsPrivate() {
		return nil, ErrPublicKeyOnly
	}

	hashed := e.opts.Hash.Sum(message)
	blind := !e.opts.DisableBlinding
	if e.opts.SignatureMode == SignaturePKCS1 {
		return SignPKCS1v15(e.opts.Random, e.key, e.opts.Hash, hashed, blind)
	}
	return SignPSS(e.opts.Random, e.key, e.opts.Hash, e.opts.MGFHash, hashed, e.opts.SaltLength, blind)
}

// Verify checks signature over message. It returns nil or ErrInvalidSignature
func (e *Engine) Verify(message, signature []byte) error {
	hashed := e.opts.Hash.Sum(message)
	if e.opts.SignatureMode == SignaturePKCS1 {
		return VerifyPKCS1v15(e.key, e.opts.Hash, hashed, signature)
	}
	return VerifyPSS(e.key, e.opts.Hash, e.opts.MGFHash, hashed, signature, e.opts.SaltLength)
}
