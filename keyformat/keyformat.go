/*
Package keyformat reads and writes RSA keys in the formats found in the wild.

Supported formats:
  - PKCS#1 (RSA PRIVATE KEY / RSA PUBLIC KEY), optionally with legacy PEM encryption
  - PKCS#8 (PRIVATE KEY / ENCRYPTED PRIVATE KEY / PUBLIC KEY) with PBES1 and PBES2
  - OpenSSH authorized_keys lines and openssh-key-v1 private keys
  - PuTTY .ppk files, versions 2 and 3
  - the XML RSAKeyValue element
  - libgcrypt S-expressions
  - raw component maps

PEM, bare base64 and binary DER are all accepted wherever DER is expected. [ParseAny] tries every
parser in a fixed order and returns the first key that parses.

Multi-prime keys can only be written as PKCS#1 and PKCS#8; the other formats have no place for more
than two primes and return [rsakit.ErrUnsupportedFormat].
*/
package keyformat

import (
	"bytes"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/der"
)

// Format names a key serialization
type Format int

const (
	PKCS1 Format = iota + 1
	PKCS8
	OpenSSH
	OpenSSHPrivate
	PuTTY
	XML
	SExpr
	Raw
)

var formatNames = map[Format]string{
	PKCS1:          "pkcs1",
	PKCS8:          "pkcs8",
	OpenSSH:        "openssh",
	OpenSSHPrivate: "openssh-private",
	PuTTY:          "putty",
	XML:            "xml",
	SExpr:          "sexpr",
	Raw:            "raw",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ParseFormat looks a format up by name
func ParseFormat(name string) (Format, error) {
	format, ok := lo.FindKey(formatNames, strings.ToLower(name))
	if !ok {
		return 0, fmt.Errorf("%w: %q", rsakit.ErrUnsupportedFormat, name)
	}
	return format, nil
}

// Options tunes parsing and serialization. The zero value writes unencrypted PEM
type Options struct {
	// Password decrypts encrypted keys and, when set, encrypts private keys on output
	Password []byte

	// PEMCipher is the DEK-Info cipher for encrypted PKCS#1 output. Defaults to DES-EDE3-CBC
	PEMCipher string
	// PKCS8Scheme picks the encryption for PKCS#8 output. Defaults to PBES2AES256
	PKCS8Scheme PKCS8Scheme
	// PKCS8PRF is the PBKDF2 pseudo-random function for PBES2 output. Defaults to SHA256
	PKCS8PRF rsakit.Hash
	// Iterations is the PBKDF iteration count for PKCS#8 output. Defaults to 2048
	Iterations int

	// OpenSSHCipher is the cipher for encrypted openssh-key-v1 output. Defaults to aes256-ctr
	OpenSSHCipher string
	// BcryptRounds for the openssh-key-v1 KDF. Defaults to 16
	BcryptRounds int

	// PuTTYVersion is 2 or 3. Defaults to 2
	PuTTYVersion int
	// Argon2 cost parameters for PuTTY v3 output
	Argon2Memory      uint32
	Argon2Passes      uint32
	Argon2Parallelism uint8

	// DER writes PKCS#1 and PKCS#8 as binary DER instead of PEM
	DER bool

	Random io.Reader
}

func (o *Options) orDefault() *Options {
	if o == nil {
		return &Options{}
	}
	return o
}

func malformed(err error) error {
	if errors.Is(err, rsakit.ErrMalformedKey) || errors.Is(err, rsakit.ErrDecryption) || errors.Is(err, rsakit.ErrUnsupportedFormat) {
		return err
	}
	return fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
}

// checked rejects a parsed key whose numbers do not belong together, so that a bad factor
// surfaces here instead of as a wrong result from a private key operation
func checked(key *rsakit.Key) (*rsakit.Key, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return key, nil
}

// A parser reports recognized=false when the input is not in its format at all, as opposed to
// being in its format but broken
type parser struct {
	format Format
	parse  func(data []byte, opts *Options) (key *rsakit.Key, recognized bool, err error)
}

// the order matters: the first parser that recognizes the input decides the outcome
var parsers = []parser{
	{PKCS1, parsePKCS1},
	{PKCS8, parsePKCS8},
	{XML, parseXML},
	{PuTTY, parsePuTTY},
	{OpenSSH, parseOpenSSHPublic},
	{OpenSSHPrivate, parseOpenSSHPrivate},
	{SExpr, parseSExpr},
}

// Parse reads a key in the given format. opts may be nil
func Parse(data []byte, format Format, opts *Options) (*rsakit.Key, error) {
	p, ok := lo.Find(parsers, func(p parser) bool {
		return p.format == format
	})
	if !ok {
		return nil, fmt.Errorf("%w: cannot parse %s", rsakit.ErrUnsupportedFormat, format)
	}

	key, recognized, err := p.parse(data, opts.orDefault())
	if err != nil {
		return nil, err
	}
	if !recognized {
		return nil, fmt.Errorf("%w: input is not %s", rsakit.ErrMalformedKey, format)
	}
	return checked(key)
}

// ParseAny tries every format in turn. A format that recognizes the input but fails to parse it,
// for example because of a wrong password, ends the search with its error
func ParseAny(data []byte, opts *Options) (*rsakit.Key, Format, error) {
	opts = opts.orDefault()
	for _, p := range parsers {
		key, recognized, err := p.parse(data, opts)
		if !recognized {
			continue
		}
		if err != nil {
			return nil, p.format, err
		}
		key, err = checked(key)
		return key, p.format, err
	}
	return nil, 0, fmt.Errorf("%w: no parser recognized the input", rsakit.ErrUnsupportedFormat)
}

// MarshalPrivate serializes a private key. With opts.Password set, formats that support it are encrypted
func MarshalPrivate(key *rsakit.Key, format Format, opts *Options) ([]byte, error) {
	if !key.IsPrivate() {
		return nil, rsakit.ErrPublicKeyOnly
	}
	opts = opts.orDefault()

	switch format {
	case PKCS1:
		return marshalPKCS1Private(key, opts)
	case PKCS8:
		return marshalPKCS8Private(key, opts)
	case OpenSSHPrivate, OpenSSH:
		return marshalOpenSSHPrivate(key, opts)
	case PuTTY:
		return marshalPuTTY(key, opts)
	case XML:
		return marshalXML(key, true)
	case SExpr:
		return marshalSExpr(key, true)
	}
	return nil, fmt.Errorf("%w: cannot write a private key as %s", rsakit.ErrUnsupportedFormat, format)
}

// MarshalPublic serializes the public half of a key
func MarshalPublic(key *rsakit.Key, format Format, opts *Options) ([]byte, error) {
	if key.N == nil || key.E == nil {
		return nil, fmt.Errorf("%w: missing modulus or public exponent", rsakit.ErrMalformedKey)
	}
	opts = opts.orDefault()

	switch format {
	case PKCS1:
		return armor(pemRSAPublicKey, marshalPKCS1Public(key), opts), nil
	case PKCS8:
		return armor(pemPublicKey, marshalPKIX(key), opts), nil
	case OpenSSH:
		return marshalOpenSSHPublic(key), nil
	case XML:
		return marshalXML(key, false)
	case SExpr:
		return marshalSExpr(key, false)
	}
	return nil, fmt.Errorf("%w: cannot write a public key as %s", rsakit.ErrUnsupportedFormat, format)
}

const (
	pemRSAPrivateKey       = "RSA PRIVATE KEY"
	pemRSAPublicKey        = "RSA PUBLIC KEY"
	pemPrivateKey          = "PRIVATE KEY"
	pemEncryptedPrivateKey = "ENCRYPTED PRIVATE KEY"
	pemPublicKey           = "PUBLIC KEY"
	pemOpenSSHPrivateKey   = "OPENSSH PRIVATE KEY"
)

// unarmor finds the DER in data: a PEM block, bare base64, or the bytes themselves.
// block is nil unless the input was PEM
func unarmor(data []byte) (block *pem.Block, derBytes []byte, err error) {
	if bytes.Contains(data, []byte("-----BEGIN ")) {
		block, _ = pem.Decode(data)
		if block == nil {
			return nil, nil, fmt.Errorf("%w: failed to decode PEM block", rsakit.ErrMalformedKey)
		}
		return block, block.Bytes, nil
	}

	compact := strings.Join(strings.Fields(string(data)), "")
	if decoded, err := base64.StdEncoding.DecodeString(compact); err == nil && len(decoded) > 0 {
		return nil, decoded, nil
	}

	return nil, data, nil
}

func armor(pemType string, derBytes []byte, opts *Options) []byte {
	if opts.DER {
		return derBytes
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemType, Bytes: derBytes})
}

// looksLikeDER reports whether b is exactly one SEQUENCE
func looksLikeDER(b []byte) bool {
	r := der.NewReader(b)
	_, err := r.ReadSequence()
	return err == nil && r.Empty()
}
