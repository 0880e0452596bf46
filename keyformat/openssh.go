package keyformat

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/dchest/bcrypt_pbkdf"
	"golang.org/x/crypto/cryptobyte"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/symmetric"
)

const (
	openSSHMagic         = "openssh-key-v1\x00"
	openSSHLineLength    = 70
	defaultOpenSSHCipher = "aes256-ctr"
	defaultBcryptRounds  = 16
	bcryptSaltSize       = 16
)

type openSSHCipher struct {
	keyLen    int
	blockSize int
	mode      symmetric.Mode
}

var openSSHCiphers = map[string]openSSHCipher{
	"aes128-ctr": {16, 16, symmetric.ModeCTR},
	"aes256-ctr": {32, 16, symmetric.ModeCTR},
	"aes256-cbc": {32, 16, symmetric.ModeCBC},
}

func parseOpenSSHPublic(data []byte, _ *Options) (*rsakit.Key, bool, error) {
	fields := strings.Fields(string(data))
	if len(fields) < 2 || !strings.HasPrefix(fields[0], "ssh-") {
		return nil, false, fmt.Errorf("%w: not an authorized_keys line", rsakit.ErrMalformedKey)
	}

	blob, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return nil, true, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
	}
	key, err := parsePublicBlob(blob)
	if err != nil {
		return nil, true, err
	}
	if fields[0] != sshRSA {
		return nil, true, fmt.Errorf("%w: key type %q does not match blob", rsakit.ErrMalformedKey, fields[0])
	}
	key.Comment = strings.Join(fields[2:], " ")
	return key, true, nil
}

func marshalOpenSSHPublic(key *rsakit.Key) []byte {
	line := sshRSA + " " + base64.StdEncoding.EncodeToString(publicBlob(key))
	if key.Comment != "" {
		line += " " + key.Comment
	}
	return []byte(line + "\n")
}

// openSSHBody finds the openssh-key-v1 bytes in PEM, bare base64 or binary input
func openSSHBody(data []byte) ([]byte, bool) {
	block, derBytes, err := unarmor(data)
	if err != nil {
		return nil, false
	}
	if block != nil && block.Type != pemOpenSSHPrivateKey {
		return nil, false
	}
	return derBytes, bytes.HasPrefix(derBytes, []byte(openSSHMagic))
}

func parseOpenSSHPrivate(data []byte, opts *Options) (*rsakit.Key, bool, error) {
	body, ok := openSSHBody(data)
	if !ok {
		return nil, false, fmt.Errorf("%w: not an openssh-key-v1 key", rsakit.ErrMalformedKey)
	}
	key, err := decodeOpenSSHPrivate(body[len(openSSHMagic):], opts.Password)
	return key, true, err
}

func decodeOpenSSHPrivate(body []byte, password []byte) (*rsakit.Key, error) {
	s := cryptobyte.String(body)
	var cipherName, kdfName, kdfOptions, pubBlob, private []byte
	var numKeys uint32
	if !readString(&s, &cipherName) || !readString(&s, &kdfName) || !readString(&s, &kdfOptions) ||
		!s.ReadUint32(&numKeys) {
		return nil, fmt.Errorf("%w: truncated openssh-key-v1 header", rsakit.ErrMalformedKey)
	}
	if numKeys != 1 {
		return nil, fmt.Errorf("%w: %d keys in one file", rsakit.ErrUnsupportedFormat, numKeys)
	}
	if !readString(&s, &pubBlob) || !readString(&s, &private) || !s.Empty() {
		return nil, fmt.Errorf("%w: truncated openssh-key-v1 body", rsakit.ErrMalformedKey)
	}

	encrypted := string(cipherName) != "none"
	if encrypted {
		var err error
		if private, err = openSSHDecrypt(string(cipherName), string(kdfName), kdfOptions, private, password); err != nil {
			return nil, err
		}
	} else if string(kdfName) != "none" {
		return nil, fmt.Errorf("%w: kdf %q without a cipher", rsakit.ErrMalformedKey, kdfName)
	}

	key, err := decodeOpenSSHPrivateSection(private)
	if err != nil {
		if encrypted && errors.Is(err, errCheckMismatch) {
			return nil, fmt.Errorf("%w: wrong password", rsakit.ErrDecryption)
		}
		return nil, err
	}

	pub, err := parsePublicBlob(pubBlob)
	if err != nil {
		return nil, err
	}
	if pub.N.Cmp(key.N) != 0 || pub.E.Cmp(key.E) != 0 {
		return nil, fmt.Errorf("%w: public and private halves differ", rsakit.ErrMalformedKey)
	}
	return key, nil
}

func openSSHKDF(kdfName string, kdfOptions, password []byte, size int) ([]byte, error) {
	if kdfName != "bcrypt" {
		return nil, fmt.Errorf("%w: kdf %q", rsakit.ErrUnsupportedFormat, kdfName)
	}
	s := cryptobyte.String(kdfOptions)
	var salt []byte
	var rounds uint32
	if !readString(&s, &salt) || !s.ReadUint32(&rounds) || !s.Empty() {
		return nil, fmt.Errorf("%w: bad bcrypt options", rsakit.ErrMalformedKey)
	}
	return bcrypt_pbkdf.Key(password, salt, int(rounds), size)
}

func openSSHCipherFor(name string, kdfName string, kdfOptions, password []byte) (*symmetric.Cipher, openSSHCipher, error) {
	spec, ok := openSSHCiphers[name]
	if !ok {
		return nil, spec, fmt.Errorf("%w: openssh cipher %q", rsakit.ErrUnsupportedFormat, name)
	}
	material, err := openSSHKDF(kdfName, kdfOptions, password, spec.keyLen+spec.blockSize)
	if err != nil {
		return nil, spec, err
	}

	c, err := symmetric.NewAES(material[:spec.keyLen], spec.mode)
	if err != nil {
		return nil, spec, err
	}
	c.DisablePadding()
	if err := c.SetIV(material[spec.keyLen:]); err != nil {
		return nil, spec, err
	}
	return c, spec, nil
}

func openSSHDecrypt(cipherName, kdfName string, kdfOptions, private, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("%w: key is encrypted and no password was given", rsakit.ErrDecryption)
	}
	c, spec, err := openSSHCipherFor(cipherName, kdfName, kdfOptions, password)
	if err != nil {
		return nil, err
	}
	if len(private)%spec.blockSize != 0 {
		return nil, fmt.Errorf("%w: private section is not block aligned", rsakit.ErrMalformedKey)
	}
	return c.Decrypt(private)
}

var errCheckMismatch = errors.New("check integers differ")

func decodeOpenSSHPrivateSection(private []byte) (*rsakit.Key, error) {
	s := cryptobyte.String(private)
	var check1, check2 uint32
	if !s.ReadUint32(&check1) || !s.ReadUint32(&check2) {
		return nil, fmt.Errorf("%w: truncated private section", rsakit.ErrMalformedKey)
	}
	if check1 != check2 {
		return nil, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, errCheckMismatch)
	}

	var keyType, comment []byte
	if !readString(&s, &keyType) {
		return nil, fmt.Errorf("%w: truncated private section", rsakit.ErrMalformedKey)
	}
	if string(keyType) != sshRSA {
		return nil, fmt.Errorf("%w: key type %q", rsakit.ErrUnsupportedFormat, keyType)
	}

	// n, e, d, iqmp, p, q
	var ints [6]*big.Int
	for i := range ints {
		v, ok := readMpint(&s)
		if !ok {
			return nil, fmt.Errorf("%w: bad integer in private section", rsakit.ErrMalformedKey)
		}
		ints[i] = v
	}
	if !readString(&s, &comment) {
		return nil, fmt.Errorf("%w: missing comment", rsakit.ErrMalformedKey)
	}
	for i, b := range s {
		if int(b) != i+1 {
			return nil, fmt.Errorf("%w: bad padding", rsakit.ErrMalformedKey)
		}
	}

	key, err := fromPQ(ints[0], ints[1], ints[2], ints[4], ints[5])
	if err != nil {
		return nil, err
	}
	key.Comment = string(comment)
	return key, nil
}

func marshalOpenSSHPrivate(key *rsakit.Key, opts *Options) ([]byte, error) {
	key, err := twoPrime(key)
	if err != nil {
		return nil, err
	}

	random := opts.Random
	if random == nil {
		random = rand.Reader
	}

	cipherName, kdfName, blockSize := "none", "none", 8
	var kdfOptions []byte
	var c *symmetric.Cipher
	if len(opts.Password) > 0 {
		cipherName = opts.OpenSSHCipher
		if cipherName == "" {
			cipherName = defaultOpenSSHCipher
		}
		rounds := opts.BcryptRounds
		if rounds == 0 {
			rounds = defaultBcryptRounds
		}
		salt := make([]byte, bcryptSaltSize)
		if _, err := io.ReadFull(random, salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		var b cryptobyte.Builder
		addString(&b, salt)
		b.AddUint32(uint32(rounds))
		kdfName, kdfOptions = "bcrypt", b.BytesOrPanic()

		var spec openSSHCipher
		if c, spec, err = openSSHCipherFor(cipherName, kdfName, kdfOptions, opts.Password); err != nil {
			return nil, err
		}
		blockSize = spec.blockSize
	}

	var checkBytes [4]byte
	if _, err := io.ReadFull(random, checkBytes[:]); err != nil {
		return nil, fmt.Errorf("failed to generate check integer: %w", err)
	}
	check := binary.BigEndian.Uint32(checkBytes[:])

	var pb cryptobyte.Builder
	pb.AddUint32(check)
	pb.AddUint32(check)
	addString(&pb, []byte(sshRSA))
	addMpint(&pb, key.N)
	addMpint(&pb, key.E)
	addMpint(&pb, key.D)
	addMpint(&pb, key.Coefficients[0])
	addMpint(&pb, key.Primes[0])
	addMpint(&pb, key.Primes[1])
	addString(&pb, []byte(key.Comment))
	private := pb.BytesOrPanic()
	for i := 1; len(private)%blockSize != 0; i++ {
		private = append(private, byte(i))
	}

	if c != nil {
		if private, err = c.Encrypt(private); err != nil {
			return nil, err
		}
	}

	var b cryptobyte.Builder
	b.AddBytes([]byte(openSSHMagic))
	addString(&b, []byte(cipherName))
	addString(&b, []byte(kdfName))
	addString(&b, kdfOptions)
	b.AddUint32(1)
	addString(&b, publicBlob(key))
	addString(&b, private)
	body := b.BytesOrPanic()

	if opts.DER {
		return body, nil
	}
	return wrapPEM(pemOpenSSHPrivateKey, body, openSSHLineLength), nil
}

// wrapPEM is pem.EncodeToMemory with a configurable line length
func wrapPEM(pemType string, body []byte, lineLength int) []byte {
	encoded := base64.StdEncoding.EncodeToString(body)
	var out strings.Builder
	out.WriteString("-----BEGIN " + pemType + "-----\n")
	for len(encoded) > lineLength {
		out.WriteString(encoded[:lineLength] + "\n")
		encoded = encoded[lineLength:]
	}
	if encoded != "" {
		out.WriteString(encoded + "\n")
	}
	out.WriteString("-----END " + pemType + "-----\n")
	return []byte(out.String())
}
