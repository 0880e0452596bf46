package keyformat

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/symmetric"
)

const defaultPEMCipher = "DES-EDE3-CBC"

type pemCipher struct {
	keyLen int
	new    func(key []byte) (*symmetric.Cipher, error)
}

// the DEK-Info ciphers OpenSSL writes
var pemCiphers = map[string]pemCipher{
	"DES-CBC": {8, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewDES(key, symmetric.ModeCBC)
	}},
	"DES-EDE3-CBC": {24, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewTripleDES(key, symmetric.ModeCBC)
	}},
	"DES-EDE3-CFB": {24, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewTripleDES(key, symmetric.ModeCFB)
	}},
	"AES-128-CBC": {16, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewAES(key, symmetric.ModeCBC)
	}},
	"AES-192-CBC": {24, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewAES(key, symmetric.ModeCBC)
	}},
	"AES-256-CBC": {32, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewAES(key, symmetric.ModeCBC)
	}},
	"RC2-CBC": {16, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewRC2(key, 128, symmetric.ModeCBC)
	}},
	"RC2-64-CBC": {8, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewRC2(key, 64, symmetric.ModeCBC)
	}},
	"RC2-40-CBC": {5, func(key []byte) (*symmetric.Cipher, error) {
		return symmetric.NewRC2(key, 40, symmetric.ModeCBC)
	}},
}

// pemKDF is OpenSSL's EVP_BytesToKey with MD5 and a single iteration:
// D_1 = MD5(password || salt), D_i = MD5(D_{i-1} || password || salt)
func pemKDF(password, salt []byte, keyLen int) []byte {
	var key, prev []byte
	h := md5.New()
	for len(key) < keyLen {
		h.Reset()
		h.Write(prev)
		h.Write(password)
		h.Write(salt)
		prev = h.Sum(nil)
		key = append(key, prev...)
	}
	return key[:keyLen]
}

// decryptLegacyPEM returns the block contents, decrypting them first if the headers say so
func decryptLegacyPEM(block *pem.Block, password []byte) (plain []byte, encrypted bool, err error) {
	if !strings.Contains(block.Headers["Proc-Type"], "ENCRYPTED") {
		return block.Bytes, false, nil
	}
	if len(password) == 0 {
		return nil, true, fmt.Errorf("%w: key is encrypted and no password was given", rsakit.ErrDecryption)
	}

	name, ivHex, ok := strings.Cut(block.Headers["DEK-Info"], ",")
	if !ok {
		return nil, true, fmt.Errorf("%w: malformed DEK-Info header", rsakit.ErrMalformedKey)
	}
	spec, ok := pemCiphers[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return nil, true, fmt.Errorf("%w: unsupported PEM cipher %q", rsakit.ErrUnsupportedFormat, name)
	}
	iv, err := hex.DecodeString(strings.TrimSpace(ivHex))
	if err != nil || len(iv) < 8 {
		return nil, true, fmt.Errorf("%w: malformed DEK-Info IV", rsakit.ErrMalformedKey)
	}

	c, err := spec.new(pemKDF(password, iv[:8], spec.keyLen))
	if err != nil {
		return nil, true, err
	}
	if err := c.SetIV(iv); err != nil {
		return nil, true, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
	}

	plain, err = c.Decrypt(block.Bytes)
	if errors.Is(err, symmetric.ErrInvalidPadding) || errors.Is(err, symmetric.ErrInvalidLength) {
		return nil, true, fmt.Errorf("%w: %w", rsakit.ErrDecryption, err)
	}
	return plain, true, err
}

func encryptLegacyPEM(pemType string, data []byte, opts *Options) (*pem.Block, error) {
	name := opts.PEMCipher
	if name == "" {
		name = defaultPEMCipher
	}
	name = strings.ToUpper(name)
	spec, ok := pemCiphers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported PEM cipher %q", rsakit.ErrUnsupportedFormat, name)
	}

	// the IV size is only known once the cipher exists, so build it with a throwaway key first
	probe, err := spec.new(make([]byte, spec.keyLen))
	if err != nil {
		return nil, err
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}
	iv := make([]byte, probe.BlockSize())
	if _, err := io.ReadFull(random, iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	c, err := spec.new(pemKDF(opts.Password, iv[:8], spec.keyLen))
	if err != nil {
		return nil, err
	}
	if err := c.SetIV(iv); err != nil {
		return nil, err
	}
	encrypted, err := c.Encrypt(data)
	if err != nil {
		return nil, err
	}

	return &pem.Block{
		Type: pemType,
		Headers: map[string]string{
			"Proc-Type": "4,ENCRYPTED",
			"DEK-Info":  name + "," + strings.ToUpper(hex.EncodeToString(iv)),
		},
		Bytes: encrypted,
	}, nil
}
