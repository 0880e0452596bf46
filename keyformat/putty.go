package keyformat

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/cryptobyte"

	"github.com/bastionzero/rsakit"
	"github.com/bastionzero/rsakit/symmetric"
)

// PuTTY .ppk files, see appendix C of the PuTTY manual

const (
	puttyHeaderPrefix   = "PuTTY-User-Key-File-"
	puttyMACKeyPrefix   = "putty-private-key-file-mac-key"
	puttyEncryption     = "aes256-cbc"
	puttyLineLength     = 64
	defaultPuTTYVersion = 2

	defaultArgon2Memory      = 8192
	defaultArgon2Passes      = 13
	defaultArgon2Parallelism = 1
	argon2SaltSize           = 16
)

// ppk is a parsed .ppk file before any decryption
type ppk struct {
	version    int
	keyType    string
	encryption string
	comment    string
	public     []byte
	private    []byte
	mac        []byte
	headers    map[string]string
}

func readPPK(data []byte) (*ppk, bool, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	if !scanner.Scan() {
		return nil, false, fmt.Errorf("%w: empty input", rsakit.ErrMalformedKey)
	}
	first := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(first, puttyHeaderPrefix) {
		return nil, false, fmt.Errorf("%w: not a PuTTY key", rsakit.ErrMalformedKey)
	}
	versionText, keyType, ok := strings.Cut(strings.TrimPrefix(first, puttyHeaderPrefix), ": ")
	if !ok {
		return nil, true, fmt.Errorf("%w: bad PuTTY header line", rsakit.ErrMalformedKey)
	}
	version, err := strconv.Atoi(versionText)
	if err != nil || (version != 2 && version != 3) {
		return nil, true, fmt.Errorf("%w: PuTTY key file version %q", rsakit.ErrUnsupportedFormat, versionText)
	}

	f := &ppk{version: version, keyType: keyType, headers: map[string]string{}}
	readLines := func(count string) ([]byte, error) {
		n, err := strconv.Atoi(count)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: bad line count %q", rsakit.ErrMalformedKey, count)
		}
		var encoded strings.Builder
		for i := 0; i < n; i++ {
			if !scanner.Scan() {
				return nil, fmt.Errorf("%w: truncated PuTTY key", rsakit.ErrMalformedKey)
			}
			encoded.WriteString(strings.TrimSpace(scanner.Text()))
		}
		decoded, err := base64.StdEncoding.DecodeString(encoded.String())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
		}
		return decoded, nil
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ": ")
		if !ok {
			return nil, true, fmt.Errorf("%w: bad PuTTY header %q", rsakit.ErrMalformedKey, line)
		}
		switch name {
		case "Public-Lines":
			if f.public, err = readLines(value); err != nil {
				return nil, true, err
			}
		case "Private-Lines":
			if f.private, err = readLines(value); err != nil {
				return nil, true, err
			}
		default:
			f.headers[name] = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, true, fmt.Errorf("%w: %w", rsakit.ErrMalformedKey, err)
	}

	f.encryption = f.headers["Encryption"]
	f.comment = f.headers["Comment"]
	if f.mac, err = hex.DecodeString(f.headers["Private-MAC"]); err != nil || len(f.mac) == 0 {
		return nil, true, fmt.Errorf("%w: missing or bad Private-MAC", rsakit.ErrMalformedKey)
	}
	if f.public == nil || f.private == nil {
		return nil, true, fmt.Errorf("%w: missing key lines", rsakit.ErrMalformedKey)
	}
	return f, true, nil
}

// macInput is string(type) string(encryption) string(comment) string(public) string(private)
func (f *ppk) macInput(private []byte) []byte {
	var b cryptobyte.Builder
	addString(&b, []byte(f.keyType))
	addString(&b, []byte(f.encryption))
	addString(&b, []byte(f.comment))
	addString(&b, f.public)
	addString(&b, private)
	return b.BytesOrPanic()
}

// puttyV2Key derives the v2 AES key as SHA1(0 || pw) || SHA1(1 || pw), truncated to 32 bytes
func puttyV2Key(password []byte) []byte {
	var key []byte
	for seq := uint32(0); len(key) < 32; seq++ {
		h := sha1.New()
		h.Write([]byte{byte(seq >> 24), byte(seq >> 16), byte(seq >> 8), byte(seq)})
		h.Write(password)
		key = h.Sum(key)
	}
	return key[:32]
}

func puttyV2MACKey(password []byte) []byte {
	h := sha1.New()
	h.Write([]byte(puttyMACKeyPrefix))
	h.Write(password)
	return h.Sum(nil)
}

type argon2Params struct {
	flavour     string
	memory      uint32
	passes      uint32
	parallelism uint8
	salt        []byte
}

func (p *argon2Params) derive(password []byte) ([]byte, error) {
	// cipher key 32 || IV 16 || MAC key 32
	const size = 80
	switch p.flavour {
	case "Argon2id":
		return argon2.IDKey(password, p.salt, p.passes, p.memory, p.parallelism, size), nil
	case "Argon2i":
		return argon2.Key(password, p.salt, p.passes, p.memory, p.parallelism, size), nil
	}
	return nil, fmt.Errorf("%w: key derivation %q", rsakit.ErrUnsupportedFormat, p.flavour)
}

func (f *ppk) argon2Params() (*argon2Params, error) {
	p := &argon2Params{flavour: f.headers["Key-Derivation"]}
	memory, err1 := strconv.ParseUint(f.headers["Argon2-Memory"], 10, 32)
	passes, err2 := strconv.ParseUint(f.headers["Argon2-Passes"], 10, 32)
	parallelism, err3 := strconv.ParseUint(f.headers["Argon2-Parallelism"], 10, 8)
	salt, err4 := hex.DecodeString(f.headers["Argon2-Salt"])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return nil, fmt.Errorf("%w: bad Argon2 parameters", rsakit.ErrMalformedKey)
	}
	p.memory, p.passes, p.parallelism, p.salt = uint32(memory), uint32(passes), uint8(parallelism), salt
	return p, nil
}

// keys returns the AES key and IV (nil when unencrypted) and the MAC function
func (f *ppk) keys(password []byte) (aesKey, iv []byte, mac func() hash.Hash, macKey []byte, err error) {
	encrypted := f.encryption != "none"
	if encrypted && len(password) == 0 {
		return nil, nil, nil, nil, fmt.Errorf("%w: key is encrypted and no password was given", rsakit.ErrDecryption)
	}

	if f.version == 2 {
		if encrypted {
			return puttyV2Key(password), make([]byte, 16), sha1.New, puttyV2MACKey(password), nil
		}
		return nil, nil, sha1.New, puttyV2MACKey(nil), nil
	}

	if !encrypted {
		return nil, nil, sha256.New, []byte{}, nil
	}
	params, err := f.argon2Params()
	if err != nil {
		return nil, nil, nil, nil, err
	}
	material, err := params.derive(password)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return material[:32], material[32:48], sha256.New, material[48:], nil
}

func parsePuTTY(data []byte, opts *Options) (*rsakit.Key, bool, error) {
	f, recognized, err := readPPK(data)
	if err != nil {
		return nil, recognized, err
	}
	key, err := f.decode(opts.Password)
	return key, true, err
}

func (f *ppk) decode(password []byte) (*rsakit.Key, error) {
	if f.keyType != sshRSA {
		return nil, fmt.Errorf("%w: key type %q", rsakit.ErrUnsupportedFormat, f.keyType)
	}
	if f.encryption != "none" && f.encryption != puttyEncryption {
		return nil, fmt.Errorf("%w: PuTTY encryption %q", rsakit.ErrUnsupportedFormat, f.encryption)
	}

	aesKey, iv, newHash, macKey, err := f.keys(password)
	if err != nil {
		return nil, err
	}

	private := f.private
	if aesKey != nil {
		if len(private)%16 != 0 {
			return nil, fmt.Errorf("%w: private blob is not block aligned", rsakit.ErrMalformedKey)
		}
		c, err := symmetric.NewAES(aesKey, symmetric.ModeCBC)
		if err != nil {
			return nil, err
		}
		c.DisablePadding()
		if err := c.SetIV(iv); err != nil {
			return nil, err
		}
		if private, err = c.Decrypt(private); err != nil {
			return nil, err
		}
	}

	m := hmac.New(newHash, macKey)
	m.Write(f.macInput(private))
	if !hmac.Equal(m.Sum(nil), f.mac) {
		if aesKey != nil || len(password) > 0 {
			return nil, fmt.Errorf("%w: MAC mismatch, wrong password?", rsakit.ErrDecryption)
		}
		return nil, fmt.Errorf("%w: MAC mismatch", rsakit.ErrMalformedKey)
	}

	pub, err := parsePublicBlob(f.public)
	if err != nil {
		return nil, err
	}

	// d, p, q, iqmp; anything after is padding
	s := cryptobyte.String(private)
	d, ok1 := readMpint(&s)
	p, ok2 := readMpint(&s)
	q, ok3 := readMpint(&s)
	_, ok4 := readMpint(&s)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return nil, fmt.Errorf("%w: bad private blob", rsakit.ErrMalformedKey)
	}

	key, err := fromPQ(pub.N, pub.E, d, p, q)
	if err != nil {
		return nil, err
	}
	key.Comment = f.comment
	return key, nil
}

func marshalPuTTY(key *rsakit.Key, opts *Options) ([]byte, error) {
	key, err := twoPrime(key)
	if err != nil {
		return nil, err
	}

	version := opts.PuTTYVersion
	if version == 0 {
		version = defaultPuTTYVersion
	}
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: PuTTY key file version %d", rsakit.ErrUnsupportedFormat, version)
	}
	random := opts.Random
	if random == nil {
		random = rand.Reader
	}

	f := &ppk{
		version:    version,
		keyType:    sshRSA,
		encryption: "none",
		comment:    key.Comment,
		public:     publicBlob(key),
		headers:    map[string]string{},
	}

	var b cryptobyte.Builder
	addMpint(&b, key.D)
	addMpint(&b, key.Primes[0])
	addMpint(&b, key.Primes[1])
	addMpint(&b, key.Coefficients[0])
	private := b.BytesOrPanic()

	var kdfHeaders []string
	if len(opts.Password) > 0 {
		f.encryption = puttyEncryption
		padding := make([]byte, 16-len(private)%16)
		if _, err := io.ReadFull(random, padding); err != nil {
			return nil, fmt.Errorf("failed to generate padding: %w", err)
		}
		private = append(private, padding...)

		if version == 3 {
			params := &argon2Params{
				flavour:     "Argon2id",
				memory:      lo.CoalesceOrEmpty(opts.Argon2Memory, defaultArgon2Memory),
				passes:      lo.CoalesceOrEmpty(opts.Argon2Passes, defaultArgon2Passes),
				parallelism: lo.CoalesceOrEmpty(opts.Argon2Parallelism, defaultArgon2Parallelism),
				salt:        make([]byte, argon2SaltSize),
			}
			if _, err := io.ReadFull(random, params.salt); err != nil {
				return nil, fmt.Errorf("failed to generate salt: %w", err)
			}
			f.headers = map[string]string{
				"Key-Derivation":     params.flavour,
				"Argon2-Memory":      strconv.FormatUint(uint64(params.memory), 10),
				"Argon2-Passes":      strconv.FormatUint(uint64(params.passes), 10),
				"Argon2-Parallelism": strconv.FormatUint(uint64(params.parallelism), 10),
				"Argon2-Salt":        hex.EncodeToString(params.salt),
			}
			for _, name := range []string{"Key-Derivation", "Argon2-Memory", "Argon2-Passes", "Argon2-Parallelism", "Argon2-Salt"} {
				kdfHeaders = append(kdfHeaders, name+": "+f.headers[name])
			}
		}
	}

	aesKey, iv, newHash, macKey, err := f.keys(opts.Password)
	if err != nil {
		return nil, err
	}
	m := hmac.New(newHash, macKey)
	m.Write(f.macInput(private))
	mac := m.Sum(nil)

	if aesKey != nil {
		c, err := symmetric.NewAES(aesKey, symmetric.ModeCBC)
		if err != nil {
			return nil, err
		}
		c.DisablePadding()
		if err := c.SetIV(iv); err != nil {
			return nil, err
		}
		if private, err = c.Encrypt(private); err != nil {
			return nil, err
		}
	}

	var out strings.Builder
	fmt.Fprintf(&out, "%s%d: %s\n", puttyHeaderPrefix, version, sshRSA)
	fmt.Fprintf(&out, "Encryption: %s\n", f.encryption)
	fmt.Fprintf(&out, "Comment: %s\n", f.comment)
	writeLines(&out, "Public-Lines", f.public)
	for _, h := range kdfHeaders {
		out.WriteString(h + "\n")
	}
	writeLines(&out, "Private-Lines", private)
	fmt.Fprintf(&out, "Private-MAC: %s\n", hex.EncodeToString(mac))
	return []byte(out.String()), nil
}

func writeLines(out *strings.Builder, header string, data []byte) {
	encoded := base64.StdEncoding.EncodeToString(data)
	fmt.Fprintf(out, "%s: %d\n", header, (len(encoded)+puttyLineLength-1)/puttyLineLength)
	for len(encoded) > puttyLineLength {
		out.WriteString(encoded[:puttyLineLength] + "\n")
		encoded = encoded[puttyLineLength:]
	}
	out.WriteString(encoded + "\n")
}
