/*
Package symmetric implements the block cipher layer used by legacy key encryption: DES, TripleDES,
RC2 and AES behind one chaining-mode wrapper.

Every cipher owns a compiled key schedule (a [cipher.Block]) built once by SetKey, an IV, and the
chaining state for each direction. ECB and CBC are padded with PKCS#7 by default; CFB, OFB and CTR
are stream modes and handle partial blocks without padding.

	c, _ := symmetric.NewTripleDES(key, symmetric.ModeCBC)
	_ = c.SetIV(iv)
	ciphertext, _ := c.Encrypt(plaintext)

With continuous buffering enabled the chaining state carries over from one call to the next, so
encrypting a message in pieces gives the same bytes as encrypting it at once (for stream modes,
and for block modes when each piece is block aligned).
*/
package symmetric

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidKeyLength = errors.New("symmetric: invalid key length")
	ErrInvalidIVLength  = errors.New("symmetric: invalid IV length")
	ErrUnsupportedMode  = errors.New("symmetric: unsupported mode")
	ErrInvalidLength    = errors.New("symmetric: input is not a multiple of the block size")
	ErrInvalidPadding   = errors.New("symmetric: invalid padding")
)

// Mode selects how blocks are chained together
type Mode int

const (
	ModeECB Mode = iota
	ModeCBC
	ModeCFB
	ModeOFB
	ModeCTR
	// Mode3CBC runs three independent CBC chains in series (TripleDES only)
	Mode3CBC
)

var modeNames = map[Mode]string{
	ModeECB:  "ecb",
	ModeCBC:  "cbc",
	ModeCFB:  "cfb",
	ModeOFB:  "ofb",
	ModeCTR:  "ctr",
	Mode3CBC: "3cbc",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// ParseMode maps a mode name such as "cbc" to its Mode
func ParseMode(name string) (Mode, error) {
	for mode, n := range modeNames {
		if strings.EqualFold(n, name) {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, name)
}

// blocker compiles a key schedule; ciphers that run the 3CBC mode also compile the three
// single-key schedules
type blocker interface {
	block(key []byte) (cipher.Block, error)
	stages(key []byte) ([3]cipher.Block, error)
	supports(mode Mode) bool
}

// Cipher is a block cipher bound to a chaining mode. It is not safe for concurrent use
type Cipher struct {
	kind   blocker
	block  cipher.Block
	stages [3]cipher.Block
	mode   Mode

	iv         []byte
	padding    bool
	continuous bool

	enc *chain
	dec *chain
}

func newCipher(kind blocker, key []byte, mode Mode) (*Cipher, error) {
	if !kind.supports(mode) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, mode)
	}

	c := &Cipher{
		kind:    kind,
		mode:    mode,
		padding: true,
	}
	if err := c.SetKey(key); err != nil {
		return nil, err
	}
	c.iv = make([]byte, c.block.BlockSize())
	c.reset()

	return c, nil
}

// New wraps an arbitrary block cipher. Mode3CBC is not available this way
func New(block cipher.Block, mode Mode) (*Cipher, error) {
	return newCipher(&fixedBlock{b: block}, nil, mode)
}

// SetKey compiles a new key schedule. The chaining state is reset
func (c *Cipher) SetKey(key []byte) error {
	block, err := c.kind.block(key)
	if err != nil {
		return err
	}
	c.block = block

	if c.mode == Mode3CBC {
		stages, err := c.kind.stages(key)
		if err != nil {
			return err
		}
		c.stages = stages
	}

	if c.iv != nil {
		c.reset()
	}
	return nil
}

// SetIV sets the initialisation vector (or initial counter) and resets the chaining state.
// ECB ignores it.
func (c *Cipher) SetIV(iv []byte) error {
	if len(iv) != c.BlockSize() {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidIVLength, len(iv), c.BlockSize())
	}
	c.iv = append([]byte(nil), iv...)
	c.reset()
	return nil
}

// BlockSize returns the block size in bytes
func (c *Cipher) BlockSize() int {
	return c.block.BlockSize()
}

func (c *Cipher) Mode() Mode {
	return c.mode
}

// EnablePadding turns PKCS#7 padding on for the block modes (the default)
func (c *Cipher) EnablePadding() {
	c.padding = true
}

// DisablePadding turns PKCS#7 padding off; block mode input must then be block aligned
func (c *Cipher) DisablePadding() {
	c.padding = false
}

// EnableContinuousBuffer keeps the chaining state across Encrypt and Decrypt calls
func (c *Cipher) EnableContinuousBuffer() {
	c.continuous = true
	c.reset()
}

// DisableContinuousBuffer restarts every call from the IV (the default)
func (c *Cipher) DisableContinuousBuffer() {
	c.continuous = false
	c.reset()
}

func (c *Cipher) reset() {
	c.enc = c.newChain()
	c.dec = c.newChain()
}

func (c *Cipher) newChain() *chain {
	ch := &chain{
		register: append([]byte(nil), c.iv...),
		buffer:   make([]byte, len(c.iv)),
	}
	for i := range ch.stages {
		ch.stages[i] = append([]byte(nil), c.iv...)
	}
	return ch
}

func (c *Cipher) padded() bool {
	switch c.mode {
	case ModeECB, ModeCBC, Mode3CBC:
		return c.padding
	}
	return false
}

func (c *Cipher) blockMode() bool {
	switch c.mode {
	case ModeECB, ModeCBC, Mode3CBC:
		return true
	}
	return false
}

// Encrypt encrypts plaintext in the configured mode
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	bs := c.BlockSize()
	in := plaintext
	if c.padded() {
		in = pad(plaintext, bs)
	}
	if c.blockMode() && len(in)%bs != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(in))
	}

	state := c.enc
	if !c.continuous {
		state = c.newChain()
	}

	out := make([]byte, len(in))
	switch c.mode {
	case ModeECB:
		ecbEncrypt(c.block, out, in)
	case ModeCBC:
		cbcEncrypt(c.block, state.register, out, in)
	case Mode3CBC:
		tmp := make([]byte, len(in))
		cbcEncrypt(c.stages[0], state.stages[0], tmp, in)
		cbcDecrypt(c.stages[1], state.stages[1], out, tmp)
		cbcEncrypt(c.stages[2], state.stages[2], tmp, out)
		copy(out, tmp)
	case ModeCFB:
		state.cfb(c.block, out, in, false)
	case ModeOFB:
		state.ofb(c.block, out, in)
	case ModeCTR:
		state.ctr(c.block, out, in)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, c.mode)
	}

	return out, nil
}

// Decrypt decrypts ciphertext in the configured mode, removing padding when it is enabled
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	bs := c.BlockSize()
	if c.blockMode() && len(ciphertext)%bs != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidLength, len(ciphertext))
	}

	state := c.dec
	if !c.continuous {
		state = c.newChain()
	}

	out := make([]byte, len(ciphertext))
	switch c.mode {
	case ModeECB:
		ecbDecrypt(c.block, out, ciphertext)
	case ModeCBC:
		cbcDecrypt(c.block, state.register, out, ciphertext)
	case Mode3CBC:
		tmp := make([]byte, len(ciphertext))
		cbcDecrypt(c.stages[2], state.stages[2], tmp, ciphertext)
		cbcEncrypt(c.stages[1], state.stages[1], out, tmp)
		cbcDecrypt(c.stages[0], state.stages[0], tmp, out)
		copy(out, tmp)
	case ModeCFB:
		state.cfb(c.block, out, ciphertext, true)
	case ModeOFB:
		state.ofb(c.block, out, ciphertext)
	case ModeCTR:
		state.ctr(c.block, out, ciphertext)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMode, c.mode)
	}

	if c.padded() {
		return unpad(out, bs)
	}
	return out, nil
}

// fixedBlock adapts an already keyed cipher.Block
type fixedBlock struct {
	b cipher.Block
}

func (f *fixedBlock) block([]byte) (cipher.Block, error) {
	return f.b, nil
}

func (f *fixedBlock) stages([]byte) ([3]cipher.Block, error) {
	return [3]cipher.Block{}, fmt.Errorf("%w: 3cbc", ErrUnsupportedMode)
}

func (f *fixedBlock) supports(mode Mode) bool {
	return mode != Mode3CBC && modeNames[mode] != ""
}
