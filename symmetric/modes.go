package symmetric

import (
	"crypto/cipher"
	"crypto/subtle"
)

// chain is the per-direction chaining state. register holds the IV, feedback register or counter;
// buffer holds the current keystream block for the stream modes and pos is how much of it has
// been used. stages are the three independent registers of the 3CBC mode.
type chain struct {
	register []byte
	buffer   []byte
	pos      int
	stages   [3][]byte
}

func ecbEncrypt(b cipher.Block, out, in []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(in); i += bs {
		b.Encrypt(out[i:i+bs], in[i:i+bs])
	}
}

func ecbDecrypt(b cipher.Block, out, in []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(in); i += bs {
		b.Decrypt(out[i:i+bs], in[i:i+bs])
	}
}

// C[i] = E(P[i] ^ C[i-1]), C[-1] = register
func cbcEncrypt(b cipher.Block, register, out, in []byte) {
	bs := b.BlockSize()
	for i := 0; i < len(in); i += bs {
		dst := out[i : i+bs]
		subtle.XORBytes(dst, in[i:i+bs], register)
		b.Encrypt(dst, dst)
		copy(register, dst)
	}
}

// P[i] = D(C[i]) ^ C[i-1], C[-1] = register
func cbcDecrypt(b cipher.Block, register, out, in []byte) {
	bs := b.BlockSize()
	saved := make([]byte, bs)
	for i := 0; i < len(in); i += bs {
		copy(saved, in[i:i+bs])
		dst := out[i : i+bs]
		b.Decrypt(dst, saved)
		subtle.XORBytes(dst, dst, register)
		copy(register, saved)
	}
}

// full-block cipher feedback: the register is refilled with ciphertext as it is produced
func (ch *chain) cfb(b cipher.Block, out, in []byte, decrypt bool) {
	bs := len(ch.register)
	for i, x := range in {
		if ch.pos == 0 {
			b.Encrypt(ch.buffer, ch.register)
		}
		y := x ^ ch.buffer[ch.pos]
		out[i] = y
		if decrypt {
			ch.register[ch.pos] = x
		} else {
			ch.register[ch.pos] = y
		}
		ch.pos = (ch.pos + 1) % bs
	}
}

func (ch *chain) ofb(b cipher.Block, out, in []byte) {
	bs := len(ch.register)
	for i, x := range in {
		if ch.pos == 0 {
			b.Encrypt(ch.register, ch.register)
		}
		out[i] = x ^ ch.register[ch.pos]
		ch.pos = (ch.pos + 1) % bs
	}
}

func (ch *chain) ctr(b cipher.Block, out, in []byte) {
	bs := len(ch.register)
	for i, x := range in {
		if ch.pos == 0 {
			b.Encrypt(ch.buffer, ch.register)
			increment(ch.register)
		}
		out[i] = x ^ ch.buffer[ch.pos]
		ch.pos = (ch.pos + 1) % bs
	}
}

// increment treats counter as a big-endian integer and adds one, wrapping at the top
func increment(counter []byte) {
	for i := len(counter) - 1; i >= 0; i-- {
		counter[i]++
		if counter[i] != 0 {
			return
		}
	}
}
