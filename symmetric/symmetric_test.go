package symmetric

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestSymmetric(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Symmetric Suite")
}

func unhex(s string) []byte {
	b, err := hex.DecodeString(s)
	Expect(err).To(BeNil())
	return b
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, err := rand.Read(b)
	Expect(err).To(BeNil())
	return b
}

type constructor func(key []byte, mode Mode) (*Cipher, error)

func rc2With(bits int) constructor {
	return func(key []byte, mode Mode) (*Cipher, error) {
		return NewRC2(key, bits, mode)
	}
}

var streamModes = []Mode{ModeCFB, ModeOFB, ModeCTR}
var allModes = []Mode{ModeECB, ModeCBC, ModeCFB, ModeOFB, ModeCTR}

var _ = Describe("Symmetric", func() {

	Context("Known answers", func() {
		DescribeTable("RC2 matches the RFC 2268 test vectors",
			func(key string, effectiveBits int, plaintext, ciphertext string) {
				block, err := NewRC2Block(unhex(key), effectiveBits)
				Expect(err).To(BeNil())

				out := make([]byte, 8)
				block.Encrypt(out, unhex(plaintext))
				Expect(hex.EncodeToString(out)).To(Equal(ciphertext))

				block.Decrypt(out, out)
				Expect(hex.EncodeToString(out)).To(Equal(plaintext))
			},
			Entry("zero key, 63 bits", "0000000000000000", 63, "0000000000000000", "ebb773f993278eff"),
			Entry("all ones", "ffffffffffffffff", 64, "ffffffffffffffff", "278b27e42e2f0d49"),
			Entry("sparse key", "3000000000000000", 64, "1000000000000001", "30649edf9be7d2c2"),
			Entry("one byte key", "88", 64, "0000000000000000", "61a8a244adacccf0"),
			Entry("seven byte key", "88bca90e90875a", 64, "0000000000000000", "6ccf4308974c267f"),
			Entry("sixteen byte key, 64 bits", "88bca90e90875a7f0f79c384627bafb2", 64, "0000000000000000", "1a807d272bbe5db1"),
			Entry("sixteen byte key, 128 bits", "88bca90e90875a7f0f79c384627bafb2", 128, "0000000000000000", "2269552ab0f85ca6"),
			Entry("thirty-three byte key, 129 bits", "88bca90e90875a7f0f79c384627bafb216f80a6f85920584c42fceb0be255daf1e", 129, "0000000000000000", "5b78d3a43dfff1f1"),
		)

		DescribeTable("DES matches the NIST vectors",
			func(key, plaintext, ciphertext string) {
				c, err := NewDES(unhex(key), ModeECB)
				Expect(err).To(BeNil())
				c.DisablePadding()

				out, err := c.Encrypt(unhex(plaintext))
				Expect(err).To(BeNil())
				Expect(hex.EncodeToString(out)).To(Equal(ciphertext))

				back, err := c.Decrypt(out)
				Expect(err).To(BeNil())
				Expect(hex.EncodeToString(back)).To(Equal(plaintext))
			},
			Entry("textbook key", "133457799bbcdff1", "0123456789abcdef", "85e813540f0ab405"),
			Entry("variable plaintext, first bit", "0101010101010101", "8000000000000000", "95f8a5e5dd31d900"),
		)

		It("AES matches FIPS-197", func() {
			c, err := NewAES(unhex("000102030405060708090a0b0c0d0e0f"), ModeECB)
			Expect(err).To(BeNil())
			c.DisablePadding()

			out, err := c.Encrypt(unhex("00112233445566778899aabbccddeeff"))
			Expect(err).To(BeNil())
			Expect(hex.EncodeToString(out)).To(Equal("69c4e0d86a7b0430d8cdb78070b4c55a"))
		})
	})

	Context("Round trips", func() {
		ciphers := map[string]struct {
			new      constructor
			keySizes []int
		}{
			"DES":        {NewDES, []int{1, 5, 8, 12}},
			"TripleDES":  {NewTripleDES, []int{8, 16, 24, 30}},
			"RC2":        {rc2With(0), []int{1, 5, 8, 16, 128, 140}},
			"RC2/40-bit": {rc2With(40), []int{5, 16}},
			"AES":        {NewAES, []int{16, 20, 24, 32, 40}},
		}

		for name, spec := range ciphers {
			name, spec := name, spec
			for _, mode := range allModes {
				mode := mode
				for _, size := range spec.keySizes {
					size := size
					It(fmt.Sprintf("%s/%s with a %d-byte key decrypts what it encrypts", name, mode, size), func() {
						c, err := spec.new(randomBytes(size), mode)
						Expect(err).To(BeNil(), fmt.Sprintf("failed to build cipher: %s", err))
						Expect(c.SetIV(randomBytes(c.BlockSize()))).To(Succeed())

						for _, n := range []int{0, 1, 7, 8, 15, 16, 33, 1000} {
							plaintext := randomBytes(n)
							ciphertext, err := c.Encrypt(plaintext)
							Expect(err).To(BeNil())

							decrypted, err := c.Decrypt(ciphertext)
							Expect(err).To(BeNil())
							Expect(decrypted).To(Equal(plaintext))
						}
					})
				}
			}
		}

		It("TripleDES 3CBC decrypts what it encrypts", func() {
			c, err := NewTripleDES(randomBytes(24), Mode3CBC)
			Expect(err).To(BeNil())
			Expect(c.SetIV(randomBytes(8))).To(Succeed())

			plaintext := randomBytes(77)
			ciphertext, err := c.Encrypt(plaintext)
			Expect(err).To(BeNil())
			Expect(len(ciphertext)).To(Equal(80))

			decrypted, err := c.Decrypt(ciphertext)
			Expect(err).To(BeNil())
			Expect(decrypted).To(Equal(plaintext))
		})
	})

	Context("Compatibility with crypto/cipher", func() {
		key := randomBytes(24)
		iv := randomBytes(8)
		plaintext := randomBytes(61)
		block, _ := des.NewTripleDESCipher(key)

		It("CBC agrees", func() {
			c, err := NewTripleDES(key, ModeCBC)
			Expect(err).To(BeNil())
			Expect(c.SetIV(iv)).To(Succeed())
			c.DisablePadding()

			in := plaintext[:56]
			ours, err := c.Encrypt(in)
			Expect(err).To(BeNil())

			theirs := make([]byte, len(in))
			cipher.NewCBCEncrypter(block, iv).CryptBlocks(theirs, in)
			Expect(ours).To(Equal(theirs))
		})

		It("CTR agrees", func() {
			c, err := NewTripleDES(key, ModeCTR)
			Expect(err).To(BeNil())
			Expect(c.SetIV(iv)).To(Succeed())

			ours, err := c.Encrypt(plaintext)
			Expect(err).To(BeNil())

			theirs := make([]byte, len(plaintext))
			cipher.NewCTR(block, iv).XORKeyStream(theirs, plaintext)
			Expect(ours).To(Equal(theirs))
		})

		It("CFB agrees", func() {
			c, err := NewTripleDES(key, ModeCFB)
			Expect(err).To(BeNil())
			Expect(c.SetIV(iv)).To(Succeed())

			ours, err := c.Encrypt(plaintext)
			Expect(err).To(BeNil())

			theirs := make([]byte, len(plaintext))
			cipher.NewCFBEncrypter(block, iv).XORKeyStream(theirs, plaintext)
			Expect(ours).To(Equal(theirs))
		})

		It("OFB agrees", func() {
			c, err := NewTripleDES(key, ModeOFB)
			Expect(err).To(BeNil())
			Expect(c.SetIV(iv)).To(Succeed())

			ours, err := c.Encrypt(plaintext)
			Expect(err).To(BeNil())

			theirs := make([]byte, len(plaintext))
			cipher.NewOFB(block, iv).XORKeyStream(theirs, plaintext)
			Expect(ours).To(Equal(theirs))
		})

		It("AES CBC agrees", func() {
			aesKey := randomBytes(32)
			aesIV := randomBytes(16)
			c, err := NewAES(aesKey, ModeCBC)
			Expect(err).To(BeNil())
			Expect(c.SetIV(aesIV)).To(Succeed())

			ours, err := c.Encrypt(plaintext)
			Expect(err).To(BeNil())

			aesBlock, _ := aes.NewCipher(aesKey)
			theirs := make([]byte, len(ours))
			cipher.NewCBCDecrypter(aesBlock, aesIV).CryptBlocks(theirs, ours)
			Expect(theirs[:len(plaintext)]).To(Equal(plaintext))
		})
	})

	Context("TripleDES key handling", func() {
		It("Behaves as single DES for keys of 8 bytes or fewer", func() {
			key := randomBytes(8)
			iv := randomBytes(8)
			plaintext := randomBytes(40)

			single, _ := NewDES(key, ModeCBC)
			Expect(single.SetIV(iv)).To(Succeed())
			triple, _ := NewTripleDES(key, ModeCBC)
			Expect(triple.SetIV(iv)).To(Succeed())

			a, err := single.Encrypt(plaintext)
			Expect(err).To(BeNil())
			b, err := triple.Encrypt(plaintext)
			Expect(err).To(BeNil())
			Expect(a).To(Equal(b))
		})

		It("Runs 3CBC as three chains that collapse to one when the keys are equal", func() {
			key := randomBytes(8)
			iv := randomBytes(8)
			plaintext := randomBytes(40)

			single, _ := NewDES(key, ModeCBC)
			Expect(single.SetIV(iv)).To(Succeed())
			inner, _ := NewTripleDES(bytes.Repeat(key, 3), Mode3CBC)
			Expect(inner.SetIV(iv)).To(Succeed())

			a, _ := single.Encrypt(plaintext)
			b, err := inner.Encrypt(plaintext)
			Expect(err).To(BeNil())
			Expect(a).To(Equal(b))
		})

		It("Differs between outer CBC and 3CBC for distinct keys", func() {
			key := randomBytes(24)
			iv := randomBytes(8)
			plaintext := randomBytes(32)

			outer, _ := NewTripleDES(key, ModeCBC)
			Expect(outer.SetIV(iv)).To(Succeed())
			inner, _ := NewTripleDES(key, Mode3CBC)
			Expect(inner.SetIV(iv)).To(Succeed())

			a, _ := outer.Encrypt(plaintext)
			b, _ := inner.Encrypt(plaintext)
			Expect(a[:8]).To(Equal(b[:8]), "the first block is plain EDE either way")
			Expect(a[8:]).NotTo(Equal(b[8:]))
		})

		It("Zero pads short TripleDES keys to 24 bytes", func() {
			key := randomBytes(16)
			padded := append(append([]byte(nil), key...), make([]byte, 8)...)

			a, _ := NewTripleDES(key, ModeECB)
			b, _ := NewTripleDES(padded, ModeECB)
			plaintext := randomBytes(16)
			x, _ := a.Encrypt(plaintext)
			y, _ := b.Encrypt(plaintext)
			Expect(x).To(Equal(y))
		})
	})

	Context("RC2 effective key length", func() {
		It("Defaults to eight bits per key byte", func() {
			for _, size := range []int{5, 16, 128} {
				key := randomBytes(size)
				plaintext := randomBytes(16)

				implied, err := NewRC2(key, 0, ModeECB)
				Expect(err).To(BeNil())
				explicit, err := NewRC2(key, 8*size, ModeECB)
				Expect(err).To(BeNil())

				x, err := implied.Encrypt(plaintext)
				Expect(err).To(BeNil())
				y, err := explicit.Encrypt(plaintext)
				Expect(err).To(BeNil())
				Expect(x).To(Equal(y), fmt.Sprintf("%d-byte key", size))
			}
		})
	})

	Context("Continuous buffering", func() {
		for _, mode := range append([]Mode{ModeCBC}, streamModes...) {
			mode := mode
			It(fmt.Sprintf("Carries %s state across calls", mode), func() {
				key := randomBytes(16)
				iv := randomBytes(8)
				plaintext := randomBytes(64)

				whole, _ := NewRC2(key, 0, mode)
				whole.DisablePadding()
				Expect(whole.SetIV(iv)).To(Succeed())
				expected, err := whole.Encrypt(plaintext)
				Expect(err).To(BeNil())

				pieces, _ := NewRC2(key, 0, mode)
				pieces.DisablePadding()
				Expect(pieces.SetIV(iv)).To(Succeed())
				pieces.EnableContinuousBuffer()

				// block modes need aligned pieces, stream modes take anything
				cuts := []int{0, 8, 24, 64}
				if mode != ModeCBC {
					cuts = []int{0, 3, 11, 30, 64}
				}
				var got []byte
				for i := 1; i < len(cuts); i++ {
					out, err := pieces.Encrypt(plaintext[cuts[i-1]:cuts[i]])
					Expect(err).To(BeNil())
					got = append(got, out...)
				}
				Expect(got).To(Equal(expected))

				By("Decrypting in pieces as well")
				var back []byte
				for i := 1; i < len(cuts); i++ {
					out, err := pieces.Decrypt(expected[cuts[i-1]:cuts[i]])
					Expect(err).To(BeNil())
					back = append(back, out...)
				}
				Expect(back).To(Equal(plaintext))
			})
		}

		It("Restarts from the IV when the IV is set again", func() {
			c, _ := NewDES(randomBytes(8), ModeCTR)
			iv := randomBytes(8)
			Expect(c.SetIV(iv)).To(Succeed())
			c.EnableContinuousBuffer()

			plaintext := randomBytes(20)
			first, _ := c.Encrypt(plaintext)
			second, _ := c.Encrypt(plaintext)
			Expect(second).NotTo(Equal(first))

			Expect(c.SetIV(iv)).To(Succeed())
			third, _ := c.Encrypt(plaintext)
			Expect(third).To(Equal(first))
		})

		It("Repeats output when continuous buffering is off", func() {
			c, _ := NewDES(randomBytes(8), ModeOFB)
			Expect(c.SetIV(randomBytes(8))).To(Succeed())

			plaintext := randomBytes(20)
			first, _ := c.Encrypt(plaintext)
			second, _ := c.Encrypt(plaintext)
			Expect(second).To(Equal(first))
		})
	})

	Context("Failure cases", func() {
		It("Rejects empty keys", func() {
			_, err := NewDES(nil, ModeCBC)
			Expect(err).To(MatchError(ErrInvalidKeyLength))
			_, err = NewRC2([]byte{}, 0, ModeCBC)
			Expect(err).To(MatchError(ErrInvalidKeyLength))
		})

		It("Rejects 3CBC outside TripleDES", func() {
			_, err := NewDES(randomBytes(8), Mode3CBC)
			Expect(err).To(MatchError(ErrUnsupportedMode))
			_, err = NewAES(randomBytes(16), Mode3CBC)
			Expect(err).To(MatchError(ErrUnsupportedMode))
		})

		It("Rejects IVs of the wrong length", func() {
			c, _ := NewDES(randomBytes(8), ModeCBC)
			Expect(c.SetIV(randomBytes(7))).To(MatchError(ErrInvalidIVLength))
		})

		It("Rejects unaligned input when padding is off", func() {
			c, _ := NewDES(randomBytes(8), ModeCBC)
			c.DisablePadding()
			_, err := c.Encrypt(randomBytes(9))
			Expect(err).To(MatchError(ErrInvalidLength))
			_, err = c.Decrypt(randomBytes(9))
			Expect(err).To(MatchError(ErrInvalidLength))
		})

		It("Reports bad padding", func() {
			c, _ := NewDES(randomBytes(8), ModeECB)
			c.DisablePadding()
			garbage, _ := c.Encrypt(append(randomBytes(7), 0x00))

			c.EnablePadding()
			_, err := c.Decrypt(garbage)
			Expect(err).To(MatchError(ErrInvalidPadding))
		})

		It("Parses mode names", func() {
			mode, err := ParseMode("CTR")
			Expect(err).To(BeNil())
			Expect(mode).To(Equal(ModeCTR))

			_, err = ParseMode("gcm")
			Expect(err).To(MatchError(ErrUnsupportedMode))
		})
	})
})
