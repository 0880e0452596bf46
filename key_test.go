package rsakit

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	kmath "github.com/bastionzero/rsakit/math"
)

var _ = Describe("Key", func() {

	Context("CRT exponentiation", func() {
		check := func(key *Key, rounds int) {
			for i := 0; i < rounds; i++ {
				x, err := kmath.RandomRange(rand.Reader, bigZero, new(big.Int).Sub(key.N, bigOne))
				Expect(err).To(BeNil())

				expected := new(big.Int).Exp(x, key.D, key.N)

				blinded, err := key.exponentiate(rand.Reader, x, true)
				Expect(err).To(BeNil())
				Expect(blinded.Cmp(expected)).To(Equal(0), fmt.Sprintf("blinded CRT disagrees for x = %v", x))

				plain, err := key.exponentiate(rand.Reader, x, false)
				Expect(err).To(BeNil())
				Expect(plain.Cmp(expected)).To(Equal(0), fmt.Sprintf("CRT disagrees for x = %v", x))
			}
		}

		It("Matches x^d mod n for 1000 random values on a two-prime key", func() {
			check(stdlibKey(1024), 1000)
		})

		It("Matches x^d mod n on a three-prime key", func() {
			key, err := GenerateKey(context.Background(), GenerateOptions{Bits: 1536, NumPrimes: 3})
			Expect(err).To(BeNil(), fmt.Sprintf("failed to generate key: %s", err))
			check(key, 100)
		})

		It("Falls back to d when a CRT value is missing", func() {
			key := stdlibKey(1024)
			key.Coefficients[0] = big.NewInt(0)
			Expect(key.hasCRT()).To(BeFalse())
			check(key, 10)
		})
	})

	Context("Cloning", func() {
		It("Shares nothing with the original", func() {
			key := stdlibKey(1024)
			n := new(big.Int).Set(key.N)
			p := new(big.Int).Set(key.Primes[0])

			clone := key.Clone()
			Expect(clone.Equal(key)).To(BeTrue())

			clone.N.Add(clone.N, bigOne)
			clone.Primes[0].SetInt64(3)
			clone.Primes = append(clone.Primes, big.NewInt(5))
			clone.Exponents[1].SetInt64(7)

			Expect(key.N.Cmp(n)).To(Equal(0))
			Expect(key.Primes[0].Cmp(p)).To(Equal(0))
			Expect(key.Primes).To(HaveLen(2))
			Expect(key.Validate()).To(Succeed())
		})

		It("Drops the private half from Public", func() {
			key := stdlibKey(1024)
			public := key.Public()
			Expect(public.IsPrivate()).To(BeFalse())
			Expect(public.Primes).To(BeEmpty())
			Expect(public.N.Cmp(key.N)).To(Equal(0))
			Expect(public.N).NotTo(BeIdenticalTo(key.N))
		})
	})

	Context("Validation", func() {
		It("Accepts a consistent key", func() {
			Expect(stdlibKey(1024).Validate()).To(Succeed())
		})

		It("Rejects a wrong private exponent", func() {
			key := stdlibKey(1024)
			key.D.Add(key.D, bigOne)
			Expect(key.Validate()).To(MatchError(ErrMalformedKey))
		})

		It("Rejects primes that do not multiply to n", func() {
			key := stdlibKey(1024)
			key.Primes[1] = big.NewInt(3)
			Expect(key.Validate()).To(MatchError(ErrMalformedKey))
		})

		It("Rejects a stale CRT exponent", func() {
			key := stdlibKey(1024)
			key.Exponents[0].Add(key.Exponents[0], bigOne)
			Expect(key.Validate()).To(MatchError(ErrMalformedKey))
		})

		It("Recomputes CRT values that agree with crypto/rsa", func() {
			priv, err := rsa.GenerateKey(rand.Reader, 1024)
			Expect(err).To(BeNil())
			priv.Precompute()

			key, err := FromStdlib(priv)
			Expect(err).To(BeNil())
			Expect(key.Exponents[0].Cmp(priv.Precomputed.Dp)).To(Equal(0))
			Expect(key.Exponents[1].Cmp(priv.Precomputed.Dq)).To(Equal(0))
			Expect(key.Coefficients[0].Cmp(priv.Precomputed.Qinv)).To(Equal(0))
		})
	})

	Context("Interoperability with crypto/rsa", func() {
		priv, _ := rsa.GenerateKey(rand.Reader, 2048)
		key, _ := FromStdlib(priv)
		message := []byte("test-vector")
		hashed := sha256.Sum256(message)

		It("Produces PSS signatures crypto/rsa accepts", func() {
			sig, err := SignPSS(nil, key, SHA256, SHA256, hashed[:], SaltLengthEqualsHash, true)
			Expect(err).To(BeNil())
			err = rsa.VerifyPSS(&priv.PublicKey, crypto.SHA256, hashed[:], sig, &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
			Expect(err).To(BeNil(), fmt.Sprintf("crypto/rsa rejected the signature: %s", err))
		})

		It("Verifies PSS signatures from crypto/rsa", func() {
			sig, err := rsa.SignPSS(rand.Reader, priv, crypto.SHA256, hashed[:], &rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash})
			Expect(err).To(BeNil())
			Expect(VerifyPSS(key, SHA256, SHA256, hashed[:], sig, SaltLengthEqualsHash)).To(Succeed())
		})

		It("Produces PKCS#1 v1.5 signatures crypto/rsa accepts", func() {
			sig, err := SignPKCS1v15(nil, key, SHA256, hashed[:], true)
			Expect(err).To(BeNil())
			Expect(rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, hashed[:], sig)).To(Succeed())

			expected, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA256, hashed[:])
			Expect(err).To(BeNil())
			Expect(sig).To(Equal(expected))
		})

		It("Decrypts OAEP from crypto/rsa", func() {
			ct, err := rsa.EncryptOAEP(sha1.New(), rand.Reader, &priv.PublicKey, message, []byte("label"))
			Expect(err).To(BeNil())

			pt, err := DecryptOAEP(nil, key, SHA1, SHA1, ct, []byte("label"), true)
			Expect(err).To(BeNil())
			Expect(pt).To(Equal(message))
		})

		It("Encrypts OAEP crypto/rsa can decrypt", func() {
			ct, err := EncryptOAEP(nil, key, SHA256, SHA256, message, nil)
			Expect(err).To(BeNil())

			pt, err := rsa.DecryptOAEP(sha256.New(), nil, priv, ct, nil)
			Expect(err).To(BeNil())
			Expect(pt).To(Equal(message))
		})

		It("Exchanges PKCS#1 v1.5 ciphertexts both ways", func() {
			ct, err := EncryptPKCS1v15(nil, key, message)
			Expect(err).To(BeNil())
			pt, err := rsa.DecryptPKCS1v15(nil, priv, ct)
			Expect(err).To(BeNil())
			Expect(pt).To(Equal(message))

			ct, err = rsa.EncryptPKCS1v15(rand.Reader, &priv.PublicKey, message)
			Expect(err).To(BeNil())
			pt, err = DecryptPKCS1v15(nil, key, ct, true)
			Expect(err).To(BeNil())
			Expect(pt).To(Equal(message))
		})

		It("Converts back to crypto/rsa", func() {
			back, err := key.StdPrivateKey()
			Expect(err).To(BeNil())
			Expect(back.Validate()).To(Succeed())
			Expect(back.Equal(priv)).To(BeTrue())

			pub, err := key.StdPublicKey()
			Expect(err).To(BeNil())
			Expect(pub.Equal(&priv.PublicKey)).To(BeTrue())
			Expect(FromStdlibPublic(pub).Equal(key.Public())).To(BeTrue())
		})
	})
})

var _ = Describe("Hash", func() {

	DescribeTable("MD2 follows RFC 1319",
		func(input, expected string) {
			Expect(hex.EncodeToString(MD2.Sum([]byte(input)))).To(Equal(expected))
		},
		Entry("empty", "", "8350e5a3e24c153df2275c9f80692773"),
		Entry("abc", "abc", "da853b0d3f88d99b30283a69e6ded6bb"),
		Entry("message digest", "message digest", "ab4f496bfb2a530b219ff33031fe06b0"),
	)

	It("Hashes the same in pieces as in one go", func() {
		input := []byte("the quick brown fox jumps over the lazy dog, several blocks at a time")
		h := MD2.New()
		h.Write(input[:5])
		h.Write(input[5:40])
		h.Write(input[40:])
		Expect(h.Sum(nil)).To(Equal(MD2.Sum(input)))
	})

	It("Parses names", func() {
		h, err := ParseHash("SHA-256")
		Expect(err).To(BeNil())
		Expect(h).To(Equal(SHA256))

		h, err = ParseHash("md2")
		Expect(err).To(BeNil())
		Expect(h).To(Equal(MD2))

		_, err = ParseHash("whirlpool")
		Expect(err).To(MatchError(ErrUnsupportedHash))
	})

	It("Reports digest sizes", func() {
		for _, h := range []Hash{MD2, MD5, SHA1, SHA224, SHA256, SHA384, SHA512} {
			Expect(h.New().Size()).To(Equal(h.Size()), h.String())
			Expect(h.Sum(nil)).To(HaveLen(h.Size()), h.String())
		}
	})

	It("Generates MGF1 masks", func() {
		// the first block of MGF1 is Hash(seed || 00000000)
		seed := []byte("seed")
		mask, err := MGF1(SHA1, seed, 30)
		Expect(err).To(BeNil())
		Expect(mask).To(HaveLen(30))
		Expect(mask[:20]).To(Equal(SHA1.Sum(append([]byte("seed"), 0, 0, 0, 0))))
		Expect(mask[20:]).To(Equal(SHA1.Sum(append([]byte("seed"), 0, 0, 0, 1))[:10]))
	})

	It("Refuses unknown hashes instead of panicking", func() {
		key := stdlibKey(1024)
		hashed := SHA1.Sum([]byte("message"))

		_, err := MGF1(Hash(0), []byte("seed"), 10)
		Expect(err).To(MatchError(ErrUnsupportedHash))

		Expect(VerifyPSS(key, Hash(0), SHA1, hashed, make([]byte, key.Size()), 0)).To(MatchError(ErrUnsupportedHash))
		Expect(VerifyPSS(key, SHA1, Hash(99), hashed, make([]byte, key.Size()), 0)).To(MatchError(ErrUnsupportedHash))

		_, err = SignPSS(nil, key, SHA1, Hash(0), hashed, 0, true)
		Expect(err).To(MatchError(ErrUnsupportedHash))
		_, err = EncryptOAEP(nil, key, Hash(0), SHA1, []byte("message"), nil)
		Expect(err).To(MatchError(ErrUnsupportedHash))
		_, err = DecryptOAEP(nil, key, SHA1, Hash(0), make([]byte, key.Size()), nil, true)
		Expect(err).To(MatchError(ErrUnsupportedHash))
	})
})
