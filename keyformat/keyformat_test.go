package keyformat

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/ssh"

	"github.com/bastionzero/rsakit"
)

func TestKeyformat(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Keyformat Suite")
}

const fixturePassword = "correct-horse"

func testKey(bits int) (*rsakit.Key, *rsa.PrivateKey) {
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		panic(err)
	}
	key, err := rsakit.FromStdlib(priv)
	if err != nil {
		panic(err)
	}
	return key, priv
}

func fixture(name string) []byte {
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		panic(err)
	}
	return data
}

// sameKey compares two private keys, ignoring the order of the primes
func sameKey(got, want *rsakit.Key) {
	Expect(got.N).To(Equal(want.N))
	Expect(got.E).To(Equal(want.E))
	Expect(got.D).To(Equal(want.D))
	Expect(got.Primes).To(ConsistOf(want.Primes))
	Expect(got.Validate()).To(Succeed())
}

var _ = Describe("Key Formats", func() {

	key, priv := testKey(1024)
	key.Comment = "user@host"

	threePrime, err := rsakit.GenerateKey(context.Background(), rsakit.GenerateOptions{Bits: 1536, NumPrimes: 3})
	if err != nil {
		panic(err)
	}

	Context("Round trips", func() {
		DescribeTable("Private keys without a password",
			func(format Format, opts *Options) {
				encoded, err := MarshalPrivate(key, format, opts)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to marshal %s: %s", format, err))

				parsed, err := Parse(encoded, format, opts)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to parse %s: %s", format, err))
				sameKey(parsed, key)

				detected, detectedFormat, err := ParseAny(encoded, nil)
				Expect(err).To(BeNil())
				Expect(detectedFormat).To(Equal(format))
				sameKey(detected, key)
			},
			Entry("PKCS#1 PEM", PKCS1, nil),
			Entry("PKCS#1 DER", PKCS1, &Options{DER: true}),
			Entry("PKCS#8 PEM", PKCS8, nil),
			Entry("PKCS#8 DER", PKCS8, &Options{DER: true}),
			Entry("OpenSSH", OpenSSHPrivate, nil),
			Entry("PuTTY v2", PuTTY, nil),
			Entry("PuTTY v3", PuTTY, &Options{PuTTYVersion: 3}),
			Entry("XML", XML, nil),
			Entry("S-expression", SExpr, nil),
		)

		DescribeTable("Private keys with a password",
			func(format Format, opts Options) {
				opts.Password = []byte("hunter2")
				encoded, err := MarshalPrivate(key, format, &opts)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to marshal %s: %s", format, err))

				parsed, err := Parse(encoded, format, &Options{Password: []byte("hunter2")})
				Expect(err).To(BeNil(), fmt.Sprintf("failed to parse %s: %s", format, err))
				sameKey(parsed, key)

				By("Refusing the wrong password")
				_, err = Parse(encoded, format, &Options{Password: []byte("hunter3")})
				Expect(err).To(MatchError(rsakit.ErrDecryption))

				By("Refusing a missing password")
				_, err = Parse(encoded, format, nil)
				Expect(err).To(MatchError(rsakit.ErrDecryption))
			},
			Entry("PKCS#1 with DES-EDE3-CBC", PKCS1, Options{}),
			Entry("PKCS#1 with DES-CBC", PKCS1, Options{PEMCipher: "DES-CBC"}),
			Entry("PKCS#1 with DES-EDE3-CFB", PKCS1, Options{PEMCipher: "DES-EDE3-CFB"}),
			Entry("PKCS#1 with AES-128-CBC", PKCS1, Options{PEMCipher: "AES-128-CBC"}),
			Entry("PKCS#1 with AES-256-CBC", PKCS1, Options{PEMCipher: "AES-256-CBC"}),
			Entry("PKCS#1 with RC2-CBC", PKCS1, Options{PEMCipher: "RC2-CBC"}),
			Entry("PKCS#8 with PBES2 AES-256", PKCS8, Options{Iterations: 100}),
			Entry("PKCS#8 with PBES2 AES-128 and SHA-1", PKCS8, Options{PKCS8Scheme: PBES2AES128, PKCS8PRF: rsakit.SHA1, Iterations: 100}),
			Entry("PKCS#8 with PBES2 3DES and SHA-512", PKCS8, Options{PKCS8Scheme: PBES2DES3, PKCS8PRF: rsakit.SHA512, Iterations: 100}),
			Entry("PKCS#8 with PBES1 MD5-DES", PKCS8, Options{PKCS8Scheme: PBES1MD5DES, Iterations: 100}),
			Entry("PKCS#8 with PBES1 SHA1-RC2", PKCS8, Options{PKCS8Scheme: PBES1SHA1RC2, Iterations: 100}),
			Entry("OpenSSH with aes256-ctr", OpenSSHPrivate, Options{BcryptRounds: 2}),
			Entry("OpenSSH with aes128-ctr", OpenSSHPrivate, Options{OpenSSHCipher: "aes128-ctr", BcryptRounds: 2}),
			Entry("OpenSSH with aes256-cbc", OpenSSHPrivate, Options{OpenSSHCipher: "aes256-cbc", BcryptRounds: 2}),
			Entry("PuTTY v2", PuTTY, Options{}),
			Entry("PuTTY v3", PuTTY, Options{PuTTYVersion: 3, Argon2Memory: 64, Argon2Passes: 1}),
		)

		DescribeTable("Public keys",
			func(format Format, opts *Options) {
				encoded, err := MarshalPublic(key, format, opts)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to marshal %s: %s", format, err))

				parsed, err := Parse(encoded, format, opts)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to parse %s: %s", format, err))
				Expect(parsed.IsPrivate()).To(BeFalse())
				Expect(parsed.N).To(Equal(key.N))
				Expect(parsed.E).To(Equal(key.E))

				_, detectedFormat, err := ParseAny(encoded, nil)
				Expect(err).To(BeNil())
				Expect(detectedFormat).To(Equal(format))
			},
			Entry("PKCS#1 PEM", PKCS1, nil),
			Entry("PKCS#1 DER", PKCS1, &Options{DER: true}),
			Entry("PKCS#8 PEM", PKCS8, nil),
			Entry("PKCS#8 DER", PKCS8, &Options{DER: true}),
			Entry("OpenSSH", OpenSSH, nil),
			Entry("XML", XML, nil),
			Entry("S-expression", SExpr, nil),
		)

		It("Keeps the comment through the OpenSSH and PuTTY formats", func() {
			for _, format := range []Format{OpenSSHPrivate, PuTTY} {
				encoded, err := MarshalPrivate(key, format, nil)
				Expect(err).To(BeNil())
				parsed, err := Parse(encoded, format, nil)
				Expect(err).To(BeNil())
				Expect(parsed.Comment).To(Equal("user@host"))
			}

			line, err := MarshalPublic(key, OpenSSH, nil)
			Expect(err).To(BeNil())
			Expect(string(line)).To(HaveSuffix(" user@host\n"))
			parsed, err := Parse(line, OpenSSH, nil)
			Expect(err).To(BeNil())
			Expect(parsed.Comment).To(Equal("user@host"))
		})

		It("Accepts bare base64 in place of DER", func() {
			encoded, err := MarshalPrivate(key, PKCS8, &Options{DER: true})
			Expect(err).To(BeNil())
			block := string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: encoded}))
			lines := strings.Split(strings.TrimSpace(block), "\n")
			text := []byte(strings.Join(lines[1:len(lines)-1], "\n"))

			parsed, err := Parse(text, PKCS8, nil)
			Expect(err).To(BeNil(), fmt.Sprintf("failed to parse base64: %s", err))
			sameKey(parsed, key)
		})

		It("Accepts PEM with CRLF line endings", func() {
			encoded, err := MarshalPrivate(key, PKCS1, nil)
			Expect(err).To(BeNil())
			crlf := strings.ReplaceAll(string(encoded), "\n", "\r\n")

			parsed, err := Parse([]byte(crlf), PKCS1, nil)
			Expect(err).To(BeNil())
			sameKey(parsed, key)
		})
	})

	Context("Multi-prime keys", func() {
		It("Round trips through PKCS#1 and PKCS#8 with otherPrimeInfos", func() {
			for _, format := range []Format{PKCS1, PKCS8} {
				encoded, err := MarshalPrivate(threePrime, format, nil)
				Expect(err).To(BeNil(), fmt.Sprintf("failed to marshal %s: %s", format, err))

				parsed, err := Parse(encoded, format, nil)
				Expect(err).To(BeNil())
				Expect(parsed.Equal(threePrime)).To(BeTrue())
				Expect(parsed.Coefficients).To(Equal(threePrime.Coefficients))
			}
		})

		DescribeTable("Is refused by two-prime formats",
			func(format Format) {
				_, err := MarshalPrivate(threePrime, format, nil)
				Expect(err).To(MatchError(rsakit.ErrUnsupportedFormat))
			},
			Entry("OpenSSH", OpenSSHPrivate),
			Entry("PuTTY", PuTTY),
			Entry("XML", XML),
			Entry("S-expression", SExpr),
		)
	})

	Context("Interoperability with crypto/x509", func() {
		It("Reads x509 output", func() {
			pkcs1 := x509.MarshalPKCS1PrivateKey(priv)
			parsed, err := Parse(pkcs1, PKCS1, nil)
			Expect(err).To(BeNil())
			sameKey(parsed, key)

			pkcs8, err := x509.MarshalPKCS8PrivateKey(priv)
			Expect(err).To(BeNil())
			parsed, err = Parse(pkcs8, PKCS8, nil)
			Expect(err).To(BeNil())
			sameKey(parsed, key)

			pkix, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
			Expect(err).To(BeNil())
			parsed, err = Parse(pkix, PKCS8, nil)
			Expect(err).To(BeNil())
			Expect(parsed.N).To(Equal(key.N))

			public := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&priv.PublicKey)})
			parsed, err = Parse(public, PKCS1, nil)
			Expect(err).To(BeNil())
			Expect(parsed.N).To(Equal(key.N))
		})

		It("Writes what x509 reads", func() {
			pkcs1, err := MarshalPrivate(key, PKCS1, &Options{DER: true})
			Expect(err).To(BeNil())
			std, err := x509.ParsePKCS1PrivateKey(pkcs1)
			Expect(err).To(BeNil())
			Expect(std.Equal(priv)).To(BeTrue())

			pkcs8, err := MarshalPrivate(key, PKCS8, &Options{DER: true})
			Expect(err).To(BeNil())
			anyKey, err := x509.ParsePKCS8PrivateKey(pkcs8)
			Expect(err).To(BeNil())
			Expect(anyKey.(*rsa.PrivateKey).Equal(priv)).To(BeTrue())

			pkix, err := MarshalPublic(key, PKCS8, &Options{DER: true})
			Expect(err).To(BeNil())
			pub, err := x509.ParsePKIXPublicKey(pkix)
			Expect(err).To(BeNil())
			Expect(pub.(*rsa.PublicKey).Equal(&priv.PublicKey)).To(BeTrue())
		})

		It("Shares legacy PEM encryption with x509", func() {
			//lint:ignore SA1019 legacy PEM encryption is exactly what is under test
			block, err := x509.EncryptPEMBlock(rand.Reader, "RSA PRIVATE KEY", x509.MarshalPKCS1PrivateKey(priv), []byte("pw"), x509.PEMCipherAES128)
			Expect(err).To(BeNil())
			parsed, err := Parse(pem.EncodeToMemory(block), PKCS1, &Options{Password: []byte("pw")})
			Expect(err).To(BeNil())
			sameKey(parsed, key)

			for _, cipher := range []string{"DES-EDE3-CBC", "AES-256-CBC", "DES-CBC"} {
				encoded, err := MarshalPrivate(key, PKCS1, &Options{Password: []byte("pw"), PEMCipher: cipher})
				Expect(err).To(BeNil())
				block, _ := pem.Decode(encoded)
				Expect(block).ToNot(BeNil())

				//lint:ignore SA1019 legacy PEM encryption is exactly what is under test
				plain, err := x509.DecryptPEMBlock(block, []byte("pw"))
				Expect(err).To(BeNil(), fmt.Sprintf("x509 could not decrypt %s: %s", cipher, err))
				std, err := x509.ParsePKCS1PrivateKey(plain)
				Expect(err).To(BeNil())
				Expect(std.Equal(priv)).To(BeTrue())
			}
		})
	})

	Context("Interoperability with x/crypto/ssh", func() {
		It("Writes private keys ssh can read", func() {
			encoded, err := MarshalPrivate(key, OpenSSHPrivate, nil)
			Expect(err).To(BeNil())
			raw, err := ssh.ParseRawPrivateKey(encoded)
			Expect(err).To(BeNil(), fmt.Sprintf("ssh refused the key: %s", err))
			Expect(raw.(*rsa.PrivateKey).Equal(priv)).To(BeTrue())

			encrypted, err := MarshalPrivate(key, OpenSSHPrivate, &Options{Password: []byte("pw"), BcryptRounds: 2})
			Expect(err).To(BeNil())
			raw, err = ssh.ParseRawPrivateKeyWithPassphrase(encrypted, []byte("pw"))
			Expect(err).To(BeNil(), fmt.Sprintf("ssh refused the encrypted key: %s", err))
			Expect(raw.(*rsa.PrivateKey).Equal(priv)).To(BeTrue())
		})

		It("Reads private keys ssh writes", func() {
			block, err := ssh.MarshalPrivateKeyWithPassphrase(priv, "from ssh", []byte("pw"))
			Expect(err).To(BeNil())
			parsed, err := Parse(pem.EncodeToMemory(block), OpenSSHPrivate, &Options{Password: []byte("pw")})
			Expect(err).To(BeNil())
			sameKey(parsed, key)
			Expect(parsed.Comment).To(Equal("from ssh"))
		})

		It("Writes authorized_keys lines ssh can read", func() {
			line, err := MarshalPublic(key, OpenSSH, nil)
			Expect(err).To(BeNil())
			pub, comment, _, _, err := ssh.ParseAuthorizedKey(line)
			Expect(err).To(BeNil())
			Expect(comment).To(Equal("user@host"))

			sshPub, err := ssh.NewPublicKey(&priv.PublicKey)
			Expect(err).To(BeNil())
			Expect(pub.Marshal()).To(Equal(sshPub.Marshal()))

			By("Fingerprinting like ssh")
			sha, err := Fingerprint(key, "sha256")
			Expect(err).To(BeNil())
			Expect("SHA256:" + sha).To(Equal(ssh.FingerprintSHA256(sshPub)))
			md5, err := Fingerprint(key, "md5")
			Expect(err).To(BeNil())
			Expect(md5).To(Equal(ssh.FingerprintLegacyMD5(sshPub)))
		})
	})

	Context("Files written by OpenSSL and ssh-keygen", func() {
		reference, err := Parse(fixture("rsa1024.pem"), PKCS1, nil)
		if err != nil {
			panic(err)
		}

		DescribeTable("Decrypts with the right password and refuses the wrong one",
			func(name string, format Format) {
				data := fixture(name)
				parsed, err := Parse(data, format, &Options{Password: []byte(fixturePassword)})
				Expect(err).To(BeNil(), fmt.Sprintf("failed to parse %s: %s", name, err))
				sameKey(parsed, reference)

				detected, detectedFormat, err := ParseAny(data, &Options{Password: []byte(fixturePassword)})
				Expect(err).To(BeNil())
				Expect(detectedFormat).To(Equal(format))
				sameKey(detected, reference)

				_, err = Parse(data, format, &Options{Password: []byte("battery-staple")})
				Expect(err).To(MatchError(rsakit.ErrDecryption))
			},
			Entry("traditional PEM with 3DES", "rsa1024_des3.pem", PKCS1),
			Entry("traditional PEM with AES-256", "rsa1024_aes256.pem", PKCS1),
			Entry("PKCS#8 PBES2 with AES-256 and HMAC-SHA256", "pkcs8_pbes2_aes256.pem", PKCS8),
			Entry("PKCS#8 PBES2 with 3DES and HMAC-SHA1", "pkcs8_pbes2_des3.pem", PKCS8),
			Entry("PKCS#8 PBES1 with MD5 and DES", "pkcs8_pbes1_md5des.pem", PKCS8),
		)

		It("Reads ssh-keygen keys", func() {
			plain, err := Parse(fixture("id_rsa"), OpenSSHPrivate, nil)
			Expect(err).To(BeNil())
			Expect(plain.Validate()).To(Succeed())
			Expect(plain.Comment).To(Equal("plain key"))

			pub, err := Parse(fixture("id_rsa.pub"), OpenSSH, nil)
			Expect(err).To(BeNil())
			Expect(pub.N).To(Equal(plain.N))

			md5, err := Fingerprint(pub, "md5")
			Expect(err).To(BeNil())
			Expect(md5).To(Equal("49:a2:a9:3b:90:ca:23:6f:22:50:81:04:6c:f8:2c:6d"))
			sha, err := Fingerprint(pub, "sha256")
			Expect(err).To(BeNil())
			Expect(sha).To(Equal("sxbbwDvHpBS+Vb6tZ+REMEz9NdGPYkMa8JmSdyaQa5w"))

			encrypted, err := Parse(fixture("id_rsa_encrypted"), OpenSSHPrivate, &Options{Password: []byte(fixturePassword)})
			Expect(err).To(BeNil(), fmt.Sprintf("failed to parse the encrypted key: %s", err))
			Expect(encrypted.Validate()).To(Succeed())
			Expect(encrypted.Comment).To(Equal("alice@example.com"))

			_, err = Parse(fixture("id_rsa_encrypted"), OpenSSHPrivate, &Options{Password: []byte("battery-staple")})
			Expect(err).To(MatchError(rsakit.ErrDecryption))
		})
	})

	Context("Broken input", func() {
		It("Detects tampering with a PuTTY file", func() {
			encoded, err := MarshalPrivate(key, PuTTY, nil)
			Expect(err).To(BeNil())
			tampered := strings.Replace(string(encoded), "Comment: user@host", "Comment: mallory@host", 1)

			_, err = Parse([]byte(tampered), PuTTY, nil)
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
		})

		It("Refuses a key whose factors are not prime", func() {
			// 15 * 7 = 105 and every other number is consistent with those factors
			der, err := asn1.Marshal(struct {
				Version                     int
				N, E, D, P, Q, DP, DQ, QInv *big.Int
			}{0, big.NewInt(105), big.NewInt(5), big.NewInt(17), big.NewInt(15), big.NewInt(7), big.NewInt(3), big.NewInt(5), big.NewInt(13)})
			Expect(err).To(BeNil())
			encoded := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})

			_, err = Parse(encoded, PKCS1, nil)
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
			_, _, err = ParseAny(encoded, nil)
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
		})

		It("Refuses a key whose private exponent does not match", func() {
			bad := key.Clone()
			bad.D.Add(bad.D, big.NewInt(2))
			bad.Exponents = nil
			bad.Coefficients = nil
			encoded, err := MarshalPrivate(bad, PKCS8, nil)
			Expect(err).To(BeNil())

			_, err = Parse(encoded, PKCS8, nil)
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
		})

		It("Refuses input in another format", func() {
			encoded, err := MarshalPublic(key, XML, nil)
			Expect(err).To(BeNil())
			_, err = Parse(encoded, PKCS1, nil)
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
		})

		It("Fails ParseAny on garbage", func() {
			_, _, err := ParseAny([]byte("definitely not a key"), nil)
			Expect(err).To(MatchError(rsakit.ErrUnsupportedFormat))
		})

		It("Refuses truncated DER", func() {
			encoded, err := MarshalPrivate(key, PKCS1, &Options{DER: true})
			Expect(err).To(BeNil())
			_, err = Parse(encoded[:len(encoded)-10], PKCS1, nil)
			Expect(err).ToNot(BeNil())
		})

		It("Refuses to write a public key as a private one", func() {
			_, err := MarshalPrivate(key.Public(), PKCS8, nil)
			Expect(err).To(MatchError(rsakit.ErrPublicKeyOnly))
		})

		It("Refuses encrypted PKCS#1 as DER", func() {
			_, err := MarshalPrivate(key, PKCS1, &Options{Password: []byte("pw"), DER: true})
			Expect(err).To(MatchError(rsakit.ErrUnsupportedFormat))
		})
	})

	Context("XML", func() {
		It("Matches element names case-insensitively", func() {
			doc := fmt.Sprintf("<rsakeyvalue><MODULUS>%s</MODULUS><exponent>%s</exponent></rsakeyvalue>", b64(key.N), b64(key.E))
			parsed, err := Parse([]byte(doc), XML, nil)
			Expect(err).To(BeNil())
			Expect(parsed.N).To(Equal(key.N))
			Expect(parsed.E).To(Equal(key.E))
		})

		It("Works out missing CRT values", func() {
			doc := fmt.Sprintf("<RSAKeyValue><Modulus>%s</Modulus><Exponent>%s</Exponent><P>%s</P><Q>%s</Q><D>%s</D></RSAKeyValue>",
				b64(key.N), b64(key.E), b64(key.Primes[0]), b64(key.Primes[1]), b64(key.D))
			parsed, err := Parse([]byte(doc), XML, nil)
			Expect(err).To(BeNil())
			Expect(parsed.Coefficients).To(Equal(key.Coefficients))
		})
	})

	Context("S-expressions", func() {
		It("Orders the primes the way libgcrypt does", func() {
			encoded, err := MarshalPrivate(key, SExpr, nil)
			Expect(err).To(BeNil())
			Expect(string(encoded)).To(HavePrefix("(11:private-key(3:rsa(1:n"))

			parsed, err := Parse(encoded, SExpr, nil)
			Expect(err).To(BeNil())
			Expect(parsed.Primes[0].Cmp(parsed.Primes[1])).To(Equal(1))
			Expect(parsed.Validate()).To(Succeed())
		})
	})

	Context("Raw components", func() {
		It("Accepts every spelling", func() {
			for _, names := range [][2]string{{"e", "n"}, {"exponent", "modulus"}, {"publicExponent", "modulo"}, {"0", "1"}} {
				parsed, err := FromRaw(map[string]*big.Int{names[0]: key.E, names[1]: key.N})
				Expect(err).To(BeNil(), fmt.Sprintf("failed with %v: %s", names, err))
				Expect(parsed.N).To(Equal(key.N))
				Expect(parsed.E).To(Equal(key.E))
			}
		})

		It("Round trips through ToRaw", func() {
			parsed, err := FromRaw(ToRaw(key))
			Expect(err).To(BeNil())
			Expect(parsed.IsPrivate()).To(BeFalse())
			Expect(parsed.N).To(Equal(key.N))
		})

		It("Needs both components", func() {
			_, err := FromRaw(map[string]*big.Int{"e": key.E})
			Expect(err).To(MatchError(rsakit.ErrMalformedKey))
		})
	})

	Context("Names", func() {
		It("Parses format names", func() {
			for format, name := range formatNames {
				parsed, err := ParseFormat(strings.ToUpper(name))
				Expect(err).To(BeNil())
				Expect(parsed).To(Equal(format))
				Expect(format.String()).To(Equal(name))
			}
			_, err := ParseFormat("jwk")
			Expect(err).To(MatchError(rsakit.ErrUnsupportedFormat))
		})

		It("Refuses unknown fingerprint algorithms", func() {
			_, err := Fingerprint(key, "sha1")
			Expect(err).To(MatchError(rsakit.ErrUnsupportedHash))
		})
	})
})
