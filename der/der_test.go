package der

import (
	"encoding/asn1"
	"encoding/hex"
	"math/big"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestDER(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "DER Suite")
}

func unhex(s string) []byte {
	b, err := hex.DecodeString(s)
	Expect(err).To(BeNil())
	return b
}

var _ = Describe("DER", func() {

	Context("Lengths", func() {
		DescribeTable("Encodes lengths in the shortest form",
			func(n int, encoded string) {
				Expect(hex.EncodeToString(EncodeLength(n))).To(Equal(encoded))

				decoded, consumed, err := DecodeLength(unhex(encoded))
				Expect(err).To(BeNil())
				Expect(decoded).To(Equal(n))
				Expect(consumed).To(Equal(len(encoded) / 2))
			},
			Entry("zero", 0, "00"),
			Entry("largest short form", 0x7f, "7f"),
			Entry("smallest long form", 0x80, "8180"),
			Entry("one byte long form", 0xff, "81ff"),
			Entry("two byte long form", 0x100, "820100"),
			Entry("typical 2048-bit key", 0x4a5, "8204a5"),
		)

		It("Rejects indefinite lengths", func() {
			_, _, err := DecodeLength([]byte{0x80})
			Expect(err).To(MatchError(ErrMalformed))
		})

		It("Rejects truncated long-form lengths", func() {
			_, _, err := DecodeLength([]byte{0x82, 0x01})
			Expect(err).To(MatchError(ErrMalformed))
		})

		DescribeTable("Rejects lengths that are not minimally encoded",
			func(encoded string) {
				_, _, err := DecodeLength(unhex(encoded))
				Expect(err).To(MatchError(ErrMalformed))
			},
			Entry("short value in long form", "8105"),
			Entry("largest short value in long form", "817f"),
			Entry("leading zero octet", "820080"),
		)
	})

	Context("Integers", func() {
		It("Pads integers whose top bit is set", func() {
			Expect(hex.EncodeToString(Integer(big.NewInt(0x80)))).To(Equal("02020080"))
			Expect(hex.EncodeToString(Integer(big.NewInt(0x7f)))).To(Equal("02017f"))
			Expect(hex.EncodeToString(Integer(big.NewInt(0)))).To(Equal("020100"))
		})

		It("Agrees with encoding/asn1 for large values", func() {
			x, _ := new(big.Int).SetString("d94d889e88853dd89769a18015a0a2e6bf82bf356fe14f251fb4f5e2df0d9f9a94a68a30c428b39e3362fb3779a497eceaea37100f264d7fb9fb1a97fbf621133de55fdcb9b1ad0d7a31b379216d79252f5c527b9bc63d83d4ecf4d1d45cbf843e8474babc655e9bb6799cba77a47eafa838296474afc24beb9c825b73ebf549", 16)
			expected, err := asn1.Marshal(x)
			Expect(err).To(BeNil())
			Expect(Integer(x)).To(Equal(expected))

			back, err := NewReader(expected).ReadInteger()
			Expect(err).To(BeNil())
			Expect(back.Cmp(x)).To(Equal(0))
		})

		It("Rejects negative integers", func() {
			_, err := NewReader([]byte{0x02, 0x01, 0xff}).ReadInteger()
			Expect(err).To(MatchError(ErrMalformed))
		})

		It("Rejects integers with redundant leading zeros", func() {
			_, err := NewReader([]byte{0x02, 0x02, 0x00, 0x7f}).ReadInteger()
			Expect(err).To(MatchError(ErrMalformed))

			x, err := NewReader([]byte{0x02, 0x02, 0x00, 0x80}).ReadInteger()
			Expect(err).To(BeNil())
			Expect(x.Int64()).To(Equal(int64(0x80)))

			zero, err := NewReader([]byte{0x02, 0x01, 0x00}).ReadInteger()
			Expect(err).To(BeNil())
			Expect(zero.Sign()).To(Equal(0))
		})
	})

	Context("Reading structures", func() {
		It("Walks a nested sequence", func() {
			encoded := Sequence(
				SmallInteger(0),
				AlgorithmIdentifier([]byte{0x2a, 0x86, 0x48, 0x86, 0xf7, 0x0d, 0x01, 0x01, 0x01}, nil),
				OctetString([]byte("payload")),
				BitString([]byte{0xca, 0xfe}),
			)

			r := NewReader(encoded)
			seq, err := r.ReadSequence()
			Expect(err).To(BeNil())
			Expect(r.Empty()).To(BeTrue())

			version, err := seq.ReadSmallInteger()
			Expect(err).To(BeNil())
			Expect(version).To(Equal(0))

			oid, params, err := seq.ReadAlgorithmIdentifier()
			Expect(err).To(BeNil())
			Expect(hex.EncodeToString(oid)).To(Equal("2a864886f70d010101"))
			Expect(params).To(Equal(Null()))

			octets, err := seq.ReadOctetString()
			Expect(err).To(BeNil())
			Expect(string(octets)).To(Equal("payload"))

			bits, err := seq.ReadBitString()
			Expect(err).To(BeNil())
			Expect(bits).To(Equal([]byte{0xca, 0xfe}))
			Expect(seq.Empty()).To(BeTrue())
		})

		It("Does not consume anything on a tag mismatch", func() {
			r := NewReader(OctetString([]byte{1}))
			_, err := r.ReadInteger()
			Expect(err).To(MatchError(ErrMalformed))

			octets, err := r.ReadOctetString()
			Expect(err).To(BeNil())
			Expect(octets).To(Equal([]byte{1}))
		})

		It("Fails on lengths that overrun the buffer", func() {
			_, err := NewReader([]byte{0x30, 0x05, 0x02, 0x01, 0x00}).ReadSequence()
			Expect(err).To(MatchError(ErrMalformed))
		})

		It("Fails on an empty buffer", func() {
			_, err := NewReader(nil).ReadSequence()
			Expect(err).To(MatchError(ErrMalformed))
		})

		It("Skips absent NULL parameters", func() {
			r := NewReader(SmallInteger(3))
			Expect(r.ReadNull()).To(Succeed())
			Expect(r.Empty()).To(BeFalse())
		})
	})
})
