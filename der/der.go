/*
Package der implements the small subset of ASN.1 DER that RSA key containers need.

Parsing is done over a strict byte cursor: every element is read as tag, length, contents, and a
length that runs past the remaining buffer is an error rather than a truncated read. Lengths and
integers must use their minimal encoding, so BER input is refused. Encoding is done by
concatenating precomputed elements.
*/
package der

import (
	"errors"
	"fmt"
	"math/big"
)

// Universal tags used by RSA key structures
const (
	TagInteger     byte = 0x02
	TagBitString   byte = 0x03
	TagOctetString byte = 0x04
	TagNull        byte = 0x05
	TagOID         byte = 0x06
	TagSequence    byte = 0x30
	TagSet         byte = 0x31
)

// ErrMalformed is returned for any structural violation: bad tag, bad length, truncated buffer
var ErrMalformed = errors.New("der: malformed encoding")

// EncodeLength returns the DER length octets for n.
// Lengths up to 0x7F use the short form; longer ones set the high bit of the
// first octet and follow it with the big-endian length bytes.
func EncodeLength(n int) []byte {
	if n <= 0x7f {
		return []byte{byte(n)}
	}

	var octets []byte
	for v := n; v > 0; v >>= 8 {
		octets = append([]byte{byte(v)}, octets...)
	}
	return append([]byte{0x80 | byte(len(octets))}, octets...)
}

// DecodeLength parses the length octets at the start of b, returning the length and the number of
// octets consumed
func DecodeLength(b []byte) (length int, consumed int, err error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: missing length", ErrMalformed)
	}

	first := b[0]
	if first&0x80 == 0 {
		return int(first), 1, nil
	}

	count := int(first & 0x7f)
	// indefinite lengths are BER only, and anything wider than an int is nonsense for a key
	if count == 0 || count > 4 {
		return 0, 0, fmt.Errorf("%w: unsupported length form 0x%02x", ErrMalformed, first)
	}
	if len(b) < 1+count {
		return 0, 0, fmt.Errorf("%w: truncated length", ErrMalformed)
	}
	if b[1] == 0 {
		return 0, 0, fmt.Errorf("%w: length has leading zero octets", ErrMalformed)
	}

	for _, octet := range b[1 : 1+count] {
		length = length<<8 | int(octet)
	}
	if length < 0 {
		return 0, 0, fmt.Errorf("%w: length overflow", ErrMalformed)
	}
	if length <= 0x7f {
		return 0, 0, fmt.Errorf("%w: long form used for length %d", ErrMalformed, length)
	}

	return length, 1 + count, nil
}

// Element encodes a complete tag-length-value element
func Element(tag byte, contents []byte) []byte {
	length := EncodeLength(len(contents))
	out := make([]byte, 0, 1+len(length)+len(contents))
	out = append(out, tag)
	out = append(out, length...)
	return append(out, contents...)
}

// Sequence concatenates already-encoded elements into a SEQUENCE
func Sequence(elements ...[]byte) []byte {
	var contents []byte
	for _, e := range elements {
		contents = append(contents, e...)
	}
	return Element(TagSequence, contents)
}

// Integer encodes a non-negative big integer, adding a leading zero octet when the top bit is set
// so the value is not read back as negative
func Integer(x *big.Int) []byte {
	return Element(TagInteger, IntegerBytes(x))
}

// SmallInteger encodes a non-negative machine integer
func SmallInteger(x int) []byte {
	return Integer(big.NewInt(int64(x)))
}

// IntegerBytes returns the two's complement contents octets for a non-negative integer
func IntegerBytes(x *big.Int) []byte {
	b := x.Bytes()
	if len(b) == 0 {
		return []byte{0}
	}
	if b[0]&0x80 != 0 {
		b = append([]byte{0}, b...)
	}
	return b
}

// OctetString wraps b in an OCTET STRING
func OctetString(b []byte) []byte {
	return Element(TagOctetString, b)
}

// BitString wraps b in a BIT STRING with no unused bits
func BitString(b []byte) []byte {
	return Element(TagBitString, append([]byte{0}, b...))
}

// Null is the encoded NULL element
func Null() []byte {
	return []byte{TagNull, 0x00}
}

// OID wraps the contents octets of an object identifier
func OID(contents []byte) []byte {
	return Element(TagOID, contents)
}
