package der

import (
	"bytes"
	"fmt"
	"math/big"
)

// A Reader walks DER elements in order. Each Read call consumes exactly one element or fails
// without consuming anything.
type Reader struct {
	buf []byte
}

// NewReader returns a Reader positioned at the start of b
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Empty reports whether every byte has been consumed
func (r *Reader) Empty() bool {
	return len(r.buf) == 0
}

// Remaining returns the unconsumed bytes
func (r *Reader) Remaining() []byte {
	return r.buf
}

// PeekTag returns the tag of the next element without consuming it
func (r *Reader) PeekTag() (byte, bool) {
	if len(r.buf) == 0 {
		return 0, false
	}
	return r.buf[0], true
}

// ReadAny consumes the next element whatever its tag and returns tag and contents
func (r *Reader) ReadAny() (tag byte, contents []byte, err error) {
	if len(r.buf) < 2 {
		return 0, nil, fmt.Errorf("%w: truncated element", ErrMalformed)
	}

	tag = r.buf[0]
	length, consumed, err := DecodeLength(r.buf[1:])
	if err != nil {
		return 0, nil, err
	}

	start := 1 + consumed
	if length > len(r.buf)-start {
		return 0, nil, fmt.Errorf("%w: element of length %d overruns %d remaining bytes", ErrMalformed, length, len(r.buf)-start)
	}

	contents = r.buf[start : start+length]
	r.buf = r.buf[start+length:]
	return tag, contents, nil
}

// ReadElement consumes the next element, which must carry the given tag, and returns its contents
func (r *Reader) ReadElement(tag byte) ([]byte, error) {
	next, ok := r.PeekTag()
	if !ok {
		return nil, fmt.Errorf("%w: expected tag 0x%02x, got end of data", ErrMalformed, tag)
	}
	if next != tag {
		return nil, fmt.Errorf("%w: expected tag 0x%02x, got 0x%02x", ErrMalformed, tag, next)
	}

	_, contents, err := r.ReadAny()
	return contents, err
}

// ReadSequence consumes a SEQUENCE and returns a Reader over its contents
func (r *Reader) ReadSequence() (*Reader, error) {
	contents, err := r.ReadElement(TagSequence)
	if err != nil {
		return nil, err
	}
	return NewReader(contents), nil
}

// ReadInteger consumes an INTEGER. Negative values are rejected; RSA key material never has them
func (r *Reader) ReadInteger() (*big.Int, error) {
	contents, err := r.ReadElement(TagInteger)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 {
		return nil, fmt.Errorf("%w: empty integer", ErrMalformed)
	}
	if contents[0]&0x80 != 0 {
		return nil, fmt.Errorf("%w: negative integer", ErrMalformed)
	}
	if len(contents) > 1 && contents[0] == 0 && contents[1]&0x80 == 0 {
		return nil, fmt.Errorf("%w: integer is not minimally encoded", ErrMalformed)
	}

	return new(big.Int).SetBytes(contents), nil
}

// ReadSmallInteger consumes an INTEGER that must fit in an int
func (r *Reader) ReadSmallInteger() (int, error) {
	x, err := r.ReadInteger()
	if err != nil {
		return 0, err
	}
	if !x.IsInt64() || x.Int64() > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("%w: integer too large", ErrMalformed)
	}
	return int(x.Int64()), nil
}

// ReadOctetString consumes an OCTET STRING
func (r *Reader) ReadOctetString() ([]byte, error) {
	return r.ReadElement(TagOctetString)
}

// ReadBitString consumes a BIT STRING. Only whole-octet strings are accepted
func (r *Reader) ReadBitString() ([]byte, error) {
	contents, err := r.ReadElement(TagBitString)
	if err != nil {
		return nil, err
	}
	if len(contents) == 0 || contents[0] != 0 {
		return nil, fmt.Errorf("%w: bit string with unused bits", ErrMalformed)
	}
	return contents[1:], nil
}

// ReadOID consumes an OBJECT IDENTIFIER and returns its contents octets
func (r *Reader) ReadOID() ([]byte, error) {
	return r.ReadElement(TagOID)
}

// ReadNull consumes a NULL if one is next; absent NULLs are fine
func (r *Reader) ReadNull() error {
	if tag, ok := r.PeekTag(); !ok || tag != TagNull {
		return nil
	}
	contents, err := r.ReadElement(TagNull)
	if err != nil {
		return err
	}
	if len(contents) != 0 {
		return fmt.Errorf("%w: NULL with contents", ErrMalformed)
	}
	return nil
}

// ReadAlgorithmIdentifier consumes SEQUENCE { OID, parameters OPTIONAL } and returns the OID
// contents and the raw parameters (nil when absent)
func (r *Reader) ReadAlgorithmIdentifier() (oid []byte, params []byte, err error) {
	seq, err := r.ReadSequence()
	if err != nil {
		return nil, nil, err
	}
	oid, err = seq.ReadOID()
	if err != nil {
		return nil, nil, err
	}
	if seq.Empty() {
		return oid, nil, nil
	}
	return oid, seq.Remaining(), nil
}

// AlgorithmIdentifier encodes SEQUENCE { OID, params }; a nil params emits NULL
func AlgorithmIdentifier(oid []byte, params []byte) []byte {
	if params == nil {
		params = Null()
	}
	return Sequence(OID(oid), params)
}

// EqualOID compares two OID contents
func EqualOID(a, b []byte) bool {
	return bytes.Equal(a, b)
}
