package rsakit

import (
	"fmt"
	"math/big"
)

var (
	bigZero = big.NewInt(0)
	bigOne  = big.NewInt(1)
)

// I2OSP converts a non-negative integer to a big-endian octet string of exactly xLen bytes
func I2OSP(x *big.Int, xLen int) ([]byte, error) {
	if x.Sign() < 0 || (x.BitLen()+7)/8 > xLen {
		return nil, fmt.Errorf("integer too large for %d octets", xLen)
	}
	return x.FillBytes(make([]byte, xLen)), nil
}

// OS2IP converts a big-endian octet string to a non-negative integer
func OS2IP(b []byte) *big.Int {
	return new(big.Int).SetBytes(b)
}

// leftPad returns input padded on the left with zeros to size bytes.
// If input is longer than size it is returned unchanged.
func leftPad(input []byte, size int) []byte {
	n := len(input)
	if n >= size {
		return input
	}
	out := make([]byte, size)
	copy(out[size-n:], input)
	return out
}
