// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package idl

import (
	"encoding/binary"
	"fmt"
	"math/big"
)

// Hash returns the Candid field ID of a record field or variant case name
func Hash(name string) uint32 {
	var h uint32
	for i := range len(name) {
		h = h*223 + uint32(name[i])
	}
	return h
}

func appendUleb(buf []byte, v uint64) []byte {
	return binary.AppendUvarint(buf, v)
}

func appendSleb(buf []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

func appendBigUleb(buf []byte, n *big.Int) []byte {
	if n.IsUint64() {
		return appendUleb(buf, n.Uint64())
	}
	v := new(big.Int).Set(n)
	low := new(big.Int)
	mask := big.NewInt(0x7f)
	for {
		b := byte(low.And(v, mask).Uint64())
		v.Rsh(v, 7)
		if v.Sign() == 0 {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

func appendBigSleb(buf []byte, n *big.Int) []byte {
	if n.IsInt64() {
		return appendSleb(buf, n.Int64())
	}
	v := new(big.Int).Set(n)
	low := new(big.Int)
	mask := big.NewInt(0x7f)
	minusOne := big.NewInt(-1)
	for {
		// And and Rsh use two's complement semantics for negative values
		b := byte(low.And(v, mask).Uint64())
		v.Rsh(v, 7)
		if (v.Sign() == 0 && b&0x40 == 0) || (v.Cmp(minusOne) == 0 && b&0x40 != 0) {
			return append(buf, b)
		}
		buf = append(buf, b|0x80)
	}
}

// reader consumes a Candid message, tracking the offset for error messages
type reader struct {
	data   []byte
	offset int
}

func (r *reader) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at offset %d: %s", ErrInvalidEncoding, r.offset, fmt.Sprintf(format, args...))
}

func (r *reader) remaining() int {
	return len(r.data) - r.offset
}

func (r *reader) byte() (byte, error) {
	if r.offset >= len(r.data) {
		return 0, r.errorf("unexpected end of message")
	}
	b := r.data[r.offset]
	r.offset++
	return b, nil
}

func (r *reader) bytes(n uint64) ([]byte, error) {
	if n > uint64(r.remaining()) {
		return nil, r.errorf("length %d exceeds remaining %d bytes", n, r.remaining())
	}
	ret := r.data[r.offset : r.offset+int(n)] //nolint:gosec // G115: bounded by the check above
	r.offset += int(n)                        //nolint:gosec // G115: bounded by the check above
	return ret, nil
}

func (r *reader) uleb() (uint64, error) {
	v, n := binary.Uvarint(r.data[r.offset:])
	switch {
	case n == 0:
		return 0, r.errorf("unexpected end of message")
	case n < 0:
		return 0, r.errorf("LEB128 value overflows 64 bits")
	}
	r.offset += n
	return v, nil
}

func (r *reader) sleb() (int64, error) {
	var result int64
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return 0, err
		}
		if shift >= 64 {
			return 0, r.errorf("SLEB128 value overflows 64 bits")
		}
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
}

func (r *reader) bigUleb() (*big.Int, error) {
	if v, n := binary.Uvarint(r.data[r.offset:]); n > 0 {
		r.offset += n
		return new(big.Int).SetUint64(v), nil
	}
	result, _, _, err := r.bigLeb()
	return result, err
}

func (r *reader) bigSleb() (*big.Int, error) {
	result, width, last, err := r.bigLeb()
	if err != nil {
		return nil, err
	}
	if last&0x40 != 0 {
		result.Sub(result, new(big.Int).Lsh(big.NewInt(1), width))
	}
	return result, nil
}

// bigLeb reads an unsigned LEB128 value of any size. It also returns the number of value bits read
// and the final byte
func (r *reader) bigLeb() (*big.Int, uint, byte, error) {
	result := new(big.Int)
	digit := new(big.Int)
	var shift uint
	for {
		b, err := r.byte()
		if err != nil {
			return nil, 0, 0, err
		}
		digit.SetUint64(uint64(b & 0x7f))
		result.Or(result, digit.Lsh(digit, shift))
		shift += 7
		if b&0x80 == 0 {
			return result, shift, b, nil
		}
	}
}
