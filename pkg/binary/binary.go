// Copyright 2018 The gVisor Authors.
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

// Package binary reads and writes fixed-layout kernel ABI records held in
// byte slices.
//
// Kernel query responses are variable-length and are never reinterpreted in
// place. Instead, fields are extracted at explicit offsets through a Reader,
// which bounds-checks every access.
package binary

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// LittleEndian is the same as encoding/binary.LittleEndian.
//
// All DRM uAPI structures are host-endian; every supported host is little
// endian.
var LittleEndian = binary.LittleEndian

// ErrShortBuffer is returned (wrapped) by Reader.Err when a read went past the
// end of the buffer.
var ErrShortBuffer = errors.New("short buffer")

// AppendUint16 appends the little-endian representation of num to buf.
func AppendUint16(buf []byte, num uint16) []byte {
	return LittleEndian.AppendUint16(buf, num)
}

// AppendUint32 appends the little-endian representation of num to buf.
func AppendUint32(buf []byte, num uint32) []byte {
	return LittleEndian.AppendUint32(buf, num)
}

// AppendUint64 appends the little-endian representation of num to buf.
func AppendUint64(buf []byte, num uint64) []byte {
	return LittleEndian.AppendUint64(buf, num)
}

// AppendZeros appends n zero bytes to buf.
func AppendZeros(buf []byte, n int) []byte {
	return append(buf, make([]byte, n)...)
}

// Reader extracts little-endian fields from a byte slice.
//
// A Reader never panics on short input. The first out-of-range access is
// recorded and returned by Err; all reads after it return zero.
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader returns a Reader positioned at the start of buf.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	if r.off >= len(r.buf) {
		return 0
	}
	return len(r.buf) - r.off
}

// Err returns the first error encountered, if any.
func (r *Reader) Err() error {
	return r.err
}

// take returns the next n bytes, or nil after recording an error.
func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

// Uint16 reads a uint16.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return LittleEndian.Uint16(b)
}

// Uint32 reads a uint32.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return LittleEndian.Uint32(b)
}

// Uint64 reads a uint64.
func (r *Reader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return LittleEndian.Uint64(b)
}

// Skip advances past n bytes of padding or reserved fields.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) []byte {
	return r.take(n)
}

// Bit reports whether bit n of the byte at absolute offset off is set. It
// does not move the read position.
func (r *Reader) Bit(off int, n uint) bool {
	if r.err != nil {
		return false
	}
	if off < 0 || off >= len(r.buf) {
		r.err = fmt.Errorf("%w: bit %d of byte %d, have %d", ErrShortBuffer, n, off, len(r.buf))
		return false
	}
	return (r.buf[off]>>(n%8))&1 != 0
}
