// Package page implements the fixed-size, uninterpreted byte buffer that
// every block of a data, log, or B-tree file is read into.
//
// Integers of every width are little-endian. Strings are length-prefixed
// with a big-endian uint32 byte count followed by their (ASCII-only)
// payload — an inconsistency inherited unchanged from the teaching
// lineage this package descends from; see SPEC_FULL.md §5 item 3.
package page

import (
	"encoding/binary"
	"fmt"
)

// Size is the default page size in bytes. Callers that need a different
// size (e.g. for tests) construct a Page with NewSize.
const Size = 4096

// Page is a fixed-capacity byte buffer with typed accessors. It owns its
// bytes; reads and writes are in place, never copy-out.
type Page struct {
	data []byte
}

// New allocates a zero-filled page of the default Size.
func New() *Page {
	return &Page{data: make([]byte, Size)}
}

// NewSize allocates a zero-filled page of the given size.
func NewSize(size int) *Page {
	return &Page{data: make([]byte, size)}
}

// NewFromBytes wraps an existing byte slice as a page without copying. The
// caller retains ownership of buf's lifetime.
func NewFromBytes(buf []byte) *Page {
	return &Page{data: buf}
}

// Len returns the page's capacity in bytes.
func (p *Page) Len() int { return len(p.data) }

// Bytes returns the page's underlying buffer. Callers must not retain it
// past the page's lifetime without copying.
func (p *Page) Bytes() []byte { return p.data }

func (p *Page) checkBounds(offset, n int) {
	if offset < 0 || n < 0 || offset+n > len(p.data) {
		panic(fmt.Sprintf("page: offset %d length %d out of bounds (page size %d)", offset, n, len(p.data)))
	}
}

// ReadBytes returns a copy of n bytes starting at offset.
func (p *Page) ReadBytes(offset, n int) []byte {
	p.checkBounds(offset, n)
	out := make([]byte, n)
	copy(out, p.data[offset:offset+n])
	return out
}

// WriteBytes writes b at offset and returns the number of bytes written.
func (p *Page) WriteBytes(offset int, b []byte) int {
	p.checkBounds(offset, len(b))
	copy(p.data[offset:], b)
	return len(b)
}

// ReadInt32 reads a little-endian int32 at offset.
func (p *Page) ReadInt32(offset int) int32 {
	p.checkBounds(offset, 4)
	return int32(binary.LittleEndian.Uint32(p.data[offset:]))
}

// WriteInt32 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteInt32(offset int, v int32) int {
	p.checkBounds(offset, 4)
	binary.LittleEndian.PutUint32(p.data[offset:], uint32(v))
	return 4
}

// ReadUint32 reads a little-endian uint32 at offset.
func (p *Page) ReadUint32(offset int) uint32 {
	p.checkBounds(offset, 4)
	return binary.LittleEndian.Uint32(p.data[offset:])
}

// WriteUint32 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteUint32(offset int, v uint32) int {
	p.checkBounds(offset, 4)
	binary.LittleEndian.PutUint32(p.data[offset:], v)
	return 4
}

// ReadInt16 reads a little-endian int16 at offset.
func (p *Page) ReadInt16(offset int) int16 {
	p.checkBounds(offset, 2)
	return int16(binary.LittleEndian.Uint16(p.data[offset:]))
}

// WriteInt16 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteInt16(offset int, v int16) int {
	p.checkBounds(offset, 2)
	binary.LittleEndian.PutUint16(p.data[offset:], uint16(v))
	return 2
}

// ReadUint16 reads a little-endian uint16 at offset.
func (p *Page) ReadUint16(offset int) uint16 {
	p.checkBounds(offset, 2)
	return binary.LittleEndian.Uint16(p.data[offset:])
}

// WriteUint16 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteUint16(offset int, v uint16) int {
	p.checkBounds(offset, 2)
	binary.LittleEndian.PutUint16(p.data[offset:], v)
	return 2
}

// ReadInt64 reads a little-endian int64 at offset.
func (p *Page) ReadInt64(offset int) int64 {
	p.checkBounds(offset, 8)
	return int64(binary.LittleEndian.Uint64(p.data[offset:]))
}

// WriteInt64 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteInt64(offset int, v int64) int {
	p.checkBounds(offset, 8)
	binary.LittleEndian.PutUint64(p.data[offset:], uint64(v))
	return 8
}

// ReadUint64 reads a little-endian uint64 at offset.
func (p *Page) ReadUint64(offset int) uint64 {
	p.checkBounds(offset, 8)
	return binary.LittleEndian.Uint64(p.data[offset:])
}

// WriteUint64 writes v little-endian at offset and returns bytes written.
func (p *Page) WriteUint64(offset int, v uint64) int {
	p.checkBounds(offset, 8)
	binary.LittleEndian.PutUint64(p.data[offset:], v)
	return 8
}

// isASCII reports whether every byte of s is 7-bit clean.
func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// ReadString reads a big-endian-length-prefixed ASCII string at offset. A
// zero length reads back as the empty string with no payload bytes.
func (p *Page) ReadString(offset int) string {
	p.checkBounds(offset, 4)
	n := binary.BigEndian.Uint32(p.data[offset:])
	if n == 0 {
		return ""
	}
	p.checkBounds(offset+4, int(n))
	return string(p.data[offset+4 : offset+4+int(n)])
}

// WriteString writes s at offset as a big-endian uint32 length followed by
// its ASCII bytes, and returns the total number of bytes written
// (4 + len(s)). It panics if s is not 7-bit ASCII.
func (p *Page) WriteString(offset int, s string) int {
	if !isASCII(s) {
		panic(fmt.Sprintf("page: string %q is not ASCII", s))
	}
	p.checkBounds(offset, 4+len(s))
	binary.BigEndian.PutUint32(p.data[offset:], uint32(len(s)))
	copy(p.data[offset+4:], s)
	return 4 + len(s)
}

// StringLen returns the on-page byte length (4-byte header + payload) a
// string of length n would occupy, used by callers sizing layouts.
func StringLen(n int) int {
	return 4 + n
}
