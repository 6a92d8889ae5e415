package codec

import (
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// CastagnoliCrcTable is a CRC32 polynomial table
var CastagnoliCrcTable = crc32.MakeTable(crc32.Castagnoli)

// ChecksumType selects the algorithm protecting table blocks.
type ChecksumType uint8

const (
	ChecksumCRC32C ChecksumType = iota + 1
	ChecksumXXHash64
)

func (c ChecksumType) String() string {
	switch c {
	case ChecksumCRC32C:
		return "crc32c"
	case ChecksumXXHash64:
		return "xxhash64"
	}
	return "unknown"
}

func (c ChecksumType) Valid() bool {
	return c == ChecksumCRC32C || c == ChecksumXXHash64
}

func ParseChecksumType(s string) (ChecksumType, error) {
	switch s {
	case "", "crc32c":
		return ChecksumCRC32C, nil
	case "xxhash64", "xxhash":
		return ChecksumXXHash64, nil
	}
	return 0, errors.Wrapf(errs.ErrInvalidOption, "checksum %q", s)
}

func EncodeVarint32(buf []byte, v uint32) int {
	return binary.PutUvarint(buf, uint64(v))
}

func DecodeVarint32(buf []byte) int {
	v, _ := binary.Uvarint(buf)
	v = v & ((1 << 32) - 1)
	return int(v)
}

// VarintLength return the length that needed
// the highest bit is used to mark the end
func VarintLength(v uint64) int {
	len := 1
	for v >= 128 {
		v >>= 7
		len++
	}
	return len
}

func EncodeVarint64(buf []byte, v uint64) int {
	return binary.PutUvarint(buf, v)
}

func DecodeVarint64(buf []byte) uint64 {
	v, _ := binary.Uvarint(buf)
	return v
}

// CalculateChecksum _
func CalculateChecksum(data []byte, typ ChecksumType) uint64 {
	if typ == ChecksumXXHash64 {
		return xxhash.Sum64(data)
	}
	return uint64(crc32.Checksum(data, CastagnoliCrcTable))
}

// VerifyChecksum compares data against an 8 byte little-endian checksum.
func VerifyChecksum(data []byte, expected []byte, typ ChecksumType) error {
	if len(expected) != 8 {
		return errors.Wrapf(errs.ErrCorrupted, "checksum length %d", len(expected))
	}
	actual := CalculateChecksum(data, typ)
	if want := binary.LittleEndian.Uint64(expected); actual != want {
		return errors.Wrapf(errs.ErrChecksumMismatch, "actual %d, expected %d", actual, want)
	}
	return nil
}

func U32ToBytes(v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return b[:]
}

func U64ToBytes(v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return b[:]
}

func BytesToU32(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

func BytesToU64(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// Writer writes fixed-width little-endian values into a pre-sized buffer.
// Running past the end of the buffer means the caller computed the wrong
// size, which is a programming error.
type Writer struct {
	buf []byte
	off int
}

func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

func (w *Writer) grow(n int) []byte {
	errs.CondPanic(w.off+n > len(w.buf),
		errors.Errorf("codec.Writer: write of %d bytes at %d overflows buffer of %d", n, w.off, len(w.buf)))
	b := w.buf[w.off : w.off+n]
	w.off += n
	return b
}

func (w *Writer) PutU8(v uint8)   { w.grow(1)[0] = v }
func (w *Writer) PutU16(v uint16) { binary.LittleEndian.PutUint16(w.grow(2), v) }
func (w *Writer) PutU32(v uint32) { binary.LittleEndian.PutUint32(w.grow(4), v) }
func (w *Writer) PutU64(v uint64) { binary.LittleEndian.PutUint64(w.grow(8), v) }

func (w *Writer) PutF32(v float32) {
	binary.LittleEndian.PutUint32(w.grow(4), math.Float32bits(v))
}

func (w *Writer) PutBytes(b []byte) { copy(w.grow(len(b)), b) }

// Next reserves n bytes and returns them for the caller to fill.
func (w *Writer) Next(n int) []byte { return w.grow(n) }

func (w *Writer) Offset() int { return w.off }

func (w *Writer) Seek(off int) {
	errs.CondPanic(off < 0 || off > len(w.buf), errors.Errorf("codec.Writer: seek to %d", off))
	w.off = off
}

func (w *Writer) Bytes() []byte { return w.buf[:w.off] }

// Reader reads fixed-width little-endian values. A read past the end sets a
// sticky error and yields zero values, so a sequence of reads can be checked
// once with Err.
type Reader struct {
	buf []byte
	off int
	err error
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.buf) {
		r.err = errors.Wrapf(errs.ErrCorrupted, "read of %d bytes at %d, buffer is %d", n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) U8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) U16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *Reader) U32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) U64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *Reader) F32() float32 {
	return math.Float32frombits(r.U32())
}

// Uvarint reads a varint-encoded unsigned integer.
func (r *Reader) Uvarint() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.buf[r.off:])
	if n <= 0 {
		r.err = errors.Wrapf(errs.ErrCorrupted, "bad varint at %d", r.off)
		return 0
	}
	r.off += n
	return v
}

// Bytes returns the next n bytes without copying.
func (r *Reader) Bytes(n int) []byte { return r.take(n) }

func (r *Reader) Seek(off int) {
	if off < 0 || off > len(r.buf) {
		r.err = errors.Wrapf(errs.ErrCorrupted, "seek to %d, buffer is %d", off, len(r.buf))
		return
	}
	r.off = off
}

func (r *Reader) Offset() int    { return r.off }
func (r *Reader) Remaining() int { return len(r.buf) - r.off }
func (r *Reader) Err() error     { return r.err }
