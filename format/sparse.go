package format

import (
	"github.com/pkg/errors"

	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

const (
	// SparseHeadSize is the u32 key count leading a sparse blob.
	SparseHeadSize = 4
	// OffsetSize is the width of an entry of the sparse offset table.
	OffsetSize = 4
	// BitmapWordSize is the slot granularity of the presence bitmap.
	BitmapWordSize = 8
)

// BitmapWords is the number of u64 words holding dim presence bits.
func BitmapWords(dim int) int {
	return (dim + 63) / 64
}

func BitmapBytes(dim int) int {
	return BitmapWords(dim) * BitmapWordSize
}

// SparseSize is the encoded length of a sparse blob with keyNum keys that
// together hold nonZero values.
func SparseSize(keyNum, dim, nonZero int, k KeyType, v ValueType) int {
	if keyNum == 0 {
		return 0
	}
	return SparseHeadSize + keyNum*(k.Size()+BitmapBytes(dim)+OffsetSize) + nonZero*v.Size()
}

// DecodeSparseMetadata checks that a sparse blob can hold its key and offset
// tables. Per-key regions are checked when they are read.
func DecodeSparseMetadata(blob []byte, dim int, k KeyType, v ValueType) (Metadata, error) {
	m, err := NewMetadata(k, v, dim, 0)
	if err != nil {
		return Metadata{}, err
	}
	if len(blob) < SparseHeadSize {
		return Metadata{}, errors.Wrapf(errs.ErrCorrupted, "sparse blob of %d bytes", len(blob))
	}
	n := int(codec.BytesToU32(blob))
	minLen := SparseHeadSize + n*(m.KeySize+OffsetSize+BitmapBytes(dim))
	if minLen > len(blob) {
		return Metadata{}, errors.Wrapf(errs.ErrCorrupted,
			"sparse blob of %d keys needs at least %d bytes, got %d", n, minLen, len(blob))
	}
	m.KeyCount = n
	return m, nil
}
