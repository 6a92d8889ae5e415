package format

import (
	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// HeadSize is the size of the dense blob header.
const HeadSize = 1

// Metadata describes a blob. Only the header byte is stored; everything else
// is derived from it, the blob length and the caller's dimension.
type Metadata struct {
	KeyType   KeyType
	ValueType ValueType
	KeySize   int
	ValueSize int
	Dim       int
	KeyCount  int
}

// UnitSize is the number of bytes one key and its values take.
func (m Metadata) UnitSize() int {
	return m.KeySize + m.Dim*m.ValueSize
}

// Layout returns the read/write routines matching the metadata.
func (m Metadata) Layout() *Layout {
	l, _ := LayoutOf(m.KeyType, m.ValueType)
	return l
}

// NewMetadata describes keyCount keys of the given types.
func NewMetadata(k KeyType, v ValueType, dim, keyCount int) (Metadata, error) {
	if dim < 1 {
		return Metadata{}, errors.Wrapf(errs.ErrInvalidDim, "dim %d", dim)
	}
	if !k.Valid() || !v.Valid() {
		return Metadata{}, errors.Wrapf(errs.ErrUnsupportedType, "key type %s, value type %s", k, v)
	}
	return Metadata{
		KeyType:   k,
		ValueType: v,
		KeySize:   k.Size(),
		ValueSize: v.Size(),
		Dim:       dim,
		KeyCount:  keyCount,
	}, nil
}

// DecodeMetadata interprets the header byte of a dense blob of blobLen bytes
// (header included). The body must hold a whole number of units.
func DecodeMetadata(head byte, blobLen, dim int) (Metadata, error) {
	k, v, err := ParseHeadInfo(head)
	if err != nil {
		return Metadata{}, err
	}
	m, err := NewMetadata(k, v, dim, 0)
	if err != nil {
		return Metadata{}, err
	}
	body := blobLen - HeadSize
	if body < 0 {
		return Metadata{}, errors.Wrapf(errs.ErrCorrupted, "blob of %d bytes has no header", blobLen)
	}
	if body%m.UnitSize() != 0 {
		return Metadata{}, errors.Wrapf(errs.ErrCorrupted,
			"body of %d bytes is not a multiple of unit size %d", body, m.UnitSize())
	}
	m.KeyCount = body / m.UnitSize()
	return m, nil
}
