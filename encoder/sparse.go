package encoder

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

const layoutSparse = "sparse"

// Sparse encodes units for records with many dimensions and few values:
//
//	+---------------------------------------------------------------+
//	| keyNum u32 | key_0 ... key_n-1 | off_0 ... off_n-1 | regions  |
//	+---------------------------------------------------------------+
//	region: | bitmap (u64 words) | values whose bit is set, in bit order |
//
// A bit is set when the value is present and non-zero. off_i is relative to
// the start of the regions. Nothing in the blob records the key or value
// type, so the key type is used as given and collisions are an error.
func (e *Encoder) Sparse(units []*kv.Unit, dim int, keyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	if err := kv.CheckUnits(units, dim); err != nil {
		return nil, e.fail(layoutSparse, err)
	}
	if valueType == format.ValueAuto {
		return nil, e.fail(layoutSparse, errors.Wrap(errs.ErrUnsupportedType, "sparse layout needs a concrete value type"))
	}
	l, err := format.LayoutOf(keyType, valueType)
	if err != nil {
		return nil, e.fail(layoutSparse, err)
	}
	if len(units) == 0 {
		return []byte{}, nil
	}
	if !unique(units, keyType) {
		return nil, e.fail(layoutSparse, errors.Wrapf(errs.ErrKeyCollision, "key type %s", keyType))
	}
	if _, err := chooseValueType(units, valueType); err != nil {
		return nil, e.fail(layoutSparse, err)
	}

	entries := sortedEntries(units, keyType)
	bitmaps := make([]*bitset.BitSet, len(entries))
	nonZero := 0
	for i, ent := range entries {
		bs := bitset.New(uint(dim))
		for d, v := range ent.values {
			if !format.Missing(v) && v != 0 {
				bs.Set(uint(d))
			}
		}
		bitmaps[i] = bs
		nonZero += int(bs.Count())
	}

	n := len(entries)
	size := format.SparseSize(n, dim, nonZero, keyType, valueType)
	buf := e.alloc.Allocate(size)
	w := codec.NewWriter(buf)
	w.PutU32(uint32(n))
	for _, ent := range entries {
		l.PutKey(w.Next(l.KeySize), ent.key)
	}

	offsets := codec.NewWriter(w.Next(n * format.OffsetSize))
	regionStart := w.Offset()
	words := format.BitmapWords(dim)
	for i, ent := range entries {
		offsets.PutU32(uint32(w.Offset() - regionStart))
		bm := bitmaps[i].Words()
		for j := 0; j < words; j++ {
			var word uint64
			if j < len(bm) {
				word = bm[j]
			}
			w.PutU64(word)
		}
		for d, ok := bitmaps[i].NextSet(0); ok; d, ok = bitmaps[i].NextSet(d + 1) {
			if err := l.PutValue(w.Next(l.ValueSize), ent.values[d]); err != nil {
				return nil, e.fail(layoutSparse, err)
			}
		}
	}
	errs.CondPanic(w.Offset() != size, errors.Errorf("sparse: wrote %d bytes, sized %d", w.Offset(), size))
	e.stat.encoded(layoutSparse, l, size)
	return buf, nil
}
