package matcher

import (
	"math/bits"

	"github.com/pkg/errors"

	"lookupkv/combiner"
	"lookupkv/format"
	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// Sparse reads blobs produced by encoder.EncodeSparse. The key and value
// types are not recorded in the blob and must match the ones it was encoded
// with.
type Sparse struct {
	meta    format.Metadata
	layout  *format.Layout
	keys    []byte
	offsets []byte
	regions []byte
	words   int
}

// NewSparse checks the key and offset tables and every value region, so
// lookups on the returned table never read out of bounds.
func NewSparse(blob []byte, dim int, kt format.KeyType, vt format.ValueType) (*Sparse, error) {
	if err := checkDim(dim); err != nil {
		return nil, err
	}
	if vt == format.ValueAuto {
		return nil, errors.Wrap(errs.ErrUnsupportedType, "sparse layout needs a concrete value type")
	}
	if len(blob) == 0 {
		if _, err := format.LayoutOf(kt, vt); err != nil {
			return nil, err
		}
		return &Sparse{meta: format.Metadata{KeyType: kt, ValueType: vt, Dim: dim}}, nil
	}
	m, err := format.DecodeSparseMetadata(blob, dim, kt, vt)
	if err != nil {
		return nil, err
	}
	n := m.KeyCount
	r := codec.NewReader(blob)
	r.Seek(format.SparseHeadSize)
	t := &Sparse{
		meta:    m,
		layout:  m.Layout(),
		keys:    r.Bytes(n * m.KeySize),
		offsets: r.Bytes(n * format.OffsetSize),
		words:   format.BitmapWords(dim),
	}
	t.regions = r.Bytes(r.Remaining())
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := t.check(); err != nil {
		return nil, err
	}
	return t, nil
}

// check verifies that the regions are contiguous, that every bitmap only
// uses the first dim bits and that each region holds one value per set bit.
func (t *Sparse) check() error {
	n := t.meta.KeyCount
	bitmapBytes := t.words * format.BitmapWordSize
	for i := 0; i < n; i++ {
		start, end := t.region(i)
		if start > end || end > len(t.regions) || end-start < bitmapBytes {
			return errors.Wrapf(errs.ErrCorrupted, "sparse region %d spans [%d, %d) of %d bytes", i, start, end, len(t.regions))
		}
		set := 0
		for j := 0; j < t.words; j++ {
			word := codec.BytesToU64(t.regions[start+j*format.BitmapWordSize:])
			if j == t.words-1 {
				if rest := t.meta.Dim % 64; rest != 0 && word>>uint(rest) != 0 {
					return errors.Wrapf(errs.ErrCorrupted, "sparse region %d marks slots past dim %d", i, t.meta.Dim)
				}
			}
			set += bits.OnesCount64(word)
		}
		if want := bitmapBytes + set*t.meta.ValueSize; end-start != want {
			return errors.Wrapf(errs.ErrCorrupted, "sparse region %d has %d bytes, bitmap needs %d", i, end-start, want)
		}
	}
	if n > 0 {
		if first, _ := t.region(0); first != 0 {
			return errors.Wrapf(errs.ErrCorrupted, "sparse regions start at %d", first)
		}
	}
	return nil
}

func (t *Sparse) offset(i int) int {
	return int(codec.BytesToU32(t.offsets[i*format.OffsetSize:]))
}

// region returns the bounds of the i-th value region. The last region runs
// to the end of the blob.
func (t *Sparse) region(i int) (int, int) {
	start := t.offset(i)
	if i+1 < t.meta.KeyCount {
		return start, t.offset(i + 1)
	}
	return start, len(t.regions)
}

func (t *Sparse) Len() int                  { return t.meta.KeyCount }
func (t *Sparse) Metadata() format.Metadata { return t.meta }

func (t *Sparse) Find(hash uint64) (int, bool) {
	n := t.meta.KeyCount
	if n == 0 {
		return 0, false
	}
	key := t.meta.KeyType.Narrow(hash)
	lo, hi := 0, n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.layout.Key(t.keys, mid) < key {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < n && t.layout.Key(t.keys, lo) == key {
		return lo, true
	}
	return 0, false
}

// each calls fn with the slot and stored value of every set bit of the
// region at idx.
func (t *Sparse) each(idx int, fn func(slot int, v format.Value)) {
	start, _ := t.region(idx)
	values := t.regions[start+t.words*format.BitmapWordSize:]
	k := 0
	for j := 0; j < t.words; j++ {
		word := codec.BytesToU64(t.regions[start+j*format.BitmapWordSize:])
		for word != 0 {
			fn(j*64+bits.TrailingZeros64(word), t.layout.Value(values, k))
			word &= word - 1
			k++
		}
	}
}

// Values appends dim values for idx. Slots without a stored value are
// reported as not valid.
func (t *Sparse) Values(idx int, dst []format.Value) []format.Value {
	base := len(dst)
	for d := 0; d < t.meta.Dim; d++ {
		dst = append(dst, format.Value{})
	}
	t.each(idx, func(slot int, v format.Value) {
		dst[base+slot] = v
	})
	return dst
}

func (t *Sparse) Match(hashes []uint64, c combiner.Collector) int {
	matched := 0
	for _, h := range hashes {
		idx, ok := t.Find(h)
		if !ok {
			continue
		}
		matched++
		t.each(idx, func(slot int, v format.Value) {
			if v.Valid {
				c.Collect(slot, float64(v.V))
			}
		})
	}
	return matched
}
