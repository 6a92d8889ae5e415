package matcher

import (
	"lookupkv/combiner"
	"lookupkv/format"
)

// Dense reads blobs produced by encoder.EncodeDense.
type Dense struct {
	meta   format.Metadata
	layout *format.Layout
	keys   []byte
	values []byte
}

// NewDense validates the header and length of blob. An empty blob is a
// valid table without keys.
func NewDense(blob []byte, dim int) (*Dense, error) {
	if err := checkDim(dim); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return &Dense{meta: format.Metadata{Dim: dim}}, nil
	}
	m, err := format.DecodeMetadata(blob[0], len(blob), dim)
	if err != nil {
		return nil, err
	}
	body := blob[format.HeadSize:]
	keysLen := m.KeyCount * m.KeySize
	return &Dense{
		meta:   m,
		layout: m.Layout(),
		keys:   body[:keysLen],
		values: body[keysLen:],
	}, nil
}

func (t *Dense) Len() int                  { return t.meta.KeyCount }
func (t *Dense) Metadata() format.Metadata { return t.meta }

func (t *Dense) Find(hash uint64) (int, bool) {
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

func (t *Dense) Values(idx int, dst []format.Value) []format.Value {
	return appendRow(t.layout, t.values, idx, t.meta.Dim, dst)
}

func (t *Dense) Match(hashes []uint64, c combiner.Collector) int {
	matched := 0
	for _, h := range hashes {
		idx, ok := t.Find(h)
		if !ok {
			continue
		}
		matched++
		collectRow(t.layout, t.values, idx, t.meta.Dim, c)
	}
	return matched
}
