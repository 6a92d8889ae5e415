package matcher

import (
	"lookupkv/combiner"
	"lookupkv/format"
)

// BTree reads blobs produced by encoder.EncodeBTree. Lookups descend the
// same format.BTreeShape the encoder filled.
type BTree struct {
	meta   format.Metadata
	layout *format.Layout
	shape  format.BTreeShape
	keys   []byte
	values []byte
}

func NewBTree(blob []byte, dim int) (*BTree, error) {
	if err := checkDim(dim); err != nil {
		return nil, err
	}
	if len(blob) == 0 {
		return &BTree{meta: format.Metadata{Dim: dim}}, nil
	}
	m, head, err := format.DecodeBTreeMetadata(blob, dim)
	if err != nil {
		return nil, err
	}
	body := blob[format.BTreeHeadSize:]
	keysLen := m.KeyCount * m.KeySize
	return &BTree{
		meta:   m,
		layout: m.Layout(),
		shape:  format.NewBTreeShape(m.KeyCount, int(head.BlockSize)),
		keys:   body[:keysLen],
		values: body[keysLen:],
	}, nil
}

func (t *BTree) Len() int                  { return t.meta.KeyCount }
func (t *BTree) Metadata() format.Metadata { return t.meta }

func (t *BTree) keyAt(slot int) uint64 {
	return t.layout.Key(t.keys, slot)
}

func (t *BTree) Find(hash uint64) (int, bool) {
	if t.meta.KeyCount == 0 {
		return 0, false
	}
	return t.shape.Search(t.meta.KeyType.Narrow(hash), t.keyAt)
}

func (t *BTree) Values(idx int, dst []format.Value) []format.Value {
	return appendRow(t.layout, t.values, idx, t.meta.Dim, dst)
}

func (t *BTree) Match(hashes []uint64, c combiner.Collector) int {
	matched := 0
	for _, h := range hashes {
		slot, ok := t.Find(h)
		if !ok {
			continue
		}
		matched++
		collectRow(t.layout, t.values, slot, t.meta.Dim, c)
	}
	return matched
}
