package encoder

import (
	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/utils/codec"
)

const layoutDense = "dense"

// Dense encodes units as:
//
//	+-------------------------------------------------------------+
//	| head | key_0 ... key_n-1 | v_0,0 ... v_0,dim-1 ... v_n-1,dim-1 |
//	+-------------------------------------------------------------+
//
// Keys ascend. An empty unit list yields an empty blob.
func (e *Encoder) Dense(units []*kv.Unit, dim int, minKeyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	if len(units) == 0 {
		if err := kv.CheckUnits(nil, dim); err != nil {
			return nil, e.fail(layoutDense, err)
		}
		return []byte{}, nil
	}
	p, err := e.prepare(units, dim, minKeyType, valueType)
	if err != nil {
		return nil, e.fail(layoutDense, err)
	}
	l := p.layout
	n := len(p.entries)
	buf := e.alloc.Allocate(format.HeadSize + n*(l.KeySize+dim*l.ValueSize))

	w := codec.NewWriter(buf)
	w.PutU8(l.Head)
	for _, ent := range p.entries {
		l.PutKey(w.Next(l.KeySize), ent.key)
	}
	for _, ent := range p.entries {
		if err := putValues(w.Next(dim*l.ValueSize), l, ent.values); err != nil {
			return nil, e.fail(layoutDense, err)
		}
	}
	e.stat.encoded(layoutDense, l, len(buf))
	return w.Bytes(), nil
}
