package encoder

import (
	"github.com/pkg/errors"

	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

const layoutBTree = "btree"

// BTree encodes units with the keys and values arranged in the node order of
// format.BTreeShape:
//
//	+--------------------------------------------------------------+
//	| keyNum | blockSize | head | pad | keys by slot | values by slot |
//	+--------------------------------------------------------------+
//
// Units are sorted exactly as for Dense, then the shape walk assigns the
// k-th smallest key to its slot.
func (e *Encoder) BTree(units []*kv.Unit, dim, blockSize int, minKeyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	if blockSize < 1 || blockSize > 0xFFFF {
		return nil, e.fail(layoutBTree, errors.Wrapf(errs.ErrInvalidBlockSize, "block size %d", blockSize))
	}
	if len(units) == 0 {
		if err := kv.CheckUnits(nil, dim); err != nil {
			return nil, e.fail(layoutBTree, err)
		}
		return []byte{}, nil
	}
	p, err := e.prepare(units, dim, minKeyType, valueType)
	if err != nil {
		return nil, e.fail(layoutBTree, err)
	}
	l := p.layout
	n := len(p.entries)
	valueSize := dim * l.ValueSize
	keysOff := format.BTreeHeadSize
	valuesOff := keysOff + n*l.KeySize
	buf := e.alloc.Allocate(valuesOff + n*valueSize)

	w := codec.NewWriter(buf)
	format.BTreeHead{
		KeyNum:    uint32(n),
		BlockSize: uint16(blockSize),
		HeadInfo:  l.Head,
	}.Encode(w)

	slots := fill(format.NewBTreeShape(n, blockSize))
	// slots[rank] is where the rank-th smallest key lives; store node by node.
	keys, values := buf[keysOff:valuesOff], buf[valuesOff:]
	for rank, slot := range slots {
		ent := p.entries[rank]
		l.PutKey(keys[slot*l.KeySize:], ent.key)
		if err := putValues(values[slot*valueSize:], l, ent.values); err != nil {
			return nil, e.fail(layoutBTree, err)
		}
	}
	e.stat.encoded(layoutBTree, l, len(buf))
	return buf, nil
}

// fill maps every key rank to its flat slot. Every slot of the shape must be
// visited exactly once; anything else is a bug in the shape walk.
func fill(shape format.BTreeShape) []int {
	slots := make([]int, shape.KeyNum)
	taken := make([]bool, shape.KeyNum)
	visited := shape.Walk(func(rank, slot int) {
		errs.CondPanic(rank >= len(slots) || slot >= len(taken) || taken[slot],
			errors.Errorf("btree fill: rank %d slot %d out of shape %+v", rank, slot, shape))
		taken[slot] = true
		slots[rank] = slot
	})
	errs.CondPanic(visited != shape.KeyNum,
		errors.Errorf("btree fill: visited %d slots, shape holds %d", visited, shape.KeyNum))
	return slots
}
