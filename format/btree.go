package format

import (
	"github.com/pkg/errors"

	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// BTreeHeadSize is the size of the b-tree blob header:
//
//	+-----------------------------------------------+
//	| keyNum u32 | blockSize u16 | headInfo | pad   |
//	+-----------------------------------------------+
const BTreeHeadSize = 8

type BTreeHead struct {
	KeyNum    uint32
	BlockSize uint16
	HeadInfo  byte
}

func (h BTreeHead) Encode(w *codec.Writer) {
	w.PutU32(h.KeyNum)
	w.PutU16(h.BlockSize)
	w.PutU8(h.HeadInfo)
	w.PutU8(0)
}

func DecodeBTreeHead(blob []byte) (BTreeHead, error) {
	r := codec.NewReader(blob)
	h := BTreeHead{
		KeyNum:    r.U32(),
		BlockSize: r.U16(),
		HeadInfo:  r.U8(),
	}
	r.U8()
	return h, r.Err()
}

// DecodeBTreeMetadata checks a b-tree blob against its header.
func DecodeBTreeMetadata(blob []byte, dim int) (Metadata, BTreeHead, error) {
	h, err := DecodeBTreeHead(blob)
	if err != nil {
		return Metadata{}, h, err
	}
	k, v, err := ParseHeadInfo(h.HeadInfo)
	if err != nil {
		return Metadata{}, h, err
	}
	m, err := NewMetadata(k, v, dim, int(h.KeyNum))
	if err != nil {
		return Metadata{}, h, err
	}
	if h.KeyNum > 0 && h.BlockSize == 0 {
		return Metadata{}, h, errors.Wrap(errs.ErrCorrupted, "b-tree block size is zero")
	}
	if want := BTreeHeadSize + m.KeyCount*m.UnitSize(); want != len(blob) {
		return Metadata{}, h, errors.Wrapf(errs.ErrCorrupted,
			"b-tree blob of %d keys should be %d bytes, got %d", m.KeyCount, want, len(blob))
	}
	return m, h, nil
}

// BTreeShape is the implicit tree used by the b-tree layout. Nodes are
// numbered breadth first; every node holds BlockSize keys except the last
// one, which holds the remainder. Node i has BlockSize+1 child slots
// i*(BlockSize+1)+1+j, of which only those below NodeNum exist.
//
// Encoding and searching must both go through this type.
type BTreeShape struct {
	KeyNum    int
	BlockSize int
	NodeNum   int
}

func NewBTreeShape(keyNum, blockSize int) BTreeShape {
	s := BTreeShape{KeyNum: keyNum, BlockSize: blockSize}
	if keyNum > 0 && blockSize > 0 {
		s.NodeNum = (keyNum + blockSize - 1) / blockSize
	}
	return s
}

// NodeKeys is the number of keys held by node.
func (s BTreeShape) NodeKeys(node int) int {
	if node < 0 || node >= s.NodeNum {
		return 0
	}
	if node < s.NodeNum-1 {
		return s.BlockSize
	}
	if r := s.KeyNum % s.BlockSize; r != 0 {
		return r
	}
	return s.BlockSize
}

// Child returns the j-th child of node, if it exists.
func (s BTreeShape) Child(node, j int) (int, bool) {
	c := node*(s.BlockSize+1) + 1 + j
	return c, c < s.NodeNum
}

// Slot is the flat index of a node's key slot in the stored arrays.
func (s BTreeShape) Slot(node, slot int) int {
	return node*s.BlockSize + slot
}

// Walk visits the key slots in ascending key order: for each node, child 0,
// key 0, child 1, key 1, ..., child n. visit receives the rank of the key in
// sorted order and its flat slot. Walk returns the number of slots visited.
func (s BTreeShape) Walk(visit func(rank, slot int)) int {
	if s.NodeNum == 0 {
		return 0
	}
	type frame struct {
		node int
		step int // even: descend into child step/2, odd: emit key (step-1)/2
	}
	stack := make([]frame, 1, 16)
	stack[0] = frame{node: 0}
	rank := 0
	for len(stack) > 0 {
		f := &stack[len(stack)-1]
		keys := s.NodeKeys(f.node)
		if f.step > 2*keys {
			stack = stack[:len(stack)-1]
			continue
		}
		step := f.step
		f.step++
		if step%2 == 0 {
			if c, ok := s.Child(f.node, step/2); ok {
				stack = append(stack, frame{node: c})
			}
			continue
		}
		visit(rank, s.Slot(f.node, (step-1)/2))
		rank++
	}
	return rank
}

// Search descends the tree looking for key. keyAt returns the key stored in
// a flat slot. It returns the flat slot of the key.
func (s BTreeShape) Search(key uint64, keyAt func(slot int) uint64) (int, bool) {
	if s.NodeNum == 0 {
		return 0, false
	}
	node := 0
	for {
		n := s.NodeKeys(node)
		base := s.Slot(node, 0)
		lo, hi := 0, n
		for lo < hi {
			mid := int(uint(lo+hi) >> 1)
			if keyAt(base+mid) < key {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo < n && keyAt(base+lo) == key {
			return base + lo, true
		}
		c, ok := s.Child(node, lo)
		if !ok {
			return 0, false
		}
		node = c
	}
}
