package format

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// layoutKeys places 0..n-1 into their b-tree slots.
func layoutKeys(s BTreeShape) []uint64 {
	keys := make([]uint64, s.KeyNum)
	s.Walk(func(rank, slot int) { keys[slot] = uint64(rank) })
	return keys
}

func TestBTreeShapeBoundaries(t *testing.T) {
	for _, blockSize := range []int{1, 2, 3, 4, 16} {
		for _, k := range []int{1, 2, 3, 7} {
			for _, n := range []int{k*blockSize - 1, k * blockSize, k*blockSize + 1} {
				if n <= 0 {
					continue
				}
				s := NewBTreeShape(n, blockSize)
				assert.Equal(t, (n+blockSize-1)/blockSize, s.NodeNum)

				total := 0
				for node := 0; node < s.NodeNum; node++ {
					total += s.NodeKeys(node)
				}
				require.Equal(t, n, total, "n=%d b=%d", n, blockSize)

				seen := make([]bool, n)
				visited := s.Walk(func(rank, slot int) {
					require.False(t, seen[slot])
					seen[slot] = true
				})
				require.Equal(t, n, visited)

				keys := layoutKeys(s)
				keyAt := func(slot int) uint64 { return keys[slot] }
				for want := 0; want < n; want++ {
					slot, ok := s.Search(uint64(want), keyAt)
					require.True(t, ok, "n=%d b=%d key=%d", n, blockSize, want)
					assert.Equal(t, uint64(want), keys[slot])
				}
				_, ok := s.Search(uint64(n), keyAt)
				assert.False(t, ok)
			}
		}
	}
}

func TestBTreeShapeLayout(t *testing.T) {
	// 7 keys, 2 per node: nodes 0..3, node 0 has children 1,2,3.
	s := NewBTreeShape(7, 2)
	require.Equal(t, 4, s.NodeNum)
	assert.Equal(t, 1, s.NodeKeys(3))
	// in-order: child1{0,1} key 2, child2{3,4} key 5, child3{6}
	assert.Equal(t, []uint64{2, 5, 0, 1, 3, 4, 6}, layoutKeys(s))

	c, ok := s.Child(0, 2)
	assert.True(t, ok)
	assert.Equal(t, 3, c)
	_, ok = s.Child(1, 0)
	assert.False(t, ok)
}

func TestBTreeShapeEmpty(t *testing.T) {
	s := NewBTreeShape(0, 4)
	assert.Equal(t, 0, s.NodeNum)
	assert.Equal(t, 0, s.Walk(func(int, int) { t.Fatal("visited empty tree") }))
	_, ok := s.Search(1, func(int) uint64 { return 0 })
	assert.False(t, ok)
}

func TestDecodeBTreeMetadata(t *testing.T) {
	head := BTreeHead{KeyNum: 2, BlockSize: 4, HeadInfo: HeadInfo(KeyU16Shift0, ValueU8)}
	blob := make([]byte, BTreeHeadSize+2*(2+3))
	head.Encode(codec.NewWriter(blob))

	m, h, err := DecodeBTreeMetadata(blob, 3)
	require.NoError(t, err)
	assert.Equal(t, head, h)
	assert.Equal(t, 2, m.KeyCount)

	_, _, err = DecodeBTreeMetadata(blob[:len(blob)-1], 3)
	assert.True(t, errors.Is(err, errs.ErrCorrupted))

	_, _, err = DecodeBTreeMetadata(blob[:5], 3)
	assert.True(t, errors.Is(err, errs.ErrCorrupted))

	zero := BTreeHead{KeyNum: 2, BlockSize: 0, HeadInfo: head.HeadInfo}
	zero.Encode(codec.NewWriter(blob))
	_, _, err = DecodeBTreeMetadata(blob, 3)
	assert.True(t, errors.Is(err, errs.ErrCorrupted))
}

func TestSparseSize(t *testing.T) {
	assert.Equal(t, 0, SparseSize(0, 100, 0, KeyU32Shift0, ValueF32))
	// 4 + 2*(4 + 16 + 4) + 5*4
	assert.Equal(t, 4+2*24+20, SparseSize(2, 100, 5, KeyU32Shift0, ValueF32))
	assert.Equal(t, 8, BitmapBytes(1))
	assert.Equal(t, 8, BitmapBytes(64))
	assert.Equal(t, 16, BitmapBytes(65))
}
