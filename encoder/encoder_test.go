package encoder

import (
	"fmt"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

func sampleUnits() []*kv.Unit {
	return kv.BuildUnits(
		kv.Field{{Word: "apple", Value: 400}, {Word: "chair", Value: 130}, {Word: "table", Value: 615}},
		kv.Field{{Word: "apple", Value: 614545}, {Word: "chair", Value: 2}, {Word: "table", Value: 3}},
	)
}

func wordUnits(n int, value float32) []*kv.Unit {
	units := make([]*kv.Unit, n)
	for i := range units {
		units[i] = kv.NewUnit(fmt.Sprintf("word-%d", i), value)
	}
	return units
}

// narrowest is the reference answer for key width selection.
func narrowest(units []*kv.Unit, min format.KeyType) format.KeyType {
	started := min == format.KeyInvalid
	for _, k := range format.KeyTypes {
		if k == min {
			started = true
		}
		if !started {
			continue
		}
		seen := map[uint64]bool{}
		ok := true
		for _, u := range units {
			if seen[k.Narrow(u.Hash)] {
				ok = false
				break
			}
			seen[k.Narrow(u.Hash)] = true
		}
		if ok {
			return k
		}
	}
	return format.KeyU64
}

func denseKeys(t *testing.T, blob []byte, dim int) (format.Metadata, []uint64) {
	m, err := format.DecodeMetadata(blob[0], len(blob), dim)
	require.NoError(t, err)
	keys := make([]uint64, m.KeyCount)
	l := m.Layout()
	for i := range keys {
		keys[i] = l.Key(blob[format.HeadSize:], i)
	}
	return m, keys
}

func TestDenseLayout(t *testing.T) {
	units := sampleUnits()
	blob, err := EncodeDense(units, 2, format.KeyInvalid, format.ValueAuto)
	require.NoError(t, err)

	m, keys := denseKeys(t, blob, 2)
	assert.Equal(t, format.ValueF32, m.ValueType)
	assert.Equal(t, narrowest(units, format.KeyInvalid), m.KeyType)
	assert.Equal(t, 3, m.KeyCount)
	assert.Len(t, blob, 1+3*(m.KeySize+2*4))
	assert.IsNonDecreasing(t, keys)

	// values follow the key order
	l := m.Layout()
	values := blob[format.HeadSize+3*m.KeySize:]
	for i, key := range keys {
		var want *kv.Unit
		for _, u := range units {
			if m.KeyType.Narrow(u.Hash) == key {
				want = u
			}
		}
		require.NotNil(t, want)
		for d := 0; d < 2; d++ {
			got := l.Value(values, i*2+d)
			assert.True(t, got.Valid)
			assert.Equal(t, want.Values[d], got.V)
		}
	}
}

func TestDenseMinimalWidth(t *testing.T) {
	for _, n := range []int{1, 10, 300, 3000, 20000} {
		units := wordUnits(n, 1)
		for _, min := range []format.KeyType{format.KeyInvalid, format.KeyU16Shift32, format.KeyU32Shift0, format.KeyU64} {
			blob, err := EncodeDense(units, 1, min, format.ValueU8)
			require.NoError(t, err)
			m, keys := denseKeys(t, blob, 1)
			assert.Equal(t, narrowest(units, min), m.KeyType, "n=%d min=%s", n, min)
			assert.IsIncreasing(t, keys)
		}
	}
}

func TestChooseValueType(t *testing.T) {
	nan := kv.Missing()
	cases := []struct {
		values []float32
		want   format.ValueType
	}{
		{[]float32{0, 254}, format.ValueU8},
		{[]float32{255}, format.ValueU16},
		{[]float32{65534, nan}, format.ValueU16},
		{[]float32{65535}, format.ValueF32},
		{[]float32{1, 2000, 300000}, format.ValueF32},
		{[]float32{1.5}, format.ValueF32},
		{[]float32{-1}, format.ValueF32},
		{[]float32{nan}, format.ValueU8},
	}
	for _, c := range cases {
		units := make([]*kv.Unit, len(c.values))
		for i, v := range c.values {
			units[i] = kv.NewUnit(fmt.Sprint(i), v)
		}
		got, err := chooseValueType(units, format.ValueAuto)
		require.NoError(t, err)
		assert.Equal(t, c.want, got, "%v", c.values)
	}

	_, err := chooseValueType([]*kv.Unit{kv.NewUnit("a", 300)}, format.ValueU8)
	assert.True(t, errors.Is(err, errs.ErrValueOutOfRange))
}

func TestDenseSentinels(t *testing.T) {
	units := kv.BuildUnits(kv.Field{{Word: "a", Value: 7}}, kv.Field{{Word: "b", Value: 9}})
	for _, vt := range format.ValueTypes {
		blob, err := EncodeDense(units, 2, format.KeyU64, vt)
		require.NoError(t, err)
		m, _ := denseKeys(t, blob, 2)
		l := m.Layout()
		values := blob[format.HeadSize+2*m.KeySize:]
		valid := 0
		for i := 0; i < 4; i++ {
			if l.Value(values, i).Valid {
				valid++
			}
		}
		assert.Equal(t, 2, valid, vt.String())
	}
}

func TestEncodeEmpty(t *testing.T) {
	blob, err := EncodeDense(nil, 2, format.KeyInvalid, format.ValueAuto)
	require.NoError(t, err)
	assert.Empty(t, blob)

	blob, err = EncodeBTree(nil, 2, 4, format.KeyInvalid, format.ValueAuto)
	require.NoError(t, err)
	assert.Empty(t, blob)

	blob, err = EncodeSparse(nil, 2, format.KeyU32Shift0, format.ValueF32)
	require.NoError(t, err)
	assert.Empty(t, blob)
}

func TestEncodeErrors(t *testing.T) {
	units := sampleUnits()
	_, err := EncodeDense(units, 3, format.KeyInvalid, format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))

	_, err = EncodeDense(units, 2, format.KeyType(9), format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrUnsupportedType))

	_, err = EncodeDense(units, 2, format.KeyInvalid, format.ValueU16)
	assert.True(t, errors.Is(err, errs.ErrValueOutOfRange))

	_, err = EncodeBTree(units, 2, 0, format.KeyInvalid, format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrInvalidBlockSize))

	_, err = EncodeSparse(units, 2, format.KeyU32Shift0, format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrUnsupportedType))

	withNil := append(sampleUnits(), nil)
	_, err = EncodeDense(withNil, 2, format.KeyInvalid, format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))
	_, err = EncodeBTree(withNil, 2, 4, format.KeyInvalid, format.ValueAuto)
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))
	_, err = EncodeSparse(withNil, 2, format.KeyU64, format.ValueF32)
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))
}

func TestRepeatedWordCollides(t *testing.T) {
	units := []*kv.Unit{kv.NewUnit("a", 1), kv.NewUnit("b", 3), kv.NewUnit("a", 2)}
	for _, min := range []format.KeyType{format.KeyInvalid, format.KeyU64} {
		blob, err := EncodeDense(units, 1, min, format.ValueAuto)
		assert.True(t, errors.Is(err, errs.ErrKeyCollision), "dense from %s", min)
		assert.Nil(t, blob)

		blob, err = EncodeBTree(units, 1, 2, min, format.ValueAuto)
		assert.True(t, errors.Is(err, errs.ErrKeyCollision), "btree from %s", min)
		assert.Nil(t, blob)
	}
}

func TestBTreeLayout(t *testing.T) {
	const blockSize = 4
	for _, n := range []int{1, 3, 4, 5, 7, 8, 9, 15, 16, 17, 100} {
		units := wordUnits(n, 3)
		blob, err := EncodeBTree(units, 1, blockSize, format.KeyU64, format.ValueU8)
		require.NoError(t, err)

		m, head, err := format.DecodeBTreeMetadata(blob, 1)
		require.NoError(t, err)
		assert.Equal(t, uint32(n), head.KeyNum)
		assert.Equal(t, uint16(blockSize), head.BlockSize)

		// reading the slots back in walk order yields the sorted keys
		l := m.Layout()
		keys := blob[format.BTreeHeadSize:]
		var inOrder []uint64
		format.NewBTreeShape(n, blockSize).Walk(func(rank, slot int) {
			inOrder = append(inOrder, l.Key(keys, slot))
		})
		assert.IsIncreasing(t, inOrder, "n=%d", n)

		dense, err := EncodeDense(units, 1, format.KeyU64, format.ValueU8)
		require.NoError(t, err)
		_, sorted := denseKeys(t, dense, 1)
		assert.Equal(t, sorted, inOrder)
	}
}

func TestSparseLayout(t *testing.T) {
	const dim = 100
	a := make([]float32, dim)
	b := make([]float32, dim)
	for i := range a {
		a[i], b[i] = kv.Missing(), 0
	}
	a[3], a[64], a[99] = 1, 2, 3
	b[0] = 7
	units := []*kv.Unit{kv.NewUnit("a", a...), kv.NewUnit("b", b...)}

	blob, err := EncodeSparse(units, dim, format.KeyU32Shift0, format.ValueU16)
	require.NoError(t, err)
	assert.Len(t, blob, format.SparseSize(2, dim, 4, format.KeyU32Shift0, format.ValueU16))

	m, err := format.DecodeSparseMetadata(blob, dim, format.KeyU32Shift0, format.ValueU16)
	require.NoError(t, err)
	assert.Equal(t, 2, m.KeyCount)
}

func TestSparseCollision(t *testing.T) {
	units := wordUnits(3000, 1)
	_, err := EncodeSparse(units, 1, format.KeyU16Shift0, format.ValueU8)
	assert.True(t, errors.Is(err, errs.ErrKeyCollision))
}

func TestEncoderStatistic(t *testing.T) {
	stat := NewStatistic()
	arena := utils.NewArena(1 << 16)
	enc := New(arena, stat)

	blob, err := enc.Dense(sampleUnits(), 2, format.KeyInvalid, format.ValueAuto)
	require.NoError(t, err)
	_, err = enc.Dense(sampleUnits(), 5, format.KeyInvalid, format.ValueAuto)
	require.Error(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(stat.Blobs.WithLabelValues("dense")))
	assert.Equal(t, float64(len(blob)), testutil.ToFloat64(stat.Bytes.WithLabelValues("dense")))
	assert.Equal(t, float64(1), testutil.ToFloat64(stat.ValueTypes.WithLabelValues("f32")))
	assert.Equal(t, float64(1), testutil.ToFloat64(stat.Failures.WithLabelValues("dense")))
	assert.Equal(t, int64(len(blob)), arena.Size())
}

func TestF32NaNIsCanonical(t *testing.T) {
	blob, err := EncodeDense([]*kv.Unit{kv.NewUnit("x", float32(math.NaN()))}, 1, format.KeyU64, format.ValueF32)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0xC0, 0x7F}, blob[len(blob)-4:])
}
