package encoder

import (
	"math"
	"sort"

	"github.com/cockroachdb/swiss"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// Encoder turns the units of one record into a blob. It holds no per-record
// state: one Encoder may serve many goroutines as long as its allocator can.
type Encoder struct {
	alloc utils.Allocator
	stat  *Statistic
}

// New returns an encoder drawing output buffers from alloc. Either argument
// may be nil.
func New(alloc utils.Allocator, stat *Statistic) *Encoder {
	if alloc == nil {
		alloc = utils.HeapAllocator
	}
	return &Encoder{alloc: alloc, stat: stat}
}

var defaultEncoder = New(nil, nil)

// EncodeDense encodes units as a header byte, a sorted key array and the
// values of each key.
func EncodeDense(units []*kv.Unit, dim int, minKeyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	return defaultEncoder.Dense(units, dim, minKeyType, valueType)
}

// EncodeBTree encodes units in the b-tree node order.
func EncodeBTree(units []*kv.Unit, dim, blockSize int, minKeyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	return defaultEncoder.BTree(units, dim, blockSize, minKeyType, valueType)
}

// EncodeSparse encodes units as keys, offsets and per-key presence bitmaps.
func EncodeSparse(units []*kv.Unit, dim int, keyType format.KeyType, valueType format.ValueType) ([]byte, error) {
	return defaultEncoder.Sparse(units, dim, keyType, valueType)
}

// entry is a unit with its final key.
type entry struct {
	key    uint64
	values []float32
}

// prepared is the part shared by the dense and b-tree encoders.
type prepared struct {
	layout  *format.Layout
	entries []entry
}

func (e *Encoder) prepare(units []*kv.Unit, dim int, minKeyType format.KeyType, valueType format.ValueType) (prepared, error) {
	if err := kv.CheckUnits(units, dim); err != nil {
		return prepared{}, err
	}
	kt, err := chooseKeyType(units, minKeyType)
	if err != nil {
		return prepared{}, err
	}
	vt, err := chooseValueType(units, valueType)
	if err != nil {
		return prepared{}, err
	}
	layout, err := format.LayoutOf(kt, vt)
	if err != nil {
		return prepared{}, err
	}
	return prepared{layout: layout, entries: sortedEntries(units, kt)}, nil
}

func sortedEntries(units []*kv.Unit, kt format.KeyType) []entry {
	entries := make([]entry, len(units))
	for i, u := range units {
		entries[i] = entry{key: kt.Narrow(u.Hash), values: u.Values}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	return entries
}

// chooseKeyType returns the narrowest key type, starting at minKeyType,
// under which no two units collide. Units colliding on the full hash, such as
// a repeated word, are rejected.
func chooseKeyType(units []*kv.Unit, minKeyType format.KeyType) (format.KeyType, error) {
	start := 0
	if minKeyType != format.KeyInvalid {
		if !minKeyType.Valid() {
			return format.KeyInvalid, errors.Wrapf(errs.ErrUnsupportedType, "key type %d", minKeyType)
		}
		for i, k := range format.KeyTypes {
			if k == minKeyType {
				start = i
			}
		}
	}
	for _, k := range format.KeyTypes[start:] {
		if unique(units, k) {
			return k, nil
		}
	}
	return format.KeyInvalid, errors.Wrapf(errs.ErrKeyCollision, "two of %d units share a 64-bit hash", len(units))
}

func unique(units []*kv.Unit, k format.KeyType) bool {
	seen := swiss.New[uint64, struct{}](len(units))
	for _, u := range units {
		key := k.Narrow(u.Hash)
		if _, ok := seen.Get(key); ok {
			return false
		}
		seen.Put(key, struct{}{})
	}
	return true
}

// chooseValueType resolves ValueAuto from the largest magnitude present:
// u8 below 255, u16 below 65535, f32 otherwise. Integer widths are only
// chosen when every value is a non-negative whole number. An explicit type
// is checked against every value.
func chooseValueType(units []*kv.Unit, valueType format.ValueType) (format.ValueType, error) {
	if valueType != format.ValueAuto {
		if !valueType.Valid() {
			return format.ValueAuto, errors.Wrapf(errs.ErrUnsupportedType, "value type %d", valueType)
		}
		for _, u := range units {
			for _, v := range u.Values {
				if !format.Fits(v, valueType) {
					return format.ValueAuto, errors.Wrapf(errs.ErrValueOutOfRange,
						"word %q value %v as %s", u.Word, v, valueType)
				}
			}
		}
		return valueType, nil
	}

	var maxAbs float64
	integral := true
	for _, u := range units {
		for _, v := range u.Values {
			if format.Missing(v) {
				continue
			}
			f := float64(v)
			if a := math.Abs(f); a > maxAbs {
				maxAbs = a
			}
			if f < 0 || f != math.Trunc(f) {
				integral = false
			}
		}
	}
	switch {
	case integral && maxAbs < float64(format.MissingU8):
		return format.ValueU8, nil
	case integral && maxAbs < float64(format.MissingU16):
		return format.ValueU16, nil
	default:
		return format.ValueF32, nil
	}
}

// putValues writes the dim values of one entry.
func putValues(dst []byte, layout *format.Layout, values []float32) error {
	for d, v := range values {
		if err := layout.PutValue(dst[d*layout.ValueSize:], v); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) fail(layout string, err error) error {
	utils.Logger().Warn("encode failed", zap.String("layout", layout), zap.Error(err))
	e.stat.failed(layout)
	return err
}
