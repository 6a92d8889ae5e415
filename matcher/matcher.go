package matcher

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lookupkv/combiner"
	"lookupkv/format"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// Table is a read-only view over an encoded blob. Tables never copy or
// modify the blob and are safe for concurrent use.
type Table interface {
	// Len is the number of keys in the blob.
	Len() int
	Metadata() format.Metadata
	// Find looks up the key derived from a 64-bit word hash and returns its
	// index, which is only meaningful to Values.
	Find(hash uint64) (int, bool)
	// Values appends the dim values of the key at idx to dst.
	Values(idx int, dst []format.Value) []format.Value
	// Match looks up every hash and passes each present value of each found
	// key to c. It returns the number of hashes found.
	Match(hashes []uint64, c combiner.Collector) int
}

// Layout names the physical encoding of a blob.
type Layout uint8

const (
	LayoutDense Layout = iota
	LayoutBTree
	LayoutSparse
)

func (l Layout) String() string {
	switch l {
	case LayoutDense:
		return "dense"
	case LayoutBTree:
		return "btree"
	case LayoutSparse:
		return "sparse"
	}
	return "unknown"
}

func ParseLayout(s string) (Layout, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dense":
		return LayoutDense, nil
	case "btree", "b-tree":
		return LayoutBTree, nil
	case "sparse":
		return LayoutSparse, nil
	}
	return LayoutDense, errors.Wrapf(errs.ErrInvalidOption, "layout %q", s)
}

// Open validates blob and returns a table for it. The key and value types
// are only used by the sparse layout; the other layouts read theirs from the
// blob.
func Open(layout Layout, blob []byte, dim int, kt format.KeyType, vt format.ValueType) (Table, error) {
	var (
		t   Table
		err error
	)
	switch layout {
	case LayoutDense:
		t, err = NewDense(blob, dim)
	case LayoutBTree:
		t, err = NewBTree(blob, dim)
	case LayoutSparse:
		t, err = NewSparse(blob, dim, kt, vt)
	default:
		err = errors.Wrapf(errs.ErrInvalidOption, "layout %d", layout)
	}
	if err != nil {
		utils.Logger().Warn("cannot open blob",
			zap.Stringer("layout", layout), zap.Int("len", len(blob)), zap.Int("dim", dim), zap.Error(err))
		return nil, err
	}
	return t, nil
}

// MatchHashes folds the values of every found key with kind. matched is
// false when no hash was found.
func MatchHashes(t Table, hashes []uint64, kind combiner.Kind) (out []float64, matched bool) {
	c := combiner.NewMulti(kind, t.Metadata().Dim)
	n := t.Match(hashes, c)
	return c.Get(), n > 0
}

func MatchWords(t Table, words []string, kind combiner.Kind) ([]float64, bool) {
	return MatchHashes(t, format.HashWords(words), kind)
}

// Lookup returns the decoded values of one word.
func Lookup(t Table, word string) ([]format.Value, bool) {
	idx, ok := t.Find(format.Hash64String(word))
	if !ok {
		return nil, false
	}
	return t.Values(idx, make([]format.Value, 0, t.Metadata().Dim)), true
}

func checkDim(dim int) error {
	if dim < 1 {
		return errors.Wrapf(errs.ErrInvalidDim, "dim %d", dim)
	}
	return nil
}

// collectRow passes the valid values of one row of dim values to c.
func collectRow(l *format.Layout, values []byte, idx, dim int, c combiner.Collector) {
	base := idx * dim
	for d := 0; d < dim; d++ {
		if v := l.Value(values, base+d); v.Valid {
			c.Collect(d, float64(v.V))
		}
	}
}

func appendRow(l *format.Layout, values []byte, idx, dim int, dst []format.Value) []format.Value {
	base := idx * dim
	for d := 0; d < dim; d++ {
		dst = append(dst, l.Value(values, base+d))
	}
	return dst
}
