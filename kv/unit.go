package kv

import (
	"math"
	"sort"

	"github.com/cockroachdb/swiss"
	"github.com/pkg/errors"

	"lookupkv/format"
	"lookupkv/utils/errs"
)

// Unit is one word of a record with one value per dimension. A NaN value
// means the field had no entry for the word.
type Unit struct {
	Word   []byte
	Hash   uint64
	Values []float32
}

// NewUnit builds a unit and hashes its word.
func NewUnit(word string, values ...float32) *Unit {
	return &Unit{
		Word:   []byte(word),
		Hash:   format.Hash64String(word),
		Values: values,
	}
}

// Missing is the value stored for a dimension without a value.
func Missing() float32 {
	return float32(math.NaN())
}

type Pair struct {
	Word  string
	Value float32
}

// Field is the sparse word -> value mapping of one output dimension. Order
// matters: it decides the order of the units produced from it.
type Field []Pair

// FieldFromMap orders the map by word so that building is deterministic.
func FieldFromMap(m map[string]float32) Field {
	f := make(Field, 0, len(m))
	for w, v := range m {
		f = append(f, Pair{Word: w, Value: v})
	}
	sort.Slice(f, func(i, j int) bool { return f[i].Word < f[j].Word })
	return f
}

// Builder merges the fields of one record into units.
type Builder struct {
	dim   int
	index *swiss.Map[string, int]
	units []*Unit
}

func NewBuilder(dim int) *Builder {
	return &Builder{
		dim:   dim,
		index: swiss.New[string, int](16),
	}
}

// Add sets the value of word for field. A word seen for the first time gets a
// new unit with every other dimension missing.
func (b *Builder) Add(field int, word string, value float32) error {
	if field < 0 || field >= b.dim {
		return errors.Wrapf(errs.ErrInvalidDim, "field %d of %d", field, b.dim)
	}
	idx, ok := b.index.Get(word)
	if !ok {
		u := NewUnit(word, make([]float32, b.dim)...)
		for i := range u.Values {
			u.Values[i] = Missing()
		}
		idx = len(b.units)
		b.units = append(b.units, u)
		b.index.Put(word, idx)
	}
	b.units[idx].Values[field] = value
	return nil
}

func (b *Builder) AddField(field int, f Field) error {
	for _, p := range f {
		if err := b.Add(field, p.Word, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// Units returns the merged units in first-appearance order.
func (b *Builder) Units() []*Unit {
	return b.units
}

func (b *Builder) Len() int {
	return len(b.units)
}

// Reset clears the builder for the next record.
func (b *Builder) Reset() {
	b.index = swiss.New[string, int](len(b.units))
	b.units = nil
}

// BuildUnits merges fields in order; field i becomes dimension i.
func BuildUnits(fields ...Field) []*Unit {
	b := NewBuilder(len(fields))
	for i, f := range fields {
		// the builder has one dimension per field, so i is always in range
		err := b.AddField(i, f)
		errs.CondPanic(err != nil, err)
	}
	return b.Units()
}

// CheckUnits validates that every unit is set and carries dim values.
func CheckUnits(units []*Unit, dim int) error {
	if dim < 1 {
		return errors.Wrapf(errs.ErrInvalidDim, "dim %d", dim)
	}
	for i, u := range units {
		if u == nil {
			return errors.Wrapf(errs.ErrInvalidDim, "unit %d is nil", i)
		}
		if len(u.Values) != dim {
			return errors.Wrapf(errs.ErrInvalidDim, "word %q has %d values, want %d", u.Word, len(u.Values), dim)
		}
	}
	return nil
}
