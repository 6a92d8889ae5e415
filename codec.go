package lookupkv

import (
	"github.com/pkg/errors"

	"lookupkv/combiner"
	"lookupkv/encoder"
	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/matcher"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// Codec encodes records and matches words against their blobs with the
// layout, types and combiner chosen by Options.
type Codec struct {
	layout        matcher.Layout
	dim           int
	minKeyType    format.KeyType
	sparseKeyType format.KeyType
	valueType     format.ValueType
	blockSize     int
	kind          combiner.Kind
	enc           *encoder.Encoder
}

// NewCodec parses the codec fields of opt. enc may be nil.
func NewCodec(opt *utils.Options, enc *encoder.Encoder) (*Codec, error) {
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	c := &Codec{dim: opt.Dim, blockSize: opt.BTreeBlockSize, enc: enc}
	if c.enc == nil {
		c.enc = encoder.New(nil, nil)
	}
	var err error
	if c.layout, err = matcher.ParseLayout(opt.Layout); err != nil {
		return nil, err
	}
	if c.minKeyType, err = format.ParseKeyType(opt.MinKeyType); err != nil {
		return nil, err
	}
	if c.sparseKeyType, err = format.ParseKeyType(opt.SparseKeyType); err != nil {
		return nil, err
	}
	if c.valueType, err = format.ParseValueType(opt.ValueType); err != nil {
		return nil, err
	}
	if c.kind, err = combiner.ParseKind(opt.Combiner); err != nil {
		return nil, err
	}
	if c.layout == matcher.LayoutSparse {
		if c.valueType == format.ValueAuto {
			return nil, errors.Wrap(errs.ErrUnsupportedType, "sparse layout needs a concrete value_type")
		}
		if c.sparseKeyType == format.KeyInvalid {
			return nil, errors.Wrap(errs.ErrUnsupportedType, "sparse layout needs a concrete sparse_key_type")
		}
	}
	return c, nil
}

// withEncoder returns a copy of c that encodes with enc.
func (c *Codec) withEncoder(enc *encoder.Encoder) *Codec {
	cc := *c
	cc.enc = enc
	return &cc
}

func (c *Codec) Layout() matcher.Layout { return c.layout }
func (c *Codec) Dim() int               { return c.dim }
func (c *Codec) Kind() combiner.Kind    { return c.kind }

// Encode encodes the units of one record.
func (c *Codec) Encode(units []*kv.Unit) ([]byte, error) {
	switch c.layout {
	case matcher.LayoutBTree:
		return c.enc.BTree(units, c.dim, c.blockSize, c.minKeyType, c.valueType)
	case matcher.LayoutSparse:
		return c.enc.Sparse(units, c.dim, c.sparseKeyType, c.valueType)
	}
	return c.enc.Dense(units, c.dim, c.minKeyType, c.valueType)
}

// EncodeFields merges one map per dimension into units and encodes them.
func (c *Codec) EncodeFields(fields ...kv.Field) ([]byte, error) {
	if len(fields) != c.dim {
		return nil, errors.Wrapf(errs.ErrInvalidDim, "%d fields for dim %d", len(fields), c.dim)
	}
	return c.Encode(kv.BuildUnits(fields...))
}

func (c *Codec) Open(blob []byte) (matcher.Table, error) {
	return matcher.Open(c.layout, blob, c.dim, c.sparseKeyType, c.valueType)
}

// Match folds the values of words found in blob. matched is false when none
// of the words is in the blob.
func (c *Codec) Match(blob []byte, words []string) (out []float64, matched bool, err error) {
	t, err := c.Open(blob)
	if err != nil {
		return nil, false, err
	}
	out, matched = matcher.MatchWords(t, words, c.kind)
	return out, matched, nil
}
