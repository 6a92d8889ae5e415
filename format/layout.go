package format

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// Layout holds the read and write routines for one (key type, value type)
// pair. Layouts are built once and looked up by header byte.
type Layout struct {
	Head      byte
	KeyType   KeyType
	ValueType ValueType
	KeySize   int
	ValueSize int

	// PutKey writes a narrowed key into dst[:KeySize].
	PutKey func(dst []byte, key uint64)
	// Key reads the i-th key of a packed key array.
	Key func(keys []byte, i int) uint64
	// PutValue writes v into dst[:ValueSize], or the sentinel when v is NaN.
	PutValue func(dst []byte, v float32) error
	// Value reads the i-th value of a packed value array.
	Value func(values []byte, i int) Value
}

var layouts [256]*Layout

func init() {
	for _, k := range KeyTypes {
		for _, v := range ValueTypes {
			l := &Layout{
				Head:      HeadInfo(k, v),
				KeyType:   k,
				ValueType: v,
				KeySize:   k.Size(),
				ValueSize: v.Size(),
				PutKey:    keyWriter(k),
				Key:       keyReader(k),
				PutValue:  valueWriter(v),
				Value:     valueReader(v),
			}
			layouts[l.Head] = l
		}
	}
}

// Lookup returns the layout for a header byte.
func Lookup(head byte) (*Layout, error) {
	if l := layouts[head]; l != nil {
		return l, nil
	}
	return nil, errors.Wrapf(errs.ErrUnsupportedType, "head info 0x%02x", head)
}

// LayoutOf returns the layout for a concrete key and value type.
func LayoutOf(k KeyType, v ValueType) (*Layout, error) {
	if !k.Valid() || !v.Valid() {
		return nil, errors.Wrapf(errs.ErrUnsupportedType, "key type %s, value type %s", k, v)
	}
	return Lookup(HeadInfo(k, v))
}

func keyWriter(k KeyType) func([]byte, uint64) {
	switch k.Size() {
	case 2:
		return func(dst []byte, key uint64) { binary.LittleEndian.PutUint16(dst, uint16(key)) }
	case 4:
		return func(dst []byte, key uint64) { binary.LittleEndian.PutUint32(dst, uint32(key)) }
	default:
		return func(dst []byte, key uint64) { binary.LittleEndian.PutUint64(dst, key) }
	}
}

func keyReader(k KeyType) func([]byte, int) uint64 {
	switch k.Size() {
	case 2:
		return func(keys []byte, i int) uint64 { return uint64(binary.LittleEndian.Uint16(keys[i*2:])) }
	case 4:
		return func(keys []byte, i int) uint64 { return uint64(binary.LittleEndian.Uint32(keys[i*4:])) }
	default:
		return func(keys []byte, i int) uint64 { return binary.LittleEndian.Uint64(keys[i*8:]) }
	}
}

func valueWriter(v ValueType) func([]byte, float32) error {
	switch v {
	case ValueU8:
		return func(dst []byte, x float32) error {
			if Missing(x) {
				dst[0] = MissingU8
				return nil
			}
			n, err := toInteger(x, v)
			dst[0] = uint8(n)
			return err
		}
	case ValueU16:
		return func(dst []byte, x float32) error {
			if Missing(x) {
				binary.LittleEndian.PutUint16(dst, MissingU16)
				return nil
			}
			n, err := toInteger(x, v)
			binary.LittleEndian.PutUint16(dst, uint16(n))
			return err
		}
	default:
		return func(dst []byte, x float32) error {
			bits := math.Float32bits(x)
			if Missing(x) {
				bits = MissingF32
			}
			binary.LittleEndian.PutUint32(dst, bits)
			return nil
		}
	}
}

func valueReader(v ValueType) func([]byte, int) Value {
	switch v {
	case ValueU8:
		return func(values []byte, i int) Value {
			b := values[i]
			if b == MissingU8 {
				return Value{}
			}
			return Value{V: float32(b), Valid: true}
		}
	case ValueU16:
		return func(values []byte, i int) Value {
			n := binary.LittleEndian.Uint16(values[i*2:])
			if n == MissingU16 {
				return Value{}
			}
			return Value{V: float32(n), Valid: true}
		}
	default:
		return func(values []byte, i int) Value {
			f := math.Float32frombits(binary.LittleEndian.Uint32(values[i*4:]))
			if Missing(f) {
				return Value{}
			}
			return Value{V: f, Valid: true}
		}
	}
}

// toInteger converts a value for an integer value type. Integer types hold
// only whole numbers in [0, sentinel).
func toInteger(x float32, v ValueType) (uint64, error) {
	f := float64(x)
	if f < 0 || f >= v.limit() || f != math.Trunc(f) {
		return 0, errors.Wrapf(errs.ErrValueOutOfRange, "%v as %s", x, v)
	}
	return uint64(f), nil
}

// Fits reports whether x can be stored in v without loss.
func Fits(x float32, v ValueType) bool {
	if v == ValueF32 || Missing(x) {
		return true
	}
	_, err := toInteger(x, v)
	return err == nil
}
