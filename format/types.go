package format

import (
	"math"
	"strings"

	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// KeyType selects which slice of the 64-bit word hash is stored as the key.
type KeyType uint8

const (
	KeyInvalid    KeyType = iota
	KeyU16Shift0          // bits 0-15
	KeyU16Shift16         // bits 16-31
	KeyU16Shift32         // bits 32-47
	KeyU16Shift48         // bits 48-63
	KeyU32Shift0          // bits 0-31
	KeyU32Shift32         // bits 32-63
	KeyU64                // the whole hash

	numKeyTypes = int(KeyU64)
)

// KeyTypes lists every key type from narrowest to widest. Width selection
// tries them in this order.
var KeyTypes = [...]KeyType{
	KeyU16Shift0, KeyU16Shift16, KeyU16Shift32, KeyU16Shift48,
	KeyU32Shift0, KeyU32Shift32, KeyU64,
}

var keyTypeInfo = [...]struct {
	name  string
	size  int
	shift uint
	mask  uint64
}{
	KeyU16Shift0:  {"u16@0", 2, 0, math.MaxUint16},
	KeyU16Shift16: {"u16@16", 2, 16, math.MaxUint16},
	KeyU16Shift32: {"u16@32", 2, 32, math.MaxUint16},
	KeyU16Shift48: {"u16@48", 2, 48, math.MaxUint16},
	KeyU32Shift0:  {"u32@0", 4, 0, math.MaxUint32},
	KeyU32Shift32: {"u32@32", 4, 32, math.MaxUint32},
	KeyU64:        {"u64", 8, 0, math.MaxUint64},
}

func (k KeyType) Valid() bool {
	return k > KeyInvalid && k <= KeyU64
}

// Size is the number of bytes a key of this type occupies.
func (k KeyType) Size() int {
	if !k.Valid() {
		return 0
	}
	return keyTypeInfo[k].size
}

// Narrow extracts the configured slice of a 64-bit hash.
func (k KeyType) Narrow(h uint64) uint64 {
	info := keyTypeInfo[k]
	return (h >> info.shift) & info.mask
}

func (k KeyType) String() string {
	if !k.Valid() {
		return "invalid"
	}
	return keyTypeInfo[k].name
}

func ParseKeyType(s string) (KeyType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range KeyTypes {
		if keyTypeInfo[k].name == s {
			return k, nil
		}
	}
	switch s {
	case "u16":
		return KeyU16Shift0, nil
	case "u32":
		return KeyU32Shift0, nil
	}
	return KeyInvalid, errors.Wrapf(errs.ErrUnsupportedType, "key type %q", s)
}

// ValueType selects how each value is stored.
type ValueType uint8

const (
	// ValueAuto lets the encoder pick the narrowest concrete type. It is never
	// written to a blob.
	ValueAuto ValueType = iota
	ValueU8
	ValueU16
	ValueF32

	numValueTypes = int(ValueF32)
)

var ValueTypes = [...]ValueType{ValueU8, ValueU16, ValueF32}

// Wire sentinels meaning "no value for this dimension".
const (
	MissingU8  uint8  = math.MaxUint8
	MissingU16 uint16 = math.MaxUint16
	MissingF32 uint32 = 0x7FC00000
)

func (v ValueType) Valid() bool {
	return v >= ValueU8 && v <= ValueF32
}

func (v ValueType) Size() int {
	switch v {
	case ValueU8:
		return 1
	case ValueU16:
		return 2
	case ValueF32:
		return 4
	}
	return 0
}

// limit is the exclusive upper bound of values storable in an integer type.
func (v ValueType) limit() float64 {
	switch v {
	case ValueU8:
		return float64(MissingU8)
	case ValueU16:
		return float64(MissingU16)
	}
	return math.Inf(1)
}

func (v ValueType) String() string {
	switch v {
	case ValueAuto:
		return "auto"
	case ValueU8:
		return "u8"
	case ValueU16:
		return "u16"
	case ValueF32:
		return "f32"
	}
	return "invalid"
}

func ParseValueType(s string) (ValueType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ValueAuto, nil
	case "u8", "uint8":
		return ValueU8, nil
	case "u16", "uint16":
		return ValueU16, nil
	case "f32", "float", "float32":
		return ValueF32, nil
	}
	return ValueAuto, errors.Wrapf(errs.ErrUnsupportedType, "value type %q", s)
}

// Value is a decoded value. Valid is false where the blob held the
// missing sentinel.
type Value struct {
	V     float32
	Valid bool
}

// Missing reports whether a value read from a record means "absent".
func Missing(v float32) bool {
	return v != v
}

// HeadInfo packs a key and value type into the blob header byte.
func HeadInfo(k KeyType, v ValueType) byte {
	return byte(v)<<4 | byte(k)
}

func ParseHeadInfo(b byte) (KeyType, ValueType, error) {
	k, v := KeyType(b&0x0F), ValueType(b>>4)
	if !k.Valid() || !v.Valid() {
		return KeyInvalid, ValueAuto, errors.Wrapf(errs.ErrCorrupted, "head info 0x%02x", b)
	}
	return k, v, nil
}
