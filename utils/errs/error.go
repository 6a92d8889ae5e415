package errs

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDim is returned when the dimension is not positive or a unit
	// carries a different number of values.
	ErrInvalidDim = errors.New("invalid dimension")
	// ErrUnsupportedType is returned for a key/value type pair that has no layout.
	ErrUnsupportedType = errors.New("unsupported key or value type")
	// ErrCorrupted marks a blob or table whose bytes cannot be interpreted.
	ErrCorrupted        = errors.New("corrupted data")
	ErrKeyCollision     = errors.New("hashed keys collide")
	ErrValueOutOfRange  = errors.New("value does not fit value type")
	ErrInvalidBlockSize = errors.New("invalid b-tree block size")
	ErrKeyNotFound      = errors.New("key not found")
	ErrUnsortedDocID    = errors.New("doc ids must be strictly increasing")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidOption    = errors.New("invalid option")
)

// Panic panics if err is not nil
func Panic(err error) {
	if err != nil {
		panic(err)
	}
}

// CondPanic panics with err when condition holds
func CondPanic(condition bool, err error) {
	if condition {
		Panic(err)
	}
}
