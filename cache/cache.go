package cache

import (
	"strings"

	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

const (
	PolicyLRU        = "lru"
	PolicyTinyLFU    = "tinylfu"
	PolicyWinTinyLFU = "wtinylfu"
)

// New returns a goroutine-safe replacer for policy. A capacity of zero
// disables caching.
func New(policy string, capacity int) (Replacer, error) {
	if capacity < 0 {
		return nil, errors.Wrapf(errs.ErrInvalidOption, "cache capacity %d", capacity)
	}
	policy = strings.ToLower(policy)
	switch policy {
	case PolicyLRU, PolicyTinyLFU, PolicyWinTinyLFU, "":
	default:
		return nil, errors.Wrapf(errs.ErrInvalidOption, "cache policy %q", policy)
	}
	if capacity == 0 {
		return nop{}, nil
	}
	switch policy {
	case PolicyLRU:
		return NewLRU(capacity), nil
	case PolicyWinTinyLFU:
		return NewWinTinyLFU(capacity), nil
	}
	return NewTinyLFU(capacity), nil
}

type nop struct{}

func (nop) Get(uint64) (interface{}, bool) { return nil, false }
func (nop) Put(uint64, interface{})        {}
func (nop) Len() int                       { return 0 }
