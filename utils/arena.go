package utils

import (
	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

const kBlockSize = 4096

// Allocator hands out the output buffers of the encoders. The returned slice
// has length n; its contents are unspecified.
type Allocator interface {
	Allocate(n int) []byte
}

type heapAllocator struct{}

func (heapAllocator) Allocate(n int) []byte { return make([]byte, n) }

// HeapAllocator allocates every buffer with make.
var HeapAllocator Allocator = heapAllocator{}

// Arena is a bump allocator carving buffers out of large chunks. Buffers stay
// valid until Reset; an Arena must not be shared between goroutines.
type Arena struct {
	buf       []byte
	offset    int
	chunkSize int
	// usage is the number of bytes handed out since the last Reset.
	usage int64
}

// NewArena returns a new arena whose chunks are at least chunkSize bytes.
func NewArena(chunkSize int) *Arena {
	if chunkSize < kBlockSize {
		chunkSize = kBlockSize
	}
	return &Arena{
		buf:       make([]byte, chunkSize),
		chunkSize: chunkSize,
	}
}

func (s *Arena) Allocate(n int) []byte {
	errs.CondPanic(n < 0, errors.Errorf("arena: negative allocation %d", n))
	if s.offset+n > len(s.buf) {
		// Start a new chunk; buffers already handed out keep the old one alive.
		growBy := s.chunkSize
		if growBy < n {
			growBy = (n/kBlockSize + 1) * kBlockSize
		}
		s.buf = make([]byte, growBy)
		s.offset = 0
	}
	b := s.buf[s.offset : s.offset+n : s.offset+n]
	s.offset += n
	s.usage += int64(n)
	return b
}

// Size is the number of bytes handed out since the last Reset.
func (s *Arena) Size() int64 {
	return s.usage
}

// Reset makes the current chunk reusable. Buffers allocated before Reset
// must no longer be used.
func (s *Arena) Reset() {
	s.offset = 0
	s.usage = 0
}
