package file

import (
	"os"
)

// Options describes a table file to map.
type Options struct {
	FID      uint64
	FileName string
	Flag     int
	// MaxSz is the mapped size. A file opened for writing is grown to it.
	MaxSz int
}

// Writable reports whether the flag opens a file for writing.
func (opt *Options) Writable() bool {
	return opt.Flag&(os.O_WRONLY|os.O_RDWR) != 0
}
