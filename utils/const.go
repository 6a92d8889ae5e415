package utils

// table file
var (
	MagicText    = [...]byte{'L', 'O', 'O', 'K', 'U', 'P', 'K', 'V'}
	MagicVersion = uint32(1)
)

const (
	// TableFileSuffix is the suffix of feature table files.
	TableFileSuffix = ".lkv"

	DefaultBlockSize      = 4 << 10
	DefaultBTreeBlockSize = 16
	DefaultBlockCacheSize = 256
)
