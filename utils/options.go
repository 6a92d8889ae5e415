package utils

import (
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// Options controls how records are encoded and how feature tables are laid
// out. Enum-like fields are kept as strings so they read naturally in TOML;
// they are parsed by the packages that own the types.
type Options struct {
	// codec
	Layout         string `toml:"layout"` // dense, btree or sparse
	Dim            int    `toml:"dim"`
	MinKeyType     string `toml:"min_key_type"`
	ValueType      string `toml:"value_type"`
	SparseKeyType  string `toml:"sparse_key_type"`
	BTreeBlockSize int    `toml:"btree_block_size"`
	Combiner       string `toml:"combiner"`

	// table
	WorkDir        string `toml:"work_dir"`
	BlockSize      int32  `toml:"block_size"` // the size of data block in table
	Compression    string `toml:"compression"`
	Checksum       string `toml:"checksum"`
	BlockCacheSize int    `toml:"block_cache_size"` // number of blocks kept by the reader
	CachePolicy    string `toml:"cache_policy"`     // lru, tinylfu or wtinylfu
	Parallelism    int    `toml:"parallelism"`      // encoding workers used by Build
}

func DefaultOptions() *Options {
	return &Options{
		Layout:         "dense",
		Dim:            1,
		MinKeyType:     "u16@0",
		ValueType:      "auto",
		SparseKeyType:  "u32@0",
		BTreeBlockSize: DefaultBTreeBlockSize,
		Combiner:       "sum",
		WorkDir:        ".",
		BlockSize:      DefaultBlockSize,
		Compression:    "none",
		Checksum:       "crc32c",
		BlockCacheSize: DefaultBlockCacheSize,
		CachePolicy:    "tinylfu",
		Parallelism:    4,
	}
}

// LoadOptions reads a TOML file on top of DefaultOptions.
func LoadOptions(path string) (*Options, error) {
	opt := DefaultOptions()
	if _, err := toml.DecodeFile(path, opt); err != nil {
		return nil, errors.Wrapf(err, "while decoding options file %s", path)
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return opt, nil
}

// ParseOptions is LoadOptions for an in-memory document.
func ParseOptions(data string) (*Options, error) {
	opt := DefaultOptions()
	if _, err := toml.Decode(data, opt); err != nil {
		return nil, errors.Wrap(err, "while decoding options")
	}
	if err := opt.Validate(); err != nil {
		return nil, err
	}
	return opt, nil
}

func (opt *Options) Validate() error {
	switch {
	case opt.Dim < 1:
		return errors.Wrapf(errs.ErrInvalidDim, "dim %d", opt.Dim)
	case opt.BTreeBlockSize < 1 || opt.BTreeBlockSize > 0xFFFF:
		return errors.Wrapf(errs.ErrInvalidBlockSize, "btree_block_size %d", opt.BTreeBlockSize)
	case opt.BlockSize <= 0:
		return errors.Wrapf(errs.ErrInvalidOption, "block_size %d", opt.BlockSize)
	case opt.BlockCacheSize < 0:
		return errors.Wrapf(errs.ErrInvalidOption, "block_cache_size %d", opt.BlockCacheSize)
	case opt.Parallelism < 1:
		return errors.Wrapf(errs.ErrInvalidOption, "parallelism %d", opt.Parallelism)
	}
	switch strings.ToLower(strings.TrimSpace(opt.Layout)) {
	case "", "dense", "btree", "b-tree", "sparse":
	default:
		return errors.Wrapf(errs.ErrInvalidOption, "layout %q", opt.Layout)
	}
	return nil
}
