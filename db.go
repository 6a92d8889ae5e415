package lookupkv

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"lookupkv/format"
	"lookupkv/matcher"
	"lookupkv/sstable"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// DB serves matches over one feature table or a directory of them. When a
// doc id is in several tables the one with the highest fid is used.
type DB struct {
	opt    *utils.Options
	codec  *Codec
	stats  *Stats
	tables []*sstable.Table // newest first
}

// Open opens path, which is either a single table file or a directory of
// tables. stats may be nil.
func Open(path string, opt *utils.Options, stats *Stats) (*DB, error) {
	if stats == nil {
		stats = &Stats{}
	}
	codec, err := NewCodec(opt, nil)
	if err != nil {
		return nil, err
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "while opening %s", path)
	}
	var paths []string
	if fi.IsDir() {
		fids, err := tableFIDs(path)
		if err != nil {
			return nil, err
		}
		for _, fid := range fids {
			paths = append(paths, utils.FileNameTable(path, fid))
		}
	} else {
		paths = []string{path}
	}

	db := &DB{opt: opt, codec: codec, stats: stats}
	for i := len(paths) - 1; i >= 0; i-- {
		t, err := sstable.OpenTable(paths[i], opt, stats.Table)
		if err != nil {
			return nil, multierr.Append(err, db.Close())
		}
		db.tables = append(db.tables, t)
	}
	utils.Logger().Info("opened feature db",
		zap.String("path", path), zap.Int("tables", len(db.tables)))
	return db, nil
}

// tableFIDs lists the fids of the tables in dir in ascending order.
func tableFIDs(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "while reading %s", dir)
	}
	var fids []uint64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if fid := utils.FID(e.Name()); fid != 0 {
			fids = append(fids, fid)
		}
	}
	sort.Slice(fids, func(i, j int) bool { return fids[i] < fids[j] })
	return fids, nil
}

func (db *DB) Codec() *Codec { return db.codec }

func (db *DB) Tables() []*sstable.Table { return db.tables }

// Get returns the blob of docID.
func (db *DB) Get(docID uint64) ([]byte, error) {
	for _, t := range db.tables {
		if t.Contains(docID) {
			return t.Get(docID)
		}
	}
	return nil, errors.Wrapf(errs.ErrKeyNotFound, "doc %d", docID)
}

// Match folds the values of words in the blob of docID. A missing doc
// matches nothing.
func (db *DB) Match(docID uint64, words []string) ([]float64, bool, error) {
	blob, err := db.Get(docID)
	if errors.Is(err, errs.ErrKeyNotFound) {
		return make([]float64, db.codec.Dim()), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return db.codec.Match(blob, words)
}

// Lookup returns the stored values of one word in docID.
func (db *DB) Lookup(docID uint64, word string) ([]format.Value, bool, error) {
	blob, err := db.Get(docID)
	if err != nil {
		return nil, false, err
	}
	t, err := db.codec.Open(blob)
	if err != nil {
		return nil, false, err
	}
	vals, ok := matcher.Lookup(t, word)
	return vals, ok, nil
}

// NewIterator walks every doc of the db once, in doc id order.
func (db *DB) NewIterator() *sstable.MergeIterator {
	iters := make([]*sstable.TableIterator, 0, len(db.tables))
	for _, t := range db.tables {
		iters = append(iters, t.NewIterator())
	}
	return sstable.NewMergeIterator(iters)
}

func (db *DB) Close() error {
	var err error
	for _, t := range db.tables {
		err = multierr.Append(err, t.Close())
	}
	db.tables = nil
	return err
}
