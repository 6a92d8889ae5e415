package sstable

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lookupkv/cache"
	"lookupkv/file"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// Table serves lookups by doc id from one table file. It is safe for
// concurrent use. Blobs returned by a table point into the mapped file or a
// cached block and stay valid until Close.
type Table struct {
	ss     *SSTable
	fid    uint64
	opt    *utils.Options
	blocks cache.Replacer
	stat   *Statistic
}

// OpenTable maps the table at path. stat may be nil.
func OpenTable(path string, opt *utils.Options, stat *Statistic) (*Table, error) {
	blocks, err := cache.New(opt.CachePolicy, opt.BlockCacheSize)
	if err != nil {
		return nil, err
	}
	fid := utils.FID(path)
	ss, err := OpenSStable(&file.Options{FID: fid, FileName: path})
	if err != nil {
		utils.Logger().Warn("cannot open table", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	stat.opened()
	index := ss.Indexs()
	utils.Logger().Info("opened table",
		zap.String("path", path),
		zap.Int("blocks", len(index.BlockOffsets)),
		zap.Uint64("keys", index.KeyCount),
		zap.Stringer("checksum", index.Checksum))
	return &Table{ss: ss, fid: fid, opt: opt, blocks: blocks, stat: stat}, nil
}

func (t *Table) Close() error {
	return t.ss.Close()
}

func (t *Table) Delete() error {
	return t.ss.Delete()
}

func (t *Table) Fid() uint64 {
	return t.fid
}

func (t *Table) Index() *IndexBlock {
	return t.ss.Indexs()
}

func (t *Table) KeyCount() uint64 {
	return t.ss.Indexs().KeyCount
}

func (t *Table) Size() int {
	return t.ss.Size()
}

// MinDoc and MaxDoc are zero for an empty table.
func (t *Table) MinDoc() uint64 { return t.ss.MinDoc() }
func (t *Table) MaxDoc() uint64 { return t.ss.MaxDoc() }

// Contains answers from the doc bitmap without reading any block.
func (t *Table) Contains(docID uint64) bool {
	return t.ss.Indexs().Docs.Contains(docID)
}

// Get returns the blob stored for docID, or errs.ErrKeyNotFound.
func (t *Table) Get(docID uint64) ([]byte, error) {
	if !t.Contains(docID) {
		return nil, errs.ErrKeyNotFound
	}
	idx := t.findBlock(docID)
	if idx < 0 {
		return nil, errs.ErrKeyNotFound
	}
	block, err := t.ReadBlock(idx)
	if err != nil {
		return nil, err
	}
	i := block.search(docID)
	if i >= len(block.EntryOffsets) || block.docID(i) != docID {
		return nil, errors.Wrapf(errs.ErrCorrupted, "doc %d is indexed but missing from block %d", docID, idx)
	}
	e, err := block.entry(i)
	if err != nil {
		return nil, err
	}
	return e.Blob, nil
}

// findBlock returns the last block whose base doc is <= docID.
func (t *Table) findBlock(docID uint64) int {
	offsets := t.ss.Indexs().BlockOffsets
	i := sort.Search(len(offsets), func(i int) bool {
		return offsets[i].BaseDoc > docID
	})
	return i - 1
}

// ReadBlock decodes block idx, going through the block cache.
func (t *Table) ReadBlock(idx int) (*Block, error) {
	bo := t.ss.Indexs().BlockOffsets[idx]
	if b, ok := t.blocks.Get(uint64(bo.Offset)); ok {
		t.stat.cacheHit()
		return b.(*Block), nil
	}
	t.stat.cacheMiss()

	t.ss.lock.RLock()
	defer t.ss.lock.RUnlock()
	raw, err := t.ss.Bytes(int(bo.Offset), int(bo.Len))
	if err != nil {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block %d at %d+%d", idx, bo.Offset, bo.Len)
	}
	block, err := decodeBlock(int(bo.Offset), raw, t.ss.Indexs().Checksum)
	if err != nil {
		t.stat.corrupt()
		utils.Logger().Warn("corrupt block",
			zap.String("table", t.ss.GetName()), zap.Int("block", idx), zap.Error(err))
		return nil, err
	}
	if len(block.EntryOffsets) != int(bo.Count) {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block %d holds %d entries, index says %d", idx, len(block.EntryOffsets), bo.Count)
	}
	t.stat.blockRead(len(raw))
	t.blocks.Put(uint64(bo.Offset), block)
	return block, nil
}

// TableIterator walks the entries of a table in doc id order.
type TableIterator struct {
	t         *Table
	blockPos  int
	blockIter *BlockIterator
	err       error
}

func (t *Table) NewIterator() *TableIterator {
	return &TableIterator{
		t:         t,
		blockIter: &BlockIterator{},
	}
}

func (iter *TableIterator) loadBlock(pos int) bool {
	iter.blockPos = pos
	if pos >= len(iter.t.ss.Indexs().BlockOffsets) {
		iter.err = io.EOF
		return false
	}
	block, err := iter.t.ReadBlock(pos)
	if err != nil {
		iter.err = err
		return false
	}
	iter.blockIter.setBlock(block)
	return true
}

func (iter *TableIterator) Rewind() {
	iter.err = nil
	if iter.loadBlock(0) {
		iter.blockIter.seekToFirst()
		iter.sync()
	}
}

// Seek moves to the first entry with a doc id >= docID.
func (iter *TableIterator) Seek(docID uint64) {
	iter.err = nil
	idx := iter.t.findBlock(docID)
	if idx < 0 {
		idx = 0
	}
	if iter.loadBlock(idx) {
		iter.blockIter.Seek(docID)
		iter.sync()
	}
}

func (iter *TableIterator) Next() {
	if iter.err != nil {
		return
	}
	iter.blockIter.Next()
	iter.sync()
}

// sync moves on to the next block when the current one is exhausted.
func (iter *TableIterator) sync() {
	for !iter.blockIter.Valid() {
		if err := iter.blockIter.Error(); err != nil {
			iter.err = err
			return
		}
		if !iter.loadBlock(iter.blockPos + 1) {
			return
		}
		iter.blockIter.seekToFirst()
	}
}

func (iter *TableIterator) Valid() bool {
	return iter.err == nil
}

func (iter *TableIterator) Item() Entry {
	return iter.blockIter.Item()
}

// Error returns the error that stopped the iteration, or nil at the end of
// the table.
func (iter *TableIterator) Error() error {
	if iter.err == io.EOF {
		return nil
	}
	return iter.err
}

func (iter *TableIterator) Close() error {
	iter.blockIter = &BlockIterator{}
	return nil
}
