package sstable

import (
	"os"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"lookupkv/file"
	"lookupkv/utils"
	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// TableBuilder buffers entries in doc id order and writes them as one table
// file on Flush.
type TableBuilder struct {
	opt         *utils.Options
	compression Compression
	checksum    codec.ChecksumType
	stat        *Statistic

	curBlock  blockBuilder
	blockList [][]byte
	index     *IndexBlock
	dataSize  int
	lastDoc   uint64
	keyCount  uint64
}

type buildData struct {
	blockList [][]byte
	index     []byte
	checksum  []byte
	size      int
}

// NewTableBuilder validates the table options of opt. stat may be nil.
func NewTableBuilder(opt *utils.Options, stat *Statistic) (*TableBuilder, error) {
	c, err := ParseCompression(opt.Compression)
	if err != nil {
		return nil, err
	}
	ct, err := codec.ParseChecksumType(opt.Checksum)
	if err != nil {
		return nil, err
	}
	if opt.BlockSize <= 0 {
		return nil, errors.Wrapf(errs.ErrInvalidOption, "block_size %d", opt.BlockSize)
	}
	return &TableBuilder{
		opt:         opt,
		compression: c,
		checksum:    ct,
		stat:        stat,
		index: &IndexBlock{
			Docs:     roaring64.New(),
			Checksum: ct,
			Version:  utils.MagicVersion,
		},
	}, nil
}

// Add appends a blob. Doc ids must be strictly increasing.
func (tb *TableBuilder) Add(docID uint64, blob []byte) error {
	if tb.keyCount > 0 && docID <= tb.lastDoc {
		return errors.Wrapf(errs.ErrUnsortedDocID, "doc %d after %d", docID, tb.lastDoc)
	}
	if !tb.curBlock.empty() && tb.curBlock.estimate(blob) > int(tb.opt.BlockSize) {
		tb.finishBlock()
	}
	tb.curBlock.add(docID, blob)
	tb.index.Docs.Add(docID)
	tb.lastDoc = docID
	tb.keyCount++
	return nil
}

func (tb *TableBuilder) KeyCount() uint64 {
	return tb.keyCount
}

// finishBlock seals the current block and records it in the index.
func (tb *TableBuilder) finishBlock() {
	if tb.curBlock.empty() {
		return
	}
	raw := tb.curBlock.finish(tb.compression, tb.checksum)
	tb.index.BlockOffsets = append(tb.index.BlockOffsets, &BlockOffset{
		BaseDoc: tb.curBlock.baseDoc,
		Offset:  uint32(tb.dataSize),
		Len:     uint32(len(raw)),
		Count:   uint32(len(tb.curBlock.entryOffsets)),
	})
	tb.blockList = append(tb.blockList, raw)
	tb.dataSize += len(raw)
	tb.curBlock.reset()
}

func (tb *TableBuilder) done() (buildData, error) {
	tb.finishBlock()
	tb.index.KeyCount = tb.keyCount
	index, err := tb.index.Marshal()
	if err != nil {
		return buildData{}, err
	}
	bd := buildData{
		blockList: tb.blockList,
		index:     index,
		checksum:  codec.U64ToBytes(codec.CalculateChecksum(index, footerChecksum)),
	}
	bd.size = tb.dataSize + len(index) + 4 + len(bd.checksum) + 4 + len(utils.MagicText)
	return bd, nil
}

// Copy writes data blocks, index, checksum and magic to dst.
func (bd *buildData) Copy(dst []byte) int {
	var written int
	for _, blk := range bd.blockList {
		written += copy(dst[written:], blk)
	}
	written += copy(dst[written:], bd.index)
	written += copy(dst[written:], codec.U32ToBytes(uint32(len(bd.index))))
	written += copy(dst[written:], bd.checksum)
	written += copy(dst[written:], codec.U32ToBytes(uint32(len(bd.checksum))))
	written += copy(dst[written:], utils.MagicText[:])
	return written
}

// Flush writes the table to tableName and opens it for reading.
func (tb *TableBuilder) Flush(tableName string) (*Table, error) {
	bd, err := tb.done()
	if err != nil {
		return nil, err
	}
	mf, err := file.OpenMmapFile(&file.Options{
		FID:      utils.FID(tableName),
		FileName: tableName,
		Flag:     os.O_CREATE | os.O_RDWR | os.O_TRUNC,
		MaxSz:    bd.size,
	})
	if err != nil {
		return nil, err
	}
	dst, err := mf.Bytes(0, bd.size)
	if err != nil {
		mf.Close()
		return nil, err
	}
	written := bd.Copy(dst)
	errs.CondPanic(written != bd.size, errors.Errorf("tableBuilder.Flush wrote %d of %d bytes", written, bd.size))
	if err := mf.Close(); err != nil {
		return nil, err
	}
	tb.stat.written(int(tb.keyCount))
	utils.Logger().Info("flushed table",
		zap.String("path", tableName),
		zap.Uint64("keys", tb.keyCount),
		zap.Int("blocks", len(bd.blockList)),
		zap.Int("size", bd.size),
		zap.Stringer("compression", tb.compression))
	return OpenTable(tableName, tb.opt, tb.stat)
}
