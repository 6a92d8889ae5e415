package sstable

import (
	"bytes"
	"os"
	"sync"

	"github.com/pkg/errors"

	"lookupkv/file"
	"lookupkv/utils"
	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// footerChecksum protects the index block. It is fixed so that the index
// can be read before the table's own checksum type is known.
const footerChecksum = codec.ChecksumCRC32C

// SSTable is the memory-mapped file of a table.
//
//	+------------------------------------------------------------------+
//	| blocks | index | indexLen u32 | checksum u64 | checksumLen u32 | magic |
//	+------------------------------------------------------------------+
type SSTable struct {
	lock       *sync.RWMutex
	f          *file.MmapFile
	indexBlock *IndexBlock
	dataSize   int

	fid    uint64
	minDoc uint64
	maxDoc uint64
}

// OpenSStable maps a table file read-only and decodes its index.
func OpenSStable(opt *file.Options) (*SSTable, error) {
	opt.Flag = os.O_RDONLY
	omf, err := file.OpenMmapFile(opt)
	if err != nil {
		return nil, err
	}
	ss := &SSTable{f: omf, fid: opt.FID, lock: &sync.RWMutex{}}
	if err := ss.init(); err != nil {
		omf.Close()
		return nil, errors.Wrapf(err, "while opening table %s", opt.FileName)
	}
	return ss, nil
}

func (ss *SSTable) init() error {
	index, err := ss.readIndex()
	if err != nil {
		return err
	}
	if index.Version > utils.MagicVersion {
		return errors.Wrapf(errs.ErrCorrupted, "table version %d", index.Version)
	}
	if !index.Checksum.Valid() {
		return errors.Wrapf(errs.ErrCorrupted, "checksum type %d", index.Checksum)
	}
	end := 0
	var keys uint64
	for i, bo := range index.BlockOffsets {
		if int(bo.Offset) != end || bo.Len == 0 || bo.Count == 0 {
			return errors.Wrapf(errs.ErrCorrupted, "block %d at %d+%d, previous block ends at %d", i, bo.Offset, bo.Len, end)
		}
		end += int(bo.Len)
		keys += uint64(bo.Count)
	}
	if end != ss.dataSize {
		return errors.Wrapf(errs.ErrCorrupted, "blocks end at %d, index starts at %d", end, ss.dataSize)
	}
	if keys != index.KeyCount || keys != index.Docs.GetCardinality() {
		return errors.Wrapf(errs.ErrCorrupted, "index counts %d keys, blocks hold %d, bitmap %d",
			index.KeyCount, keys, index.Docs.GetCardinality())
	}
	ss.indexBlock = index
	if keys > 0 {
		ss.minDoc = index.Docs.Minimum()
		ss.maxDoc = index.Docs.Maximum()
	}
	return nil
}

func (ss *SSTable) readCheckError(off, sz int) ([]byte, error) {
	buf, err := ss.f.Bytes(off, sz)
	if err != nil {
		return nil, errors.Wrapf(errs.ErrCorrupted, "read of %d bytes at %d", sz, off)
	}
	return buf, nil
}

func (ss *SSTable) readIndex() (*IndexBlock, error) {
	readPos := ss.f.Size() - len(utils.MagicText)
	magic, err := ss.readCheckError(readPos, len(utils.MagicText))
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(magic, utils.MagicText[:]) {
		return nil, errors.Wrap(errs.ErrCorrupted, "bad magic")
	}

	readPos -= 4
	buf, err := ss.readCheckError(readPos, 4)
	if err != nil {
		return nil, err
	}
	checksumLen := int(codec.BytesToU32(buf))
	readPos -= checksumLen
	checksum, err := ss.readCheckError(readPos, checksumLen)
	if err != nil {
		return nil, err
	}

	readPos -= 4
	if buf, err = ss.readCheckError(readPos, 4); err != nil {
		return nil, err
	}
	indexLen := int(codec.BytesToU32(buf))
	readPos -= indexLen
	data, err := ss.readCheckError(readPos, indexLen)
	if err != nil {
		return nil, err
	}
	if err := codec.VerifyChecksum(data, checksum, footerChecksum); err != nil {
		return nil, errors.Wrapf(err, "failed to verify checksum for table: %s", ss.f.Name())
	}
	ss.dataSize = readPos
	return UnmarshalIndex(data)
}

// Bytes returns data starting from offset off of size sz.
func (ss *SSTable) Bytes(off, sz int) ([]byte, error) {
	return ss.f.Bytes(off, sz)
}

func (ss *SSTable) Indexs() *IndexBlock {
	return ss.indexBlock
}

func (ss *SSTable) Close() error {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.f.Close()
}

func (ss *SSTable) Delete() error {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	return ss.f.Delete()
}

func (ss *SSTable) MinDoc() uint64 {
	return ss.minDoc
}

func (ss *SSTable) MaxDoc() uint64 {
	return ss.maxDoc
}

func (ss *SSTable) Size() int {
	return ss.f.Size()
}

func (ss *SSTable) GetName() string {
	return ss.f.Name()
}

func (ss *SSTable) GetFid() uint64 {
	return ss.fid
}
