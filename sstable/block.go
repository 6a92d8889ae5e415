package sstable

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/pkg/errors"

	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

const (
	docIDSize = 8
	// blockTrailerSize is the compression byte, the checksum and its length.
	blockTrailerSize = 1 + 8 + 4
)

// Entry is one record of a table.
type Entry struct {
	DocID uint64
	Blob  []byte
}

// Block is a decoded data block.
//
//	+-------------------------------------------------------------------+
//	| entries | entryOffsets u32... | count u32 | comp | checksum | len  |
//	+-------------------------------------------------------------------+
//	entry: | docID u64 | blobLen uvarint | blob |
//
// Everything before comp is the payload, which may be compressed. The
// checksum covers the payload and the compression byte.
type Block struct {
	Offset       int
	Data         []byte
	EntryOffsets []uint32
}

// blockBuilder accumulates the entries of one block.
type blockBuilder struct {
	data         []byte
	entryOffsets []uint32
	baseDoc      uint64
}

func (b *blockBuilder) empty() bool {
	return len(b.entryOffsets) == 0
}

// estimate is the unencoded size of the block with one more entry.
func (b *blockBuilder) estimate(blob []byte) int {
	return len(b.data) + docIDSize + binary.MaxVarintLen32 + len(blob) +
		(len(b.entryOffsets)+2)*4 + blockTrailerSize
}

func (b *blockBuilder) add(docID uint64, blob []byte) {
	if b.empty() {
		b.baseDoc = docID
	}
	b.entryOffsets = append(b.entryOffsets, uint32(len(b.data)))
	var hdr [docIDSize + binary.MaxVarintLen64]byte
	binary.LittleEndian.PutUint64(hdr[:], docID)
	n := binary.PutUvarint(hdr[docIDSize:], uint64(len(blob)))
	b.data = append(b.data, hdr[:docIDSize+n]...)
	b.data = append(b.data, blob...)
}

// finish seals the block and returns its physical bytes.
func (b *blockBuilder) finish(c Compression, ct codec.ChecksumType) []byte {
	for _, off := range b.entryOffsets {
		b.data = append(b.data, codec.U32ToBytes(off)...)
	}
	b.data = append(b.data, codec.U32ToBytes(uint32(len(b.entryOffsets)))...)

	payload, used := compress(c, b.data)
	out := make([]byte, 0, len(payload)+blockTrailerSize)
	out = append(out, payload...)
	out = append(out, byte(used))
	out = append(out, codec.U64ToBytes(codec.CalculateChecksum(out, ct))...)
	out = append(out, codec.U32ToBytes(8)...)
	return out
}

func (b *blockBuilder) reset() {
	b.data = b.data[:0]
	b.entryOffsets = b.entryOffsets[:0]
	b.baseDoc = 0
}

// decodeBlock verifies and decompresses the physical block at offset.
func decodeBlock(offset int, raw []byte, ct codec.ChecksumType) (*Block, error) {
	if len(raw) < blockTrailerSize {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d has %d bytes", offset, len(raw))
	}
	pos := len(raw) - 4
	checksumLen := int(codec.BytesToU32(raw[pos:]))
	if checksumLen != 8 || pos < checksumLen+1 {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d has checksum length %d", offset, checksumLen)
	}
	pos -= checksumLen
	if err := codec.VerifyChecksum(raw[:pos], raw[pos:pos+checksumLen], ct); err != nil {
		return nil, errors.Wrapf(err, "block at %d", offset)
	}
	pos--
	data, err := decompress(Compression(raw[pos]), raw[:pos])
	if err != nil {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d: %v", offset, err)
	}

	if len(data) < 4 {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d has no entry count", offset)
	}
	pos = len(data) - 4
	count := int(codec.BytesToU32(data[pos:]))
	if count*4 > pos {
		return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d claims %d entries", offset, count)
	}
	pos -= count * 4
	b := &Block{
		Offset:       offset,
		Data:         data[:pos],
		EntryOffsets: make([]uint32, count),
	}
	prev := -1
	for i := range b.EntryOffsets {
		off := codec.BytesToU32(data[pos+i*4:])
		if int(off) <= prev || int(off)+docIDSize > len(b.Data) {
			return nil, errors.Wrapf(errs.ErrCorrupted, "block at %d: entry %d at %d", offset, i, off)
		}
		b.EntryOffsets[i] = off
		prev = int(off)
	}
	return b, nil
}

func (b *Block) end(i int) int {
	if i+1 < len(b.EntryOffsets) {
		return int(b.EntryOffsets[i+1])
	}
	return len(b.Data)
}

func (b *Block) docID(i int) uint64 {
	return codec.BytesToU64(b.Data[b.EntryOffsets[i]:])
}

func (b *Block) entry(i int) (Entry, error) {
	r := codec.NewReader(b.Data[b.EntryOffsets[i]:b.end(i)])
	e := Entry{DocID: r.U64()}
	n := r.Uvarint()
	if n > uint64(r.Remaining()) {
		return Entry{}, errors.Wrapf(errs.ErrCorrupted, "block at %d: entry %d blob of %d bytes", b.Offset, i, n)
	}
	e.Blob = r.Bytes(int(n))
	if err := r.Err(); err != nil {
		return Entry{}, errors.Wrapf(err, "block at %d: entry %d", b.Offset, i)
	}
	return e, nil
}

// search returns the index of the first entry with a doc id >= docID.
func (b *Block) search(docID uint64) int {
	return sort.Search(len(b.EntryOffsets), func(i int) bool {
		return b.docID(i) >= docID
	})
}

type BlockIterator struct {
	block *Block
	idx   int
	entry Entry
	err   error
}

func (iter *BlockIterator) setBlock(b *Block) {
	iter.block = b
	iter.err = nil
	iter.idx = -1
	iter.entry = Entry{}
}

func (iter *BlockIterator) setIdx(idx int) {
	iter.idx = idx
	if iter.block == nil || idx < 0 || idx >= len(iter.block.EntryOffsets) {
		iter.err = io.EOF
		return
	}
	iter.entry, iter.err = iter.block.entry(idx)
}

func (iter *BlockIterator) seekToFirst() {
	iter.setIdx(0)
}

func (iter *BlockIterator) Seek(docID uint64) {
	iter.err = nil
	iter.setIdx(iter.block.search(docID))
}

func (iter *BlockIterator) Next() {
	iter.setIdx(iter.idx + 1)
}

func (iter *BlockIterator) Valid() bool {
	return iter.err == nil
}

func (iter *BlockIterator) Item() Entry {
	return iter.entry
}

// Error returns the decode error that stopped the iterator, if any.
func (iter *BlockIterator) Error() error {
	if iter.err == io.EOF {
		return nil
	}
	return iter.err
}
