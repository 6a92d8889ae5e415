package sstable

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"

	"lookupkv/utils/codec"
	"lookupkv/utils/errs"
)

// IndexBlock lists the data blocks of a table and the doc ids it holds. It
// is written in protobuf wire format:
//
//	1: repeated BlockOffset {1: base_doc, 2: offset, 3: len, 4: count}
//	2: doc bitmap (roaring64 portable format)
//	3: key_count
//	4: checksum type of the data blocks
//	5: format version
type IndexBlock struct {
	BlockOffsets []*BlockOffset
	Docs         *roaring64.Bitmap
	KeyCount     uint64
	Checksum     codec.ChecksumType
	Version      uint32
}

type BlockOffset struct {
	BaseDoc uint64
	Offset  uint32
	Len     uint32
	Count   uint32
}

const (
	wireVarint = 0
	wireBytes  = 2
)

func tag(field, wire uint64) uint64 {
	return field<<3 | wire
}

func (bo *BlockOffset) marshal() []byte {
	b := proto.NewBuffer(nil)
	b.EncodeVarint(tag(1, wireVarint))
	b.EncodeVarint(bo.BaseDoc)
	b.EncodeVarint(tag(2, wireVarint))
	b.EncodeVarint(uint64(bo.Offset))
	b.EncodeVarint(tag(3, wireVarint))
	b.EncodeVarint(uint64(bo.Len))
	b.EncodeVarint(tag(4, wireVarint))
	b.EncodeVarint(uint64(bo.Count))
	return b.Bytes()
}

func (ib *IndexBlock) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	for _, bo := range ib.BlockOffsets {
		b.EncodeVarint(tag(1, wireBytes))
		b.EncodeRawBytes(bo.marshal())
	}
	docs, err := ib.Docs.ToBytes()
	if err != nil {
		return nil, errors.Wrap(err, "while encoding doc bitmap")
	}
	b.EncodeVarint(tag(2, wireBytes))
	b.EncodeRawBytes(docs)
	b.EncodeVarint(tag(3, wireVarint))
	b.EncodeVarint(ib.KeyCount)
	b.EncodeVarint(tag(4, wireVarint))
	b.EncodeVarint(uint64(ib.Checksum))
	b.EncodeVarint(tag(5, wireVarint))
	b.EncodeVarint(uint64(ib.Version))
	return b.Bytes(), nil
}

// fieldReader walks the fields of one protobuf message.
type fieldReader struct {
	b   *proto.Buffer
	err error
}

func (r *fieldReader) next() (field, wire uint64, ok bool) {
	if r.err != nil || len(r.b.Unread()) == 0 {
		return 0, 0, false
	}
	key, err := r.b.DecodeVarint()
	if err != nil {
		r.err = err
		return 0, 0, false
	}
	return key >> 3, key & 7, true
}

func (r *fieldReader) varint(wire uint64) uint64 {
	if wire != wireVarint {
		r.err = errors.Errorf("wire type %d, want varint", wire)
		return 0
	}
	v, err := r.b.DecodeVarint()
	if err != nil {
		r.err = err
	}
	return v
}

func (r *fieldReader) bytes(wire uint64) []byte {
	if wire != wireBytes {
		r.err = errors.Errorf("wire type %d, want bytes", wire)
		return nil
	}
	v, err := r.b.DecodeRawBytes(false)
	if err != nil {
		r.err = err
	}
	return v
}

func (r *fieldReader) skip(wire uint64) {
	switch wire {
	case wireVarint:
		r.varint(wire)
	case wireBytes:
		r.bytes(wire)
	default:
		r.err = errors.Errorf("unsupported wire type %d", wire)
	}
}

func unmarshalBlockOffset(data []byte) (*BlockOffset, error) {
	bo := &BlockOffset{}
	r := &fieldReader{b: proto.NewBuffer(data)}
	for field, wire, ok := r.next(); ok; field, wire, ok = r.next() {
		switch field {
		case 1:
			bo.BaseDoc = r.varint(wire)
		case 2:
			bo.Offset = uint32(r.varint(wire))
		case 3:
			bo.Len = uint32(r.varint(wire))
		case 4:
			bo.Count = uint32(r.varint(wire))
		default:
			r.skip(wire)
		}
	}
	return bo, r.err
}

func UnmarshalIndex(data []byte) (*IndexBlock, error) {
	ib := &IndexBlock{Docs: roaring64.New()}
	r := &fieldReader{b: proto.NewBuffer(data)}
	for field, wire, ok := r.next(); ok; field, wire, ok = r.next() {
		switch field {
		case 1:
			raw := r.bytes(wire)
			if r.err != nil {
				break
			}
			bo, err := unmarshalBlockOffset(raw)
			if err != nil {
				r.err = err
				break
			}
			ib.BlockOffsets = append(ib.BlockOffsets, bo)
		case 2:
			raw := r.bytes(wire)
			if r.err != nil {
				break
			}
			if err := ib.Docs.UnmarshalBinary(raw); err != nil {
				r.err = err
			}
		case 3:
			ib.KeyCount = r.varint(wire)
		case 4:
			ib.Checksum = codec.ChecksumType(r.varint(wire))
		case 5:
			ib.Version = uint32(r.varint(wire))
		default:
			r.skip(wire)
		}
	}
	if r.err != nil {
		return nil, errors.Wrapf(errs.ErrCorrupted, "index block: %v", r.err)
	}
	return ib, nil
}
