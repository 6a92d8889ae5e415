package sstable

import (
	"encoding/binary"
	"strings"
	"sync"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/pkg/errors"

	"lookupkv/utils/errs"
)

// Compression is the algorithm of a data block payload. It is stored in
// every block, so one table may mix algorithms.
type Compression uint8

const (
	CompressionNone Compression = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionSnappy:
		return "snappy"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	}
	return "unknown"
}

func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "snappy":
		return CompressionSnappy, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return CompressionNone, errors.Wrapf(errs.ErrInvalidOption, "compression %q", s)
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// compress returns the payload for data and the algorithm that produced it.
// Blocks that do not shrink are stored as they are.
func compress(c Compression, data []byte) ([]byte, Compression) {
	var out []byte
	switch c {
	case CompressionSnappy:
		out = snappy.Encode(nil, data)
	case CompressionZstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	case CompressionLZ4:
		// lz4 blocks do not record their decoded size
		buf := make([]byte, binary.MaxVarintLen64+lz4.CompressBlockBound(len(data)))
		n := binary.PutUvarint(buf, uint64(len(data)))
		m, err := lz4.CompressBlock(data, buf[n:], nil)
		if err == nil && m > 0 {
			out = buf[:n+m]
		}
	}
	if out == nil || len(out) >= len(data) {
		return data, CompressionNone
	}
	return out, c
}

func decompress(c Compression, payload []byte) ([]byte, error) {
	switch c {
	case CompressionNone:
		return payload, nil
	case CompressionSnappy:
		out, err := snappy.Decode(nil, payload)
		return out, errors.Wrap(err, "snappy")
	case CompressionZstd:
		dec := getZstdDecoder()
		out, err := dec.DecodeAll(payload, nil)
		zstdDecoderPool.Put(dec)
		return out, errors.Wrap(err, "zstd")
	case CompressionLZ4:
		size, n := binary.Uvarint(payload)
		if n <= 0 || size > uint64(len(payload))*255 {
			return nil, errors.Wrap(errs.ErrCorrupted, "lz4 block size")
		}
		out := make([]byte, size)
		m, err := lz4.UncompressBlock(payload[n:], out)
		if err != nil {
			return nil, errors.Wrap(err, "lz4")
		}
		if m != len(out) {
			return nil, errors.Wrapf(errs.ErrCorrupted, "lz4 block decoded to %d bytes, want %d", m, len(out))
		}
		return out, nil
	}
	return nil, errors.Wrapf(errs.ErrCorrupted, "compression %d", c)
}
