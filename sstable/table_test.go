package sstable

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookupkv/utils"
	"lookupkv/utils/errs"
)

func testOptions(t *testing.T) *utils.Options {
	opt := utils.DefaultOptions()
	opt.WorkDir = t.TempDir()
	opt.BlockSize = 256
	opt.BlockCacheSize = 8
	return opt
}

func blobFor(doc uint64) []byte {
	return bytes.Repeat([]byte(fmt.Sprintf("doc-%d;", doc)), int(doc%7)+1)
}

func buildTable(t *testing.T, opt *utils.Options, docs []uint64, stat *Statistic) *Table {
	tb, err := NewTableBuilder(opt, stat)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, tb.Add(d, blobFor(d)))
	}
	table, err := tb.Flush(utils.FileNameTable(opt.WorkDir, 1))
	require.NoError(t, err)
	return table
}

func evenDocs(n int) []uint64 {
	docs := make([]uint64, n)
	for i := range docs {
		docs[i] = uint64(i * 2)
	}
	return docs
}

func TestTableRoundTrip(t *testing.T) {
	docs := evenDocs(500)
	for _, compression := range []string{"none", "snappy", "zstd", "lz4"} {
		for _, checksum := range []string{"crc32c", "xxhash64"} {
			name := compression + "/" + checksum
			opt := testOptions(t)
			opt.Compression = compression
			opt.Checksum = checksum
			table := buildTable(t, opt, docs, nil)

			assert.Equal(t, uint64(len(docs)), table.KeyCount(), name)
			assert.Greater(t, len(table.Index().BlockOffsets), 1, name)
			assert.Equal(t, uint64(0), table.MinDoc())
			assert.Equal(t, docs[len(docs)-1], table.MaxDoc())
			assert.Equal(t, uint64(1), table.Fid())

			for _, d := range docs {
				blob, err := table.Get(d)
				require.NoError(t, err, "%s doc %d", name, d)
				assert.Equal(t, blobFor(d), blob)
				assert.True(t, table.Contains(d))
			}
			_, err := table.Get(3)
			assert.True(t, errors.Is(err, errs.ErrKeyNotFound))
			assert.False(t, table.Contains(3))
			_, err = table.Get(1 << 40)
			assert.True(t, errors.Is(err, errs.ErrKeyNotFound))

			iter := table.NewIterator()
			var seen []uint64
			for iter.Rewind(); iter.Valid(); iter.Next() {
				seen = append(seen, iter.Item().DocID)
			}
			require.NoError(t, iter.Error())
			assert.Equal(t, docs, seen, name)

			iter.Seek(101)
			require.True(t, iter.Valid())
			assert.Equal(t, uint64(102), iter.Item().DocID)
			iter.Seek(docs[len(docs)-1] + 1)
			assert.False(t, iter.Valid())
			require.NoError(t, iter.Close())

			require.NoError(t, table.Close())
		}
	}
}

func TestCompressionShrinksBlocks(t *testing.T) {
	docs := evenDocs(300)
	plain := buildTable(t, testOptions(t), docs, nil)
	defer plain.Close()

	opt := testOptions(t)
	opt.Compression = "zstd"
	packed := buildTable(t, opt, docs, nil)
	defer packed.Close()
	assert.Less(t, packed.Size(), plain.Size())
}

func TestTableUnsortedDocID(t *testing.T) {
	tb, err := NewTableBuilder(testOptions(t), nil)
	require.NoError(t, err)
	require.NoError(t, tb.Add(5, []byte("a")))
	err = tb.Add(5, []byte("b"))
	assert.True(t, errors.Is(err, errs.ErrUnsortedDocID))
	err = tb.Add(4, []byte("b"))
	assert.True(t, errors.Is(err, errs.ErrUnsortedDocID))
	assert.Equal(t, uint64(1), tb.KeyCount())
}

func TestEmptyTable(t *testing.T) {
	table := buildTable(t, testOptions(t), nil, nil)
	defer table.Close()
	assert.Equal(t, uint64(0), table.KeyCount())
	_, err := table.Get(0)
	assert.True(t, errors.Is(err, errs.ErrKeyNotFound))
	iter := table.NewIterator()
	iter.Rewind()
	assert.False(t, iter.Valid())
	assert.NoError(t, iter.Error())
}

func TestLargeBlobSpansBlock(t *testing.T) {
	opt := testOptions(t)
	tb, err := NewTableBuilder(opt, nil)
	require.NoError(t, err)
	big := bytes.Repeat([]byte{7}, 4*int(opt.BlockSize))
	require.NoError(t, tb.Add(1, []byte("small")))
	require.NoError(t, tb.Add(2, big))
	require.NoError(t, tb.Add(3, []byte{}))
	table, err := tb.Flush(filepath.Join(opt.WorkDir, "big.lkv"))
	require.NoError(t, err)
	defer table.Close()

	blob, err := table.Get(2)
	require.NoError(t, err)
	assert.Equal(t, big, blob)
	blob, err = table.Get(3)
	require.NoError(t, err)
	assert.Empty(t, blob)
}

func TestBlockCacheStatistic(t *testing.T) {
	stat := NewStatistic()
	table := buildTable(t, testOptions(t), evenDocs(50), stat)
	defer table.Close()

	_, err := table.Get(0)
	require.NoError(t, err)
	_, err = table.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(stat.CacheMisses))
	assert.Equal(t, 1.0, testutil.ToFloat64(stat.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(stat.BlocksRead))
	assert.Equal(t, 50.0, testutil.ToFloat64(stat.EntriesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(stat.TablesOpened))
}

func corrupt(t *testing.T, table *Table, off int) string {
	path := table.ss.GetName()
	require.NoError(t, table.Close())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	if off < 0 {
		off += len(data)
	}
	data[off] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestTableCorruption(t *testing.T) {
	opt := testOptions(t)
	opt.BlockCacheSize = 0

	// data block
	path := corrupt(t, buildTable(t, opt, evenDocs(100), nil), 10)
	table, err := OpenTable(path, opt, nil)
	require.NoError(t, err)
	_, err = table.Get(0)
	assert.True(t, errors.Is(err, errs.ErrChecksumMismatch), "%v", err)
	iter := table.NewIterator()
	iter.Rewind()
	assert.False(t, iter.Valid())
	assert.Error(t, iter.Error())
	require.NoError(t, table.Close())

	// magic
	path = corrupt(t, buildTable(t, opt, evenDocs(100), nil), -1)
	_, err = OpenTable(path, opt, nil)
	assert.True(t, errors.Is(err, errs.ErrCorrupted), "%v", err)

	// index checksum
	path = corrupt(t, buildTable(t, opt, evenDocs(100), nil), -(8 + 4 + 8 + 4 + 1))
	_, err = OpenTable(path, opt, nil)
	assert.True(t, errors.Is(err, errs.ErrChecksumMismatch), "%v", err)

	// truncated file
	table = buildTable(t, opt, evenDocs(100), nil)
	path = table.ss.GetName()
	require.NoError(t, table.Close())
	require.NoError(t, os.Truncate(path, 5))
	_, err = OpenTable(path, opt, nil)
	assert.True(t, errors.Is(err, errs.ErrCorrupted), "%v", err)
}

func TestIndexBlockMarshal(t *testing.T) {
	tb, err := NewTableBuilder(testOptions(t), nil)
	require.NoError(t, err)
	for _, d := range evenDocs(200) {
		require.NoError(t, tb.Add(d, blobFor(d)))
	}
	bd, err := tb.done()
	require.NoError(t, err)

	index, err := UnmarshalIndex(bd.index)
	require.NoError(t, err)
	assert.Equal(t, tb.index.BlockOffsets, index.BlockOffsets)
	assert.Equal(t, uint64(200), index.KeyCount)
	assert.True(t, index.Docs.Equals(tb.index.Docs))
	assert.Equal(t, utils.MagicVersion, index.Version)

	_, err = UnmarshalIndex([]byte{0x0A, 0xFF})
	assert.True(t, errors.Is(err, errs.ErrCorrupted))
}

func TestParseCompression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionSnappy, CompressionZstd, CompressionLZ4} {
		got, err := ParseCompression(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, got)

		payload, used := compress(c, bytes.Repeat([]byte("abc"), 100))
		out, err := decompress(used, payload)
		require.NoError(t, err)
		assert.Equal(t, bytes.Repeat([]byte("abc"), 100), out, c.String())
	}
	_, err := ParseCompression("brotli")
	assert.Error(t, err)

	// incompressible input is stored as is
	payload, used := compress(CompressionSnappy, []byte{1, 2, 3})
	assert.Equal(t, CompressionNone, used)
	assert.Equal(t, []byte{1, 2, 3}, payload)
}

func TestMergeIterator(t *testing.T) {
	opt := testOptions(t)
	build := func(fid uint64, docs []uint64, tag string) *Table {
		tb, err := NewTableBuilder(opt, nil)
		require.NoError(t, err)
		for _, d := range docs {
			require.NoError(t, tb.Add(d, []byte(tag)))
		}
		table, err := tb.Flush(utils.FileNameTable(opt.WorkDir, fid))
		require.NoError(t, err)
		return table
	}
	older := build(1, []uint64{1, 3, 5, 7}, "old")
	defer older.Close()
	newer := build(2, []uint64{2, 3, 6}, "new")
	defer newer.Close()
	empty := build(3, nil, "")
	defer empty.Close()

	iter := NewMergeIterator([]*TableIterator{older.NewIterator(), empty.NewIterator(), newer.NewIterator()})
	defer iter.Close()
	var got []string
	for iter.Rewind(); iter.Valid(); iter.Next() {
		got = append(got, fmt.Sprintf("%d:%s", iter.Item().DocID, iter.Item().Blob))
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []string{"1:old", "2:new", "3:new", "5:old", "6:new", "7:old"}, got)

	iter.Seek(4)
	require.True(t, iter.Valid())
	assert.Equal(t, uint64(5), iter.Item().DocID)
}
