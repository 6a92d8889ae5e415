package lookupkv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lookupkv/format"
	"lookupkv/kv"
	"lookupkv/matcher"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

var furniture = []string{"apple", "chair", "table"}

func testOptions(t *testing.T, layout string) *utils.Options {
	opt := utils.DefaultOptions()
	opt.WorkDir = t.TempDir()
	opt.Layout = layout
	opt.Dim = 2
	opt.BlockSize = 512
	opt.BTreeBlockSize = 2
	opt.Parallelism = 3
	if layout == "sparse" {
		opt.ValueType = "f32"
		opt.SparseKeyType = "u64"
	}
	return opt
}

func furnitureRecord(doc uint64) Record {
	return Record{
		DocID: doc,
		Fields: []kv.Field{
			{{Word: "apple", Value: 400}, {Word: "chair", Value: 130}, {Word: "table", Value: 615}},
			{{Word: "apple", Value: 614545}, {Word: "chair", Value: 2}, {Word: "table", Value: 3}},
		},
	}
}

// scaledRecord gives doc the words w0..w(n-1) with values derived from doc.
func scaledRecord(doc uint64, n int) Record {
	f0 := make(kv.Field, 0, n)
	f1 := make(kv.Field, 0, n)
	for i := 0; i < n; i++ {
		w := fmt.Sprintf("w%d", i)
		f0 = append(f0, kv.Pair{Word: w, Value: float32(doc)})
		if i%2 == 0 {
			f1 = append(f1, kv.Pair{Word: w, Value: float32(i + 1)})
		}
	}
	return Record{DocID: doc, Fields: []kv.Field{f0, f1}}
}

func TestFurnitureAllLayouts(t *testing.T) {
	for _, layout := range []string{"dense", "btree", "sparse"} {
		opt := testOptions(t, layout)
		path := utils.FileNameTable(opt.WorkDir, 1)
		require.NoError(t, Build(context.Background(), path, opt, []Record{furnitureRecord(7)}, nil), layout)

		db, err := Open(path, opt, nil)
		require.NoError(t, err, layout)

		out, ok, err := db.Match(7, furniture)
		require.NoError(t, err, layout)
		require.True(t, ok, layout)
		assert.Equal(t, []float64{1145, 614550}, out, layout)

		out, ok, err = db.Match(7, []string{"stool"})
		require.NoError(t, err, layout)
		assert.False(t, ok, layout)
		assert.Equal(t, []float64{0, 0}, out, layout)

		vals, ok, err := db.Lookup(7, "chair")
		require.NoError(t, err, layout)
		require.True(t, ok, layout)
		require.Len(t, vals, 2)
		assert.Equal(t, float32(130), vals[0].V, layout)
		assert.Equal(t, float32(2), vals[1].V, layout)

		require.NoError(t, db.Close(), layout)
	}
}

func TestBuildManyRecords(t *testing.T) {
	opt := testOptions(t, "dense")
	opt.Combiner = "max"
	var records []Record
	// unsorted on purpose
	for doc := uint64(600); doc > 0; doc-- {
		records = append(records, scaledRecord(doc*3, int(doc%13)+1))
	}
	stats := NewStats()
	path := utils.FileNameTable(opt.WorkDir, 1)
	require.NoError(t, Build(context.Background(), path, opt, records, stats))
	assert.Equal(t, float64(len(records)), testutil.ToFloat64(stats.Table.EntriesWritten))

	db, err := Open(path, opt, stats)
	require.NoError(t, err)
	defer db.Close()

	for _, doc := range []uint64{3, 36, 900, 1800} {
		out, ok, err := db.Match(doc, []string{"w0", "w1", "nope"})
		require.NoError(t, err)
		require.True(t, ok, doc)
		assert.Equal(t, []float64{float64(doc), 1}, out, doc)
	}

	_, err = db.Get(4)
	assert.True(t, errors.Is(err, errs.ErrKeyNotFound))

	out, ok, err := db.Match(4, []string{"w0"})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []float64{0, 0}, out)

	iter := db.NewIterator()
	defer iter.Close()
	n, last := 0, uint64(0)
	for iter.Rewind(); iter.Valid(); iter.Next() {
		assert.Greater(t, iter.Item().DocID, last)
		last = iter.Item().DocID
		n++
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, len(records), n)
}

func TestDirectoryNewestTableWins(t *testing.T) {
	opt := testOptions(t, "btree")
	ctx := context.Background()

	first, err := BuildNext(ctx, opt, []Record{scaledRecord(1, 4), scaledRecord(2, 4)}, nil)
	require.NoError(t, err)
	second, err := BuildNext(ctx, opt, []Record{scaledRecord(2, 1), scaledRecord(3, 2)}, nil)
	require.NoError(t, err)
	assert.Equal(t, utils.FileNameTable(opt.WorkDir, 1), first)
	assert.Equal(t, utils.FileNameTable(opt.WorkDir, 2), second)

	// unrelated files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(opt.WorkDir, "notes.txt"), []byte("x"), 0o644))

	db, err := Open(opt.WorkDir, opt, nil)
	require.NoError(t, err)
	defer db.Close()
	require.Len(t, db.Tables(), 2)
	assert.Equal(t, uint64(2), db.Tables()[0].Fid())

	// doc 2 of the second table only has w0
	_, ok, err := db.Match(2, []string{"w3"})
	require.NoError(t, err)
	assert.False(t, ok)
	out, ok, err := db.Match(1, []string{"w3"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 0}, out)

	iter := db.NewIterator()
	defer iter.Close()
	var docs []uint64
	for iter.Rewind(); iter.Valid(); iter.Next() {
		docs = append(docs, iter.Item().DocID)
	}
	require.NoError(t, iter.Error())
	assert.Equal(t, []uint64{1, 2, 3}, docs)
}

func TestBuildErrors(t *testing.T) {
	opt := testOptions(t, "dense")
	path := utils.FileNameTable(opt.WorkDir, 1)

	err := Build(context.Background(), path, opt, []Record{{DocID: 1, Fields: []kv.Field{{}}}}, nil)
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))

	err = Build(context.Background(), path, opt, []Record{furnitureRecord(1), furnitureRecord(1)}, nil)
	assert.True(t, errors.Is(err, errs.ErrUnsortedDocID))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = Build(ctx, path, opt, []Record{furnitureRecord(1)}, nil)
	assert.True(t, errors.Is(err, context.Canceled))

	sparse := testOptions(t, "sparse")
	sparse.ValueType = "auto"
	_, err = NewCodec(sparse, nil)
	assert.True(t, errors.Is(err, errs.ErrUnsupportedType))

	_, err = Open(filepath.Join(opt.WorkDir, "missing"), opt, nil)
	assert.Error(t, err)
}

func TestCodec(t *testing.T) {
	opt := testOptions(t, "dense")
	opt.ValueType = "u16"
	c, err := NewCodec(opt, nil)
	require.NoError(t, err)

	blob, err := c.EncodeFields(furnitureRecord(0).Fields...)
	assert.True(t, errors.Is(err, errs.ErrValueOutOfRange), "614545 does not fit u16")
	assert.Nil(t, blob)

	blob, err = c.EncodeFields(
		kv.Field{{Word: "a", Value: 1}},
		kv.Field{{Word: "b", Value: 2}},
	)
	require.NoError(t, err)
	table, err := c.Open(blob)
	require.NoError(t, err)
	assert.Equal(t, format.ValueU16, table.Metadata().ValueType)

	out, ok, err := c.Match(blob, []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{1, 2}, out)

	_, err = c.EncodeFields(kv.Field{})
	assert.True(t, errors.Is(err, errs.ErrInvalidDim))
}

func TestCodecLayoutSpelling(t *testing.T) {
	opt := testOptions(t, "dense")
	opt.Layout = "B-Tree"
	c, err := NewCodec(opt, nil)
	require.NoError(t, err)
	assert.Equal(t, matcher.LayoutBTree, c.Layout())

	blob, err := c.EncodeFields(furnitureRecord(0).Fields...)
	require.NoError(t, err)
	out, ok, err := c.Match(blob, furniture)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []float64{1145, 614550}, out)
}

func TestStatsRegister(t *testing.T) {
	r := prometheus.NewRegistry()
	s := NewStats()
	require.NoError(t, s.Register(r))
	assert.Error(t, s.Register(r))
}
