package lookupkv

import (
	"context"
	"sort"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lookupkv/encoder"
	"lookupkv/kv"
	"lookupkv/sstable"
	"lookupkv/utils"
	"lookupkv/utils/errs"
)

// Record is the input of one document: one word map per dimension.
type Record struct {
	DocID  uint64
	Fields []kv.Field
}

// recordsPerWorker is how many records a worker encodes before the batch is
// written and its arena is reset.
const recordsPerWorker = 64

// Build encodes records in parallel and writes them to a new table at path
// in doc id order. stats may be nil.
func Build(ctx context.Context, path string, opt *utils.Options, records []Record, stats *Stats) error {
	if stats == nil {
		stats = &Stats{}
	}
	codec, err := NewCodec(opt, nil)
	if err != nil {
		return err
	}
	if err := checkRecords(records, opt.Dim); err != nil {
		return err
	}
	tb, err := sstable.NewTableBuilder(opt, stats.Table)
	if err != nil {
		return err
	}

	order := make([]int, len(records))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return records[order[i]].DocID < records[order[j]].DocID
	})

	workers := opt.Parallelism
	arenas := make([]*utils.Arena, workers)
	codecs := make([]*Codec, workers)
	for w := range arenas {
		arenas[w] = utils.NewArena(int(opt.BlockSize))
		codecs[w] = codec.withEncoder(encoder.New(arenas[w], stats.Encoder))
	}

	batch := workers * recordsPerWorker
	blobs := make([][]byte, batch)
	for start := 0; start < len(order); start += batch {
		end := start + batch
		if end > len(order) {
			end = len(order)
		}
		g, gctx := errgroup.WithContext(ctx)
		for w := 0; w < workers; w++ {
			w := w
			g.Go(func() error {
				for i := start + w; i < end; i += workers {
					if err := gctx.Err(); err != nil {
						return err
					}
					rec := &records[order[i]]
					blob, err := codecs[w].EncodeFields(rec.Fields...)
					if err != nil {
						return errors.Wrapf(err, "doc %d", rec.DocID)
					}
					blobs[i-start] = blob
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i := start; i < end; i++ {
			if err := tb.Add(records[order[i]].DocID, blobs[i-start]); err != nil {
				return err
			}
		}
		for _, a := range arenas {
			a.Reset()
		}
	}

	table, err := tb.Flush(path)
	if err != nil {
		return err
	}
	utils.Logger().Info("built feature table",
		zap.String("path", path),
		zap.Int("records", len(records)),
		zap.Stringer("layout", codec.Layout()),
		zap.Int("dim", codec.Dim()))
	return table.Close()
}

// BuildNext builds the next table of the directory opt.WorkDir and returns
// its path.
func BuildNext(ctx context.Context, opt *utils.Options, records []Record, stats *Stats) (string, error) {
	fids, err := tableFIDs(opt.WorkDir)
	if err != nil {
		return "", err
	}
	next := uint64(1)
	if len(fids) > 0 {
		next = fids[len(fids)-1] + 1
	}
	path := utils.FileNameTable(opt.WorkDir, next)
	if err := Build(ctx, path, opt, records, stats); err != nil {
		return "", err
	}
	return path, nil
}

func checkRecords(records []Record, dim int) error {
	for i := range records {
		if len(records[i].Fields) != dim {
			return errors.Wrapf(errs.ErrInvalidDim, "doc %d has %d fields, dim is %d",
				records[i].DocID, len(records[i].Fields), dim)
		}
	}
	return nil
}
