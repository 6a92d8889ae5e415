package sstable

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Statistic counts block reads of the tables sharing it. A nil Statistic
// records nothing.
type Statistic struct {
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	BlocksRead     prometheus.Counter
	BytesRead      prometheus.Counter
	CorruptBlocks  prometheus.Counter
	TablesOpened   prometheus.Counter
	EntriesWritten prometheus.Counter
}

func NewStatistic() *Statistic {
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "table",
			Name:      name,
			Help:      help,
		})
	}
	return &Statistic{
		CacheHits:      counter("block_cache_hits_total", "Data blocks served from the block cache."),
		CacheMisses:    counter("block_cache_misses_total", "Data blocks not found in the block cache."),
		BlocksRead:     counter("blocks_read_total", "Data blocks read and decoded from table files."),
		BytesRead:      counter("block_bytes_read_total", "Physical bytes of the data blocks read."),
		CorruptBlocks:  counter("corrupt_blocks_total", "Data blocks that failed their checksum or decoding."),
		TablesOpened:   counter("opened_total", "Tables opened."),
		EntriesWritten: counter("entries_written_total", "Entries flushed by table builders."),
	}
}

func (s *Statistic) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		s.CacheHits, s.CacheMisses, s.BlocksRead, s.BytesRead,
		s.CorruptBlocks, s.TablesOpened, s.EntriesWritten,
	}
}

func (s *Statistic) Register(r prometheus.Registerer) error {
	for _, c := range s.Collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statistic) cacheHit() {
	if s != nil {
		s.CacheHits.Inc()
	}
}

func (s *Statistic) cacheMiss() {
	if s != nil {
		s.CacheMisses.Inc()
	}
}

func (s *Statistic) corrupt() {
	if s != nil {
		s.CorruptBlocks.Inc()
	}
}

func (s *Statistic) opened() {
	if s != nil {
		s.TablesOpened.Inc()
	}
}

func (s *Statistic) written(n int) {
	if s != nil {
		s.EntriesWritten.Add(float64(n))
	}
}

func (s *Statistic) blockRead(size int) {
	if s != nil {
		s.BlocksRead.Inc()
		s.BytesRead.Add(float64(size))
	}
}
