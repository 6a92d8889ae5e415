package lookupkv

import (
	"github.com/prometheus/client_golang/prometheus"

	"lookupkv/encoder"
	"lookupkv/sstable"
)

// Stats groups the metrics of encoding and table reads.
type Stats struct {
	Encoder *encoder.Statistic
	Table   *sstable.Statistic
}

func NewStats() *Stats {
	return &Stats{
		Encoder: encoder.NewStatistic(),
		Table:   sstable.NewStatistic(),
	}
}

func (s *Stats) Register(r prometheus.Registerer) error {
	if err := s.Encoder.Register(r); err != nil {
		return err
	}
	return s.Table.Register(r)
}
