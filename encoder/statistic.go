package encoder

import (
	"github.com/prometheus/client_golang/prometheus"

	"lookupkv/format"
)

// Statistic counts what the encoder produced. A nil *Statistic is valid and
// records nothing.
type Statistic struct {
	Blobs      *prometheus.CounterVec
	Bytes      *prometheus.CounterVec
	KeyTypes   *prometheus.CounterVec
	ValueTypes *prometheus.CounterVec
	Failures   *prometheus.CounterVec
}

func NewStatistic() *Statistic {
	return &Statistic{
		Blobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "encoder",
			Name:      "blobs_total",
			Help:      "Number of non-empty blobs encoded.",
		}, []string{"layout"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "encoder",
			Name:      "bytes_total",
			Help:      "Number of blob bytes encoded.",
		}, []string{"layout"}),
		KeyTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "encoder",
			Name:      "key_type_total",
			Help:      "Key type chosen per blob.",
		}, []string{"key_type"}),
		ValueTypes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "encoder",
			Name:      "value_type_total",
			Help:      "Value type chosen per blob.",
		}, []string{"value_type"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lookupkv",
			Subsystem: "encoder",
			Name:      "failures_total",
			Help:      "Number of records that could not be encoded.",
		}, []string{"layout"}),
	}
}

func (s *Statistic) Collectors() []prometheus.Collector {
	return []prometheus.Collector{s.Blobs, s.Bytes, s.KeyTypes, s.ValueTypes, s.Failures}
}

// Register registers every counter with r.
func (s *Statistic) Register(r prometheus.Registerer) error {
	for _, c := range s.Collectors() {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Statistic) encoded(layout string, l *format.Layout, size int) {
	if s == nil {
		return
	}
	s.Blobs.WithLabelValues(layout).Inc()
	s.Bytes.WithLabelValues(layout).Add(float64(size))
	s.KeyTypes.WithLabelValues(l.KeyType.String()).Inc()
	s.ValueTypes.WithLabelValues(l.ValueType.String()).Inc()
}

func (s *Statistic) failed(layout string) {
	if s == nil {
		return
	}
	s.Failures.WithLabelValues(layout).Inc()
}
