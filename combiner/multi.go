package combiner

// Collector receives the values found for a query, one call per present
// value. The matchers never pass the missing sentinel.
type Collector interface {
	Collect(dim int, v float64)
}

// Multi keeps one Combiner per output dimension.
type Multi struct {
	slots []Combiner
}

func NewMulti(kind Kind, dim int) *Multi {
	m := &Multi{slots: make([]Combiner, dim)}
	for i := range m.slots {
		m.slots[i].kind = kind
	}
	return m
}

func (m *Multi) Collect(dim int, v float64) {
	m.slots[dim].Collect(v)
}

// Get returns the folded value of every dimension. Each dimension counts its
// own values, so Mean divides by the number of values actually present.
func (m *Multi) Get() []float64 {
	return m.AppendTo(make([]float64, 0, len(m.slots)))
}

// AppendTo appends the folded values to dst.
func (m *Multi) AppendTo(dst []float64) []float64 {
	for i := range m.slots {
		dst = append(dst, m.slots[i].Get())
	}
	return dst
}

// Count is the number of values collected for dimension dim.
func (m *Multi) Count(dim int) int {
	return m.slots[dim].count
}

func (m *Multi) Dim() int {
	return len(m.slots)
}

func (m *Multi) Reset() {
	for i := range m.slots {
		m.slots[i].Reset()
	}
}
