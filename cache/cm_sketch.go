package cache

import (
	"encoding/binary"

	"github.com/dgryski/go-metro"
)

const (
	cmDepth = 4
	// cmMinCounters keeps tiny caches from sharing every counter.
	cmMinCounters = 64
)

// Odd multipliers, one per row, so that keys sharing low hash bits land on
// different counters in each row.
var cmSeeds = [cmDepth]uint64{
	0x9E3779B97F4A7C15,
	0xC2B2AE3D27D4EB4F,
	0x165667B19E3779F9,
	0xD6E8FEB86659FD93,
}

// cmSketch is a count-min sketch of 4-bit counters. Row i of the counters
// lives in rows[i].
type cmSketch struct {
	rows [cmDepth]cmRow
	mask uint64
}

func newCmSketch(numCounters int) *cmSketch {
	if numCounters < cmMinCounters {
		numCounters = cmMinCounters
	}
	numCounters = int(next2Power(uint64(numCounters)))
	s := &cmSketch{mask: uint64(numCounters - 1)}
	for i := range s.rows {
		s.rows[i] = make(cmRow, numCounters/2)
	}
	return s
}

func (s *cmSketch) index(hashed uint64, row int) uint64 {
	return ((hashed * cmSeeds[row]) >> 32) & s.mask
}

func (s *cmSketch) increment(hashed uint64) {
	for i := range s.rows {
		s.rows[i].increment(s.index(hashed, i))
	}
}

func (s *cmSketch) estimate(hashed uint64) int {
	min := byte(0x0f)
	for i := range s.rows {
		if v := s.rows[i].get(s.index(hashed, i)); v < min {
			min = v
		}
	}
	return int(min)
}

// halve ages every counter.
func (s *cmSketch) halve() {
	for _, r := range s.rows {
		r.halve()
	}
}

func next2Power(x uint64) uint64 {
	x--
	x |= x >> 1
	x |= x >> 2
	x |= x >> 4
	x |= x >> 8
	x |= x >> 16
	x |= x >> 32
	return x + 1
}

// cmRow packs two 4-bit counters per byte.
type cmRow []byte

func (r cmRow) increment(n uint64) {
	shift := (n & 1) * 4
	if (r[n/2]>>shift)&0x0f < 0x0f {
		r[n/2] += 1 << shift
	}
}

func (r cmRow) get(n uint64) byte {
	return (r[n/2] >> ((n & 1) * 4)) & 0x0f
}

func (r cmRow) halve() {
	for i := range r {
		r[i] = (r[i] >> 1) & 0x77
	}
}

// frequency counts block requests for the admission policies. The sketch
// is halved every sampleSize requests so that old popularity fades.
type frequency struct {
	sketch     *cmSketch
	sampleSize int
	samples    int
}

func newFrequency(capacity int) frequency {
	return frequency{sketch: newCmSketch(capacity), sampleSize: capacity * 10}
}

func (f *frequency) record(key uint64) {
	f.sketch.increment(keyToHash(key))
	f.samples++
	if f.samples >= f.sampleSize {
		f.sketch.halve()
		f.samples = 0
	}
}

func (f *frequency) estimate(key uint64) int {
	return f.sketch.estimate(keyToHash(key))
}

func keyToHash(key uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], key)
	return metro.Hash64(b[:], 0)
}
