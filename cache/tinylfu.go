package cache

import "sync"

// TinyLFU keeps its entries ordered by estimated frequency, most frequent
// first. A new entry only replaces the last one when it has been requested
// at least as often.
type TinyLFU struct {
	sync.Mutex
	m        map[uint64]*entry
	list     *entryList
	freq     frequency
	capacity int
}

func NewTinyLFU(capacity int) *TinyLFU {
	return &TinyLFU{
		m:        make(map[uint64]*entry, capacity),
		list:     newEntryList(),
		freq:     newFrequency(capacity),
		capacity: capacity,
	}
}

// Get records the request even when it misses, so that a block read again
// and again can win admission later.
func (lfu *TinyLFU) Get(key uint64) (interface{}, bool) {
	lfu.Lock()
	defer lfu.Unlock()
	lfu.freq.record(key)
	e, ok := lfu.m[key]
	if !ok {
		return nil, false
	}
	lfu.reorder(e)
	return e.value, true
}

func (lfu *TinyLFU) Put(key uint64, value interface{}) {
	lfu.Lock()
	defer lfu.Unlock()
	if e, ok := lfu.m[key]; ok {
		e.value = value
		lfu.reorder(e)
		return
	}
	if len(lfu.m) >= lfu.capacity {
		last := lfu.list.back()
		if lfu.freq.estimate(last.key) > lfu.freq.estimate(key) {
			return
		}
		delete(lfu.m, lfu.list.remove(last).key)
	}
	e := &entry{key: key, value: value}
	lfu.list.pushBack(e)
	lfu.reorder(e)
	lfu.m[key] = e
}

func (lfu *TinyLFU) Len() int {
	lfu.Lock()
	defer lfu.Unlock()
	return len(lfu.m)
}

// reorder moves e in front of every entry that is not more frequent.
func (lfu *TinyLFU) reorder(e *entry) {
	est := lfu.freq.estimate(e.key)
	at := e.prev
	for at != &lfu.list.root && est >= lfu.freq.estimate(at.key) {
		at = at.prev
	}
	if at == e.prev {
		return
	}
	lfu.list.remove(e)
	lfu.list.insertAfter(at, e)
}
