package cache

import "sync"

// LRU evicts the least recently used block.
type LRU struct {
	sync.Mutex
	m        map[uint64]*entry
	list     *entryList
	capacity int
}

func NewLRU(capacity int) *LRU {
	return &LRU{
		m:        make(map[uint64]*entry, capacity),
		list:     newEntryList(),
		capacity: capacity,
	}
}

func (lru *LRU) Get(key uint64) (interface{}, bool) {
	lru.Lock()
	defer lru.Unlock()
	e, ok := lru.m[key]
	if !ok {
		return nil, false
	}
	lru.list.moveToFront(e)
	return e.value, true
}

func (lru *LRU) Put(key uint64, value interface{}) {
	lru.Lock()
	defer lru.Unlock()
	if e, ok := lru.m[key]; ok {
		e.value = value
		lru.list.moveToFront(e)
		return
	}
	if len(lru.m) >= lru.capacity {
		delete(lru.m, lru.list.popBack().key)
	}
	e := &entry{key: key, value: value}
	lru.list.pushFront(e)
	lru.m[key] = e
}

func (lru *LRU) Len() int {
	lru.Lock()
	defer lru.Unlock()
	return len(lru.m)
}
