package cache

import "sync"

// WinTinyLFU puts new entries in a small LRU window. Entries leaving the
// window compete with the segmented LRU victim by estimated frequency.
type WinTinyLFU struct {
	sync.Mutex
	m      map[uint64]*entry
	window *entryList
	winCap int
	slru   *segmentedLRU
	freq   frequency
}

func NewWinTinyLFU(capacity int) *WinTinyLFU {
	winCap := capacity / 100
	if winCap < 1 {
		winCap = 1
	}
	return &WinTinyLFU{
		m:      make(map[uint64]*entry, capacity),
		window: newEntryList(),
		winCap: winCap,
		slru:   newSLRU(capacity - winCap),
		freq:   newFrequency(capacity),
	}
}

func (w *WinTinyLFU) touch(e *entry) {
	if e.seg == segWindow {
		w.window.moveToFront(e)
		return
	}
	w.slru.access(e)
}

func (w *WinTinyLFU) Get(key uint64) (interface{}, bool) {
	w.Lock()
	defer w.Unlock()
	w.freq.record(key)
	e, ok := w.m[key]
	if !ok {
		return nil, false
	}
	w.touch(e)
	return e.value, true
}

func (w *WinTinyLFU) Put(key uint64, value interface{}) {
	w.Lock()
	defer w.Unlock()
	if e, ok := w.m[key]; ok {
		e.value = value
		w.touch(e)
		return
	}
	e := &entry{key: key, value: value, seg: segWindow}
	w.m[key] = e
	w.window.pushFront(e)
	if w.window.len() <= w.winCap {
		return
	}

	candidate := w.window.popBack()
	if w.slru.capacity() == 0 {
		delete(w.m, candidate.key)
		return
	}
	victim := w.slru.victim()
	switch {
	case victim == nil:
		w.slru.add(candidate)
	case w.freq.estimate(candidate.key) > w.freq.estimate(victim.key):
		w.slru.remove(victim)
		delete(w.m, victim.key)
		w.slru.add(candidate)
	default:
		delete(w.m, candidate.key)
	}
}

func (w *WinTinyLFU) Len() int {
	w.Lock()
	defer w.Unlock()
	return len(w.m)
}
