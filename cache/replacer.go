package cache

// Replacer is a fixed-capacity map from block offsets to decoded blocks. Each
// implementation decides which entry to drop when it is full.
type Replacer interface {
	Get(key uint64) (interface{}, bool)
	Put(key uint64, value interface{})
	Len() int
}

// segment tells which list of WinTinyLFU an entry is linked into.
type segment uint8

const (
	segWindow segment = iota
	segProbation
	segProtected
)

type entry struct {
	key        uint64
	value      interface{}
	seg        segment
	prev, next *entry
}

// entryList is a doubly linked list whose root is both the head and the tail
// sentinel.
type entryList struct {
	root entry
	n    int
}

func newEntryList() *entryList {
	l := &entryList{}
	l.root.next = &l.root
	l.root.prev = &l.root
	return l
}

func (l *entryList) len() int { return l.n }

// back is the least recently placed entry, nil when the list is empty.
func (l *entryList) back() *entry {
	if l.n == 0 {
		return nil
	}
	return l.root.prev
}

func (l *entryList) insertAfter(at, e *entry) {
	e.prev = at
	e.next = at.next
	at.next.prev = e
	at.next = e
	l.n++
}

func (l *entryList) pushFront(e *entry) {
	l.insertAfter(&l.root, e)
}

func (l *entryList) pushBack(e *entry) {
	l.insertAfter(l.root.prev, e)
}

func (l *entryList) remove(e *entry) *entry {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev, e.next = nil, nil
	l.n--
	return e
}

func (l *entryList) moveToFront(e *entry) {
	if l.root.next == e {
		return
	}
	l.remove(e)
	l.pushFront(e)
}

// popBack unlinks and returns the last entry, nil when the list is empty.
func (l *entryList) popBack() *entry {
	if e := l.back(); e != nil {
		return l.remove(e)
	}
	return nil
}
