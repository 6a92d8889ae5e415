package cache

// segmentedLRU is the main space of WinTinyLFU. Entries start in probation
// and move to protected on their next hit; protected overflow goes back to
// the front of probation.
type segmentedLRU struct {
	probation    *entryList
	protected    *entryList
	probationCap int
	protectedCap int
}

func newSLRU(capacity int) *segmentedLRU {
	protectedCap := capacity * 8 / 10
	return &segmentedLRU{
		probation:    newEntryList(),
		protected:    newEntryList(),
		probationCap: capacity - protectedCap,
		protectedCap: protectedCap,
	}
}

func (s *segmentedLRU) capacity() int { return s.probationCap + s.protectedCap }

func (s *segmentedLRU) len() int { return s.probation.len() + s.protected.len() }

func (s *segmentedLRU) add(e *entry) {
	e.seg = segProbation
	s.probation.pushFront(e)
}

// victim is the entry a newcomer has to beat, nil while there is room.
func (s *segmentedLRU) victim() *entry {
	if s.len() < s.capacity() {
		return nil
	}
	if e := s.probation.back(); e != nil {
		return e
	}
	return s.protected.back()
}

func (s *segmentedLRU) remove(e *entry) {
	if e.seg == segProtected {
		s.protected.remove(e)
		return
	}
	s.probation.remove(e)
}

func (s *segmentedLRU) access(e *entry) {
	if e.seg == segProtected {
		s.protected.moveToFront(e)
		return
	}
	s.probation.remove(e)
	e.seg = segProtected
	s.protected.pushFront(e)
	if s.protected.len() > s.protectedCap {
		demoted := s.protected.popBack()
		demoted.seg = segProbation
		s.probation.pushFront(demoted)
	}
}
