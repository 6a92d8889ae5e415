package sstable

import (
	"sort"
)

func (iter *TableIterator) GetFID() uint64 {
	return iter.t.fid
}

// MergeIterator walks several tables in doc id order. When a doc id is in
// more than one table, the entry of the table with the highest fid wins.
type MergeIterator struct {
	list  []*TableIterator
	entry Entry
	valid bool
	err   error
}

func NewMergeIterator(iters []*TableIterator) *MergeIterator {
	sort.Slice(iters, func(i, j int) bool {
		return iters[i].GetFID() > iters[j].GetFID()
	})
	return &MergeIterator{list: iters}
}

// pick takes the smallest doc id and steps every iterator positioned on it.
func (iter *MergeIterator) pick() {
	iter.valid = false
	n := -1
	for i, it := range iter.list {
		if !it.Valid() {
			if err := it.Error(); err != nil {
				iter.err = err
				return
			}
			continue
		}
		if n < 0 || it.Item().DocID < iter.list[n].Item().DocID {
			n = i
		}
	}
	if n < 0 {
		return
	}
	iter.entry = iter.list[n].Item()
	iter.valid = true
	for _, it := range iter.list {
		if it.Valid() && it.Item().DocID == iter.entry.DocID {
			it.Next()
		}
	}
}

func (iter *MergeIterator) Rewind() {
	iter.err = nil
	for _, it := range iter.list {
		it.Rewind()
	}
	iter.pick()
}

func (iter *MergeIterator) Seek(docID uint64) {
	iter.err = nil
	for _, it := range iter.list {
		it.Seek(docID)
	}
	iter.pick()
}

func (iter *MergeIterator) Next() {
	iter.pick()
}

func (iter *MergeIterator) Valid() bool {
	return iter.valid && iter.err == nil
}

func (iter *MergeIterator) Item() Entry {
	return iter.entry
}

func (iter *MergeIterator) Error() error {
	return iter.err
}

func (iter *MergeIterator) Close() error {
	for _, it := range iter.list {
		it.Close()
	}
	return nil
}
