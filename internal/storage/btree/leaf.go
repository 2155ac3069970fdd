package btree

import (
	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
)

// leaf positions a cursor over one leaf block (and, while iterating
// duplicates, whichever overflow block in its chain currently holds the
// cursor), searching for searchKey.
type leaf struct {
	tx          *tx.Transaction
	layout      *slotLayout
	searchKey   Value
	contents    *page
	currentSlot int32
	fileID      string
}

func newLeaf(t *tx.Transaction, blk blockid.BlockID, layout *slotLayout, searchKey Value) (*leaf, error) {
	contents, err := newPage(t, blk, layout)
	if err != nil {
		return nil, err
	}
	slot, err := contents.FindSlotBefore(searchKey)
	if err != nil {
		contents.Close()
		return nil, err
	}
	return &leaf{
		tx:          t,
		layout:      layout,
		searchKey:   searchKey,
		contents:    contents,
		currentSlot: slot,
		fileID:      blk.FileID,
	}, nil
}

func (l *leaf) Close() { l.contents.Close() }

// Next advances the cursor, following the overflow chain if the
// current block is exhausted and still carries searchKey. Returns false
// once no further matching record remains.
func (l *leaf) Next() (bool, error) {
	l.currentSlot++
	n, err := l.contents.NumRecords()
	if err != nil {
		return false, err
	}
	if l.currentSlot >= n {
		return l.tryOverflow()
	}
	v, err := l.contents.GetDataVal(l.currentSlot)
	if err != nil {
		return false, err
	}
	if v.Equal(l.searchKey) {
		return true, nil
	}
	return l.tryOverflow()
}

func (l *leaf) tryOverflow() (bool, error) {
	first, err := l.contents.GetDataVal(0)
	if err != nil {
		return false, err
	}
	flag, err := l.contents.GetFlag()
	if err != nil {
		return false, err
	}
	if !l.searchKey.Equal(first) || flag < 0 {
		return false, nil
	}
	nextBlk := blockid.New(l.fileID, uint64(flag))
	l.contents.Close()
	contents, err := newPage(l.tx, nextBlk, l.layout)
	if err != nil {
		return false, err
	}
	l.contents = contents
	l.currentSlot = 0
	return true, nil
}

// GetDataRID returns the RID at the cursor. Callers must call Next
// first.
func (l *leaf) GetDataRID() (RID, error) {
	if l.currentSlot < 0 {
		panic("btree: leaf cursor read before calling Next")
	}
	return l.contents.GetDataRID(l.currentSlot)
}

// Delete scans forward from the cursor for the first record whose RID
// matches rid and removes it.
func (l *leaf) Delete(rid RID) error {
	for {
		ok, err := l.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		got, err := l.GetDataRID()
		if err != nil {
			return err
		}
		if got == rid {
			return l.contents.Delete(l.currentSlot)
		}
	}
}

// entry is a (dataval, blockNum) pair propagated up from a split,
// destined for insertion into the parent directory page.
type entry struct {
	val   Value
	block uint64
}

// Insert places rid under the leaf's search key, splitting pre-emptively
// if necessary, and returns a directory entry if the split produced a
// new sibling block that the caller's parent directory must learn
// about.
func (l *leaf) Insert(rid RID) (*entry, error) {
	flag, err := l.contents.GetFlag()
	if err != nil {
		return nil, err
	}
	if flag >= 0 {
		first, err := l.contents.GetDataVal(0)
		if err != nil {
			return nil, err
		}
		if l.searchKey.Less(first) {
			// first > searchKey: insert to the left of everything here.
			newBlk, err := l.contents.Split(0, flag)
			if err != nil {
				return nil, err
			}
			l.currentSlot = 0
			if err := l.contents.SetFlag(-1); err != nil {
				return nil, err
			}
			if err := l.contents.InsertLeaf(l.currentSlot, l.searchKey, rid); err != nil {
				return nil, err
			}
			return &entry{val: first, block: newBlk.Num}, nil
		}
	}

	l.currentSlot++
	if err := l.contents.InsertLeaf(l.currentSlot, l.searchKey, rid); err != nil {
		return nil, err
	}
	full, err := l.contents.IsFull()
	if err != nil {
		return nil, err
	}
	if !full {
		return nil, nil
	}

	n, err := l.contents.NumRecords()
	if err != nil {
		return nil, err
	}
	firstKey, err := l.contents.GetDataVal(0)
	if err != nil {
		return nil, err
	}
	lastKey, err := l.contents.GetDataVal(n - 1)
	if err != nil {
		return nil, err
	}

	if firstKey.Equal(lastKey) {
		newBlk, err := l.contents.Split(1, flag)
		if err != nil {
			return nil, err
		}
		if err := l.contents.SetFlag(int32(newBlk.Num)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	splitPos := n / 2
	splitKey, err := l.contents.GetDataVal(splitPos)
	if err != nil {
		return nil, err
	}
	if splitKey.Equal(firstKey) {
		for {
			v, err := l.contents.GetDataVal(splitPos)
			if err != nil {
				return nil, err
			}
			if !v.Equal(splitKey) {
				break
			}
			splitPos++
		}
		splitKey, err = l.contents.GetDataVal(splitPos)
		if err != nil {
			return nil, err
		}
	} else {
		for {
			v, err := l.contents.GetDataVal(splitPos - 1)
			if err != nil {
				return nil, err
			}
			if !v.Equal(splitKey) {
				break
			}
			splitPos--
		}
	}
	newBlk, err := l.contents.Split(splitPos, -1)
	if err != nil {
		return nil, err
	}
	return &entry{val: splitKey, block: newBlk.Num}, nil
}
