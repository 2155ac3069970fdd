package btree

import (
	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
)

// directory positions over one directory block and recurses into
// children to route search/insert to the right leaf.
type directory struct {
	tx       *tx.Transaction
	layout   *slotLayout
	contents *page
	fileID   string
}

func newDirectory(t *tx.Transaction, blk blockid.BlockID, layout *slotLayout) (*directory, error) {
	contents, err := newPage(t, blk, layout)
	if err != nil {
		return nil, err
	}
	return &directory{tx: t, layout: layout, contents: contents, fileID: blk.FileID}, nil
}

func (d *directory) Close() { d.contents.Close() }

// Search walks from d's current block down to the leaf level and
// returns the leaf block number that should hold key.
func (d *directory) Search(key Value) (uint64, error) {
	childBlk, err := d.findChildBlock(key)
	if err != nil {
		return 0, err
	}
	for {
		flag, err := d.contents.GetFlag()
		if err != nil {
			return 0, err
		}
		if flag <= 0 {
			break
		}
		d.contents.Close()
		contents, err := newPage(d.tx, childBlk, d.layout)
		if err != nil {
			return 0, err
		}
		d.contents = contents
		childBlk, err = d.findChildBlock(key)
		if err != nil {
			return 0, err
		}
	}
	return childBlk.Num, nil
}

func (d *directory) findChildBlock(key Value) (blockid.BlockID, error) {
	slot, err := d.contents.FindSlotBefore(key)
	if err != nil {
		return blockid.BlockID{}, err
	}
	n, err := d.contents.NumRecords()
	if err != nil {
		return blockid.BlockID{}, err
	}
	if slot+1 < n {
		v, err := d.contents.GetDataVal(slot + 1)
		if err != nil {
			return blockid.BlockID{}, err
		}
		if v.Equal(key) {
			slot++
		}
	}
	blockNum, err := d.contents.GetChildNum(slot)
	if err != nil {
		return blockid.BlockID{}, err
	}
	return blockid.New(d.fileID, uint64(blockNum)), nil
}

// MakeNewRoot splits the (full) root's records into a new block, leaves
// a single entry pointing at it behind in the root, inserts e, and bumps
// the root's level.
func (d *directory) MakeNewRoot(e entry) error {
	firstVal, err := d.contents.GetDataVal(0)
	if err != nil {
		return err
	}
	level, err := d.contents.GetFlag()
	if err != nil {
		return err
	}
	newBlk, err := d.contents.Split(0, level)
	if err != nil {
		return err
	}
	oldRoot := entry{val: firstVal, block: newBlk.Num}
	if _, err := d.insertEntry(oldRoot); err != nil {
		return err
	}
	if _, err := d.insertEntry(e); err != nil {
		return err
	}
	return d.contents.SetFlag(level + 1)
}

// Insert routes e down to the level-0 directory page that owns its key
// range and inserts it there, propagating any split upward.
func (d *directory) Insert(e entry) (*entry, error) {
	flag, err := d.contents.GetFlag()
	if err != nil {
		return nil, err
	}
	if flag == 0 {
		return d.insertEntry(e)
	}
	childBlk, err := d.findChildBlock(e.val)
	if err != nil {
		return nil, err
	}
	child, err := newDirectory(d.tx, childBlk, d.layout)
	if err != nil {
		return nil, err
	}
	newEntry, err := child.Insert(e)
	child.Close()
	if err != nil {
		return nil, err
	}
	if newEntry == nil {
		return nil, nil
	}
	return d.insertEntry(*newEntry)
}

func (d *directory) insertEntry(e entry) (*entry, error) {
	before, err := d.contents.FindSlotBefore(e.val)
	if err != nil {
		return nil, err
	}
	newSlot := before + 1
	if err := d.contents.InsertDir(newSlot, e.val, int32(e.block)); err != nil {
		return nil, err
	}
	full, err := d.contents.IsFull()
	if err != nil {
		return nil, err
	}
	if !full {
		return nil, nil
	}
	level, err := d.contents.GetFlag()
	if err != nil {
		return nil, err
	}
	n, err := d.contents.NumRecords()
	if err != nil {
		return nil, err
	}
	splitPos := n / 2
	splitVal, err := d.contents.GetDataVal(splitPos)
	if err != nil {
		return nil, err
	}
	newBlk, err := d.contents.Split(splitPos, level)
	if err != nil {
		return nil, err
	}
	return &entry{val: splitVal, block: newBlk.Num}, nil
}
