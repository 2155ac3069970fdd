package btree

import (
	"fmt"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/record"
	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
)

// page is the low-level B-tree page: an 8-byte header (flag, record
// count) followed by fixed-size slots, per spec.md §4.M. It pins its
// block on construction; callers must Close it (there is no Go
// finalizer equivalent to original_source's Drop-triggered unpin).
type page struct {
	tx     *tx.Transaction
	blk    blockid.BlockID
	layout *slotLayout
}

func newPage(t *tx.Transaction, blk blockid.BlockID, layout *slotLayout) (*page, error) {
	if err := t.Pin(blk); err != nil {
		return nil, fmt.Errorf("btree: new page: %w", err)
	}
	return &page{tx: t, blk: blk, layout: layout}, nil
}

func (p *page) Close() { p.tx.Unpin(p.blk) }

func (p *page) Block() blockid.BlockID { return p.blk }

// format initializes blk as flag-tagged page with zero records. Writes
// are unlogged, matching original_source's BTPage::format (new blocks
// only, never replayed).
func format(t *tx.Transaction, blk blockid.BlockID, flag int32) error {
	if err := t.SetInt(blk, 0, flag, false); err != nil {
		return err
	}
	return t.SetInt(blk, 4, 0, false)
}

func (p *page) GetFlag() (int32, error) {
	return p.tx.GetInt(p.blk, 0)
}

func (p *page) SetFlag(v int32) error {
	return p.tx.SetInt(p.blk, 0, v, true)
}

func (p *page) NumRecords() (int32, error) {
	return p.tx.GetInt(p.blk, 4)
}

func (p *page) setNumRecords(n int32) error {
	return p.tx.SetInt(p.blk, 4, n, true)
}

func (p *page) slotPos(slot int32) int {
	return pageHeaderSize + int(slot)*p.layout.size
}

func (p *page) fieldPos(slot int32, field string) int {
	return p.slotPos(slot) + p.layout.offset(field)
}

func (p *page) GetInt(slot int32, field string) (int32, error) {
	return p.tx.GetInt(p.blk, p.fieldPos(slot, field))
}

func (p *page) GetString(slot int32, field string) (string, error) {
	return p.tx.GetString(p.blk, p.fieldPos(slot, field))
}

func (p *page) SetInt(slot int32, field string, v int32) error {
	return p.tx.SetInt(p.blk, p.fieldPos(slot, field), v, true)
}

func (p *page) SetString(slot int32, field string, v string) error {
	return p.tx.SetString(p.blk, p.fieldPos(slot, field), v, true)
}

// GetVal reads field (expected to be schema-typed Integer or Varchar).
func (p *page) GetVal(slot int32, field string) (Value, error) {
	f, ok := p.layout.schema.Field(field)
	if !ok {
		return Value{}, fmt.Errorf("btree: unknown field %q", field)
	}
	switch f.Type {
	case record.Integer:
		v, err := p.GetInt(slot, field)
		return Int32Value(v), err
	case record.Varchar:
		v, err := p.GetString(slot, field)
		return StringValue(v), err
	default:
		panic("btree: unrecognized field type")
	}
}

func (p *page) SetVal(slot int32, field string, v Value) error {
	switch v.Kind {
	case record.Integer:
		return p.SetInt(slot, field, v.Int)
	case record.Varchar:
		return p.SetString(slot, field, v.Str)
	default:
		panic("btree: unrecognized value kind")
	}
}

func (p *page) GetDataVal(slot int32) (Value, error) { return p.GetVal(slot, "dataval") }

func (p *page) GetChildNum(slot int32) (int32, error) { return p.GetInt(slot, "block") }

func (p *page) GetDataRID(slot int32) (RID, error) {
	block, err := p.GetInt(slot, "block")
	if err != nil {
		return RID{}, err
	}
	id, err := p.GetInt(slot, "id")
	if err != nil {
		return RID{}, err
	}
	return NewRID(uint64(block), id), nil
}

// FindSlotBefore returns the greatest slot whose dataval < key, or -1
// if no such slot exists.
func (p *page) FindSlotBefore(key Value) (int32, error) {
	n, err := p.NumRecords()
	if err != nil {
		return 0, err
	}
	var slot int32
	for slot < n {
		v, err := p.GetDataVal(slot)
		if err != nil {
			return 0, err
		}
		if !v.Less(key) {
			break
		}
		slot++
	}
	return slot - 1, nil
}

// IsFull reports whether one more slot would overflow the page.
func (p *page) IsFull() (bool, error) {
	n, err := p.NumRecords()
	if err != nil {
		return false, err
	}
	return p.slotPos(n+1) >= p.tx.BlockSize(), nil
}

// insert shifts every record at [slot, numRecords) one slot to the
// right, making room for a new record at slot.
func (p *page) insert(slot int32) error {
	n, err := p.NumRecords()
	if err != nil {
		return err
	}
	for i := n; i > slot; i-- {
		if err := p.copyRecord(i-1, i); err != nil {
			return err
		}
	}
	return p.setNumRecords(n + 1)
}

// Delete shifts every record at (slot, numRecords) one slot to the
// left, overwriting slot.
func (p *page) Delete(slot int32) error {
	n, err := p.NumRecords()
	if err != nil {
		return err
	}
	for i := slot + 1; i < n; i++ {
		if err := p.copyRecord(i, i-1); err != nil {
			return err
		}
	}
	return p.setNumRecords(n - 1)
}

func (p *page) copyRecord(from, to int32) error {
	for _, field := range p.layout.schema.Fields() {
		v, err := p.GetVal(from, field)
		if err != nil {
			return err
		}
		if err := p.SetVal(to, field, v); err != nil {
			return err
		}
	}
	return nil
}

// InsertDir inserts a (dataval, block) directory record at slot.
func (p *page) InsertDir(slot int32, val Value, blockNum int32) error {
	if err := p.insert(slot); err != nil {
		return err
	}
	if err := p.SetVal(slot, "dataval", val); err != nil {
		return err
	}
	return p.SetInt(slot, "block", blockNum)
}

// InsertLeaf inserts a (dataval, block, id) leaf record at slot.
func (p *page) InsertLeaf(slot int32, val Value, rid RID) error {
	if err := p.insert(slot); err != nil {
		return err
	}
	if err := p.SetVal(slot, "dataval", val); err != nil {
		return err
	}
	if err := p.SetInt(slot, "block", int32(rid.Block)); err != nil {
		return err
	}
	return p.SetInt(slot, "id", rid.Slot)
}

// appendNew appends and formats a fresh block in the same file as p,
// tagged with flag, and returns it pinned.
func (p *page) appendNew(flag int32) (blockid.BlockID, error) {
	blk, err := p.tx.Append(p.blk.FileID)
	if err != nil {
		return blockid.BlockID{}, err
	}
	if err := p.tx.Pin(blk); err != nil {
		return blockid.BlockID{}, err
	}
	if err := format(p.tx, blk, flag); err != nil {
		return blockid.BlockID{}, err
	}
	return blk, nil
}

// Split moves every record at [splitPos, numRecords) into a freshly
// appended sibling block tagged flag, and returns that block.
func (p *page) Split(splitPos int32, flag int32) (blockid.BlockID, error) {
	newBlk, err := p.appendNew(flag)
	if err != nil {
		return blockid.BlockID{}, err
	}
	newPg, err := newPage(p.tx, newBlk, p.layout)
	if err != nil {
		return blockid.BlockID{}, err
	}
	defer newPg.Close()
	if err := p.transferRecords(splitPos, newPg); err != nil {
		return blockid.BlockID{}, err
	}
	if err := newPg.SetFlag(flag); err != nil {
		return blockid.BlockID{}, err
	}
	return newBlk, nil
}

func (p *page) transferRecords(slot int32, dest *page) error {
	destSlot := int32(0)
	for {
		n, err := p.NumRecords()
		if err != nil {
			return err
		}
		if slot >= n {
			return nil
		}
		if err := dest.insert(destSlot); err != nil {
			return err
		}
		for _, field := range p.layout.schema.Fields() {
			v, err := p.GetVal(slot, field)
			if err != nil {
				return err
			}
			if err := dest.SetVal(destSlot, field, v); err != nil {
				return err
			}
		}
		if err := p.Delete(slot); err != nil {
			return err
		}
		destSlot++
	}
}
