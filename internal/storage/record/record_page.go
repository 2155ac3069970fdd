package record

import (
	"fmt"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
)

const (
	empty int32 = 0
	used  int32 = 1
)

// NoSlot is the sentinel "no slot found" result returned by InsertAfter
// and NextAfter, mirroring the RID::is_null()-style -1 convention from
// original_source's record_page.rs.
const NoSlot = -1

// Page interprets one block as a vector of fixed-size slots, per
// layout. It pins its block for the lifetime of the Page; callers
// should Close it when done, the way original_source drops its RecordPage.
type Page struct {
	tx     *tx.Transaction
	blk    blockid.BlockID
	layout *Layout
}

// NewPage pins blk through t and returns a Page over it.
func NewPage(t *tx.Transaction, blk blockid.BlockID, layout *Layout) (*Page, error) {
	if err := t.Pin(blk); err != nil {
		return nil, fmt.Errorf("record: new page: %w", err)
	}
	return &Page{tx: t, blk: blk, layout: layout}, nil
}

// Close unpins the page's block.
func (p *Page) Close() { p.tx.Unpin(p.blk) }

// Block returns the block this page is positioned over.
func (p *Page) Block() blockid.BlockID { return p.blk }

// GetInt reads field of slot as an int32. Panics if slot is not USED.
func (p *Page) GetInt(slot int, field string) (int32, error) {
	if err := p.requireUsed(slot); err != nil {
		return 0, err
	}
	return p.tx.GetInt(p.blk, p.fieldOffset(slot, field))
}

// GetString reads field of slot as a string. Panics if slot is not USED.
func (p *Page) GetString(slot int, field string) (string, error) {
	if err := p.requireUsed(slot); err != nil {
		return "", err
	}
	return p.tx.GetString(p.blk, p.fieldOffset(slot, field))
}

// SetInt writes val into field of slot. Panics if slot is not USED.
func (p *Page) SetInt(slot int, field string, val int32) error {
	if err := p.requireUsed(slot); err != nil {
		return err
	}
	return p.tx.SetInt(p.blk, p.fieldOffset(slot, field), val, true)
}

// SetString writes val into field of slot. Panics if slot is not USED.
func (p *Page) SetString(slot int, field string, val string) error {
	if err := p.requireUsed(slot); err != nil {
		return err
	}
	return p.tx.SetString(p.blk, p.fieldOffset(slot, field), val, true)
}

// Delete marks slot EMPTY.
func (p *Page) Delete(slot int) error {
	return p.setFlag(slot, empty)
}

// Format zeroes every slot in the page: flag set EMPTY, every field set
// to its type's default, none of it logged (this runs only when a fresh
// block is being initialized, matching original_source's format()).
func (p *Page) Format() error {
	slot := 0
	for {
		ok, err := p.isValidSlot(slot)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := p.tx.SetInt(p.blk, p.slotOffset(slot), empty, false); err != nil {
			return err
		}
		for _, name := range p.layout.Schema().Fields() {
			f, _ := p.layout.Schema().Field(name)
			pos := p.fieldOffset(slot, name)
			switch f.Type {
			case Integer:
				if err := p.tx.SetInt(p.blk, pos, 0, false); err != nil {
					return err
				}
			case Varchar:
				if err := p.tx.SetString(p.blk, pos, "", false); err != nil {
					return err
				}
			}
		}
		slot++
	}
}

// InsertAfter scans forward from slot for the first EMPTY slot, marks it
// USED, and returns it, or NoSlot if the page is full.
func (p *Page) InsertAfter(slot int) (int, error) {
	next, err := p.searchAfter(slot, empty)
	if err != nil {
		return NoSlot, err
	}
	if next != NoSlot {
		if err := p.setFlag(next, used); err != nil {
			return NoSlot, err
		}
	}
	return next, nil
}

// NextAfter scans forward from slot for the first USED slot, or returns
// NoSlot if none remain.
func (p *Page) NextAfter(slot int) (int, error) {
	return p.searchAfter(slot, used)
}

func (p *Page) searchAfter(slot int, flag int32) (int, error) {
	slot++
	for {
		ok, err := p.isValidSlot(slot)
		if err != nil {
			return NoSlot, err
		}
		if !ok {
			return NoSlot, nil
		}
		got, err := p.tx.GetInt(p.blk, p.slotOffset(slot))
		if err != nil {
			return NoSlot, err
		}
		if got == flag {
			return slot, nil
		}
		slot++
	}
}

func (p *Page) isValidSlot(slot int) (bool, error) {
	return p.slotOffset(slot+1) <= p.tx.BlockSize(), nil
}

func (p *Page) slotOffset(slot int) int {
	return slot * p.layout.SlotSize()
}

func (p *Page) fieldOffset(slot int, field string) int {
	return p.slotOffset(slot) + p.layout.Offset(field)
}

func (p *Page) setFlag(slot int, flag int32) error {
	return p.tx.SetInt(p.blk, p.slotOffset(slot), flag, true)
}

func (p *Page) getFlag(slot int) (int32, error) {
	return p.tx.GetInt(p.blk, p.slotOffset(slot))
}

func (p *Page) requireUsed(slot int) error {
	flag, err := p.getFlag(slot)
	if err != nil {
		return err
	}
	if flag != used {
		panic(fmt.Sprintf("record: slot %d is not marked USED", slot))
	}
	return nil
}
