package tx

import (
	"fmt"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/buffer"
)

// bufferList is a transaction's private view of the buffers it has
// pinned. Pinning the same block twice from one transaction is tracked
// with a reference count so the transaction can unpin it exactly that
// many times before the pool sees it as free.
type bufferList struct {
	pool    *buffer.Pool
	buffers map[blockid.BlockID]*buffer.Buffer
	pins    []blockid.BlockID
}

func newBufferList(pool *buffer.Pool) *bufferList {
	return &bufferList{
		pool:    pool,
		buffers: make(map[blockid.BlockID]*buffer.Buffer),
	}
}

func (l *bufferList) getBuffer(blk blockid.BlockID) *buffer.Buffer {
	buf, ok := l.buffers[blk]
	if !ok {
		panic(fmt.Sprintf("tx: attempt to operate on unpinned block %v", blk))
	}
	return buf
}

func (l *bufferList) pin(blk blockid.BlockID) error {
	buf, err := l.pool.Pin(blk)
	if err != nil {
		return fmt.Errorf("tx: pin %v: %w", blk, err)
	}
	l.buffers[blk] = buf
	l.pins = append(l.pins, blk)
	return nil
}

func (l *bufferList) unpin(blk blockid.BlockID) {
	buf, ok := l.buffers[blk]
	if !ok {
		return
	}
	l.pool.Unpin(buf)
	for i, p := range l.pins {
		if p == blk {
			l.pins = append(l.pins[:i], l.pins[i+1:]...)
			break
		}
	}
	stillPinned := false
	for _, p := range l.pins {
		if p == blk {
			stillPinned = true
			break
		}
	}
	if !stillPinned {
		delete(l.buffers, blk)
	}
}

func (l *bufferList) unpinAll() {
	for _, blk := range l.pins {
		if buf, ok := l.buffers[blk]; ok {
			l.pool.Unpin(buf)
		}
	}
	l.pins = nil
	l.buffers = make(map[blockid.BlockID]*buffer.Buffer)
}

// available reports the pool's unpinned-frame count, used for operator
// diagnostics (SPEC_FULL.md §4, AvailableBuffers).
func (l *bufferList) available() int {
	return l.pool.Available()
}
