// Package buffer implements the buffer pool: a bounded cache of pages
// with pinning, dirty tracking, write-ahead-log coordination, and a
// simple (non-LRU) eviction policy.
package buffer

import (
	"fmt"
	"sync"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

// Buffer is one page slot in the pool, augmented with the block it
// currently holds and dirty metadata. A buffer with TxNum < 0 has not
// been modified since its last flush.
type Buffer struct {
	mu sync.RWMutex

	fm *file.Manager
	lm *wal.Manager

	page     *page.Page
	block    blockid.BlockID
	hasBlock bool
	pinCount int
	txNum    int64
	lsn      int64
}

func newBuffer(fm *file.Manager, lm *wal.Manager) *Buffer {
	return &Buffer{
		fm:    fm,
		lm:    lm,
		page:  page.NewSize(fm.PageSize()),
		txNum: -1,
		lsn:   -1,
	}
}

// Contents returns the buffer's page. Callers must hold a pin on the
// buffer's block for the duration of any access.
func (b *Buffer) Contents() *page.Page {
	return b.page
}

// Block reports the block currently held by the buffer.
func (b *Buffer) Block() (blockid.BlockID, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.block, b.hasBlock
}

// SetModified records that tx last wrote this buffer, with lsn
// describing the log record of that write (-1 if the write was not
// logged).
func (b *Buffer) SetModified(tx int64, lsn int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.txNum = tx
	b.lsn = lsn
}

// ModifyingTx returns the tx number that last modified this buffer, or
// -1 if it is clean.
func (b *Buffer) ModifyingTx() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.txNum
}

func (b *Buffer) pin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pinCount++
}

func (b *Buffer) unpin() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pinCount == 0 {
		panic("buffer: unpin of a buffer with pin count 0")
	}
	b.pinCount--
}

// IsPinned reports whether the buffer currently has at least one pin.
func (b *Buffer) IsPinned() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pinCount > 0
}

// PinCount returns the buffer's current pin count.
func (b *Buffer) PinCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pinCount
}

// assignToBlock flushes the buffer's current contents if dirty, then
// loads blk through the file manager and resets the pin count.
func (b *Buffer) assignToBlock(blk blockid.BlockID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.flushLocked(); err != nil {
		return err
	}
	if err := b.fm.GetBlock(blk, b.page); err != nil {
		return fmt.Errorf("buffer: assign %v: %w", blk, err)
	}
	b.block = blk
	b.hasBlock = true
	b.pinCount = 0
	return nil
}

// flush ensures the log is durable through this buffer's LSN, then
// writes the page back to disk. A no-op if the buffer has never held a
// block or carries no unflushed write.
func (b *Buffer) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.flushLocked()
}

func (b *Buffer) flushLocked() error {
	if !b.hasBlock || b.txNum < 0 {
		return nil
	}
	if err := b.lm.Flush(b.lsn); err != nil {
		return fmt.Errorf("buffer: flush log: %w", err)
	}
	if err := b.fm.WriteBlock(b.block, b.page); err != nil {
		return fmt.Errorf("buffer: flush page %v: %w", b.block, err)
	}
	b.txNum = -1
	return nil
}
