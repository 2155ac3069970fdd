package buffer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

// ErrPoolExhausted is returned when Pin cannot obtain a free frame.
var ErrPoolExhausted = errors.New("buffer: pool exhausted, no unpinned frame available")

// Pool is a fixed-size array of buffers shared by every transaction. A
// single mutex guards its bookkeeping (the block→frame map and free
// list); each individual buffer additionally carries its own
// reader/writer lock so multiple pinned readers can share a page.
type Pool struct {
	mu sync.Mutex

	buffers    []*Buffer
	blockToBuf map[blockid.BlockID]int
	unused     []int
	available  int
	policy     EvictionPolicy
}

// NewPool allocates size buffers, each backed by fm for page I/O and lm
// for WAL coordination.
func NewPool(size int, fm *file.Manager, lm *wal.Manager) *Pool {
	p := &Pool{
		buffers:    make([]*Buffer, size),
		blockToBuf: make(map[blockid.BlockID]int),
		unused:     make([]int, size),
		available:  size,
		policy:     NewSimpleEvictionPolicy(),
	}
	for i := 0; i < size; i++ {
		p.buffers[i] = newBuffer(fm, lm)
		p.unused[i] = size - 1 - i // pop from the end, so frame 0 is handed out first
	}
	return p
}

// Available reports the number of currently unpinned frames.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Pin returns the buffer holding blk, pinning it — loading it from disk
// first if it is not already resident. Returns ErrPoolExhausted if no
// frame can be freed for a block that isn't already resident.
func (p *Pool) Pin(blk blockid.BlockID) (*Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if idx, ok := p.blockToBuf[blk]; ok {
		buf := p.buffers[idx]
		wasUnpinned := !buf.IsPinned()
		buf.pin()
		if wasUnpinned {
			p.available--
		}
		p.policy.Remove(idx)
		return buf, nil
	}

	idx, ok := p.takeFreeFrameLocked()
	if !ok {
		return nil, ErrPoolExhausted
	}
	buf := p.buffers[idx]
	if old, hasOld := buf.Block(); hasOld {
		delete(p.blockToBuf, old)
	}
	if err := buf.assignToBlock(blk); err != nil {
		// Put the frame back; it never became owned by blk.
		p.policy.Add(idx)
		return nil, fmt.Errorf("buffer: pin %v: %w", blk, err)
	}
	p.blockToBuf[blk] = idx
	buf.pin()
	p.available--
	p.policy.Remove(idx)
	return buf, nil
}

func (p *Pool) takeFreeFrameLocked() (int, bool) {
	if n := len(p.unused); n > 0 {
		idx := p.unused[n-1]
		p.unused = p.unused[:n-1]
		return idx, true
	}
	return p.policy.Evict()
}

// Unpin decrements buf's pin count. Once it reaches zero the frame
// becomes eligible for eviction again.
func (p *Pool) Unpin(buf *Buffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf.unpin()
	if !buf.IsPinned() {
		if blk, ok := buf.Block(); ok {
			idx, tracked := p.blockToBuf[blk]
			if tracked {
				p.policy.Add(idx)
			}
		}
		p.available++
	}
}

// FlushAll flushes every buffer last modified by tx.
func (p *Pool) FlushAll(tx int64) error {
	p.mu.Lock()
	bufs := make([]*Buffer, len(p.buffers))
	copy(bufs, p.buffers)
	p.mu.Unlock()

	for _, buf := range bufs {
		if buf.ModifyingTx() == tx {
			if err := buf.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}

// FlushAllDirty flushes every buffer that carries an unflushed write,
// regardless of which transaction made it. Used by the checkpoint path,
// which runs only when no transaction is active.
func (p *Pool) FlushAllDirty() error {
	p.mu.Lock()
	bufs := make([]*Buffer, len(p.buffers))
	copy(bufs, p.buffers)
	p.mu.Unlock()

	for _, buf := range bufs {
		if buf.ModifyingTx() >= 0 {
			if err := buf.flush(); err != nil {
				return err
			}
		}
	}
	return nil
}
