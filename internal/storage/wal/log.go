// Package wal implements the recovery log: an append-only write-ahead
// log with backward iteration, and the tagged-variant log record codec
// used to undo individual block mutations.
package wal

import (
	"errors"
	"fmt"
	"sync"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
)

// LogFile is the name of the backing file the Manager appends to.
const LogFile = "log"

// frontierSize is the width, in bytes, of the frontier header at offset
// 0 of every log page.
const frontierSize = 4

// ErrRecordTooLarge is returned when a record cannot fit in a single log
// page no matter which block it is appended to.
var ErrRecordTooLarge = errors.New("wal: record too large for one page")

// Manager owns the log file and the one page currently being appended
// to. All mutation is serialized by mu.
type Manager struct {
	mu sync.Mutex

	fm           *file.Manager
	currentBlock blockid.BlockID
	logPage      *page.Page
	latestLSN    int64
	lastSavedLSN int64
}

// Open attaches a log Manager to fm, either resuming the last block of
// an existing log file or creating the first one.
func Open(fm *file.Manager) (*Manager, error) {
	m := &Manager{
		fm:      fm,
		logPage: page.NewSize(fm.PageSize()),
	}
	size, err := fm.Length(LogFile)
	if err != nil {
		return nil, fmt.Errorf("wal: open: %w", err)
	}
	if size == 0 {
		blk, err := m.appendNewBlock()
		if err != nil {
			return nil, fmt.Errorf("wal: open: %w", err)
		}
		m.currentBlock = blk
	} else {
		m.currentBlock = blockid.New(LogFile, size-1)
		if err := fm.GetBlock(m.currentBlock, m.logPage); err != nil {
			return nil, fmt.Errorf("wal: open: %w", err)
		}
	}
	return m, nil
}

// appendNewBlock resets the in-memory page to a fresh frontier and
// allocates a new block for it at the end of the log file. Callers must
// hold mu.
func (m *Manager) appendNewBlock() (blockid.BlockID, error) {
	m.logPage = page.NewSize(m.fm.PageSize())
	m.logPage.WriteUint32(0, frontierSize)
	blk, err := m.fm.AppendBlock(LogFile, m.logPage)
	if err != nil {
		return blockid.BlockID{}, err
	}
	return blk, nil
}

// flushLocked writes the current page to its block and records the
// latest LSN as saved. Callers must hold mu.
func (m *Manager) flushLocked() error {
	if err := m.fm.WriteBlock(m.currentBlock, m.logPage); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	m.lastSavedLSN = m.latestLSN
	return nil
}

// Flush ensures every record up to and including lsn is durable.
func (m *Manager) Flush(lsn int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if lsn < m.lastSavedLSN {
		return nil
	}
	return m.flushLocked()
}

// Append writes a record to the log, flushing and rolling to a new block
// first if it would not fit in the space remaining on the current page.
// It returns the record's LSN.
func (m *Manager) Append(record []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	need := len(record) + 4 // payload + trailing uint32 length
	if need+frontierSize > m.fm.PageSize() {
		return 0, ErrRecordTooLarge
	}

	frontier := int(m.logPage.ReadUint32(0))
	if frontier+need >= m.fm.PageSize() {
		if err := m.flushLocked(); err != nil {
			return 0, err
		}
		blk, err := m.appendNewBlock()
		if err != nil {
			return 0, fmt.Errorf("wal: append: %w", err)
		}
		m.currentBlock = blk
		frontier = int(m.logPage.ReadUint32(0))
	}

	m.logPage.WriteBytes(frontier, record)
	m.logPage.WriteUint32(frontier+len(record), uint32(len(record)))
	frontier += need
	m.logPage.WriteUint32(0, uint32(frontier))

	m.latestLSN++
	return m.latestLSN, nil
}

// Snapshot flushes the current page and returns an iterator over every
// record appended so far, newest first. The snapshot is independent of
// any later Append calls.
func (m *Manager) Snapshot() (*Iterator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.flushLocked(); err != nil {
		return nil, err
	}
	p := page.NewSize(m.fm.PageSize())
	if err := m.fm.GetBlock(m.currentBlock, p); err != nil {
		return nil, fmt.Errorf("wal: snapshot: %w", err)
	}
	return &Iterator{
		fm:       m.fm,
		block:    m.currentBlock,
		page:     p,
		pos:      int(p.ReadUint32(0)),
		pageSize: m.fm.PageSize(),
	}, nil
}

// Iterator walks a log snapshot backwards, yielding the most recently
// appended record first.
type Iterator struct {
	fm       *file.Manager
	block    blockid.BlockID
	page     *page.Page
	pos      int
	pageSize int
}

// Next returns the next record walking backwards, or ok=false once the
// start of the log has been reached.
func (it *Iterator) Next() (record []byte, ok bool, err error) {
	for {
		if it.pos > frontierSize {
			length := int(it.page.ReadUint32(it.pos - 4))
			recStart := it.pos - 4 - length
			rec := it.page.ReadBytes(recStart, length)
			it.pos = recStart
			return rec, true, nil
		}
		prev, exists := it.block.Previous()
		if !exists {
			return nil, false, nil
		}
		it.block = prev
		if err := it.fm.GetBlock(it.block, it.page); err != nil {
			return nil, false, fmt.Errorf("wal: iterator: %w", err)
		}
		it.pos = int(it.page.ReadUint32(0))
	}
}
