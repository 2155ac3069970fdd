package tx

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/lock"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
	"github.com/SimonWaldherr/simpledb/internal/storage/wal"
)

// Transaction orchestrates the buffer pool, concurrency manager, and
// recovery log into typed get/set primitives on block offsets. Every
// Transaction is identified by a monotonic TxNum drawn once at
// construction.
type Transaction struct {
	mgr   *Manager
	conc  *lock.Manager
	bufs  *bufferList
	txNum int64
	ended int32
}

// New begins a transaction against mgr. Construction appends a
// Start{tx_num} log record so that a long-lived transaction's rollback
// has a definite stopping point (SPEC_FULL.md §5 item 1).
func New(mgr *Manager) (*Transaction, error) {
	t := &Transaction{
		mgr:   mgr,
		conc:  lock.NewManager(mgr.table),
		bufs:  newBufferList(mgr.pool),
		txNum: mgr.nextTx(),
	}
	if _, err := mgr.lm.Append(wal.Encode(wal.Start(t.txNum))); err != nil {
		return nil, fmt.Errorf("tx: new: %w", err)
	}
	atomic.AddInt64(&mgr.activeTxs, 1)
	mgr.log.Debug("transaction started", "tx", t.txNum)
	return t, nil
}

// TxNum returns the transaction's identifier.
func (t *Transaction) TxNum() int64 { return t.txNum }

// BlockSize reports the page size of blocks this transaction reads and
// writes.
func (t *Transaction) BlockSize() int { return t.mgr.BlockSize() }

// AvailableBuffers reports the shared pool's unpinned-frame count.
func (t *Transaction) AvailableBuffers() int { return t.bufs.available() }

// Pin pins blk for the life of this transaction (or until Unpin).
func (t *Transaction) Pin(blk blockid.BlockID) error {
	return t.bufs.pin(blk)
}

// Unpin releases one pin on blk taken by this transaction.
func (t *Transaction) Unpin(blk blockid.BlockID) {
	t.bufs.unpin(blk)
}

// GetInt S-locks blk and returns the int32 at offset.
func (t *Transaction) GetInt(blk blockid.BlockID, offset int) (int32, error) {
	if err := t.conc.SLock(blk); err != nil {
		return 0, err
	}
	buf := t.bufs.getBuffer(blk)
	return buf.Contents().ReadInt32(offset), nil
}

// GetString S-locks blk and returns the string at offset.
func (t *Transaction) GetString(blk blockid.BlockID, offset int) (string, error) {
	if err := t.conc.SLock(blk); err != nil {
		return "", err
	}
	buf := t.bufs.getBuffer(blk)
	return buf.Contents().ReadString(offset), nil
}

// SetInt X-locks blk and writes v at offset. When doLog is true, a
// SetInt record carrying the pre-image is appended first and its LSN
// attached to the buffer; when false (used for undo replay) the write is
// still marked dirty but with lsn -1.
func (t *Transaction) SetInt(blk blockid.BlockID, offset int, v int32, doLog bool) error {
	if err := t.conc.XLock(blk); err != nil {
		return err
	}
	buf := t.bufs.getBuffer(blk)
	lsn := int64(-1)
	if doLog {
		old := buf.Contents().ReadInt32(offset)
		var err error
		lsn, err = t.mgr.lm.Append(wal.Encode(wal.SetInt(t.txNum, blk, offset, old)))
		if err != nil {
			return fmt.Errorf("tx: set_int log: %w", err)
		}
	}
	buf.Contents().WriteInt32(offset, v)
	buf.SetModified(t.txNum, lsn)
	return nil
}

// SetString X-locks blk and writes v at offset, analogous to SetInt.
func (t *Transaction) SetString(blk blockid.BlockID, offset int, v string, doLog bool) error {
	if err := t.conc.XLock(blk); err != nil {
		return err
	}
	buf := t.bufs.getBuffer(blk)
	lsn := int64(-1)
	if doLog {
		old := buf.Contents().ReadString(offset)
		var err error
		lsn, err = t.mgr.lm.Append(wal.Encode(wal.SetString(t.txNum, blk, offset, old)))
		if err != nil {
			return fmt.Errorf("tx: set_string log: %w", err)
		}
	}
	buf.Contents().WriteString(offset, v)
	buf.SetModified(t.txNum, lsn)
	return nil
}

// Size S-locks the end-of-file sentinel block of fileID and returns its
// block count.
func (t *Transaction) Size(fileID string) (uint64, error) {
	dummy := blockid.EOF(fileID)
	if err := t.conc.SLock(dummy); err != nil {
		return 0, err
	}
	return t.mgr.fm.Length(fileID)
}

// Append X-locks the end-of-file sentinel block of fileID and appends a
// new zero-filled block.
func (t *Transaction) Append(fileID string) (blockid.BlockID, error) {
	dummy := blockid.EOF(fileID)
	if err := t.conc.XLock(dummy); err != nil {
		return blockid.BlockID{}, err
	}
	return t.mgr.fm.AppendBlock(fileID, newZeroPage(t.mgr.BlockSize()))
}

// Commit flushes every buffer this transaction modified, appends and
// flushes a Commit record, releases all locks, and unpins every buffer
// it holds.
func (t *Transaction) Commit() error {
	t.markEnded()
	if err := t.mgr.pool.FlushAll(t.txNum); err != nil {
		return fmt.Errorf("tx: commit: %w", err)
	}
	lsn, err := t.mgr.lm.Append(wal.Encode(wal.Commit(t.txNum)))
	if err != nil {
		return fmt.Errorf("tx: commit: %w", err)
	}
	if err := t.mgr.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx: commit: %w", err)
	}
	t.conc.Release()
	t.bufs.unpinAll()
	atomic.AddInt64(&t.mgr.activeTxs, -1)
	t.mgr.log.Debug("transaction committed", "tx", t.txNum)
	return nil
}

// Rollback undoes every SetInt/SetString this transaction logged, then
// flushes, appends and flushes a Rollback record, releases locks, and
// unpins every buffer.
func (t *Transaction) Rollback() error {
	t.markEnded()
	if err := t.undoToStart(); err != nil {
		return fmt.Errorf("tx: rollback: %w", err)
	}
	if err := t.mgr.pool.FlushAll(t.txNum); err != nil {
		return fmt.Errorf("tx: rollback: %w", err)
	}
	lsn, err := t.mgr.lm.Append(wal.Encode(wal.Rollback(t.txNum)))
	if err != nil {
		return fmt.Errorf("tx: rollback: %w", err)
	}
	if err := t.mgr.lm.Flush(lsn); err != nil {
		return fmt.Errorf("tx: rollback: %w", err)
	}
	t.conc.Release()
	t.bufs.unpinAll()
	atomic.AddInt64(&t.mgr.activeTxs, -1)
	t.mgr.log.Debug("transaction rolled back", "tx", t.txNum)
	return nil
}

// undoToStart walks the log backwards, undoing every SetInt/SetString
// belonging to this transaction, stopping at its own Start record (or
// the start of the log, if none is found).
func (t *Transaction) undoToStart() error {
	it, err := t.mgr.lm.Snapshot()
	if err != nil {
		return err
	}
	for {
		raw, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		rec, err := wal.Decode(raw)
		if err != nil {
			return err
		}
		if rec.TxNum != t.txNum {
			continue
		}
		switch rec.Type {
		case wal.TypeStart:
			return nil
		case wal.TypeSetInt, wal.TypeSetString:
			if err := t.undo(rec); err != nil {
				return err
			}
		}
	}
}

// undo replays the pre-image carried by a SetInt/SetString record as a
// non-logged write, pinning and unpinning the target block around it.
func (t *Transaction) undo(rec wal.Record) error {
	if err := t.Pin(rec.Block); err != nil {
		return err
	}
	defer t.Unpin(rec.Block)
	switch rec.Type {
	case wal.TypeSetInt:
		return t.SetInt(rec.Block, rec.Offset, rec.OldInt, false)
	case wal.TypeSetString:
		return t.SetString(rec.Block, rec.Offset, rec.OldString, false)
	default:
		return nil
	}
}

// ErrCheckpointNotQuiescent is returned by the manager-level Checkpoint
// when transactions are still active.
var ErrCheckpointNotQuiescent = errors.New("tx: checkpoint requested while transactions are active")

// Recover is intended to run once at startup, before any user
// transaction begins. It flushes the pool, walks the log backwards
// tracking which tx numbers reached Commit/Rollback, undoes any
// SetInt/SetString belonging to a tx that never completed, stops at the
// first Checkpoint, then writes a fresh one.
//
// SPEC_FULL.md §5 item 2: the checkpoint this writes is only meaningful
// if no transaction was active while recovery ran — callers are expected
// to run Recover before opening any other Transaction against mgr.
func (t *Transaction) Recover() error {
	if err := t.mgr.pool.FlushAllDirty(); err != nil {
		return fmt.Errorf("tx: recover: %w", err)
	}
	it, err := t.mgr.lm.Snapshot()
	if err != nil {
		return fmt.Errorf("tx: recover: %w", err)
	}
	completed := make(map[int64]bool)
	for {
		raw, ok, err := it.Next()
		if err != nil {
			return fmt.Errorf("tx: recover: %w", err)
		}
		if !ok {
			break
		}
		rec, err := wal.Decode(raw)
		if err != nil {
			// Corrupt trailing record from a crash mid-append: stop, not panic.
			t.mgr.log.Warn("recover: stopping at corrupt log record", "err", err)
			break
		}
		switch rec.Type {
		case wal.TypeCheckpoint:
			goto done
		case wal.TypeCommit, wal.TypeRollback:
			completed[rec.TxNum] = true
		case wal.TypeSetInt, wal.TypeSetString:
			if !completed[rec.TxNum] {
				if err := t.undo(rec); err != nil {
					return fmt.Errorf("tx: recover: %w", err)
				}
			}
		}
	}
done:
	if err := t.mgr.pool.FlushAllDirty(); err != nil {
		return fmt.Errorf("tx: recover: %w", err)
	}
	lsn, err := t.mgr.lm.Append(wal.Encode(wal.Checkpoint()))
	if err != nil {
		return fmt.Errorf("tx: recover: %w", err)
	}
	return t.mgr.lm.Flush(lsn)
}

func (t *Transaction) markEnded() {
	if !atomic.CompareAndSwapInt32(&t.ended, 0, 1) {
		panic("tx: commit or rollback called twice on the same transaction")
	}
}

func newZeroPage(size int) *page.Page {
	return page.NewSize(size)
}
