package lock

import "github.com/SimonWaldherr/simpledb/internal/storage/blockid"

// Mode is the strongest lock a transaction holds on a block.
type Mode byte

const (
	modeShared    Mode = 'S'
	modeExclusive Mode = 'X'
)

// Manager is a transaction-local view of the locks it holds. It never
// releases a lock early: locks are tracked until Release is called at
// commit or rollback.
type Manager struct {
	table *Table
	held  map[blockid.BlockID]Mode
}

// NewManager constructs a concurrency Manager bound to table, for use by
// exactly one transaction.
func NewManager(table *Table) *Manager {
	return &Manager{table: table, held: make(map[blockid.BlockID]Mode)}
}

// SLock acquires a shared lock on blk if this transaction does not
// already hold one (shared or exclusive).
func (m *Manager) SLock(blk blockid.BlockID) error {
	if _, ok := m.held[blk]; ok {
		return nil
	}
	if err := m.table.SLock(blk); err != nil {
		return err
	}
	m.held[blk] = modeShared
	return nil
}

// XLock acquires an exclusive lock on blk, first taking a shared lock if
// this transaction holds none yet (the lock table then treats the
// request as an upgrade).
func (m *Manager) XLock(blk blockid.BlockID) error {
	if m.held[blk] == modeExclusive {
		return nil
	}
	if _, hasShared := m.held[blk]; !hasShared {
		if err := m.table.SLock(blk); err != nil {
			return err
		}
		m.held[blk] = modeShared
	}
	if err := m.table.XLock(blk); err != nil {
		return err
	}
	m.held[blk] = modeExclusive
	return nil
}

// Release unlocks every block this transaction holds and clears its
// tracked state.
func (m *Manager) Release() {
	for blk := range m.held {
		m.table.Unlock(blk)
	}
	m.held = make(map[blockid.BlockID]Mode)
}
