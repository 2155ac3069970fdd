// Package file implements the paged file manager: it maps a logical,
// block-addressed store onto host files with a reserved header region and
// fixed-size pages.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
)

// ErrUnknownBlock names an unknown file. No Manager method returns it:
// Length reports 0 for a file that has never been created.
var ErrUnknownBlock = errors.New("file: unknown file")

// handle is one opened backing file guarded by its own mutex, so
// concurrent readers/writers of the same file serialize on it without
// blocking access to other files.
type handle struct {
	mu sync.Mutex
	f  *os.File
}

// Manager owns every backing file under one root directory. Each file is
// opened lazily, on first access, and kept open for the manager's
// lifetime.
type Manager struct {
	root     string
	pageSize int

	mu    sync.RWMutex // guards files
	files map[string]*handle
}

// Open constructs a Manager rooted at dir, which must already exist.
// pageSize must be positive; the header region reserved at the start of
// every file is exactly one page in size.
func Open(dir string, pageSize int) (*Manager, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("file: page size must be positive, got %d", pageSize)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("file: root directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("file: root %q is not a directory", dir)
	}
	return &Manager{
		root:     dir,
		pageSize: pageSize,
		files:    make(map[string]*handle),
	}, nil
}

// PageSize returns the configured page size.
func (m *Manager) PageSize() int { return m.pageSize }

// headerSize is the size, in bytes, of the reserved region at the start
// of every managed file — exactly one page, per spec.
func (m *Manager) headerSize() int64 { return int64(m.pageSize) }

func (m *Manager) blockOffset(num uint64) int64 {
	return m.headerSize() + int64(num)*int64(m.pageSize)
}

// getOrCreate returns the handle for fileID, creating and header-writing
// the backing file if this is its first access. File creation is
// idempotent under the manager's write lock.
func (m *Manager) getOrCreate(fileID string) (*handle, error) {
	m.mu.RLock()
	h, ok := m.files[fileID]
	m.mu.RUnlock()
	if ok {
		return h, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.files[fileID]; ok {
		return h, nil
	}

	path := filepath.Join(m.root, fileID)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file: open %q: %w", fileID, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("file: stat %q: %w", fileID, err)
	}
	if info.Size() == 0 {
		header := make([]byte, m.headerSize())
		if _, err := f.WriteAt(header, 0); err != nil {
			f.Close()
			return nil, fmt.Errorf("file: write header %q: %w", fileID, err)
		}
	}
	h = &handle{f: f}
	m.files[fileID] = h
	return h, nil
}

// GetBlock reads bid's block into p. If the backing file is shorter than
// the block's range (the block has never been written), p is left
// unchanged.
func (m *Manager) GetBlock(bid blockid.BlockID, p *page.Page) error {
	h, err := m.getOrCreate(bid.FileID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.f.Stat()
	if err != nil {
		return fmt.Errorf("file: stat %q: %w", bid.FileID, err)
	}
	offset := m.blockOffset(bid.Num)
	if info.Size() < offset+int64(m.pageSize) {
		return nil
	}
	if _, err := h.f.ReadAt(p.Bytes(), offset); err != nil {
		return fmt.Errorf("file: read block %v: %w", bid, err)
	}
	return nil
}

// WriteBlock writes p to bid's block, which must already exist in the
// file (use Append to grow a file), then flushes it durably to disk.
func (m *Manager) WriteBlock(bid blockid.BlockID, p *page.Page) error {
	h, err := m.getOrCreate(bid.FileID)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	offset := m.blockOffset(bid.Num)
	if _, err := h.f.WriteAt(p.Bytes(), offset); err != nil {
		return fmt.Errorf("file: write block %v: %w", bid, err)
	}
	if err := h.f.Sync(); err != nil {
		return fmt.Errorf("file: sync %q: %w", bid.FileID, err)
	}
	return nil
}

// AppendBlock writes p to a newly allocated block at the end of fileID
// and returns its BlockID. It creates the file (and its header) if this
// is the first block written to it.
func (m *Manager) AppendBlock(fileID string, p *page.Page) (blockid.BlockID, error) {
	h, err := m.getOrCreate(fileID)
	if err != nil {
		return blockid.BlockID{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := h.f.Stat()
	if err != nil {
		return blockid.BlockID{}, fmt.Errorf("file: stat %q: %w", fileID, err)
	}
	end := info.Size()
	num := uint64((end - m.headerSize()) / int64(m.pageSize))
	offset := m.headerSize() + int64(num)*int64(m.pageSize)
	if _, err := h.f.WriteAt(p.Bytes(), offset); err != nil {
		return blockid.BlockID{}, fmt.Errorf("file: append to %q: %w", fileID, err)
	}
	if err := h.f.Sync(); err != nil {
		return blockid.BlockID{}, fmt.Errorf("file: sync %q: %w", fileID, err)
	}
	return blockid.New(fileID, num), nil
}

// Length reports the number of blocks currently in fileID, 0 if the file
// has never been created.
func (m *Manager) Length(fileID string) (uint64, error) {
	m.mu.RLock()
	h, ok := m.files[fileID]
	m.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	info, err := h.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("file: stat %q: %w", fileID, err)
	}
	size := info.Size()
	if size <= 0 {
		return 0, nil
	}
	return uint64((size - 1) / int64(m.pageSize)), nil
}

// Close closes every backing file handle.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, h := range m.files {
		if err := h.f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("file: close %q: %w", id, err)
		}
	}
	m.files = make(map[string]*handle)
	return firstErr
}
