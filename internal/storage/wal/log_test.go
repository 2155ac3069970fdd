package wal

import (
	"testing"

	"github.com/SimonWaldherr/simpledb/internal/storage/file"
	"github.com/SimonWaldherr/simpledb/internal/storage/page"
)

func openManager(t *testing.T) (*file.Manager, *Manager) {
	t.Helper()
	dir := t.TempDir()
	fm, err := file.Open(dir, page.Size)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := Open(fm)
	if err != nil {
		t.Fatal(err)
	}
	return fm, lm
}

func TestAppendRecordsReverseOrder(t *testing.T) {
	_, lm := openManager(t)

	const n = 1000
	var lastLSN int64
	for i := 0; i < n; i++ {
		rec := make([]byte, 16)
		for j := range rec {
			rec[j] = byte(i % 256)
		}
		lsn, err := lm.Append(rec)
		if err != nil {
			t.Fatal(err)
		}
		if lsn <= lastLSN {
			t.Fatalf("LSN sequence not strictly increasing: %d after %d", lsn, lastLSN)
		}
		lastLSN = lsn
	}

	it, err := lm.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	for i := n - 1; i >= 0; i-- {
		rec, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("iterator ended early at i=%d", i)
		}
		want := byte(i % 256)
		for _, b := range rec {
			if b != want {
				t.Fatalf("record %d byte = %d, want %d", i, b, want)
			}
		}
	}
	if _, ok, _ := it.Next(); ok {
		t.Fatalf("iterator should be exhausted")
	}
}

func TestSnapshotAcrossManagerRestart(t *testing.T) {
	dir := t.TempDir()
	fm, err := file.Open(dir, page.Size)
	if err != nil {
		t.Fatal(err)
	}
	lm, err := Open(fm)
	if err != nil {
		t.Fatal(err)
	}

	const n = 50
	for i := 0; i < n; i++ {
		rec := []byte{byte(i)}
		if _, err := lm.Append(rec); err != nil {
			t.Fatal(err)
		}
	}
	collectReverse := func(m *Manager) []byte {
		it, err := m.Snapshot()
		if err != nil {
			t.Fatal(err)
		}
		var out []byte
		for {
			rec, ok, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				break
			}
			out = append(out, rec[0])
		}
		return out
	}
	first := collectReverse(lm)
	if err := fm.Close(); err != nil {
		t.Fatal(err)
	}

	fm2, err := file.Open(dir, page.Size)
	if err != nil {
		t.Fatal(err)
	}
	defer fm2.Close()
	lm2, err := Open(fm2)
	if err != nil {
		t.Fatal(err)
	}
	second := collectReverse(lm2)

	if len(first) != n || len(second) != n {
		t.Fatalf("got %d and %d records, want %d", len(first), len(second), n)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("mismatch at %d: %d != %d", i, first[i], second[i])
		}
		if first[i] != byte(n-1-i) {
			t.Fatalf("not reverse order at %d: %d", i, first[i])
		}
	}
}

func TestRecordTooLargeRejected(t *testing.T) {
	_, lm := openManager(t)
	huge := make([]byte, page.Size)
	if _, err := lm.Append(huge); err != ErrRecordTooLarge {
		t.Fatalf("Append(huge) error = %v, want ErrRecordTooLarge", err)
	}
}
