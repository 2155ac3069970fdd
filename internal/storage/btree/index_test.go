package btree

import (
	"testing"

	storagepage "github.com/SimonWaldherr/simpledb/internal/storage/page"
	"github.com/SimonWaldherr/simpledb/internal/storage/record"
	"github.com/SimonWaldherr/simpledb/internal/storage/tx"
)

func newTestIndex(t *testing.T, name string) (*tx.Transaction, *Index) {
	t.Helper()
	mgr, err := tx.Open(tx.Config{PageSize: storagepage.Size, PoolSize: 20, RootDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { mgr.Close() })

	txn, err := tx.New(mgr)
	if err != nil {
		t.Fatal(err)
	}
	idx, err := Open(txn, name, record.Integer, 0)
	if err != nil {
		t.Fatal(err)
	}
	return txn, idx
}

// TestBTreeIndexNoDuplicates reproduces spec.md §8.2 scenario 7.
func TestBTreeIndexNoDuplicates(t *testing.T) {
	_, idx := newTestIndex(t, "noDupes")

	const numRecs = 50
	for i := int32(0); i < numRecs; i++ {
		rid := NewRID(uint64(i/100), i%100)
		if err := idx.Insert(Int32Value(i), rid); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := int32(0); i < numRecs; i++ {
		if err := idx.BeforeFirst(Int32Value(i)); err != nil {
			t.Fatal(err)
		}
		ok, err := idx.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Fatalf("key %d: expected a match", i)
		}
		got, err := idx.GetRID()
		if err != nil {
			t.Fatal(err)
		}
		want := NewRID(uint64(i/100), i%100)
		if got != want {
			t.Fatalf("key %d: RID = %+v, want %+v", i, got, want)
		}
	}

	for i := int32(0); i < numRecs; i++ {
		if i%5 == 0 {
			rid := NewRID(uint64(i/100), i%100)
			if err := idx.Delete(Int32Value(i), rid); err != nil {
				t.Fatal(err)
			}
		}
	}

	for i := int32(0); i < numRecs; i++ {
		if err := idx.BeforeFirst(Int32Value(i)); err != nil {
			t.Fatal(err)
		}
		ok, err := idx.Next()
		if err != nil {
			t.Fatal(err)
		}
		if i%5 == 0 {
			if ok {
				t.Fatalf("key %d: expected no match after delete", i)
			}
			continue
		}
		if !ok {
			t.Fatalf("key %d: expected a match", i)
		}
		got, err := idx.GetRID()
		if err != nil {
			t.Fatal(err)
		}
		want := NewRID(uint64(i/100), i%100)
		if got != want {
			t.Fatalf("key %d: RID = %+v, want %+v", i, got, want)
		}
		ok, err = idx.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("key %d: expected exactly one match", i)
		}
	}
}

// TestBTreeIndexDuplicates reproduces spec.md §8.2 scenario 8.
func TestBTreeIndexDuplicates(t *testing.T) {
	_, idx := newTestIndex(t, "dupes")

	for i := int32(0); i < 25; i++ {
		if i%6 == 0 {
			for j := 0; j < 8; j++ {
				if err := idx.Insert(Int32Value(i), NewRID(uint64(i), 0)); err != nil {
					t.Fatal(err)
				}
			}
		} else {
			if err := idx.Insert(Int32Value(i), NewRID(uint64(i), 0)); err != nil {
				t.Fatal(err)
			}
		}
	}

	for i := int32(0); i < 25; i++ {
		if err := idx.BeforeFirst(Int32Value(i)); err != nil {
			t.Fatal(err)
		}
		repetitions := 1
		if i%6 == 0 {
			repetitions = 8
		}
		for j := 0; j < repetitions; j++ {
			ok, err := idx.Next()
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Fatalf("key %d repetition %d: expected a match", i, j)
			}
			got, err := idx.GetRID()
			if err != nil {
				t.Fatal(err)
			}
			want := NewRID(uint64(i), 0)
			if got != want {
				t.Fatalf("key %d: RID = %+v, want %+v", i, got, want)
			}
		}
		ok, err := idx.Next()
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			t.Fatalf("key %d: expected exactly %d matches", i, repetitions)
		}
	}
}

func TestSearchCost(t *testing.T) {
	if got := SearchCost(1, 100); got != 1 {
		t.Fatalf("SearchCost(1,100) = %d, want 1", got)
	}
	if got := SearchCost(0, 100); got != 1 {
		t.Fatalf("SearchCost(0,100) = %d, want 1", got)
	}
	if got := SearchCost(10000, 100); got <= 1 {
		t.Fatalf("SearchCost(10000,100) = %d, want > 1", got)
	}
}
