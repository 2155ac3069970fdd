// Package btree implements a B-tree index over two record-page files
// per index (a directory file and a leaf file), with pre-emptive split
// on insert and overflow chains for duplicate keys.
package btree

import (
	"fmt"

	"github.com/SimonWaldherr/simpledb/internal/storage/record"
)

// Value is an index search key or stored dataval: either an int32 or a
// string, matching the two field types a record.Schema can declare.
type Value struct {
	Kind record.FieldType
	Int  int32
	Str  string
}

// Int32Value builds an Integer-kind Value.
func Int32Value(v int32) Value { return Value{Kind: record.Integer, Int: v} }

// StringValue builds a Varchar-kind Value.
func StringValue(v string) Value { return Value{Kind: record.Varchar, Str: v} }

// Less reports whether v sorts strictly before other. Both must share
// the same Kind.
func (v Value) Less(other Value) bool {
	switch v.Kind {
	case record.Integer:
		return v.Int < other.Int
	case record.Varchar:
		return v.Str < other.Str
	default:
		panic("btree: value has unknown kind")
	}
}

// Equal reports whether v and other carry the same value.
func (v Value) Equal(other Value) bool {
	switch v.Kind {
	case record.Integer:
		return v.Int == other.Int
	case record.Varchar:
		return v.Str == other.Str
	default:
		panic("btree: value has unknown kind")
	}
}

// String renders v for diagnostics (e.g. WriteDOT labels).
func (v Value) String() string {
	switch v.Kind {
	case record.Integer:
		return fmt.Sprintf("%d", v.Int)
	case record.Varchar:
		return v.Str
	default:
		return "?"
	}
}

// MinValue returns the smallest possible Value of the given kind, used
// to seed a fresh directory's root entry.
func MinValue(kind record.FieldType) Value {
	switch kind {
	case record.Integer:
		return Int32Value(-1 << 31)
	case record.Varchar:
		return StringValue("")
	default:
		panic("btree: unknown field kind")
	}
}

// RID (record identifier) addresses one record by the block it lives in
// and its slot within that block (spec.md glossary: RID).
type RID struct {
	Block uint64
	Slot  int32
}

// NewRID constructs a RID.
func NewRID(block uint64, slot int32) RID { return RID{Block: block, Slot: slot} }
