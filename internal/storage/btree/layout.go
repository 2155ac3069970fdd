package btree

import "github.com/SimonWaldherr/simpledb/internal/storage/record"

// pageHeaderSize is the width of a B-tree page's own header: a 4-byte
// flag followed by a 4-byte record count (spec.md §4.M), distinct from
// record.Page's per-slot USED/EMPTY flag — a B-tree page has no such
// per-slot flag, only the page-level one.
const pageHeaderSize = 8

// slotLayout computes each field's byte offset within a slot and the
// resulting slot width, with slot 0 starting immediately after the
// 8-byte page header rather than after record.Page's 4-byte slot flag.
type slotLayout struct {
	schema  *record.Schema
	offsets map[string]int
	size    int
}

func newSlotLayout(schema *record.Schema) *slotLayout {
	offsets := make(map[string]int, len(schema.Fields()))
	pos := 0
	for _, name := range schema.Fields() {
		offsets[name] = pos
		f, _ := schema.Field(name)
		pos += record.ByteLength(f)
	}
	return &slotLayout{schema: schema, offsets: offsets, size: pos}
}

func (l *slotLayout) offset(field string) int {
	off, ok := l.offsets[field]
	if !ok {
		panic("btree: field " + field + " not present in layout")
	}
	return off
}

// leafSchema returns the fixed three-field schema every leaf file uses:
// dataval (caller-supplied kind), block, id.
func leafSchema(datavalKind record.FieldType, datavalLen int) *record.Schema {
	s := record.NewSchema()
	addDataval(s, datavalKind, datavalLen)
	s.AddIntField("block")
	s.AddIntField("id")
	return s
}

// dirSchema returns the fixed two-field schema every directory file
// uses: dataval, block (child block number).
func dirSchema(datavalKind record.FieldType, datavalLen int) *record.Schema {
	s := record.NewSchema()
	addDataval(s, datavalKind, datavalLen)
	s.AddIntField("block")
	return s
}

func addDataval(s *record.Schema, kind record.FieldType, length int) {
	switch kind {
	case record.Integer:
		s.AddIntField("dataval")
	case record.Varchar:
		s.AddStringField("dataval", length)
	default:
		panic("btree: unknown dataval kind")
	}
}
