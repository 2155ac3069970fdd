package record

// flagSize is the width reserved for a slot's used/empty flag, ahead of
// its first field (spec.md §6.5).
const flagSize = 4

// Layout pairs a Schema with the byte offsets and overall slot size
// derived from it, mirroring original_source's Layout type (spec.md
// glossary: "per-table schema expressed as field-name -> type, length,
// offset, plus slot size").
type Layout struct {
	schema   *Schema
	offsets  map[string]int
	slotSize int
}

// NewLayout builds a Layout from explicit offsets and slot size, for
// callers restoring a layout whose geometry is already known (e.g. from
// a persisted catalog entry).
func NewLayout(schema *Schema, offsets map[string]int, slotSize int) *Layout {
	return &Layout{schema: schema, offsets: offsets, slotSize: slotSize}
}

// LayoutFromSchema computes each field's offset by walking schema in
// declaration order, starting just past the slot flag.
func LayoutFromSchema(schema *Schema) *Layout {
	offsets := make(map[string]int, len(schema.Fields()))
	pos := flagSize
	for _, name := range schema.Fields() {
		offsets[name] = pos
		f, _ := schema.Field(name)
		pos += ByteLength(f)
	}
	return NewLayout(schema, offsets, pos)
}

// ByteLength returns the number of bytes a field's wire encoding
// occupies within a slot.
func ByteLength(f Field) int {
	switch f.Type {
	case Integer:
		return 4
	case Varchar:
		return 4 + f.Length // big-endian u32 length prefix + ASCII payload
	default:
		panic("record: unknown field type")
	}
}

// Schema returns the layout's underlying schema.
func (l *Layout) Schema() *Schema { return l.schema }

// Offset returns the byte offset of field within a slot. Panics if
// field is not part of the layout's schema.
func (l *Layout) Offset(field string) int {
	off, ok := l.offsets[field]
	if !ok {
		panic("record: field " + field + " not present in layout")
	}
	return off
}

// SlotSize returns the total width of one slot, flag included.
func (l *Layout) SlotSize() int { return l.slotSize }
