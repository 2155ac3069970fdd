package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/SimonWaldherr/simpledb/internal/storage/blockid"
)

// RecordType tags the six arms a log Record can take.
type RecordType uint8

const (
	TypeCheckpoint RecordType = iota
	TypeStart
	TypeCommit
	TypeRollback
	TypeSetInt
	TypeSetString
)

// Record is a tagged-variant log entry. Only the fields relevant to its
// Type are meaningful; SetInt/SetString carry the pre-image of the value
// they overwrote, enabling physical undo.
type Record struct {
	Type      RecordType
	TxNum     int64
	Block     blockid.BlockID // SetInt, SetString
	Offset    int             // SetInt, SetString
	OldInt    int32           // SetInt
	OldString string          // SetString
}

// Checkpoint builds a Checkpoint record.
func Checkpoint() Record { return Record{Type: TypeCheckpoint} }

// Start builds a Start{tx} record.
func Start(tx int64) Record { return Record{Type: TypeStart, TxNum: tx} }

// Commit builds a Commit{tx} record.
func Commit(tx int64) Record { return Record{Type: TypeCommit, TxNum: tx} }

// Rollback builds a Rollback{tx} record.
func Rollback(tx int64) Record { return Record{Type: TypeRollback, TxNum: tx} }

// SetInt builds a SetInt{tx, block, offset, old} record carrying the
// pre-image old so the mutation can be undone.
func SetInt(tx int64, block blockid.BlockID, offset int, old int32) Record {
	return Record{Type: TypeSetInt, TxNum: tx, Block: block, Offset: offset, OldInt: old}
}

// SetString builds a SetString{tx, block, offset, old} record carrying
// the pre-image old so the mutation can be undone.
func SetString(tx int64, block blockid.BlockID, offset int, old string) Record {
	return Record{Type: TypeSetString, TxNum: tx, Block: block, Offset: offset, OldString: old}
}

// Encode serializes r to its on-log-page byte form. The wire tag plus
// payload fully identifies the variant; the exact layout is an
// implementation choice as long as it round-trips losslessly.
func Encode(r Record) []byte {
	switch r.Type {
	case TypeCheckpoint:
		return []byte{byte(TypeCheckpoint)}
	case TypeStart, TypeCommit, TypeRollback:
		buf := make([]byte, 1+8)
		buf[0] = byte(r.Type)
		binary.LittleEndian.PutUint64(buf[1:], uint64(r.TxNum))
		return buf
	case TypeSetInt:
		fileBytes := []byte(r.Block.FileID)
		buf := make([]byte, 1+8+4+len(fileBytes)+8+8+4)
		i := 0
		buf[i] = byte(r.Type)
		i++
		binary.LittleEndian.PutUint64(buf[i:], uint64(r.TxNum))
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], uint32(len(fileBytes)))
		i += 4
		copy(buf[i:], fileBytes)
		i += len(fileBytes)
		binary.LittleEndian.PutUint64(buf[i:], r.Block.Num)
		i += 8
		binary.LittleEndian.PutUint64(buf[i:], uint64(r.Offset))
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], uint32(r.OldInt))
		return buf
	case TypeSetString:
		fileBytes := []byte(r.Block.FileID)
		valBytes := []byte(r.OldString)
		buf := make([]byte, 1+8+4+len(fileBytes)+8+8+4+len(valBytes))
		i := 0
		buf[i] = byte(r.Type)
		i++
		binary.LittleEndian.PutUint64(buf[i:], uint64(r.TxNum))
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], uint32(len(fileBytes)))
		i += 4
		copy(buf[i:], fileBytes)
		i += len(fileBytes)
		binary.LittleEndian.PutUint64(buf[i:], r.Block.Num)
		i += 8
		binary.LittleEndian.PutUint64(buf[i:], uint64(r.Offset))
		i += 8
		binary.LittleEndian.PutUint32(buf[i:], uint32(len(valBytes)))
		i += 4
		copy(buf[i:], valBytes)
		return buf
	default:
		panic(fmt.Sprintf("wal: unknown record type %d", r.Type))
	}
}

// Decode parses a record previously produced by Encode.
func Decode(buf []byte) (Record, error) {
	if len(buf) < 1 {
		return Record{}, fmt.Errorf("wal: decode: empty record")
	}
	typ := RecordType(buf[0])
	switch typ {
	case TypeCheckpoint:
		return Checkpoint(), nil
	case TypeStart, TypeCommit, TypeRollback:
		if len(buf) < 9 {
			return Record{}, fmt.Errorf("wal: decode: truncated record")
		}
		tx := int64(binary.LittleEndian.Uint64(buf[1:9]))
		return Record{Type: typ, TxNum: tx}, nil
	case TypeSetInt:
		if len(buf) < 13 {
			return Record{}, fmt.Errorf("wal: decode: truncated SetInt")
		}
		i := 1
		tx := int64(binary.LittleEndian.Uint64(buf[i:]))
		i += 8
		flen := int(binary.LittleEndian.Uint32(buf[i:]))
		i += 4
		if len(buf) < i+flen+8+8+4 {
			return Record{}, fmt.Errorf("wal: decode: truncated SetInt body")
		}
		fileID := string(buf[i : i+flen])
		i += flen
		num := binary.LittleEndian.Uint64(buf[i:])
		i += 8
		offset := int(binary.LittleEndian.Uint64(buf[i:]))
		i += 8
		old := int32(binary.LittleEndian.Uint32(buf[i:]))
		return Record{
			Type: typ, TxNum: tx, Block: blockid.New(fileID, num),
			Offset: offset, OldInt: old,
		}, nil
	case TypeSetString:
		i := 1
		if len(buf) < i+8+4 {
			return Record{}, fmt.Errorf("wal: decode: truncated SetString")
		}
		tx := int64(binary.LittleEndian.Uint64(buf[i:]))
		i += 8
		flen := int(binary.LittleEndian.Uint32(buf[i:]))
		i += 4
		if len(buf) < i+flen+8+8+4 {
			return Record{}, fmt.Errorf("wal: decode: truncated SetString body")
		}
		fileID := string(buf[i : i+flen])
		i += flen
		num := binary.LittleEndian.Uint64(buf[i:])
		i += 8
		offset := int(binary.LittleEndian.Uint64(buf[i:]))
		i += 8
		vlen := int(binary.LittleEndian.Uint32(buf[i:]))
		i += 4
		if len(buf) < i+vlen {
			return Record{}, fmt.Errorf("wal: decode: truncated SetString value")
		}
		val := string(buf[i : i+vlen])
		return Record{
			Type: typ, TxNum: tx, Block: blockid.New(fileID, num),
			Offset: offset, OldString: val,
		}, nil
	default:
		return Record{}, fmt.Errorf("wal: decode: unknown record type %d", typ)
	}
}
