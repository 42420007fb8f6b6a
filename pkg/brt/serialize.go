package brt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/cuemby/pgbackup/pkg/types"
)

// Magic is the 4-byte file signature ("RBAT") at the start of a
// serialized block reference table (spec.md §6).
const Magic uint32 = 0x52424154

// Version is the current on-disk format version.
const Version uint16 = 1

const (
	kindArrayByte  byte = 0
	kindBitmapByte byte = 1

	// forkKeySize is the 24-byte on-disk key: three 4-byte OIDs, a 4-byte
	// fork tag, and 8 reserved bytes for future key extension.
	forkKeySize = 24
)

// Serialize writes the table to w in the format described by spec.md §6:
// magic, version, then per fork-key a 24-byte key, chunk count, and each
// chunk's index/kind/payload, followed by a trailing CRC32 over everything
// preceding it.
func (t *Table) Serialize(w io.Writer) error {
	var buf bytes.Buffer

	if err := binary.Write(&buf, binary.LittleEndian, Magic); err != nil {
		return fmt.Errorf("brt: write magic: %w", err)
	}
	if err := binary.Write(&buf, binary.LittleEndian, Version); err != nil {
		return fmt.Errorf("brt: write version: %w", err)
	}

	if err := binary.Write(&buf, binary.LittleEndian, uint32(len(t.order))); err != nil {
		return fmt.Errorf("brt: write key count: %w", err)
	}

	for _, key := range t.order {
		if err := writeForkKey(&buf, key); err != nil {
			return err
		}
		entry := t.entries[key]

		if err := binary.Write(&buf, binary.LittleEndian, uint16(len(entry.order))); err != nil {
			return fmt.Errorf("brt: write chunk count: %w", err)
		}
		for _, idx := range entry.order {
			c := entry.chunks[idx]
			if err := writeChunk(&buf, c); err != nil {
				return err
			}
		}
	}

	sum := crc32.ChecksumIEEE(buf.Bytes())
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("brt: write body: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, sum); err != nil {
		return fmt.Errorf("brt: write crc: %w", err)
	}
	return nil
}

func writeForkKey(w io.Writer, key types.RelationForkKey) error {
	var raw [forkKeySize]byte
	binary.LittleEndian.PutUint32(raw[0:4], key.TablespaceOID)
	binary.LittleEndian.PutUint32(raw[4:8], key.DatabaseOID)
	binary.LittleEndian.PutUint32(raw[8:12], key.RelationOID)
	binary.LittleEndian.PutUint32(raw[12:16], uint32(key.ForkID))
	// raw[16:24] reserved, zero-filled
	if _, err := w.Write(raw[:]); err != nil {
		return fmt.Errorf("brt: write fork key: %w", err)
	}
	return nil
}

func readForkKey(r io.Reader) (types.RelationForkKey, error) {
	var raw [forkKeySize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return types.RelationForkKey{}, fmt.Errorf("brt: read fork key: %w", err)
	}
	return types.RelationForkKey{
		TablespaceOID: binary.LittleEndian.Uint32(raw[0:4]),
		DatabaseOID:   binary.LittleEndian.Uint32(raw[4:8]),
		RelationOID:   binary.LittleEndian.Uint32(raw[8:12]),
		ForkID:        types.Fork(binary.LittleEndian.Uint32(raw[12:16])),
	}, nil
}

func writeChunk(w io.Writer, c *chunk) error {
	if err := binary.Write(w, binary.LittleEndian, c.index); err != nil {
		return fmt.Errorf("brt: write chunk index: %w", err)
	}

	switch c.kind {
	case kindArray:
		if _, err := w.Write([]byte{kindArrayByte}); err != nil {
			return fmt.Errorf("brt: write chunk kind: %w", err)
		}
		if err := binary.Write(w, binary.LittleEndian, uint16(len(c.array))); err != nil {
			return fmt.Errorf("brt: write array length: %w", err)
		}
		for _, off := range c.array {
			if err := binary.Write(w, binary.LittleEndian, off); err != nil {
				return fmt.Errorf("brt: write array entry: %w", err)
			}
		}
	case kindBitmap:
		if _, err := w.Write([]byte{kindBitmapByte}); err != nil {
			return fmt.Errorf("brt: write chunk kind: %w", err)
		}
		var raw [ChunkBlocks / 8]byte
		for i, word := range c.bits {
			binary.LittleEndian.PutUint64(raw[i*8:i*8+8], word)
		}
		if _, err := w.Write(raw[:]); err != nil {
			return fmt.Errorf("brt: write bitmap: %w", err)
		}
	default:
		return fmt.Errorf("brt: unknown chunk kind %d", c.kind)
	}
	return nil
}

// Deserialize reads a table previously written by Serialize, verifying the
// magic, version, and trailing CRC32.
func Deserialize(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("brt: read: %w", err)
	}
	if len(data) < 4 {
		return nil, fmt.Errorf("brt: truncated file")
	}

	body, trailer := data[:len(data)-4], data[len(data)-4:]
	wantCRC := binary.LittleEndian.Uint32(trailer)
	gotCRC := crc32.ChecksumIEEE(body)
	if gotCRC != wantCRC {
		return nil, fmt.Errorf("brt: CRC mismatch: got %08x, want %08x", gotCRC, wantCRC)
	}

	br := bytes.NewReader(body)

	var magic uint32
	if err := binary.Read(br, binary.LittleEndian, &magic); err != nil {
		return nil, fmt.Errorf("brt: read magic: %w", err)
	}
	if magic != Magic {
		return nil, fmt.Errorf("brt: bad magic %08x", magic)
	}

	var version uint16
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("brt: read version: %w", err)
	}
	if version != Version {
		return nil, fmt.Errorf("brt: unsupported version %d", version)
	}

	var keyCount uint32
	if err := binary.Read(br, binary.LittleEndian, &keyCount); err != nil {
		return nil, fmt.Errorf("brt: read key count: %w", err)
	}

	table := New()
	for i := uint32(0); i < keyCount; i++ {
		key, err := readForkKey(br)
		if err != nil {
			return nil, err
		}

		var chunkCount uint16
		if err := binary.Read(br, binary.LittleEndian, &chunkCount); err != nil {
			return nil, fmt.Errorf("brt: read chunk count: %w", err)
		}

		entry := newEntry()
		for c := uint16(0); c < chunkCount; c++ {
			ch, err := readChunk(br)
			if err != nil {
				return nil, err
			}
			entry.chunks[ch.index] = ch
			entry.order = append(entry.order, ch.index)
		}
		table.entries[key] = entry
		table.order = append(table.order, key)
	}

	return table, nil
}

func readChunk(r io.Reader) (*chunk, error) {
	c := &chunk{}
	if err := binary.Read(r, binary.LittleEndian, &c.index); err != nil {
		return nil, fmt.Errorf("brt: read chunk index: %w", err)
	}

	var kindByte [1]byte
	if _, err := io.ReadFull(r, kindByte[:]); err != nil {
		return nil, fmt.Errorf("brt: read chunk kind: %w", err)
	}

	switch kindByte[0] {
	case kindArrayByte:
		c.kind = kindArray
		var length uint16
		if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
			return nil, fmt.Errorf("brt: read array length: %w", err)
		}
		c.array = make([]uint16, length)
		for i := range c.array {
			if err := binary.Read(r, binary.LittleEndian, &c.array[i]); err != nil {
				return nil, fmt.Errorf("brt: read array entry: %w", err)
			}
		}
	case kindBitmapByte:
		c.kind = kindBitmap
		var raw [ChunkBlocks / 8]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, fmt.Errorf("brt: read bitmap: %w", err)
		}
		for i := range c.bits {
			c.bits[i] = binary.LittleEndian.Uint64(raw[i*8 : i*8+8])
		}
	default:
		return nil, fmt.Errorf("brt: unknown chunk kind byte %d", kindByte[0])
	}
	return c, nil
}
