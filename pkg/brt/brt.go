// Package brt implements the block reference table: a per-relation-fork
// set of modified block numbers, chunked and stored as either a sorted
// array or a bitmap depending on chunk density (spec.md §4.5). It is
// mutated only during backup execution, then serialized once and treated
// as immutable (spec.md §3 "Lifecycles").
package brt

import (
	"errors"
	"sort"

	"github.com/cuemby/pgbackup/pkg/types"
)

// ChunkBlocks is the number of consecutive block numbers one chunk covers
// (2^16, spec.md §3).
const ChunkBlocks = 1 << 16

// arrayToBitmapThreshold is the array length past which a chunk converts
// to a bitmap: insert number 4,097 triggers the switch (spec.md §4.5,
// "Build" test case).
const arrayToBitmapThreshold = 4096

// bitmapWords is the number of uint64 words backing a chunk's bitmap
// (2^16 bits / 64).
const bitmapWords = ChunkBlocks / 64

// ErrOverflow is returned by Entry.GetBlocks when out has insufficient
// capacity for the blocks in range.
var ErrOverflow = errors.New("brt: output capacity exceeded")

// kind distinguishes a chunk's storage representation.
type kind uint8

const (
	kindArray kind = iota
	kindBitmap
)

// chunk holds one 64K-block window of a fork's modified blocks.
type chunk struct {
	index uint32
	kind  kind
	array []uint16         // sorted, unique, offsets within the chunk; used while kind == kindArray
	bits  [bitmapWords]uint64 // used while kind == kindBitmap
}

func (c *chunk) insert(offset uint16) {
	if c.kind == kindBitmap {
		c.bits[offset/64] |= 1 << (offset % 64)
		return
	}

	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= offset })
	if i < len(c.array) && c.array[i] == offset {
		return // already present
	}

	if len(c.array)+1 > arrayToBitmapThreshold {
		c.convertToBitmap()
		c.bits[offset/64] |= 1 << (offset % 64)
		return
	}

	c.array = append(c.array, 0)
	copy(c.array[i+1:], c.array[i:])
	c.array[i] = offset
}

func (c *chunk) convertToBitmap() {
	for _, off := range c.array {
		c.bits[off/64] |= 1 << (off % 64)
	}
	c.array = nil
	c.kind = kindBitmap
}

func (c *chunk) has(offset uint16) bool {
	if c.kind == kindBitmap {
		return c.bits[offset/64]&(1<<(offset%64)) != 0
	}
	i := sort.Search(len(c.array), func(i int) bool { return c.array[i] >= offset })
	return i < len(c.array) && c.array[i] == offset
}

// appendSorted appends every set offset in [lo, hi) (window-local, hi may
// be up to ChunkBlocks) to out in ascending order.
func (c *chunk) appendSorted(out []uint32, lo, hi uint32) []uint32 {
	if c.kind == kindArray {
		i := sort.Search(len(c.array), func(i int) bool { return uint32(c.array[i]) >= lo })
		for ; i < len(c.array) && uint32(c.array[i]) < hi; i++ {
			out = append(out, uint32(c.array[i]))
		}
		return out
	}
	for off := lo; off < hi; off++ {
		if c.bits[off/64]&(1<<(off%64)) != 0 {
			out = append(out, off)
		}
	}
	return out
}

// Entry is the per-fork-key set of modified blocks, stored as a sparse map
// of chunks keyed by block number >> 16.
type Entry struct {
	chunks map[uint32]*chunk
	order  []uint32 // chunk indices in insertion order, for deterministic serialization
}

func newEntry() *Entry {
	return &Entry{chunks: make(map[uint32]*chunk)}
}

// markBlock records block as modified within this entry.
func (e *Entry) markBlock(block uint32) {
	idx := block >> 16
	c, ok := e.chunks[idx]
	if !ok {
		c = &chunk{index: idx, kind: kindArray}
		e.chunks[idx] = c
		e.order = append(e.order, idx)
	}
	c.insert(uint16(block & 0xFFFF))
}

// GetBlocks emits, into out[:capacity], every distinct modified block in
// [lo, hi) in ascending order, returning the slice actually written and
// the count. If more than capacity blocks exist in range, it returns
// ErrOverflow and out is returned unmodified (empty).
func (e *Entry) GetBlocks(lo, hi uint32, out []uint32) ([]uint32, int, error) {
	if hi <= lo {
		return out[:0], 0, nil
	}

	firstChunk := lo >> 16
	lastChunk := (hi - 1) >> 16

	capacity := cap(out)
	result := out[:0]

	// Collect matching chunk indices in ascending order without requiring
	// a full scan of the table: the range [firstChunk, lastChunk] is
	// small in practice (a single relation fork spans few chunks).
	for idx := firstChunk; idx <= lastChunk; idx++ {
		c, ok := e.chunks[idx]
		if !ok {
			continue
		}
		base := idx << 16
		winLo := uint32(0)
		if lo > base {
			winLo = lo - base
		}
		winHi := uint32(ChunkBlocks)
		if hi < base+ChunkBlocks {
			winHi = hi - base
		}

		local := c.appendSorted(nil, winLo, winHi)
		for _, off := range local {
			if len(result) >= capacity {
				return out[:0], 0, ErrOverflow
			}
			result = append(result, base+off)
		}
	}
	return result, len(result), nil
}

// Table maps relation-fork keys to their block-change entries.
type Table struct {
	entries map[types.RelationForkKey]*Entry
	order   []types.RelationForkKey
}

// New returns an empty block reference table.
func New() *Table {
	return &Table{entries: make(map[types.RelationForkKey]*Entry)}
}

// MarkBlockModified records block as modified for key, creating the entry
// if this is the key's first modification.
func (t *Table) MarkBlockModified(key types.RelationForkKey, block uint32) {
	e, ok := t.entries[key]
	if !ok {
		e = newEntry()
		t.entries[key] = e
		t.order = append(t.order, key)
	}
	e.markBlock(block)
}

// GetEntry returns the entry for key, or (nil, false) if key was never marked.
func (t *Table) GetEntry(key types.RelationForkKey) (*Entry, bool) {
	e, ok := t.entries[key]
	return e, ok
}

// Keys returns the fork keys present in the table, in the order they were
// first marked.
func (t *Table) Keys() []types.RelationForkKey {
	return append([]types.RelationForkKey(nil), t.order...)
}

// Len returns the number of fork keys tracked.
func (t *Table) Len() int { return len(t.order) }
