package wal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"
	"testing"
)

// encodeRecord builds one on-wire WAL record the way NewReader expects to
// decode it, for test fixtures.
func encodeRecord(rmgr uint8, info uint8, xid uint32, prevLSN uint64, data []byte) []byte {
	total := uint32(HeaderSize + len(data))
	var header [HeaderSize]byte
	binary.LittleEndian.PutUint32(header[0:4], total)
	binary.LittleEndian.PutUint32(header[4:8], xid)
	binary.LittleEndian.PutUint64(header[8:16], prevLSN)
	header[16] = info
	header[17] = rmgr

	crc := crc32.ChecksumIEEE(append(append([]byte{}, header[:20]...), data...))
	binary.LittleEndian.PutUint32(header[20:24], crc)

	return append(header[:], data...)
}

func TestReadBasicRecord(t *testing.T) {
	data := []byte("payload")
	raw := encodeRecord(RM_XACT_ID, 0x01, 42, 0, data)

	r := NewReader(bytes.NewReader(raw), 1000, ServerVersion{Major: 17})
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.ResourceMgrID != RM_XACT_ID || rec.TransactionID != 42 {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if string(rec.Data) != "payload" {
		t.Fatalf("Data = %q", rec.Data)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Fatalf("expected EOF after single record, got %v", err)
	}
}

func TestReadDecodesBlockRefsForHeap(t *testing.T) {
	refs := []BlockRef{
		{TablespaceOID: 1663, DatabaseOID: 16384, RelationOID: 1234, ForkID: 0, BlockNumber: 5},
		{TablespaceOID: 1663, DatabaseOID: 16384, RelationOID: 1234, ForkID: 0, BlockNumber: 6},
	}
	raw := encodeRecord(RM_HEAP_ID, 0, 1, 0, EncodeBlockRefs(refs))

	r := NewReader(bytes.NewReader(raw), 0, ServerVersion{Major: 17})
	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if len(rec.BlockRefs) != 2 || rec.BlockRefs[1].BlockNumber != 6 {
		t.Fatalf("BlockRefs = %+v", rec.BlockRefs)
	}
}

func TestReadBadCRCFatalByDefault(t *testing.T) {
	raw := encodeRecord(RM_XACT_ID, 0, 1, 0, []byte("x"))
	raw[len(raw)-1] ^= 0xFF // corrupt CRC

	r := NewReader(bytes.NewReader(raw), 0, ServerVersion{Major: 17})
	if _, err := r.Next(); err == nil {
		t.Fatal("expected CRC error")
	}
}

func TestReadUnknownRmgrFatalByDefault(t *testing.T) {
	raw := encodeRecord(250, 0, 1, 0, nil)

	r := NewReader(bytes.NewReader(raw), 0, ServerVersion{Major: 17})
	if _, err := r.Next(); err == nil {
		t.Fatal("expected unknown rmgr error")
	}
}

func TestBestEffortSkipsUnknownRmgr(t *testing.T) {
	bad := encodeRecord(250, 0, 1, 0, nil)
	good := encodeRecord(RM_XACT_ID, 0, 2, 0, []byte("ok"))

	r := NewReader(bytes.NewReader(append(bad, good...)), 0, ServerVersion{Major: 17})
	r.BestEffort = true

	rec, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if rec.TransactionID != 2 {
		t.Fatalf("expected to skip bad record and land on the good one, got %+v", rec)
	}
}

func TestSummaryRows(t *testing.T) {
	s := NewSummary()
	s.Add(&Record{ResourceMgrID: RM_XACT_ID, TotalLength: 30})
	s.Add(&Record{ResourceMgrID: RM_XACT_ID, TotalLength: 40})
	s.Add(&Record{ResourceMgrID: RM_HEAP_ID, TotalLength: 100})

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() = %v", rows)
	}
	if rows[0].Name != "Transaction" || rows[0].Records != 2 || rows[0].Bytes != 70 {
		t.Fatalf("row[0] = %+v", rows[0])
	}
}
