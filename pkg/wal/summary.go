package wal

// Summary accumulates a per-resource-manager record count and byte total,
// mirroring the original tool's rmgr_summary/rmgr_stats tables (used by
// the `pgbackup wal summary` CLI verb to report what a WAL segment
// contains without a full decode pass).
type Summary struct {
	counts [rmMaxID + 1]int
	bytes  [rmMaxID + 1]uint64
}

// NewSummary returns an empty Summary.
func NewSummary() *Summary { return &Summary{} }

// Add folds one decoded record into the summary.
func (s *Summary) Add(r *Record) {
	s.counts[r.ResourceMgrID]++
	s.bytes[r.ResourceMgrID] += uint64(r.TotalLength)
}

// Row is one resource manager's tallied statistics.
type Row struct {
	Name    string
	Records int
	Bytes   uint64
}

// Rows returns one Row per resource manager that had at least one record,
// in resource-manager-ID order.
func (s *Summary) Rows() []Row {
	var rows []Row
	for id := 0; id <= rmMaxID; id++ {
		if s.counts[id] == 0 {
			continue
		}
		rows = append(rows, Row{
			Name:    rmgrTable[id].name,
			Records: s.counts[id],
			Bytes:   s.bytes[id],
		})
	}
	return rows
}
