package vm

// HistoryLimit is how many records a History retains.
const HistoryLimit = 50

// An AccessRecord describes one completed access. Frame holds the slot or
// frame index the access resolved to, or -1 when a miss installed nothing.
type AccessRecord struct {
	VPN        uint64
	Hit        bool
	Frame      int
	EvictedVPN *uint64
}

// A TraceSink receives a copy of every access record as it is produced.
type TraceSink interface {
	Record(rec AccessRecord)
}

// A History is a bounded ring of the most recent access records. It exists
// for visualization and is never load-bearing for simulator correctness.
type History struct {
	records []AccessRecord
}

// NewHistory returns an empty History.
func NewHistory() *History {
	return &History{}
}

// Push appends r, discarding the oldest record once HistoryLimit is
// reached.
func (h *History) Push(r AccessRecord) {
	h.records = append(h.records, r)
	if len(h.records) > HistoryLimit {
		h.records = h.records[1:]
	}
}

// Last returns up to n of the most recent records, oldest first. n <= 0
// returns everything retained.
func (h *History) Last(n int) []AccessRecord {
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}

	out := make([]AccessRecord, n)
	copy(out, h.records[len(h.records)-n:])

	return out
}

// Len returns the number of retained records.
func (h *History) Len() int {
	return len(h.records)
}

// Reset discards every record.
func (h *History) Reset() {
	h.records = h.records[:0]
}

// A DisplayRecord is an AccessRecord rendered for a status snapshot, VPNs in
// lowercase 0x-hex.
type DisplayRecord struct {
	VPN        string `json:"vpn"`
	Hit        bool   `json:"hit"`
	Frame      int    `json:"frame"`
	EvictedVPN string `json:"evicted_vpn,omitempty"`
}

// Display renders records for a status snapshot.
func Display(records []AccessRecord) []DisplayRecord {
	out := make([]DisplayRecord, len(records))
	for i, r := range records {
		out[i] = DisplayRecord{
			VPN:   FormatHex(r.VPN),
			Hit:   r.Hit,
			Frame: r.Frame,
		}
		if r.EvictedVPN != nil {
			out[i].EvictedVPN = FormatHex(*r.EvictedVPN)
		}
	}

	return out
}
