package proc

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Table holds the records of one run, in stage order, with an index from
// pid to record. Each record is resolved exactly once.
type Table struct {
	mu      sync.Mutex
	records []Record
	byPid   map[int]int
	pending int
}

// NewTable returns an empty table sized for n stages.
func NewTable(n int) *Table {
	return &Table{
		records: make([]Record, 0, n),
		byPid:   make(map[int]int, n),
	}
}

// Add appends a record. Records must be added in stage order.
func (t *Table) Add(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, r)
	if !r.Done() && r.Pid > 0 {
		t.byPid[r.Pid] = len(t.records) - 1
		t.pending++
	}
}

// Resolve records the outcome for pid. It returns false for pids that are
// unknown or already resolved.
func (t *Table) Resolve(pid int, o Outcome) (Record, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.byPid[pid]
	if !ok {
		return Record{}, false
	}
	delete(t.byPid, pid)
	t.pending--
	t.records[i].Outcome = o
	return t.records[i], true
}

// Pending returns the number of unresolved records.
func (t *Table) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

// Records returns a snapshot of all records in stage order.
func (t *Table) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

// Signal sends sig to every process that has not been resolved and
// returns how many were signalled.
//
// A pid is removed from the table only after it has been reaped, so there
// is a short window where a reaped but unresolved pid can be signalled.
func (t *Table) Signal(sig syscall.Signal) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for pid := range t.byPid {
		if err := unix.Kill(pid, sig); err == nil {
			n++
		}
	}
	return n
}
