package event

import (
	"sync"
	"time"
)

// DefaultParkedLimit bounds the parked-record log when no limit is
// configured.
const DefaultParkedLimit = 1000

// ParkedRecord retains a faulted record for later inspection. The
// record's references stay reachable while parked, so collector walks
// over parked records are unnecessary: the refs live in ordinary Go
// values here, not in reusable queue slots.
type ParkedRecord struct {
	// Record is the record as it was dispatched.
	Record Record

	// Err is the contained fault.
	Err error

	// At is when the fault was contained.
	At time.Time

	// Attempts counts dispatches, including the original.
	Attempts int
}

// ParkedRecords is a bounded log of faulted records. When the log is
// full the oldest record is evicted. Unlike the store's queues it is
// safe for concurrent use: parking happens on the drain path while
// inspection may come from anywhere.
type ParkedRecords struct {
	mu      sync.RWMutex
	records []ParkedRecord
	max     int

	parked    int64
	evicted   int64
	recovered int64
}

// NewParkedRecords creates a log holding at most max records.
func NewParkedRecords(max int) *ParkedRecords {
	if max <= 0 {
		max = DefaultParkedLimit
	}
	return &ParkedRecords{max: max}
}

// Park appends a faulted record, evicting the oldest when full.
func (p *ParkedRecords) Park(rec Record, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.records) >= p.max {
		p.records = p.records[1:]
		p.evicted++
	}

	p.records = append(p.records, ParkedRecord{
		Record:   rec,
		Err:      err,
		At:       time.Now(),
		Attempts: 1,
	})
	p.parked++
}

// All returns the parked records, oldest first.
func (p *ParkedRecords) All() []ParkedRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]ParkedRecord(nil), p.records...)
}

// Len returns the number of parked records.
func (p *ParkedRecords) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.records)
}

// Clear discards all parked records.
func (p *ParkedRecords) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = nil
}

// Reprocess redispatches every parked record and reports how many
// succeeded. Successful records leave the log; records that fault again
// stay parked with their attempt count raised and the newest error.
func (p *ParkedRecords) Reprocess(dispatch func(Record) error) int {
	p.mu.Lock()
	batch := p.records
	p.records = nil
	p.mu.Unlock()

	var failed []ParkedRecord
	succeeded := 0
	for _, parked := range batch {
		if err := dispatch(parked.Record); err != nil {
			parked.Err = err
			parked.At = time.Now()
			parked.Attempts++
			failed = append(failed, parked)
			continue
		}
		succeeded++
	}

	p.mu.Lock()
	// Records parked while reprocessing ran come after the retained
	// failures, keeping oldest-first order.
	p.records = append(failed, p.records...)
	p.recovered += int64(succeeded)
	p.mu.Unlock()

	return succeeded
}

// Stats returns counters describing the log's history.
func (p *ParkedRecords) Stats() ParkedStats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ParkedStats{
		Size:      len(p.records),
		Parked:    p.parked,
		Evicted:   p.evicted,
		Recovered: p.recovered,
	}
}

// ParkedStats describes a parked-record log.
type ParkedStats struct {
	Size      int   // records currently parked
	Parked    int64 // total records ever parked
	Evicted   int64 // records dropped to respect the limit
	Recovered int64 // records that succeeded on reprocessing
}
