package testutil

import (
	"sync"
	"time"
)

// ExecutionRecord is when one recorded run started and ended.
type ExecutionRecord struct {
	Start time.Time
	End   time.Time
}

// Recorder records the order and timing of concurrent runs.
type Recorder struct {
	mu      sync.Mutex
	order   []string
	records map[string]*ExecutionRecord
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{records: make(map[string]*ExecutionRecord)}
}

// Run records id around fn.
func (r *Recorder) Run(id string, fn func()) {
	start := time.Now()
	if fn != nil {
		fn()
	}
	end := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
	r.records[id] = &ExecutionRecord{Start: start, End: end}
}

// Mark records id with no body.
func (r *Recorder) Mark(id string) { r.Run(id, nil) }

// Order returns the recorded IDs in completion order.
func (r *Recorder) Order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

// Index returns the completion position of id, or -1.
func (r *Recorder) Index(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.order {
		if v == id {
			return i
		}
	}
	return -1
}

// Record returns the timing of id.
func (r *Recorder) Record(id string) (*ExecutionRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.records = make(map[string]*ExecutionRecord)
}
