package ingest

import (
	"sync"
	"time"

	"github.com/ummahlocal/scout-cli/internal/model"
)

// SourceStatus is the lifecycle state of one source within a run.
type SourceStatus string

const (
	SourcePending   SourceStatus = "PENDING"
	SourceRunning   SourceStatus = "RUNNING"
	SourceCompleted SourceStatus = "COMPLETED"
	SourceFailed    SourceStatus = "FAILED"
	SourceSkipped   SourceStatus = "SKIPPED"
)

// SourceError records one source-level failure for the run summary.
type SourceError struct {
	Source    model.Source `json:"source"`
	Message   string       `json:"message"`
	Timestamp time.Time    `json:"timestamp"`
}

// RunStats aggregates counters across all sources in a run. Safe for
// concurrent use by the per-source goroutines.
type RunStats struct {
	mu sync.Mutex

	Attempted  int
	Staged     int
	Duplicates int
	Skipped    int
	Errored    int

	Statuses map[model.Source]SourceStatus
	Errors   []SourceError
}

func newRunStats() *RunStats {
	return &RunStats{Statuses: make(map[model.Source]SourceStatus)}
}

func (s *RunStats) setStatus(src model.Source, status SourceStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Statuses[src] = status
}

func (s *RunStats) addAttempted() {
	s.mu.Lock()
	s.Attempted++
	s.mu.Unlock()
}

func (s *RunStats) addStaged() {
	s.mu.Lock()
	s.Staged++
	s.mu.Unlock()
}

func (s *RunStats) addDuplicate() {
	s.mu.Lock()
	s.Duplicates++
	s.mu.Unlock()
}

func (s *RunStats) addError(src model.Source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errored++
	s.Errors = append(s.Errors, SourceError{
		Source:    src,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

func (s *RunStats) addSkipped(src model.Source, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Skipped++
	s.Statuses[src] = SourceSkipped
	s.Errors = append(s.Errors, SourceError{
		Source:    src,
		Message:   msg,
		Timestamp: time.Now().UTC(),
	})
}

// HasFailures reports whether any source failed outright. Partial failure
// does not change the process exit code; callers use this for the summary
// line only.
func (s *RunStats) HasFailures() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.Statuses {
		if st == SourceFailed {
			return true
		}
	}
	return false
}
