package migration

import (
	"errors"
	"time"

	"github.com/zjrosen/idosync/internal/idos"
)

// Summary is the outcome of a pass that was not aborted.
type Summary struct {
	RunID       string        `json:"run_id"`
	DryRun      bool          `json:"dry_run"`
	Interrupted bool          `json:"interrupted,omitempty"`
	Duration    time.Duration `json:"duration_ns"`

	OwnersTotal     int `json:"owners_total"`
	OwnersProcessed int `json:"owners_processed"`
	OwnersEmpty     int `json:"owners_empty"`
	OwnersFailed    int `json:"owners_failed"`

	RecordsScanned   int `json:"records_scanned"`
	RecordsChanged   int `json:"records_changed"`
	RecordsUpdated   int `json:"records_updated"`
	RecordsUnchanged int `json:"records_unchanged"`
	RecordsSkipped   int `json:"records_skipped"`
	RecordsFailed    int `json:"records_failed"`

	Actions  map[idos.Action]int `json:"actions"`
	Failures []Failure           `json:"failures,omitempty"`
}

// Failure is one owner or record the pass could not handle.
type Failure struct {
	Owner   string `json:"owner"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func newSummary(runID string, dryRun bool) *Summary {
	return &Summary{
		RunID:   runID,
		DryRun:  dryRun,
		Actions: make(map[idos.Action]int),
	}
}

func (s *Summary) addFailure(err error) {
	f := Failure{Message: err.Error(), Err: err}

	var ownerErr *OwnerReadError
	var writeErr *RecordWriteError
	switch {
	case errors.As(err, &writeErr):
		f.Owner, f.Key = writeErr.Owner, writeErr.Key
		s.RecordsFailed++
	case errors.As(err, &ownerErr):
		f.Owner = ownerErr.Owner
		s.OwnersFailed++
	}
	s.Failures = append(s.Failures, f)
}

// FailureCount returns the number of owners and records that failed.
func (s *Summary) FailureCount() int {
	return s.OwnersFailed + s.RecordsFailed
}

// Pending reports whether a dry run found changes to apply.
func (s *Summary) Pending() bool {
	return s.RecordsChanged > s.RecordsUpdated
}
