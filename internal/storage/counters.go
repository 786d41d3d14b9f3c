package storage

import "time"

// Snapshot is a point-in-time copy of every pipeline counter. The stats
// endpoint marshals it as-is.
type Snapshot struct {
	Reception     ReceptionCounters     `json:"reception"`
	Processing    ProcessingCounters    `json:"processing"`
	Filter        FilterCounters        `json:"filter"`
	Archive       ArchiveCounters       `json:"archive"`
	RemoteStorage RemoteStorageCounters `json:"remote_storage"`
	Studies       StudyCounters         `json:"studies"`
	Errors        ErrorCounters         `json:"errors"`
}

// ReceptionCounters track what the adapter handed over, before any parsing.
type ReceptionCounters struct {
	Images uint64 `json:"images"`
	Bytes  uint64 `json:"bytes"`
}

// ProcessingCounters track the ingest pipeline per image.
type ProcessingCounters struct {
	Images uint64           `json:"images"`
	Errors ProcessingErrors `json:"errors"`
	AvgMS  float64          `json:"avg_ms"`
}

// ProcessingErrors break ingest failures down by pipeline stage.
type ProcessingErrors struct {
	Validation    uint64 `json:"validation"`
	Anonymization uint64 `json:"anonymization"`
	Storage       uint64 `json:"storage"`
}

// FilterCounters track datasets rejected before anonymisation.
type FilterCounters struct {
	Dropped uint64 `json:"dropped"`
}

// ArchiveCounters track completion-time archiving attempts.
type ArchiveCounters struct {
	Studies uint64 `json:"studies"`
	Images  uint64 `json:"images"`
	Errors  uint64 `json:"errors"`
}

// RemoteStorageCounters track successful uploads and upload failures.
type RemoteStorageCounters struct {
	Studies uint64 `json:"studies"`
	Images  uint64 `json:"images"`
	Bytes   uint64 `json:"bytes"`
	Errors  uint64 `json:"errors"`
}

// StudyCounters track study lifecycle totals.
type StudyCounters struct {
	Active    int    `json:"active"`
	Completed uint64 `json:"completed"`
}

// ErrorCounters aggregate every error the pipeline counted anywhere.
type ErrorCounters struct {
	Total uint64 `json:"total"`
}

// counters is the mutable tree behind Snapshot. Guarded by the manager
// mutex.
type counters struct {
	reception     ReceptionCounters
	processing    ProcessingCounters
	filterDropped uint64
	archive       ArchiveCounters
	remote        RemoteStorageCounters
	completed     uint64
	errorsTotal   uint64

	processingTotal time.Duration
}

// snapshot returns a deep copy with the derived fields filled in.
func (c *counters) snapshot(activeStudies int) Snapshot {
	s := Snapshot{
		Reception:     c.reception,
		Processing:    c.processing,
		Filter:        FilterCounters{Dropped: c.filterDropped},
		Archive:       c.archive,
		RemoteStorage: c.remote,
		Studies:       StudyCounters{Active: activeStudies, Completed: c.completed},
		Errors:        ErrorCounters{Total: c.errorsTotal},
	}
	if c.processing.Images > 0 {
		s.Processing.AvgMS = c.processingTotal.Seconds() * 1000 / float64(c.processing.Images)
	}
	return s
}
