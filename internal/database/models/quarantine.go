package models

import (
	"fmt"
	"time"
)

// QuarantineKind is the stable taxonomy of unprocessable records.
type QuarantineKind string

const (
	QuarantineSelfCall        QuarantineKind = "INTERNAL_SELF_CALL"
	QuarantineIgnoredCall     QuarantineKind = "IGNORED_CALL"
	QuarantineProcessingError QuarantineKind = "PROCESSING_ERROR"
	QuarantineUnknownLocation QuarantineKind = "UNKNOWN_LOCATION"
	QuarantineInvalidRecord   QuarantineKind = "INVALID_RECORD"
)

// QuarantineError is returned by a processing step that cannot classify or
// tariff a record. It is terminal for the record, never for the batch.
type QuarantineError struct {
	Kind   QuarantineKind
	Reason string
	Step   string
}

func (e *QuarantineError) Error() string {
	return fmt.Sprintf("%s at %s: %s", e.Kind, e.Step, e.Reason)
}

// Quarantine constructs a QuarantineError.
func Quarantine(kind QuarantineKind, step, reason string) *QuarantineError {
	return &QuarantineError{Kind: kind, Reason: reason, Step: step}
}

// QuarantinedCall is a persisted quarantine entry.
type QuarantinedCall struct {
	ID            string
	LocationID    int64
	Kind          QuarantineKind
	Reason        string
	Step          string
	CallingNumber string
	CalledNumber  string
	StartTime     time.Time
	Duration      int
	CreatedAt     time.Time
}
