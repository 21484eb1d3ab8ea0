package models

import "time"

// Operation is a sync action against a remote calendar.
type Operation string

const (
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
)

// ParseOperation validates an operation name.
func ParseOperation(s string) (Operation, bool) {
	switch op := Operation(s); op {
	case OperationCreate, OperationUpdate, OperationDelete:
		return op, true
	default:
		return "", false
	}
}

// Outcome is the result status of a sync attempt.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

// SyncRecord is one entry of the append-only sync audit log.
// Operation is what was actually performed, which differs from
// RequestedOperation when an update fell back to a create.
type SyncRecord struct {
	ID                 string
	AccountID          string
	IntegrationID      string
	SourceEventID      string
	Operation          Operation
	RequestedOperation Operation
	Outcome            Outcome
	Error              *string
	ExternalID         *string
	CreatedAt          time.Time
}
