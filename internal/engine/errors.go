package engine

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors surfaced by the engine. All are recoverable and
// caller-visible; handlers map them onto HTTP status codes.
var (
	ErrNotFound                = errors.New("not found")
	ErrRegistrationClosed      = errors.New("registration window closed")
	ErrRegistrationRefunded    = errors.New("registration refunded")
	ErrAccessRemovalBlocked    = errors.New("cannot remove access items from a paid registration")
	ErrCircularDependency      = errors.New("circular prerequisite dependency")
	ErrInvalidStatusTransition = errors.New("invalid payment status transition")
	ErrCapacityExceeded        = errors.New("capacity exceeded")
	ErrDuplicateKey            = errors.New("duplicate idempotency key")
)

// Validation issue codes.
const (
	IssueInvalidSelection     = "invalid_selection"
	IssueItemUnavailable      = "item_unavailable"
	IssueConditionsNotMet     = "conditions_not_met"
	IssueMissingPrerequisite  = "missing_prerequisite"
	IssueTimeConflict         = "time_conflict"
	IssueInsufficientCapacity = "insufficient_capacity"
)

// ValidationIssue is one problem with a submitted selection, tied to the
// offending item where one exists.
type ValidationIssue struct {
	Code          string     `json:"code"`
	AccessItemID  *uuid.UUID `json:"access_item_id,omitempty"`
	ConflictsWith *uuid.UUID `json:"conflicts_with,omitempty"`
	Message       string     `json:"message"`
}

// ValidationError carries every issue found in a submission so callers can
// show all problems at once instead of fixing them one at a time.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "selection invalid: " + e.Issues[0].Message
	}
	return fmt.Sprintf("selection invalid: %d issues", len(e.Issues))
}

// CapacityError reports a failed reservation with the seats still left.
type CapacityError struct {
	ItemID    uuid.UUID
	Name      string
	Requested int
	Remaining int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: requested %d, %d remaining", e.Name, e.Requested, e.Remaining)
}

// Is makes errors.Is(err, ErrCapacityExceeded) match capacity errors.
func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacityExceeded
}
