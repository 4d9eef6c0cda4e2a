package refs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/refgraph/pkg/object"
)

var (
	// ErrInvalidName is returned for names that violate the ref format.
	ErrInvalidName = errors.New("invalid reference name")
	// ErrInvalidEdit is returned for edits rejected before any lock is
	// taken: bad targets, duplicate names, unknown expectations.
	ErrInvalidEdit = errors.New("invalid reference edit")
	// ErrNotFound is returned when a reference does not exist.
	ErrNotFound = errors.New("reference not found")
	// ErrPreconditionFailed is returned when an edit's expected prior value
	// does not match the store. The store is left unchanged.
	ErrPreconditionFailed = errors.New("reference precondition failed")
	// ErrNameConflict is returned when a new ref would live inside, or
	// contain, an existing ref's path.
	ErrNameConflict = errors.New("reference name conflict")
	// ErrSymrefDepth is returned when a symbolic chain is cyclic or deeper
	// than the configured bound.
	ErrSymrefDepth = errors.New("symbolic reference too deep or cyclic")
	// ErrCorruptRef is returned when a ref file cannot be parsed.
	ErrCorruptRef = errors.New("corrupt reference")
	// ErrLockTimeout is returned when a ref lock cannot be acquired in time.
	ErrLockTimeout = errors.New("timed out waiting for reference lock")
	// ErrCommitFailed is returned when the durable write fails after
	// validation passed.
	ErrCommitFailed = errors.New("reference transaction commit failed")
	// ErrReflogAppend is returned when refs were committed but appending
	// to a reflog failed.
	ErrReflogAppend = errors.New("ref updated but reflog append failed")
)

// Mismatch describes one failed precondition.
type Mismatch struct {
	Name     Name
	Expected Expectation
	Actual   Target // nil when the ref is missing
}

func (m Mismatch) String() string {
	actual := "<missing>"
	if m.Actual != nil {
		actual = m.Actual.String()
	}
	return fmt.Sprintf("%s: expected %s, found %s", m.Name, m.Expected, actual)
}

// PreconditionError lists every edit whose expectation did not hold.
type PreconditionError struct {
	Mismatches []Mismatch
}

func (e *PreconditionError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, m.String())
	}
	return fmt.Sprintf("%s: %s", ErrPreconditionFailed, strings.Join(parts, "; "))
}

func (e *PreconditionError) Is(target error) bool {
	return target == ErrPreconditionFailed
}

// CommitError reports a failure during the swap phase. Refs listed in
// Applied already hold their new value; the rest are unchanged.
type CommitError struct {
	Applied []Name
	Failed  Name
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("%s at %q (%d already applied): %v", ErrCommitFailed, e.Failed, len(e.Applied), e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

func (e *CommitError) Is(target error) bool { return target == ErrCommitFailed }

// ReflogError indicates the ref update succeeded, but appending the
// corresponding reflog entry failed.
type ReflogError struct {
	Ref Name
	Old object.Hash
	New object.Hash
	Err error
}

func (e *ReflogError) Error() string {
	return fmt.Sprintf("update ref %q: %s (old=%s new=%s): %v", e.Ref, ErrReflogAppend, e.Old, e.New, e.Err)
}

func (e *ReflogError) Unwrap() error { return e.Err }

func (e *ReflogError) Is(target error) bool { return target == ErrReflogAppend }
