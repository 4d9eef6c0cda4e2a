package refs

import (
	"fmt"

	"github.com/odvcencio/refgraph/pkg/object"
)

// Expectation constrains the value a ref must have when the transaction
// is validated. The set of implementations is closed.
type Expectation interface {
	isExpectation()
	String() string
}

type (
	// ExpectAny never fails.
	ExpectAny struct{}
	// ExpectMissing requires that the ref does not exist.
	ExpectMissing struct{}
	// ExpectExisting requires that the ref exists, with any value.
	ExpectExisting struct{}
	// ExpectDirect requires the ref to exist and point directly at ID.
	ExpectDirect struct{ ID object.Hash }
	// ExpectSymbolic requires the ref to exist and point at Name.
	ExpectSymbolic struct{ Name Name }
)

func (ExpectAny) isExpectation()      {}
func (ExpectMissing) isExpectation()  {}
func (ExpectExisting) isExpectation() {}
func (ExpectDirect) isExpectation()   {}
func (ExpectSymbolic) isExpectation() {}

func (ExpectAny) String() string        { return "any value" }
func (ExpectMissing) String() string    { return "no ref" }
func (ExpectExisting) String() string   { return "an existing ref" }
func (e ExpectDirect) String() string   { return string(e.ID) }
func (e ExpectSymbolic) String() string { return "ref: " + string(e.Name) }

// satisfied reports whether current (nil when missing) meets e.
func satisfied(e Expectation, current Target) bool {
	switch x := e.(type) {
	case nil, ExpectAny:
		return true
	case ExpectMissing:
		return current == nil
	case ExpectExisting:
		return current != nil
	case ExpectDirect:
		d, ok := current.(Direct)
		return ok && d.ID == x.ID
	case ExpectSymbolic:
		s, ok := current.(Symbolic)
		return ok && s.Name == x.Name
	default:
		panic(fmt.Sprintf("refs: unknown expectation type %T", e))
	}
}

// LogMode selects whether symbolic target changes are logged.
type LogMode int

const (
	// LogRefAndLog writes the ref and, when WriteReflog is set, a reflog
	// entry for symbolic updates as well as direct ones.
	LogRefAndLog LogMode = iota
	// LogRefOnly writes reflog entries for direct updates only.
	LogRefOnly
)

// Edit is one requested change in a transaction.
type Edit struct {
	Name Name
	// Expected is checked against the current value before anything is
	// written. Nil means ExpectAny.
	Expected Expectation
	// New is the target to write. Nil deletes the ref.
	New Target
	// Message is recorded in the reflog.
	Message string
	// WriteReflog appends a reflog entry for this change.
	WriteReflog bool
	LogMode     LogMode
	// DeleteReflog removes the reflog together with a deleted ref.
	DeleteReflog bool
	// Deref applies the edit to the ref at the end of Name's symbolic
	// chain instead of Name itself.
	Deref bool
}

// IsDelete reports whether the edit removes its ref.
func (e Edit) IsDelete() bool { return e.New == nil }

// canonical validates e and returns a copy with its ids in lower case.
func (e Edit) canonical(f object.Format) (Edit, error) {
	if err := ValidateName(e.Name); err != nil {
		return e, err
	}
	switch t := e.New.(type) {
	case nil:
		if e.Deref {
			return e, fmt.Errorf("%w: %s: cannot dereference a deletion", ErrInvalidEdit, e.Name)
		}
	case Direct:
		id, err := object.ParseHash(f, string(t.ID))
		if err != nil {
			return e, fmt.Errorf("%w: %s: %w", ErrInvalidEdit, e.Name, err)
		}
		if id.IsZero() {
			return e, fmt.Errorf("%w: %s: zero id is not a valid target", ErrInvalidEdit, e.Name)
		}
		e.New = Direct{ID: id}
	case Symbolic:
		if err := ValidateName(t.Name); err != nil {
			return e, fmt.Errorf("%w: %s: symbolic target: %w", ErrInvalidEdit, e.Name, err)
		}
		if t.Name == e.Name {
			return e, fmt.Errorf("%w: %s: points at itself", ErrInvalidEdit, e.Name)
		}
	default:
		return e, fmt.Errorf("%w: %s: unknown target type %T", ErrInvalidEdit, e.Name, e.New)
	}
	switch x := e.Expected.(type) {
	case nil, ExpectAny, ExpectMissing, ExpectExisting:
	case ExpectDirect:
		id, err := object.ParseHash(f, string(x.ID))
		if err != nil {
			return e, fmt.Errorf("%w: %s: expected value: %w", ErrInvalidEdit, e.Name, err)
		}
		e.Expected = ExpectDirect{ID: id}
	case ExpectSymbolic:
		if err := ValidateName(x.Name); err != nil {
			return e, fmt.Errorf("%w: %s: expected value: %w", ErrInvalidEdit, e.Name, err)
		}
	default:
		return e, fmt.Errorf("%w: %s: unknown expectation type %T", ErrInvalidEdit, e.Name, e.Expected)
	}
	return e, nil
}
