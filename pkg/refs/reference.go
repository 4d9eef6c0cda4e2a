package refs

import (
	"fmt"

	"github.com/odvcencio/refgraph/pkg/object"
)

// Target is what a reference points at: either Direct or Symbolic. The set
// of implementations is closed.
type Target interface {
	isTarget()
	String() string
}

// Direct points at an object id.
type Direct struct {
	ID object.Hash
}

// Symbolic points at another reference by name.
type Symbolic struct {
	Name Name
}

func (Direct) isTarget()   {}
func (Symbolic) isTarget() {}

func (d Direct) String() string   { return string(d.ID) }
func (s Symbolic) String() string { return "ref: " + string(s.Name) }

// Reference is a named pointer.
type Reference struct {
	Name   Name
	Target Target
}

// IsSymbolic reports whether r points at another reference.
func (r Reference) IsSymbolic() bool {
	_, ok := r.Target.(Symbolic)
	return ok
}

func (r Reference) String() string {
	return fmt.Sprintf("%s -> %s", r.Name, r.Target)
}

// encodeTarget renders the on-disk content of a loose ref.
func encodeTarget(t Target) string {
	switch x := t.(type) {
	case Direct:
		return string(x.ID) + "\n"
	case Symbolic:
		return "ref: " + string(x.Name) + "\n"
	default:
		panic(fmt.Sprintf("refs: unknown target type %T", t))
	}
}
