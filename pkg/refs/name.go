package refs

import (
	"fmt"
	"strings"
)

// Name is a fully qualified reference name such as "refs/heads/main", or
// the literal "HEAD".
type Name string

const (
	HEAD Name = "HEAD"

	BranchPrefix = "refs/heads/"
	TagPrefix    = "refs/tags/"
	RemotePrefix = "refs/remotes/"
)

// BranchName returns the reference name of a branch.
func BranchName(branch string) Name { return Name(BranchPrefix + branch) }

// TagName returns the reference name of a tag.
func TagName(tag string) Name { return Name(TagPrefix + tag) }

func (n Name) String() string { return string(n) }

// Branch returns the branch name if n is under refs/heads/.
func (n Name) Branch() (string, bool) {
	if strings.HasPrefix(string(n), BranchPrefix) {
		return string(n)[len(BranchPrefix):], true
	}
	return "", false
}

// Short strips the well-known namespace prefix from n.
func (n Name) Short() string {
	s := string(n)
	for _, prefix := range []string{BranchPrefix, TagPrefix, RemotePrefix} {
		if strings.HasPrefix(s, prefix) {
			return s[len(prefix):]
		}
	}
	return s
}

// ValidateName checks n against the ref-format rules: HEAD, or "refs/"
// followed by non-empty slash separated components with no "..", no
// leading dot, no ".lock" suffix, no "@{" and none of the characters git
// reserves for revision syntax.
func ValidateName(n Name) error {
	s := string(n)
	if s == string(HEAD) {
		return nil
	}
	if !strings.HasPrefix(s, "refs/") || len(s) == len("refs/") {
		return invalidName(n, "must be HEAD or start with refs/")
	}
	if strings.HasSuffix(s, "/") {
		return invalidName(n, "trailing slash")
	}
	if strings.Contains(s, "..") {
		return invalidName(n, `contains ".."`)
	}
	if strings.Contains(s, "@{") {
		return invalidName(n, `contains "@{"`)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 0x20 || c == 0x7f {
			return invalidName(n, "contains a control character")
		}
		switch c {
		case ' ', '~', '^', ':', '?', '*', '[', '\\':
			return invalidName(n, fmt.Sprintf("contains %q", c))
		}
	}
	for _, comp := range strings.Split(s, "/") {
		if comp == "" {
			return invalidName(n, "empty path component")
		}
		if strings.HasPrefix(comp, ".") {
			return invalidName(n, "component starts with a dot")
		}
		if strings.HasSuffix(comp, ".lock") {
			return invalidName(n, `component ends with ".lock"`)
		}
	}
	if strings.HasSuffix(s, ".") {
		return invalidName(n, "ends with a dot")
	}
	return nil
}

func invalidName(n Name, reason string) error {
	return fmt.Errorf("%w %q: %s", ErrInvalidName, string(n), reason)
}

// conflicts reports whether one name is a directory prefix of the other, in
// which case both cannot exist as loose files at the same time.
func conflicts(a, b Name) bool {
	return strings.HasPrefix(string(a), string(b)+"/") || strings.HasPrefix(string(b), string(a)+"/")
}
