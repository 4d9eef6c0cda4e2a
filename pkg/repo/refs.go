package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// HeadRef returns HEAD as stored: symbolic on a branch, direct when
// detached.
func (r *Repository) HeadRef() (refs.Reference, error) {
	return r.refs.Head()
}

// FindReference returns the reference stored under name without
// dereferencing it.
func (r *Repository) FindReference(name refs.Name) (refs.Reference, error) {
	return r.refs.Find(name)
}

// ListReferences returns every reference under prefix (default "refs/"),
// sorted by name.
func (r *Repository) ListReferences(prefix string) ([]refs.Reference, error) {
	return r.refs.List(prefix)
}

// ReferenceNames returns the names of every reference under prefix, sorted.
func (r *Repository) ReferenceNames(prefix string) ([]refs.Name, error) {
	return r.refs.Names(prefix)
}

// ApplyTransaction applies edits atomically. See refs.Store.Apply.
func (r *Repository) ApplyTransaction(ctx context.Context, edits []refs.Edit) ([]refs.Reference, error) {
	return r.refs.Apply(ctx, edits)
}

// CreateReference points name at target. Without force the ref must not
// exist yet. The change is logged as "create: <name>" when
// refs.log_all_ref_updates is set, forced or not.
func (r *Repository) CreateReference(ctx context.Context, name refs.Name, target refs.Target, force bool) (refs.Reference, error) {
	edit := refs.Edit{
		Name:        name,
		Expected:    refs.ExpectMissing{},
		New:         target,
		Message:     "create: " + string(name),
		WriteReflog: r.cfg.Refs.LogAllRefUpdates,
	}
	if force {
		edit.Expected = refs.ExpectAny{}
	}
	out, err := r.refs.Apply(ctx, []refs.Edit{edit})
	if err != nil {
		return refs.Reference{}, err
	}
	return out[0], nil
}

// ReadReflog returns the reflog of name, newest first, capped at limit
// entries when limit > 0.
func (r *Repository) ReadReflog(name refs.Name, limit int) ([]refs.ReflogEntry, error) {
	return r.refs.ReadReflog(name, limit)
}

// ResolveRevision turns a full object id or a reference name into an
// object id. Short names are tried in git's order: the name as given,
// refs/<name>, refs/tags/<name>, refs/heads/<name>, refs/remotes/<name>
// and refs/remotes/<name>/HEAD.
func (r *Repository) ResolveRevision(rev string) (object.Hash, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return "", fmt.Errorf("resolve revision: %w: empty revision", refs.ErrInvalidName)
	}
	if len(rev) == r.format.HexLen() {
		if id, err := object.ParseHash(r.format, rev); err == nil {
			return id, nil
		}
	}

	candidates := []refs.Name{
		refs.Name(rev),
		refs.Name("refs/" + rev),
		refs.TagName(rev),
		refs.BranchName(rev),
		refs.Name(refs.RemotePrefix + rev),
		refs.Name(refs.RemotePrefix + rev + "/HEAD"),
	}
	for _, name := range candidates {
		if refs.ValidateName(name) != nil {
			continue
		}
		id, err := r.refs.Peel(name)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, refs.ErrNotFound) {
			return "", fmt.Errorf("resolve revision %q: %w", rev, err)
		}
	}
	return "", fmt.Errorf("resolve revision %q: %w", rev, refs.ErrNotFound)
}
