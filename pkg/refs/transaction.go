package refs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/odvcencio/refgraph/pkg/metrics"
	"github.com/odvcencio/refgraph/pkg/object"
)

// update is an edit after dereferencing: the ref that is actually written
// plus the symbolic refs it was reached through.
type update struct {
	edit  Edit
	name  Name   // ref written
	via   []Name // symbolic refs traversed when Deref was set, outermost first
	old   Target // value under lock; nil when missing
	lock  *lockfile
	oldID object.Hash // peeled old value for the reflog
	newID object.Hash // peeled new value for the reflog
}

// Apply applies edits as one all-or-nothing transaction.
//
// Every edit is validated and every precondition is checked against a
// snapshot taken while holding a lock on every touched ref. If anything
// fails at that point the store is unchanged. Afterwards new values are
// staged in the lockfiles and swapped in, one rename per ref in name order.
// A failure during the swap is returned as a *CommitError and is not rolled
// back.
//
// The returned references are the new values of all non-deleted refs, in
// edit order.
func (s *Store) Apply(ctx context.Context, edits []Edit) ([]Reference, error) {
	if len(edits) == 0 {
		return nil, nil
	}
	logger := s.logger.WithFields(logrus.Fields{
		"transaction": uuid.NewString(),
		"edits":       len(edits),
	})

	canonical := make([]Edit, len(edits))
	for i, e := range edits {
		c, err := e.canonical(s.format)
		if err != nil {
			s.metrics.ObserveTransaction(metrics.ResultInvalid, len(edits))
			return nil, err
		}
		canonical[i] = c
	}
	edits = canonical

	s.mu.Lock()
	defer s.mu.Unlock()

	refs, err := s.apply(ctx, logger, edits)
	switch {
	case err == nil:
		s.metrics.ObserveTransaction(metrics.ResultCommitted, len(edits))
		logger.Debug("reference transaction committed")
	case errors.Is(err, ErrPreconditionFailed), errors.Is(err, ErrNameConflict):
		s.metrics.ObserveTransaction(metrics.ResultPrecondition, len(edits))
		logger.WithError(err).Debug("reference transaction rejected")
	case errors.Is(err, ErrInvalidEdit), errors.Is(err, ErrInvalidName):
		s.metrics.ObserveTransaction(metrics.ResultInvalid, len(edits))
	case errors.Is(err, ErrReflogAppend):
		// Refs are committed; only history is missing.
		s.metrics.ObserveTransaction(metrics.ResultCommitted, len(edits))
		logger.WithError(err).Warn("reference transaction committed without reflog")
	default:
		s.metrics.ObserveTransaction(metrics.ResultFailed, len(edits))
		logger.WithError(err).Error("reference transaction failed")
	}
	return refs, err
}

func (s *Store) apply(ctx context.Context, logger logrus.FieldLogger, edits []Edit) ([]Reference, error) {
	packed, err := s.readPacked()
	if err != nil {
		return nil, err
	}
	updates, err := s.resolveEdits(edits, packed)
	if err != nil {
		return nil, err
	}

	// Lock every written ref and every symref traversed, in name order so
	// that concurrent writers in other processes cannot deadlock us.
	lockNames := make(map[Name]struct{})
	for _, u := range updates {
		lockNames[u.name] = struct{}{}
		for _, v := range u.via {
			lockNames[v] = struct{}{}
		}
	}
	sorted := make([]Name, 0, len(lockNames))
	for n := range lockNames {
		sorted = append(sorted, n)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	locks := make(map[Name]*lockfile, len(sorted))
	defer func() {
		for _, l := range locks {
			l.release()
		}
	}()
	for _, n := range sorted {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("reference transaction: %w", err)
		}
		l, err := acquireLock(ctx, s.refPath(n), filepath.Join(s.dir, "refs"), s.lockTimeout)
		if err != nil {
			return nil, err
		}
		locks[n] = l
	}

	// Snapshot under lock. packed-refs may have been rewritten by another
	// process while we were waiting.
	if packed, err = s.readPacked(); err != nil {
		return nil, err
	}
	if err := s.checkPreconditions(updates, packed); err != nil {
		return nil, err
	}
	if err := s.checkNameConflicts(updates, packed); err != nil {
		return nil, err
	}

	var packedLock *lockfile
	var prunedPacked map[Name]object.Hash
	for _, u := range updates {
		if u.edit.IsDelete() {
			if _, ok := packed[u.name]; ok {
				if prunedPacked == nil {
					prunedPacked = make(map[Name]object.Hash, len(packed))
					for n, id := range packed {
						prunedPacked[n] = id
					}
				}
				delete(prunedPacked, u.name)
			}
		}
	}
	if prunedPacked != nil {
		packedLock, err = acquireLock(ctx, s.packedPath(), "", s.lockTimeout)
		if err != nil {
			return nil, err
		}
		defer packedLock.release()
		if err := packedLock.stage(encodePacked(prunedPacked)); err != nil {
			return nil, err
		}
	}

	// Stage every new value before the first swap.
	for _, u := range updates {
		u.lock = locks[u.name]
		if u.edit.IsDelete() {
			continue
		}
		if err := u.lock.stage([]byte(encodeTarget(u.edit.New))); err != nil {
			return nil, err
		}
	}

	byName := make(map[Name]*update, len(updates))
	for _, u := range updates {
		byName[u.name] = u
	}

	// Swap. packed-refs goes first: while the loose files still exist they
	// shadow it, so no reader can observe a resurrected packed value.
	var applied []Name
	if packedLock != nil {
		if err := packedLock.commit(); err != nil {
			return nil, &CommitError{Failed: packedRefsFile, Err: err}
		}
	}
	for _, n := range sorted {
		u, ok := byName[n]
		if !ok {
			continue // symref locked only to pin the chain
		}
		if err := s.swap(u); err != nil {
			return nil, &CommitError{Applied: applied, Failed: n, Err: err}
		}
		applied = append(applied, n)
	}
	logger.WithField("refs", len(applied)).Debug("references swapped")

	refs := make([]Reference, 0, len(updates))
	for _, u := range updates {
		if !u.edit.IsDelete() {
			refs = append(refs, Reference{Name: u.name, Target: u.edit.New})
		}
	}

	if err := s.writeReflogs(updates, packed); err != nil {
		return refs, err
	}
	return refs, nil
}

// resolveEdits applies Deref and rejects batches that write one ref twice.
func (s *Store) resolveEdits(edits []Edit, packed map[Name]object.Hash) ([]*update, error) {
	seen := make(map[Name]struct{}, len(edits))
	updates := make([]*update, 0, len(edits))
	for _, e := range edits {
		u := &update{edit: e, name: e.Name}
		if e.Deref {
			chain, err := s.symrefChain(e.Name, packed)
			if err != nil {
				return nil, err
			}
			u.name = chain[len(chain)-1]
			u.via = chain[:len(chain)-1]
		}
		if _, dup := seen[u.name]; dup {
			return nil, fmt.Errorf("%w: %q is written more than once", ErrInvalidEdit, u.name)
		}
		seen[u.name] = struct{}{}
		updates = append(updates, u)
	}
	return updates, nil
}

// symrefChain returns name followed by every ref its symbolic chain passes
// through. Unlike peel, a chain ending at a missing ref is fine: that ref
// is the one to create.
func (s *Store) symrefChain(name Name, packed map[Name]object.Hash) ([]Name, error) {
	chain := []Name{name}
	seen := map[Name]struct{}{name: {}}
	cur := name
	for {
		target, err := s.readTarget(cur, packed)
		if err != nil {
			return nil, err
		}
		sym, ok := target.(Symbolic)
		if !ok {
			return chain, nil
		}
		if _, dup := seen[sym.Name]; dup {
			return nil, fmt.Errorf("dereference %q: %w: cycle at %q", name, ErrSymrefDepth, sym.Name)
		}
		if len(chain) > s.maxSymrefDepth {
			return nil, fmt.Errorf("dereference %q: %w: more than %d levels", name, ErrSymrefDepth, s.maxSymrefDepth)
		}
		seen[sym.Name] = struct{}{}
		chain = append(chain, sym.Name)
		cur = sym.Name
	}
}

func (s *Store) checkPreconditions(updates []*update, packed map[Name]object.Hash) error {
	var mismatches []Mismatch
	for _, u := range updates {
		old, err := s.readTarget(u.name, packed)
		if err != nil {
			return err
		}
		u.old = old

		// The chain may have moved while we waited for the locks.
		for i, v := range u.via {
			next := u.name
			if i+1 < len(u.via) {
				next = u.via[i+1]
			}
			cur, err := s.readTarget(v, packed)
			if err != nil {
				return err
			}
			if sym, ok := cur.(Symbolic); !ok || sym.Name != next {
				mismatches = append(mismatches, Mismatch{Name: v, Expected: ExpectSymbolic{Name: next}, Actual: cur})
			}
		}

		// Symbolic expectations constrain the ref named by the caller;
		// everything else constrains the ref being written.
		checked, checkedName := old, u.name
		if _, ok := u.edit.Expected.(ExpectSymbolic); ok && len(u.via) > 0 {
			checkedName = u.edit.Name
			if checked, err = s.readTarget(checkedName, packed); err != nil {
				return err
			}
		}
		if !satisfied(u.edit.Expected, checked) {
			mismatches = append(mismatches, Mismatch{Name: checkedName, Expected: u.edit.Expected, Actual: checked})
		}
	}
	if len(mismatches) > 0 {
		return &PreconditionError{Mismatches: mismatches}
	}
	return nil
}

// checkNameConflicts rejects creating a ref whose path is a directory
// prefix of another ref's path, or the reverse.
func (s *Store) checkNameConflicts(updates []*update, packed map[Name]object.Hash) error {
	var creates []Name
	for _, u := range updates {
		if !u.edit.IsDelete() && u.old == nil && u.name != HEAD {
			creates = append(creates, u.name)
		}
	}
	if len(creates) == 0 {
		return nil
	}
	existing, err := s.listNames("refs/", packed)
	if err != nil {
		return err
	}
	for _, c := range creates {
		for _, e := range existing {
			if conflicts(c, e) {
				return fmt.Errorf("%w: %q conflicts with existing %q", ErrNameConflict, c, e)
			}
		}
		for _, other := range creates {
			if other != c && conflicts(c, other) {
				return fmt.Errorf("%w: %q conflicts with %q in the same transaction", ErrNameConflict, c, other)
			}
		}
	}
	return nil
}

func (s *Store) swap(u *update) error {
	if !u.edit.IsDelete() {
		return u.lock.commit()
	}
	path := s.refPath(u.name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %q: %w", u.name, err)
	}
	// Releasing prunes the parent directories the deletion left empty.
	u.lock.release()
	return nil
}

// writeReflogs appends history for committed updates. Failures are
// collected; refs are already durable at this point.
func (s *Store) writeReflogs(updates []*update, packed map[Name]object.Hash) error {
	var firstErr error
	for _, u := range updates {
		if u.edit.IsDelete() {
			if u.edit.DeleteReflog {
				if err := s.deleteReflog(u.name); err != nil && firstErr == nil {
					firstErr = &ReflogError{Ref: u.name, Err: err}
				}
			}
			continue
		}
		if !u.edit.WriteReflog {
			continue
		}
		if _, sym := u.edit.New.(Symbolic); sym && u.edit.LogMode == LogRefOnly {
			continue
		}
		u.oldID = s.peeledID(u.old, packed)
		u.newID = s.peeledID(u.edit.New, nil)
		for _, n := range append(append([]Name(nil), u.via...), u.name) {
			if err := s.appendReflog(n, u.oldID, u.newID, u.edit.Message); err != nil && firstErr == nil {
				firstErr = &ReflogError{Ref: n, Old: u.oldID, New: u.newID, Err: err}
			}
		}
	}
	return firstErr
}

// peeledID returns the object id t finally points at, or "" when it cannot
// be determined (missing or unborn). packed == nil re-reads packed-refs.
func (s *Store) peeledID(t Target, packed map[Name]object.Hash) object.Hash {
	switch x := t.(type) {
	case nil:
		return ""
	case Direct:
		return x.ID
	case Symbolic:
		if packed == nil {
			var err error
			if packed, err = s.readPacked(); err != nil {
				return ""
			}
		}
		id, _, err := s.peel(x.Name, packed)
		if err != nil {
			return ""
		}
		return id
	default:
		panic(fmt.Sprintf("refs: unknown target type %T", t))
	}
}
