package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/refgraph/pkg/object"
	"github.com/odvcencio/refgraph/pkg/refs"
)

// updateBatch is one "update-ref --stdin" transaction.
type updateBatch struct {
	edits []refs.Edit
}

type updateOptions struct {
	format      object.Format
	message     string
	deref       bool
	writeReflog bool
}

// parseUpdateStdin reads one command per line:
//
//	create <ref> <new>
//	update <ref> <new> [<old>]
//	delete <ref> [<old>]
//	verify <ref> [<old>]
//	symref-update <ref> <target> [ref <old-target> | oid <old>]
//
// A zero <old> requires the ref to be missing. Blank lines and lines
// starting with '#' are skipped.
func parseUpdateStdin(r io.Reader, o updateOptions) (updateBatch, error) {
	var b updateBatch
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if err := b.add(strings.Fields(text), o); err != nil {
			return updateBatch{}, fmt.Errorf("stdin line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return updateBatch{}, fmt.Errorf("read stdin: %w", err)
	}
	return b, nil
}

func (b *updateBatch) add(fields []string, o updateOptions) error {
	cmd, args := fields[0], fields[1:]
	edit := refs.Edit{
		Message:     o.message,
		WriteReflog: o.writeReflog,
		Deref:       o.deref,
	}

	switch cmd {
	case "create":
		if len(args) != 2 {
			return fmt.Errorf("create: expected <ref> <new>")
		}
		id, err := object.ParseHash(o.format, args[1])
		if err != nil {
			return fmt.Errorf("create %s: %w", args[0], err)
		}
		edit.Name, edit.New, edit.Expected = refs.Name(args[0]), refs.Direct{ID: id}, refs.ExpectMissing{}

	case "update":
		if len(args) < 2 || len(args) > 3 {
			return fmt.Errorf("update: expected <ref> <new> [<old>]")
		}
		id, err := object.ParseHash(o.format, args[1])
		if err != nil {
			return fmt.Errorf("update %s: %w", args[0], err)
		}
		edit.Name, edit.New, edit.Expected = refs.Name(args[0]), refs.Direct{ID: id}, refs.ExpectAny{}
		if id.IsZero() {
			// A zero new value deletes.
			edit.New, edit.Deref = nil, false
		}
		if len(args) == 3 {
			if edit.Expected, err = parseOld(o.format, args[2]); err != nil {
				return fmt.Errorf("update %s: %w", args[0], err)
			}
		}

	case "delete":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("delete: expected <ref> [<old>]")
		}
		edit.Name, edit.Expected = refs.Name(args[0]), refs.ExpectExisting{}
		edit.Deref = false
		if len(args) == 2 {
			old, err := parseOld(o.format, args[1])
			if err != nil {
				return fmt.Errorf("delete %s: %w", args[0], err)
			}
			if _, missing := old.(refs.ExpectMissing); missing {
				return fmt.Errorf("delete %s: zero old value", args[0])
			}
			edit.Expected = old
		}

	case "verify":
		if len(args) < 1 || len(args) > 2 {
			return fmt.Errorf("verify: expected <ref> [<old>]")
		}
		name := refs.Name(args[0])
		var old refs.Expectation = refs.ExpectMissing{}
		if len(args) == 2 {
			var err error
			if old, err = parseOld(o.format, args[1]); err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}
		}
		// Both forms are checked under the transaction's locks: a missing
		// ref is "deleted" again, an existing one rewritten unchanged.
		edit.Name, edit.Expected, edit.WriteReflog = name, old, false
		if d, ok := old.(refs.ExpectDirect); ok {
			edit.New = refs.Direct{ID: d.ID}
		} else {
			edit.Deref = false
		}

	case "symref-update":
		if len(args) != 2 && len(args) != 4 {
			return fmt.Errorf("symref-update: expected <ref> <target> [ref <old-target> | oid <old>]")
		}
		edit.Name, edit.New, edit.Expected = refs.Name(args[0]), refs.Symbolic{Name: refs.Name(args[1])}, refs.ExpectAny{}
		edit.Deref = false
		if len(args) == 4 {
			switch args[2] {
			case "ref":
				edit.Expected = refs.ExpectSymbolic{Name: refs.Name(args[3])}
			case "oid":
				old, err := parseOld(o.format, args[3])
				if err != nil {
					return fmt.Errorf("symref-update %s: %w", args[0], err)
				}
				edit.Expected = old
			default:
				return fmt.Errorf("symref-update %s: old value must be \"ref\" or \"oid\", got %q", args[0], args[2])
			}
		}

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	b.edits = append(b.edits, edit)
	return nil
}

// parseOld maps an old value onto an expectation; the zero id means the
// ref must not exist.
func parseOld(f object.Format, s string) (refs.Expectation, error) {
	id, err := object.ParseHash(f, s)
	if err != nil {
		return nil, err
	}
	if id.IsZero() {
		return refs.ExpectMissing{}, nil
	}
	return refs.ExpectDirect{ID: id}, nil
}
