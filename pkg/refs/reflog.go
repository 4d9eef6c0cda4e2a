package refs

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/odvcencio/refgraph/pkg/object"
)

// Signature identifies who made a ref change.
type Signature struct {
	Name  string
	Email string
}

func (s Signature) String() string {
	return fmt.Sprintf("%s <%s>", s.Name, s.Email)
}

// ReflogEntry is one line of a reference's history.
type ReflogEntry struct {
	Ref     Name
	Old     object.Hash // zero id when the ref did not exist
	New     object.Hash
	Actor   string
	Time    time.Time
	Message string
}

func (s *Store) reflogPath(n Name) string {
	return filepath.Join(s.dir, "logs", filepath.FromSlash(string(n)))
}

// formatReflogLine renders
// "<old> <new> <actor> <unix-seconds> <tz-offset>\t<message>\n".
func (s *Store) formatReflogLine(old, newID object.Hash, when time.Time, message string) string {
	if old == "" {
		old = s.format.Zero()
	}
	if newID == "" {
		newID = s.format.Zero()
	}
	// Keep one entry per line.
	message = strings.NewReplacer("\n", " ", "\r", " ").Replace(strings.TrimSpace(message))
	return fmt.Sprintf("%s %s %s %d %s\t%s\n", old, newID, s.actor, when.Unix(), formatTimezoneOffset(when), message)
}

func (s *Store) appendReflog(n Name, old, newID object.Hash, message string) error {
	logPath := s.reflogPath(n)
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog mkdir: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog open: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(s.formatReflogLine(old, newID, s.now(), message)); err != nil {
		return fmt.Errorf("reflog write: %w", err)
	}
	return nil
}

// ReadReflog returns the reflog of name, newest first. A limit > 0 caps the
// number of entries. A ref without a reflog yields no entries.
func (s *Store) ReadReflog(name Name, limit int) ([]ReflogEntry, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	f, err := os.Open(s.reflogPath(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog: %w", err)
	}
	defer f.Close()

	var entries []ReflogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		entry, err := parseReflogLine(name, line)
		if err != nil {
			return nil, fmt.Errorf("read reflog %q: %w", name, err)
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read reflog: %w", err)
	}

	// Return newest first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// HasReflog reports whether a reflog exists for name.
func (s *Store) HasReflog(name Name) bool {
	_, err := os.Stat(s.reflogPath(name))
	return err == nil
}

func parseReflogLine(ref Name, line string) (ReflogEntry, error) {
	head, message, _ := strings.Cut(line, "\t")
	fields := strings.Fields(head)
	if len(fields) < 5 {
		return ReflogEntry{}, fmt.Errorf("malformed reflog line %q", line)
	}
	n := len(fields)
	secs, err := strconv.ParseInt(fields[n-2], 10, 64)
	if err != nil {
		return ReflogEntry{}, fmt.Errorf("malformed reflog timestamp %q", fields[n-2])
	}
	when := time.Unix(secs, 0)
	if loc, ok := parseTimezoneOffset(fields[n-1]); ok {
		when = when.In(loc)
	}
	return ReflogEntry{
		Ref:     ref,
		Old:     object.Hash(fields[0]),
		New:     object.Hash(fields[1]),
		Actor:   strings.Join(fields[2:n-2], " "),
		Time:    when,
		Message: message,
	}, nil
}

// deleteReflog removes the reflog of n and any log directories left empty.
func (s *Store) deleteReflog(n Name) error {
	path := s.reflogPath(n)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete reflog %q: %w", n, err)
	}
	pruneEmptyParents(path, filepath.Join(s.dir, "logs", "refs"))
	return nil
}

func formatTimezoneOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

func parseTimezoneOffset(s string) (*time.Location, bool) {
	if len(s) != 5 || (s[0] != '+' && s[0] != '-') {
		return nil, false
	}
	hours, err1 := strconv.Atoi(s[1:3])
	minutes, err2 := strconv.Atoi(s[3:5])
	if err1 != nil || err2 != nil {
		return nil, false
	}
	offset := hours*3600 + minutes*60
	if s[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(s, offset), true
}

// pruneEmptyParents removes directories left empty between path and stop.
// stop and its direct children (refs/heads, refs/tags, ...) are kept.
func pruneEmptyParents(path, stop string) {
	stop = filepath.Clean(stop)
	for dir := filepath.Dir(path); strings.HasPrefix(dir, stop+string(filepath.Separator)) && filepath.Dir(dir) != stop; dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
