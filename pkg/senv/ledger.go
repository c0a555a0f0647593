package senv

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/senvtool/senv/pkg/tracker"
)

// Ledger records which fragment paths were loaded during a composition and
// what each changed. A nil ChangeSet marks a fragment that is still loading.
type Ledger struct {
	order   []string
	entries map[string]*tracker.ChangeSet
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]*tracker.ChangeSet)}
}

// Reset forgets every entry.
func (l *Ledger) Reset() {
	l.order = nil
	l.entries = make(map[string]*tracker.ChangeSet)
}

// Lookup returns the entry for path. The ChangeSet is nil while pending.
func (l *Ledger) Lookup(path string) (*tracker.ChangeSet, bool) {
	cs, ok := l.entries[path]
	return cs, ok
}

// Loaded reports whether path has a resolved entry.
func (l *Ledger) Loaded(path string) bool {
	cs, ok := l.entries[path]
	return ok && cs != nil
}

// Pending reports whether path is currently loading.
func (l *Ledger) Pending(path string) bool {
	cs, ok := l.entries[path]
	return ok && cs == nil
}

// MarkPending records path as loading.
func (l *Ledger) MarkPending(path string) {
	l.set(path, nil)
}

// Resolve replaces the entry for path with its changes.
func (l *Ledger) Resolve(path string, changes *tracker.ChangeSet) {
	if changes == nil {
		changes = &tracker.ChangeSet{}
	}
	l.set(path, changes)
}

// Forget drops the entry for path.
func (l *Ledger) Forget(path string) {
	if _, ok := l.entries[path]; !ok {
		return
	}
	delete(l.entries, path)
	for i, p := range l.order {
		if p == path {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
}

func (l *Ledger) set(path string, changes *tracker.ChangeSet) {
	if _, ok := l.entries[path]; !ok {
		l.order = append(l.order, path)
	}
	l.entries[path] = changes
}

// Paths returns the recorded paths in the order they were first seen.
func (l *Ledger) Paths() []string {
	return append([]string(nil), l.order...)
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	return len(l.order)
}

// Clone returns a copy that shares the immutable change sets.
func (l *Ledger) Clone() *Ledger {
	out := NewLedger()
	for _, p := range l.order {
		out.set(p, l.entries[p])
	}
	return out
}

// MarshalJSON encodes the ledger as an object keyed by path; pending entries
// are null.
func (l *Ledger) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range l.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		if cs := l.entries[p]; cs == nil {
			buf.WriteString("null")
		} else {
			vb, err := json.Marshal(cs)
			if err != nil {
				return nil, err
			}
			buf.Write(vb)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the form produced by MarshalJSON, keeping order.
func (l *Ledger) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("ledger must be a JSON object")
	}

	l.Reset()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		path := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			l.set(path, nil)
			continue
		}
		cs := &tracker.ChangeSet{}
		if err := json.Unmarshal(raw, cs); err != nil {
			return fmt.Errorf("ledger entry %s: %w", path, err)
		}
		l.set(path, cs)
	}

	_, err = dec.Token()
	return err
}
