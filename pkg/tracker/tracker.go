package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Change is one entry of a ChangeSet. Deleted entries carry an empty value.
type Change struct {
	Key   string
	Value string
}

// ChangeSet is the diff produced by one tracked action.
type ChangeSet struct {
	Created []Change
	Updated []Change
	Deleted []Change
}

// Len returns the total number of changes.
func (c *ChangeSet) Len() int {
	return len(c.Created) + len(c.Updated) + len(c.Deleted)
}

// Empty reports whether the set records no change.
func (c *ChangeSet) Empty() bool {
	return c.Len() == 0
}

// Apply replays the changes into target: created, then updated, then deleted.
func (c *ChangeSet) Apply(target Environ) {
	for _, ch := range c.Created {
		target.Set(ch.Key, ch.Value)
	}
	for _, ch := range c.Updated {
		target.Set(ch.Key, ch.Value)
	}
	for _, ch := range c.Deleted {
		target.Unset(ch.Key)
	}
}

// String renders a compact summary for logs.
func (c *ChangeSet) String() string {
	return fmt.Sprintf("created=%d updated=%d deleted=%d", len(c.Created), len(c.Updated), len(c.Deleted))
}

type changeSetJSON struct {
	Created [][2]*string `json:"created"`
	Updated [][2]*string `json:"updated"`
	Deleted [][2]*string `json:"deleted"`
}

func pairs(changes []Change, deleted bool) [][2]*string {
	out := make([][2]*string, 0, len(changes))
	for _, ch := range changes {
		key := ch.Key
		var value *string
		if !deleted {
			v := ch.Value
			value = &v
		}
		out = append(out, [2]*string{&key, value})
	}
	return out
}

func unpairs(in [][2]*string) []Change {
	var out []Change
	for _, p := range in {
		var ch Change
		if p[0] != nil {
			ch.Key = *p[0]
		}
		if p[1] != nil {
			ch.Value = *p[1]
		}
		out = append(out, ch)
	}
	return out
}

// MarshalJSON encodes each bucket as a list of [key, value] pairs; deleted
// values are null.
func (c *ChangeSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(changeSetJSON{
		Created: pairs(c.Created, false),
		Updated: pairs(c.Updated, false),
		Deleted: pairs(c.Deleted, true),
	})
}

// UnmarshalJSON decodes the form produced by MarshalJSON.
func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	var raw changeSetJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	c.Created = unpairs(raw.Created)
	c.Updated = unpairs(raw.Updated)
	c.Deleted = unpairs(raw.Deleted)
	return nil
}

// original is the state of a key before it was first touched.
type original struct {
	value   string
	present bool
}

// Tracker is an Environ that forwards to an underlying Environ and records
// every key it mutates. A Tracker may wrap another Tracker; the outer one then
// observes the inner one's mutations as its own.
type Tracker struct {
	env     Environ
	order   []string
	initial map[string]original
}

// NewTracker wraps env.
func NewTracker(env Environ) *Tracker {
	return &Tracker{
		env:     env,
		initial: make(map[string]original),
	}
}

func (t *Tracker) touch(key string) {
	if _, seen := t.initial[key]; seen {
		return
	}
	v, ok := t.env.Lookup(key)
	t.initial[key] = original{value: v, present: ok}
	t.order = append(t.order, key)
}

// Lookup implements Environ.
func (t *Tracker) Lookup(key string) (string, bool) {
	return t.env.Lookup(key)
}

// Get implements Environ.
func (t *Tracker) Get(key string) string {
	return t.env.Get(key)
}

// Keys implements Environ.
func (t *Tracker) Keys() []string {
	return t.env.Keys()
}

// Set implements Environ.
func (t *Tracker) Set(key, value string) {
	t.touch(key)
	t.env.Set(key, value)
}

// Unset implements Environ.
func (t *Tracker) Unset(key string) {
	t.touch(key)
	t.env.Unset(key)
}

// Changes classifies every touched key against its value before the first
// touch. Buckets follow first-touch order and each key is in at most one.
func (t *Tracker) Changes() *ChangeSet {
	cs := &ChangeSet{}
	for _, key := range t.order {
		before := t.initial[key]
		now, present := t.env.Lookup(key)
		switch {
		case !before.present && present:
			cs.Created = append(cs.Created, Change{Key: key, Value: now})
		case before.present && !present:
			cs.Deleted = append(cs.Deleted, Change{Key: key})
		case before.present && present && before.value != now:
			cs.Updated = append(cs.Updated, Change{Key: key, Value: now})
		}
	}
	return cs
}

// Capture runs fn against a tracked view of env and returns what it changed.
// The changes made before a failure are still returned.
func Capture(env Environ, fn func(Environ) error) (*ChangeSet, error) {
	t := NewTracker(env)
	err := fn(t)
	return t.Changes(), err
}
