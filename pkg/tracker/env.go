// Package tracker records how an action changes a key/value environment.
package tracker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environ is read/write access to a key/value environment.
type Environ interface {
	Lookup(key string) (string, bool)
	Get(key string) string
	Set(key, value string)
	Unset(key string)
	Keys() []string
}

// Env is an insertion-ordered string mapping.
type Env struct {
	keys   []string
	values map[string]string
}

// NewEnv returns an empty environment.
func NewEnv() *Env {
	return &Env{values: make(map[string]string)}
}

// FromMap returns an environment with the entries of m in sorted key order.
func FromMap(m map[string]string) *Env {
	env := NewEnv()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env.Set(k, m[k])
	}
	return env
}

// FromEnviron parses KEY=VALUE entries as returned by os.Environ.
func FromEnviron(environ []string) *Env {
	env := NewEnv()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env.Set(k, v)
	}
	return env
}

// Lookup returns the value for key and whether it is present.
func (e *Env) Lookup(key string) (string, bool) {
	v, ok := e.values[key]
	return v, ok
}

// Get returns the value for key or the empty string.
func (e *Env) Get(key string) string {
	return e.values[key]
}

// Set stores value under key. New keys are appended to the order.
func (e *Env) Set(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

// Unset removes key.
func (e *Env) Unset(key string) {
	if _, ok := e.values[key]; !ok {
		return
	}
	delete(e.values, key)
	for i, k := range e.keys {
		if k == key {
			e.keys = append(e.keys[:i], e.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (e *Env) Keys() []string {
	return append([]string(nil), e.keys...)
}

// Len returns the number of entries.
func (e *Env) Len() int {
	return len(e.keys)
}

// Clear removes every entry.
func (e *Env) Clear() {
	e.keys = nil
	e.values = make(map[string]string)
}

// Clone returns an independent copy.
func (e *Env) Clone() *Env {
	out := NewEnv()
	for _, k := range e.keys {
		out.Set(k, e.values[k])
	}
	return out
}

// Map returns the entries as a plain map.
func (e *Env) Map() map[string]string {
	out := make(map[string]string, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Environ returns the entries as KEY=VALUE strings.
func (e *Env) Environ() []string {
	out := make([]string, 0, len(e.keys))
	for _, k := range e.keys {
		out = append(out, k+"="+e.values[k])
	}
	return out
}

// MarshalJSON encodes the environment as an object in insertion order.
func (e *Env) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range e.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(e.values[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, keeping the document order. Non-string
// values are kept in their JSON text form.
func (e *Env) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("environment must be a JSON object")
	}

	e.Clear()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		e.Set(key, s)
	}

	_, err = dec.Token()
	return err
}

// MarshalYAML encodes the environment as a mapping in insertion order.
func (e *Env) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range e.keys {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: e.values[k]},
		)
	}
	return node, nil
}

// UnmarshalYAML decodes a mapping, keeping the document order.
func (e *Env) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.DocumentNode && len(node.Content) == 1 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("environment must be a YAML mapping, got line %d", node.Line)
	}
	e.Clear()
	for i := 0; i+1 < len(node.Content); i += 2 {
		e.Set(node.Content[i].Value, node.Content[i+1].Value)
	}
	return nil
}
