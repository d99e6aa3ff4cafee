// Package ordered provides an insertion-ordered map used for profile and
// paragraph collections, where iteration order is display order.
// This package is PURE and must NOT import any infrastructure packages.
package ordered

import (
	"bytes"
	"encoding/json"
	"fmt"
	"iter"
	"slices"

	"github.com/tidwall/gjson"
)

// Map is a string-keyed map that remembers insertion order.
// The zero key ("") is reserved to mean "no key".
type Map[K ~string, V any] struct {
	keys   []K
	values map[K]V
}

// New returns an empty Map.
func New[K ~string, V any]() *Map[K, V] {
	return &Map[K, V]{values: make(map[K]V)}
}

// Len returns the number of entries.
func (m *Map[K, V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	if m == nil {
		return false
	}
	_, ok := m.values[key]
	return ok
}

// Get returns the value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	var zero V
	if m == nil {
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Set stores value under key. New keys are appended; existing keys keep
// their position.
func (m *Map[K, V]) Set(key K, value V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Delete removes key and reports whether it was present.
func (m *Map[K, V]) Delete(key K) bool {
	if !m.Has(key) {
		return false
	}
	delete(m.values, key)
	m.keys = slices.DeleteFunc(m.keys, func(k K) bool { return k == key })
	return true
}

// Keys returns a copy of the keys in order.
func (m *Map[K, V]) Keys() []K {
	if m == nil {
		return nil
	}
	return slices.Clone(m.keys)
}

// Values returns the values in key order.
func (m *Map[K, V]) Values() []V {
	if m == nil {
		return nil
	}
	out := make([]V, 0, len(m.keys))
	for _, k := range m.keys {
		out = append(out, m.values[k])
	}
	return out
}

// First returns the first entry.
func (m *Map[K, V]) First() (K, V, bool) {
	var zk K
	var zv V
	if m.Len() == 0 {
		return zk, zv, false
	}
	k := m.keys[0]
	return k, m.values[k], true
}

// All iterates entries in order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		if m == nil {
			return
		}
		for _, k := range m.keys {
			if !yield(k, m.values[k]) {
				return
			}
		}
	}
}

// Clone returns a shallow copy.
func (m *Map[K, V]) Clone() *Map[K, V] {
	out := New[K, V]()
	for k, v := range m.All() {
		out.Set(k, v)
	}
	return out
}

// PreviousKey returns the key before key, or false when key is first or absent.
func (m *Map[K, V]) PreviousKey(key K) (K, bool) {
	var zero K
	if m == nil {
		return zero, false
	}
	i := slices.Index(m.keys, key)
	if i <= 0 {
		return zero, false
	}
	return m.keys[i-1], true
}

// NextKey returns the key after key, or false when key is last or absent.
func (m *Map[K, V]) NextKey(key K) (K, bool) {
	var zero K
	if m == nil {
		return zero, false
	}
	i := slices.Index(m.keys, key)
	if i < 0 || i == len(m.keys)-1 {
		return zero, false
	}
	return m.keys[i+1], true
}

// ReinsertAfter returns a new Map in which key sits immediately after
// after. An empty after moves key to the front. It fails when key is absent
// or a non-empty after is absent. All other entries keep their relative order.
func (m *Map[K, V]) ReinsertAfter(key, after K) (*Map[K, V], bool) {
	if !m.Has(key) || (after != "" && !m.Has(after)) {
		return nil, false
	}
	if key == after {
		return m.Clone(), true
	}

	out := New[K, V]()
	if after == "" {
		out.Set(key, m.values[key])
	}
	for _, k := range m.keys {
		if k == key {
			continue
		}
		out.Set(k, m.values[k])
		if k == after {
			out.Set(key, m.values[key])
		}
	}
	return out, true
}

// MoveUp swaps key with its predecessor. Moving the first key is a no-op.
func (m *Map[K, V]) MoveUp(key K) (*Map[K, V], bool) {
	if !m.Has(key) {
		return nil, false
	}
	prev, ok := m.PreviousKey(key)
	if !ok {
		return m.Clone(), true
	}
	before, _ := m.PreviousKey(prev)
	return m.ReinsertAfter(key, before)
}

// MoveDown swaps key with its successor. Moving the last key is a no-op.
func (m *Map[K, V]) MoveDown(key K) (*Map[K, V], bool) {
	if !m.Has(key) {
		return nil, false
	}
	next, ok := m.NextKey(key)
	if !ok {
		return m.Clone(), true
	}
	return m.ReinsertAfter(key, next)
}

// MarshalJSON encodes the map as a JSON object in key order.
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range m.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(string(k))
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(m.values[k])
		if err != nil {
			return nil, fmt.Errorf("failed to marshal value for %q: %w", k, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping document key order.
func (m *Map[K, V]) UnmarshalJSON(data []byte) error {
	res := gjson.ParseBytes(data)
	if res.Type == gjson.Null {
		*m = Map[K, V]{values: make(map[K]V)}
		return nil
	}
	if !res.IsObject() {
		return fmt.Errorf("ordered: expected JSON object, got %s", res.Type)
	}
	out := Map[K, V]{values: make(map[K]V)}
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		var v V
		if err = json.Unmarshal([]byte(value.Raw), &v); err != nil {
			err = fmt.Errorf("failed to unmarshal value for %q: %w", key.String(), err)
			return false
		}
		out.Set(K(key.String()), v)
		return true
	})
	if err != nil {
		return err
	}
	*m = out
	return nil
}
