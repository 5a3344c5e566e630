package indexstore

import (
	"bytes"
	"iter"
)

// Field is one key/value pair of an ordered JSON object.
type Field struct {
	Key   string
	Value any
}

// Fields is a JSON object whose keys keep their insertion order. It is the
// shape of lexicon entries, document-index entries, stats and every object
// returned by Load.
type Fields []Field

// Get returns the value stored under key.
func (f Fields) Get(key string) (any, bool) {
	for _, fd := range f {
		if fd.Key == key {
			return fd.Value, true
		}
	}
	return nil, false
}

// Set replaces the value of an existing key in place or appends a new one.
func (f Fields) Set(key string, value any) Fields {
	for i := range f {
		if f[i].Key == key {
			f[i].Value = value
			return f
		}
	}
	return append(f, Field{Key: key, Value: value})
}

// Keys returns the keys in order.
func (f Fields) Keys() []string {
	keys := make([]string, len(f))
	for i, fd := range f {
		keys[i] = fd.Key
	}
	return keys
}

// MarshalJSON encodes f in key order with the same layout Save uses.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, f, ""); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// OrderedMap is a string-keyed map that iterates in insertion order.
// Re-setting a key keeps its original position.
type OrderedMap[V any] struct {
	keys   []string
	values map[string]V
}

func NewOrderedMap[V any]() *OrderedMap[V] {
	return &OrderedMap[V]{values: make(map[string]V)}
}

func (m *OrderedMap[V]) Set(key string, value V) {
	if m.values == nil {
		m.values = make(map[string]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *OrderedMap[V]) Get(key string) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	v, ok := m.values[key]
	return v, ok
}

func (m *OrderedMap[V]) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns a copy of the keys in insertion order.
func (m *OrderedMap[V]) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// All iterates over the entries in insertion order.
func (m *OrderedMap[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
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

// Lexicon maps each term to its entry fields.
type Lexicon = OrderedMap[Fields]

// Postings maps each term id to its ordered document ids.
type Postings = OrderedMap[[]string]

func NewLexicon() *Lexicon { return NewOrderedMap[Fields]() }

func NewPostings() *Postings { return NewOrderedMap[[]string]() }
