package domain

import (
	"bytes"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Section is a keyed configuration section that remembers the order in which
// keys appeared in the source document. Rules that scan a section (risk
// bands, barrier-addressing interventions) walk it in that order so results
// do not depend on map iteration.
type Section[T any] struct {
	m *orderedmap.OrderedMap[string, T]
}

// NewSection builds a section from keys in order. Later duplicates replace the
// value but keep the first position.
func NewSection[T any](pairs ...SectionEntry[T]) Section[T] {
	var s Section[T]
	for _, p := range pairs {
		s.Set(p.Key, p.Value)
	}
	return s
}

// SectionEntry is a key/value pair used to construct a Section.
type SectionEntry[T any] struct {
	Key   string
	Value T
}

// Entry is shorthand for constructing a SectionEntry.
func Entry[T any](key string, value T) SectionEntry[T] {
	return SectionEntry[T]{Key: key, Value: value}
}

// Set inserts or replaces the value stored under key.
func (s *Section[T]) Set(key string, value T) {
	if s.m == nil {
		s.m = orderedmap.New[string, T]()
	}
	s.m.Set(key, value)
}

// Get returns the value for key and whether it was present.
func (s Section[T]) Get(key string) (T, bool) {
	if s.m == nil {
		var zero T
		return zero, false
	}
	return s.m.Get(key)
}

// Has reports whether key is present.
func (s Section[T]) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Keys returns the keys in document order.
func (s Section[T]) Keys() []string {
	keys := make([]string, 0, s.Len())
	s.Each(func(key string, _ T) {
		keys = append(keys, key)
	})
	return keys
}

// Len returns the number of entries.
func (s Section[T]) Len() int {
	if s.m == nil {
		return 0
	}
	return s.m.Len()
}

// Each calls fn for every entry in document order.
func (s Section[T]) Each(fn func(key string, value T)) {
	if s.m == nil {
		return
	}
	for pair := s.m.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

// UnmarshalJSON decodes a JSON object while recording key order. A JSON null
// leaves the section empty.
func (s *Section[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = Section[T]{}
		return nil
	}
	m := orderedmap.New[string, T]()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	s.m = m
	return nil
}

// MarshalJSON encodes the section as a JSON object in document order.
func (s Section[T]) MarshalJSON() ([]byte, error) {
	if s.m == nil {
		return []byte("{}"), nil
	}
	return s.m.MarshalJSON()
}
