package store

import (
	"fmt"
	"iter"
	"slices"
	"strings"
)

// Record is an ordered set of typed properties. Field names are unique and keep
// the order in which they were first put.
//
// A Record is not safe for concurrent mutation.
type Record struct {
	keys   []string
	values map[string]Value
}

// NewRecord creates an empty Record.
func NewRecord() *Record {
	return &Record{values: make(map[string]Value)}
}

// Put stores v under key. Re-putting an existing key replaces its value and
// kind without moving it.
func (r *Record) Put(key string, v Value) *Record {
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = v
	return r
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (Value, bool) {
	v, ok := r.values[key]
	return v, ok
}

// Has reports whether key is present.
func (r *Record) Has(key string) bool {
	_, ok := r.values[key]
	return ok
}

// Delete removes key from the record.
func (r *Record) Delete(key string) {
	if _, ok := r.values[key]; !ok {
		return
	}
	delete(r.values, key)
	r.keys = slices.DeleteFunc(r.keys, func(k string) bool { return k == key })
}

// Len returns the number of fields.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.keys)
}

// Keys yields field names in insertion order. The sequence can be ranged over
// any number of times.
func (r *Record) Keys() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, k := range r.keys {
			if !yield(k) {
				return
			}
		}
	}
}

// All yields fields and values in insertion order.
func (r *Record) All() iter.Seq2[string, Value] {
	return func(yield func(string, Value) bool) {
		for _, k := range r.keys {
			if !yield(k, r.values[k]) {
				return
			}
		}
	}
}

// KeyList returns a copy of the field names in insertion order.
func (r *Record) KeyList() []string {
	return slices.Clone(r.keys)
}

// OneKey returns the only field of a single-field criteria record.
func (r *Record) OneKey() (string, error) {
	if r.Len() != 1 {
		return "", fmt.Errorf("%w: want 1 field, got %d", ErrCriteriaArity, r.Len())
	}
	return r.keys[0], nil
}

// TwoKeys returns both fields of a two-field criteria record, in order.
func (r *Record) TwoKeys() (string, string, error) {
	if r.Len() != 2 {
		return "", "", fmt.Errorf("%w: want 2 fields, got %d", ErrCriteriaArity, r.Len())
	}
	return r.keys[0], r.keys[1], nil
}

// Clone returns an independent copy.
func (r *Record) Clone() *Record {
	c := &Record{
		keys:   slices.Clone(r.keys),
		values: make(map[string]Value, len(r.values)),
	}
	for k, v := range r.values {
		c.values[k] = v
	}
	return c
}

func (r *Record) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(r.values[k].String())
	}
	b.WriteByte('}')
	return b.String()
}
