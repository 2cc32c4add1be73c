// Package document models JSON documents as ordered trees and merges them.
//
// Documents come from parsing text, so they are always acyclic. Object members
// keep their source order, and numbers keep their literal text, so a parsed and
// re-encoded document reads the way it was written.
package document

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Type is the variant held by a Node.
type Type uint8

const (
	Null Type = iota
	Bool
	Number
	String
	Array
	Object
)

func (t Type) String() string {
	switch t {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is one key/value pair of an object.
type Member struct {
	Key   string
	Value Node
}

// Node is a document tree. The zero Node is JSON null.
type Node struct {
	typ     Type
	boolean bool
	text    string // string value or number literal
	items   []Node
	members []Member
}

// NullNode returns a null node.
func NullNode() Node { return Node{} }

// BoolNode returns a boolean node.
func BoolNode(b bool) Node { return Node{typ: Bool, boolean: b} }

// StringNode returns a string node.
func StringNode(s string) Node { return Node{typ: String, text: s} }

// NumberNode returns a number node from its literal text.
func NumberNode(n json.Number) Node { return Node{typ: Number, text: string(n)} }

// IntNode returns a number node holding n.
func IntNode(n int64) Node { return Node{typ: Number, text: strconv.FormatInt(n, 10)} }

// ArrayNode returns an array node.
func ArrayNode(items ...Node) Node { return Node{typ: Array, items: items} }

// ObjectNode returns an object node. Later duplicates of a key replace earlier ones
// in place.
func ObjectNode(members ...Member) Node {
	n := Node{typ: Object}
	for _, m := range members {
		n.Set(m.Key, m.Value)
	}
	return n
}

// Type reports the node's variant.
func (n Node) Type() Type { return n.typ }

// IsObject reports whether n is an object.
func (n Node) IsObject() bool { return n.typ == Object }

func (n Node) Bool() (bool, bool) { return n.boolean, n.typ == Bool }

func (n Node) Str() (string, bool) { return n.text, n.typ == String }

func (n Node) Number() (json.Number, bool) { return json.Number(n.text), n.typ == Number }

// Items returns the elements of an array node.
func (n Node) Items() []Node { return n.items }

// Members returns the members of an object node in order.
func (n Node) Members() []Member { return n.members }

// Len returns the number of members or items.
func (n Node) Len() int {
	switch n.typ {
	case Object:
		return len(n.members)
	case Array:
		return len(n.items)
	default:
		return 0
	}
}

// Get returns the member value stored under key.
func (n Node) Get(key string) (Node, bool) {
	for _, m := range n.members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return Node{}, false
}

// Has reports whether an object node has key.
func (n Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Set stores v under key, replacing an existing member in place or appending.
// Set on a non-object node turns it into an empty object first.
func (n *Node) Set(key string, v Node) {
	if n.typ != Object {
		*n = Node{typ: Object}
	}
	for i := range n.members {
		if n.members[i].Key == key {
			n.members[i].Value = v
			return
		}
	}
	n.members = append(n.members, Member{Key: key, Value: v})
}

// Clone returns a deep copy.
func (n Node) Clone() Node {
	c := n
	if n.items != nil {
		c.items = make([]Node, len(n.items))
		for i, it := range n.items {
			c.items[i] = it.Clone()
		}
	}
	if n.members != nil {
		c.members = make([]Member, len(n.members))
		for i, m := range n.members {
			c.members[i] = Member{Key: m.Key, Value: m.Value.Clone()}
		}
	}
	return c
}

// Equal reports deep equality. Object member order is significant.
func (n Node) Equal(o Node) bool {
	if n.typ != o.typ {
		return false
	}
	switch n.typ {
	case Null:
		return true
	case Bool:
		return n.boolean == o.boolean
	case Number, String:
		return n.text == o.text
	case Array:
		if len(n.items) != len(o.items) {
			return false
		}
		for i := range n.items {
			if !n.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(n.members) != len(o.members) {
			return false
		}
		for i := range n.members {
			if n.members[i].Key != o.members[i].Key || !n.members[i].Value.Equal(o.members[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the node compactly, preserving member order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// String returns the compact JSON encoding.
func (n Node) String() string {
	b, err := n.MarshalJSON()
	if err != nil {
		return "<invalid: " + err.Error() + ">"
	}
	return string(b)
}

func (n Node) encode(buf *bytes.Buffer) error {
	switch n.typ {
	case Null:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(n.boolean))
	case Number:
		buf.WriteString(n.text)
	case String:
		return writeString(buf, n.text)
	case Array:
		buf.WriteByte('[')
		for i, it := range n.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := it.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Object:
		buf.WriteByte('{')
		for i, m := range n.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates each value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
