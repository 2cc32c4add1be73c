package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrInvalidInput is returned when text is not a JSON object.
	ErrInvalidInput = errors.New("document: invalid input")

	// ErrTooDeep is returned when a document nests deeper than the allowed depth.
	ErrTooDeep = errors.New("document: nesting too deep")
)

// DefaultMaxDepth bounds parsing and merge recursion.
const DefaultMaxDepth = 64

// Parse strictly parses text as a JSON object.
func Parse(text string) (Node, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	n, err := parseValue(dec, 0)
	if err != nil {
		return Node{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if !n.IsObject() {
		return Node{}, fmt.Errorf("%w: top level is %s, want object", ErrInvalidInput, n.Type())
	}
	if _, err := dec.Token(); err != io.EOF {
		return Node{}, fmt.Errorf("%w: trailing data", ErrInvalidInput)
	}
	return n, nil
}

// ParseLenient parses text, retrying once with every backslash doubled when the
// strict parse fails. It reports false if neither attempt succeeds; that is an
// ordinary outcome, not an error.
func ParseLenient(text string) (Node, bool) {
	if n, err := Parse(text); err == nil {
		return n, true
	}
	if n, err := Parse(strings.ReplaceAll(text, `\`, `\\`)); err == nil {
		return n, true
	}
	return Node{}, false
}

func parseValue(dec *json.Decoder, depth int) (Node, error) {
	if depth > DefaultMaxDepth {
		return Node{}, ErrTooDeep
	}
	tok, err := dec.Token()
	if err != nil {
		return Node{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj := Node{typ: Object, members: []Member{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Node{}, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Node{}, fmt.Errorf("object key is %T", keyTok)
				}
				v, err := parseValue(dec, depth+1)
				if err != nil {
					return Node{}, err
				}
				obj.Set(key, v)
			}
			if _, err := dec.Token(); err != nil { // '}'
				return Node{}, err
			}
			return obj, nil
		case '[':
			arr := Node{typ: Array, items: []Node{}}
			for dec.More() {
				v, err := parseValue(dec, depth+1)
				if err != nil {
					return Node{}, err
				}
				arr.items = append(arr.items, v)
			}
			if _, err := dec.Token(); err != nil { // ']'
				return Node{}, err
			}
			return arr, nil
		default:
			return Node{}, fmt.Errorf("unexpected delimiter %q", t)
		}
	case bool:
		return BoolNode(t), nil
	case json.Number:
		return NumberNode(t), nil
	case string:
		return StringNode(t), nil
	case nil:
		return NullNode(), nil
	default:
		return Node{}, fmt.Errorf("unexpected token %T", tok)
	}
}
