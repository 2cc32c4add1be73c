package document

import "fmt"

type mergeOptions struct {
	legacyFallback bool
	maxDepth       int
}

// MergeOption configures DeepMerge.
type MergeOption func(*mergeOptions)

// WithLegacyFallback reproduces the historical handling of a nested source
// object whose target counterpart is not an object: the source object's members
// are merged into the enclosing target object instead of replacing the value.
func WithLegacyFallback() MergeOption {
	return func(o *mergeOptions) {
		o.legacyFallback = true
	}
}

// WithMaxDepth bounds merge recursion. Objects nested deeper than depth below
// the top level are rejected, matching Parse. Default: DefaultMaxDepth.
func WithMaxDepth(depth int) MergeOption {
	return func(o *mergeOptions) {
		o.maxDepth = depth
	}
}

// DeepMerge merges source into a copy of target and returns the copy. Neither
// argument is modified.
//
// For each member of source: a key missing from target is copied; when both
// values are objects they are merged recursively; otherwise the source value
// replaces the target value.
func DeepMerge(source, target Node, opts ...MergeOption) (Node, error) {
	o := mergeOptions{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(&o)
	}
	if !source.IsObject() || !target.IsObject() {
		return Node{}, fmt.Errorf("%w: merge of %s into %s, want objects", ErrInvalidInput, source.Type(), target.Type())
	}

	out := target.Clone()
	if err := merge(source, &out, o, 0); err != nil {
		return Node{}, err
	}
	return out, nil
}

func merge(source Node, target *Node, o mergeOptions, depth int) error {
	if depth > o.maxDepth {
		return fmt.Errorf("%w: limit %d", ErrTooDeep, o.maxDepth)
	}
	for _, m := range source.members {
		existing, ok := target.Get(m.Key)
		switch {
		case !ok:
			target.Set(m.Key, m.Value.Clone())
		case m.Value.IsObject() && existing.IsObject():
			if err := merge(m.Value, &existing, o, depth+1); err != nil {
				return err
			}
			target.Set(m.Key, existing)
		case m.Value.IsObject() && o.legacyFallback:
			if err := merge(m.Value, target, o, depth+1); err != nil {
				return err
			}
		default:
			target.Set(m.Key, m.Value.Clone())
		}
	}
	return nil
}
