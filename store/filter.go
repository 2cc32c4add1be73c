package store

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Filter is a conjunction of equality predicates on entity properties.
// A Filter built by PairEq for a kind it does not accept is unsupported and
// cannot be used in a query.
type Filter struct {
	preds       []predicate
	unsupported bool
}

type predicate struct {
	field string
	value types.AttributeValue
}

// Supported reports whether the filter can be rendered.
func (f Filter) Supported() bool {
	return !f.unsupported && len(f.preds) > 0
}

// Fields returns the property names the filter constrains.
func (f Filter) Fields() []string {
	fields := make([]string, len(f.preds))
	for i, p := range f.preds {
		fields[i] = p.field
	}
	return fields
}

// Eq builds a single-field equality filter. Every value kind is accepted.
func Eq(field string, v Value) (Filter, error) {
	switch v.Kind() {
	case KindText, KindInt32, KindInt64, KindFloat64, KindTimestamp:
		av, err := marshalValue(v)
		if err != nil {
			return Filter{}, err
		}
		return Filter{preds: []predicate{{field: field, value: av}}}, nil
	default:
		return Filter{}, fmt.Errorf("%w: %s on %q", ErrUnsupportedFilterType, v.Kind(), field)
	}
}

// PairEq builds an equality filter meant to be combined with And. Only text
// and timestamp values are accepted; any other kind yields an unsupported Filter.
func PairEq(field string, v Value) Filter {
	switch v.Kind() {
	case KindText, KindTimestamp:
		av, err := marshalValue(v)
		if err != nil {
			return Filter{unsupported: true}
		}
		return Filter{preds: []predicate{{field: field, value: av}}}
	default:
		return Filter{unsupported: true}
	}
}

// And combines two filters. It fails if either side is unsupported.
func And(a, b Filter) (Filter, error) {
	if !a.Supported() || !b.Supported() {
		return Filter{}, serverError("compose filter",
			fmt.Errorf("%w: first supported=%t, second supported=%t",
				ErrUnsupportedFilterType, a.Supported(), b.Supported()))
	}
	preds := make([]predicate, 0, len(a.preds)+len(b.preds))
	preds = append(preds, a.preds...)
	preds = append(preds, b.preds...)
	return Filter{preds: preds}, nil
}

// expression renders the filter as a DynamoDB filter expression with its
// placeholder maps.
func (f Filter) expression() (string, map[string]string, map[string]types.AttributeValue) {
	clauses := make([]string, len(f.preds))
	names := make(map[string]string, len(f.preds))
	values := make(map[string]types.AttributeValue, len(f.preds))
	for i, p := range f.preds {
		nameKey := fmt.Sprintf("#f%d", i)
		valueKey := fmt.Sprintf(":f%d", i)
		names[nameKey] = p.field
		values[valueKey] = p.value
		clauses[i] = fmt.Sprintf("%s = %s", nameKey, valueKey)
	}
	if len(clauses) == 1 {
		return clauses[0], names, values
	}
	for i, c := range clauses {
		clauses[i] = "(" + c + ")"
	}
	return strings.Join(clauses, " AND "), names, values
}

// marshalValue converts a Value to its DynamoDB attribute form. Filters and
// stored properties both go through here so equality holds byte for byte.
func marshalValue(v Value) (types.AttributeValue, error) {
	native, err := v.native()
	if err != nil {
		return nil, err
	}
	return attributevalue.Marshal(native)
}
