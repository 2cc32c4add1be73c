package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/kindstore/internal/shard"
)

// Attribute names owned by the storage layout.
const (
	attrPK     = "pk"
	attrID     = "id"
	attrSchema = "_schema"

	// sequencePartition holds one surrogate-key counter item per kind.
	sequencePartition = "_sequence"
)

// Conventional property names.
const (
	ColumnCreatedAt = "CreatedAt"
	ColumnUpdatedAt = "UpdatedAt"
	ColumnExpiredAt = "ExpiredAt"
	ColumnToken     = "Token"
	ColumnJSON      = "Json"
)

// Conventional kinds.
const (
	KindAuth       = "auth"
	KindCredential = "credential"
	KindSetting    = "setting"
	KindDemo       = "demo"
)

// Key identifies an entity within its kind.
type Key struct {
	Kind string
	ID   string
}

// String renders the key as "kind#id".
func (k Key) String() string {
	return k.Kind + "#" + k.ID
}

// IsZero reports whether the key is unset.
func (k Key) IsZero() bool {
	return k.Kind == "" && k.ID == ""
}

// ParseKey parses the "kind#id" form produced by Key.String.
func ParseKey(s string) (Key, error) {
	i := strings.LastIndexByte(s, '#')
	if i <= 0 || i == len(s)-1 {
		return Key{}, fmt.Errorf("kindstore: malformed key %q", s)
	}
	return Key{Kind: s[:i], ID: s[i+1:]}, nil
}

// Entity is a stored record together with its key.
type Entity struct {
	Key        Key
	Properties *Record
}

// schemaField is one element of the _schema attribute.
type schemaField struct {
	Name string `dynamodbav:"n"`
	Kind string `dynamodbav:"k"`
}

func isReserved(field string) bool {
	return field == attrPK || field == attrID || field == attrSchema
}

// checkRecord reports whether rec can be stored: it must be non-nil, avoid
// layout attribute names and hold only storable values.
func checkRecord(rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	for field, v := range rec.All() {
		if isReserved(field) {
			return fmt.Errorf("%w: %q", ErrReservedField, field)
		}
		if _, err := v.native(); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

// encodeItem converts a record into a DynamoDB item stored under pk/key.
func encodeItem(pk string, key Key, rec *Record) (map[string]types.AttributeValue, error) {
	if rec == nil {
		return nil, ErrNilRecord
	}
	item := make(map[string]types.AttributeValue, rec.Len()+3)
	fields := make([]schemaField, 0, rec.Len())

	for field, v := range rec.All() {
		if isReserved(field) {
			return nil, fmt.Errorf("%w: %q", ErrReservedField, field)
		}
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", field, err)
		}
		item[field] = av
		fields = append(fields, schemaField{Name: field, Kind: v.Kind().String()})
	}

	schemaAttr, err := attributevalue.MarshalList(fields)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	item[attrPK] = &types.AttributeValueMemberS{Value: pk}
	item[attrID] = &types.AttributeValueMemberS{Value: key.ID}
	item[attrSchema] = &types.AttributeValueMemberL{Value: schemaAttr}
	return item, nil
}

// DecodeEntity converts a raw DynamoDB item written by Store back into an Entity.
// Items without a _schema attribute are decoded best-effort: strings become text
// and numbers become int64 or float64. Attributes of other types are skipped.
func DecodeEntity(item map[string]types.AttributeValue) (*Entity, error) {
	pk, ok := item[attrPK].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotEntity, attrPK)
	}
	if pk.Value == sequencePartition {
		return nil, ErrNotEntity
	}
	id, ok := item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrNotEntity, attrID)
	}

	e := &Entity{
		Key:        Key{Kind: shard.KindOf(pk.Value), ID: id.Value},
		Properties: NewRecord(),
	}

	if schemaAttr, ok := item[attrSchema].(*types.AttributeValueMemberL); ok {
		var fields []schemaField
		if err := attributevalue.UnmarshalList(schemaAttr.Value, &fields); err != nil {
			return nil, fmt.Errorf("unmarshal schema: %w", err)
		}
		for _, sf := range fields {
			av, ok := item[sf.Name]
			if !ok {
				continue
			}
			v, err := decodeValue(av, parseValueKind(sf.Kind))
			if err != nil {
				return nil, fmt.Errorf("decode %q: %w", sf.Name, err)
			}
			e.Properties.Put(sf.Name, v)
		}
		return e, nil
	}

	names := make([]string, 0, len(item))
	for name := range item {
		if !isReserved(name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if v, ok := inferValue(item[name]); ok {
			e.Properties.Put(name, v)
		}
	}
	return e, nil
}

func decodeValue(av types.AttributeValue, kind ValueKind) (Value, error) {
	switch kind {
	case KindText:
		var s string
		if err := attributevalue.Unmarshal(av, &s); err != nil {
			return Value{}, err
		}
		return Text(s), nil
	case KindInt32:
		var n int32
		if err := attributevalue.Unmarshal(av, &n); err != nil {
			return Value{}, err
		}
		return Int32(n), nil
	case KindInt64:
		var n int64
		if err := attributevalue.Unmarshal(av, &n); err != nil {
			return Value{}, err
		}
		return Int64(n), nil
	case KindFloat64:
		var f float64
		if err := attributevalue.Unmarshal(av, &f); err != nil {
			return Value{}, err
		}
		return Float64(f), nil
	case KindTimestamp:
		var s string
		if err := attributevalue.Unmarshal(av, &s); err != nil {
			return Value{}, err
		}
		t, err := parseTimestamp(s)
		if err != nil {
			return Value{}, err
		}
		return Timestamp(t), nil
	default:
		return Value{}, fmt.Errorf("unknown value kind %q", kind)
	}
}

func inferValue(av types.AttributeValue) (Value, bool) {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return Text(v.Value), true
	case *types.AttributeValueMemberN:
		var n int64
		if err := attributevalue.Unmarshal(v, &n); err == nil {
			return Int64(n), true
		}
		var f float64
		if err := attributevalue.Unmarshal(v, &f); err == nil {
			return Float64(f), true
		}
	}
	return Value{}, false
}
