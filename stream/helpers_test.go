package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// --- getStringAttr Tests ---

func TestGetStringAttr(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"pk":    events.NewStringAttribute("setting#00"),
		"count": events.NewNumberAttribute("3"),
		"empty": events.NewStringAttribute(""),
	}

	tests := []struct {
		key  string
		want string
	}{
		{"pk", "setting#00"},
		{"count", ""},
		{"empty", ""},
		{"missing", ""},
	}

	for _, tt := range tests {
		if got := getStringAttr(image, tt.key); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.key, tt.want, got)
		}
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue
	if got := getStringAttr(image, "pk"); got != "" {
		t.Errorf("expected empty string for nil image, got %q", got)
	}
}

// --- convertAttr Tests ---

func TestConvertAttr_Scalars(t *testing.T) {
	if v, ok := convertAttr(events.NewStringAttribute("x")).(*types.AttributeValueMemberS); !ok || v.Value != "x" {
		t.Error("expected string attribute")
	}
	if v, ok := convertAttr(events.NewNumberAttribute("1.5")).(*types.AttributeValueMemberN); !ok || v.Value != "1.5" {
		t.Error("expected number attribute")
	}
	if v, ok := convertAttr(events.NewBooleanAttribute(true)).(*types.AttributeValueMemberBOOL); !ok || !v.Value {
		t.Error("expected bool attribute")
	}
	if v, ok := convertAttr(events.NewBinaryAttribute([]byte{1, 2})).(*types.AttributeValueMemberB); !ok || len(v.Value) != 2 {
		t.Error("expected binary attribute")
	}
	if _, ok := convertAttr(events.NewNullAttribute()).(*types.AttributeValueMemberNULL); !ok {
		t.Error("expected null attribute")
	}
}

func TestConvertAttr_Sets(t *testing.T) {
	if v, ok := convertAttr(events.NewStringSetAttribute([]string{"a", "b"})).(*types.AttributeValueMemberSS); !ok || len(v.Value) != 2 {
		t.Error("expected string set")
	}
	if v, ok := convertAttr(events.NewNumberSetAttribute([]string{"1"})).(*types.AttributeValueMemberNS); !ok || v.Value[0] != "1" {
		t.Error("expected number set")
	}
	if v, ok := convertAttr(events.NewBinarySetAttribute([][]byte{{1}})).(*types.AttributeValueMemberBS); !ok || len(v.Value) != 1 {
		t.Error("expected binary set")
	}
}

func TestConvertAttr_Nested(t *testing.T) {
	nested := events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
		"list": events.NewListAttribute([]events.DynamoDBAttributeValue{
			events.NewStringAttribute("a"),
			events.NewMapAttribute(map[string]events.DynamoDBAttributeValue{
				"n": events.NewNumberAttribute("7"),
			}),
		}),
	})

	m, ok := convertAttr(nested).(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected map attribute")
	}
	list, ok := m.Value["list"].(*types.AttributeValueMemberL)
	if !ok || len(list.Value) != 2 {
		t.Fatalf("expected two-element list, got %#v", m.Value["list"])
	}
	inner, ok := list.Value[1].(*types.AttributeValueMemberM)
	if !ok {
		t.Fatal("expected nested map")
	}
	if n, ok := inner.Value["n"].(*types.AttributeValueMemberN); !ok || n.Value != "7" {
		t.Error("expected nested number 7")
	}
}
