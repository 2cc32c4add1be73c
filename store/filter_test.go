package store

import (
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestEq_AllKindsSupported(t *testing.T) {
	tests := []struct {
		name  string
		value Value
	}{
		{"text", Text("abc")},
		{"int32", Int32(5)},
		{"int64", Int64(5)},
		{"float64", Float64(1.5)},
		{"timestamp", Timestamp(time.Now())},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Eq("field", tt.value)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !f.Supported() {
				t.Error("expected supported filter")
			}
		})
	}
}

func TestEq_InvalidValue(t *testing.T) {
	_, err := Eq("field", Value{})
	if !errors.Is(err, ErrUnsupportedFilterType) {
		t.Errorf("expected ErrUnsupportedFilterType, got %v", err)
	}
}

func TestPairEq_Asymmetry(t *testing.T) {
	tests := []struct {
		name      string
		value     Value
		supported bool
	}{
		{"text", Text("abc"), true},
		{"timestamp", Timestamp(time.Now()), true},
		{"int32", Int32(5), false},
		{"int64", Int64(5), false},
		{"float64", Float64(1.5), false},
		{"invalid", Value{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PairEq("field", tt.value).Supported(); got != tt.supported {
				t.Errorf("expected Supported() = %v, got %v", tt.supported, got)
			}
		})
	}
}

func TestAnd_Supported(t *testing.T) {
	f, err := And(PairEq("Token", Text("abc")), PairEq("Json", Text("{}")))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	expr, names, values := f.expression()
	if expr != "(#f0 = :f0) AND (#f1 = :f1)" {
		t.Errorf("unexpected expression %q", expr)
	}
	if names["#f0"] != "Token" || names["#f1"] != "Json" {
		t.Errorf("unexpected names %v", names)
	}
	if v, ok := values[":f0"].(*types.AttributeValueMemberS); !ok || v.Value != "abc" {
		t.Errorf("unexpected :f0 value %#v", values[":f0"])
	}
	if got := f.Fields(); len(got) != 2 || got[0] != "Token" || got[1] != "Json" {
		t.Errorf("unexpected fields %v", got)
	}
}

func TestAnd_UnsupportedSide(t *testing.T) {
	tests := []struct {
		name string
		a, b Filter
	}{
		{"first unsupported", PairEq("n", Int32(1)), PairEq("s", Text("x"))},
		{"second unsupported", PairEq("s", Text("x")), PairEq("n", Int64(1))},
		{"both unsupported", PairEq("n", Float64(1)), PairEq("m", Int32(1))},
		{"empty filter", Filter{}, PairEq("s", Text("x"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := And(tt.a, tt.b)
			if !errors.Is(err, ErrServer) {
				t.Errorf("expected ErrServer, got %v", err)
			}
			if !errors.Is(err, ErrUnsupportedFilterType) {
				t.Errorf("expected ErrUnsupportedFilterType, got %v", err)
			}
		})
	}
}

func TestFilterExpression_Single(t *testing.T) {
	f, err := Eq("Count", Int32(3))
	if err != nil {
		t.Fatal(err)
	}

	expr, names, values := f.expression()
	if expr != "#f0 = :f0" {
		t.Errorf("unexpected expression %q", expr)
	}
	if names["#f0"] != "Count" {
		t.Errorf("unexpected names %v", names)
	}
	if v, ok := values[":f0"].(*types.AttributeValueMemberN); !ok || v.Value != "3" {
		t.Errorf("unexpected value %#v", values[":f0"])
	}
}

func TestFilter_TimestampMatchesStoredForm(t *testing.T) {
	ts := time.Date(2024, 5, 6, 7, 8, 9, 10, time.FixedZone("X", -3600))

	f, err := Eq("CreatedAt", Timestamp(ts))
	if err != nil {
		t.Fatal(err)
	}
	_, _, values := f.expression()

	stored, err := marshalValue(Timestamp(ts))
	if err != nil {
		t.Fatal(err)
	}
	fv := values[":f0"].(*types.AttributeValueMemberS)
	sv := stored.(*types.AttributeValueMemberS)
	if fv.Value != sv.Value {
		t.Errorf("filter %q and stored %q forms differ", fv.Value, sv.Value)
	}
	if fv.Value != "2024-05-06T08:08:09.000000010Z" {
		t.Errorf("unexpected timestamp form %q", fv.Value)
	}
}

func TestEq_TimestampOutOfRange(t *testing.T) {
	_, err := Eq("ExpiredAt", Timestamp(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)))
	if !errors.Is(err, ErrTimestampRange) {
		t.Errorf("expected ErrTimestampRange, got %v", err)
	}
	if PairEq("ExpiredAt", Timestamp(time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC))).Supported() {
		t.Error("expected unsupported pair filter for unstorable timestamp")
	}
}
