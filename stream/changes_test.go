package stream_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/kindstore/internal/dynamotest"
	"github.com/jacentio/kindstore/store"
	"github.com/jacentio/kindstore/stream"
)

// --- Helpers ---

// toStream converts an SDK item into its stream image form.
func toStream(item map[string]types.AttributeValue) map[string]events.DynamoDBAttributeValue {
	out := make(map[string]events.DynamoDBAttributeValue, len(item))
	for k, v := range item {
		out[k] = toStreamAttr(v)
	}
	return out
}

func toStreamAttr(v types.AttributeValue) events.DynamoDBAttributeValue {
	switch av := v.(type) {
	case *types.AttributeValueMemberS:
		return events.NewStringAttribute(av.Value)
	case *types.AttributeValueMemberN:
		return events.NewNumberAttribute(av.Value)
	case *types.AttributeValueMemberL:
		list := make([]events.DynamoDBAttributeValue, len(av.Value))
		for i, it := range av.Value {
			list[i] = toStreamAttr(it)
		}
		return events.NewListAttribute(list)
	case *types.AttributeValueMemberM:
		return events.NewMapAttribute(toStream(av.Value))
	default:
		return events.NewNullAttribute()
	}
}

func keysOf(item map[string]types.AttributeValue) map[string]events.DynamoDBAttributeValue {
	return toStream(map[string]types.AttributeValue{"pk": item["pk"], "id": item["id"]})
}

// savedItems saves one entity per record under kind and returns the raw items
// of that kind.
func savedItems(t *testing.T, kind string, records ...*store.Record) []map[string]types.AttributeValue {
	t.Helper()
	fake := dynamotest.New()
	s := store.New(fake, store.DefaultConfig())
	for _, rec := range records {
		if _, err := s.Save(context.Background(), kind, rec); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	var items []map[string]types.AttributeValue
	for _, item := range fake.Items() {
		if pk := item["pk"].(*types.AttributeValueMemberS); pk.Value != "_sequence" {
			items = append(items, item)
		}
	}
	return items
}

// --- ConvertImage Tests ---

func TestConvertImage(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"pk": events.NewStringAttribute("setting#00"),
		"id": events.NewStringAttribute("1"),
		"n":  events.NewNumberAttribute("42"),
	}

	got := stream.ConvertImage(image)
	if v, ok := got["pk"].(*types.AttributeValueMemberS); !ok || v.Value != "setting#00" {
		t.Error("expected pk to be 'setting#00'")
	}
	if v, ok := got["n"].(*types.AttributeValueMemberN); !ok || v.Value != "42" {
		t.Error("expected n to be '42'")
	}
}

func TestConvertImage_Empty(t *testing.T) {
	if got := stream.ConvertImage(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

// --- Handler Tests ---

func TestNewHandler_NilArguments(t *testing.T) {
	h := stream.NewHandler(nil, nil)
	if h == nil {
		t.Fatal("expected non-nil Handler")
	}
	if err := h.Handle(context.Background(), events.DynamoDBEvent{}); err != nil {
		t.Errorf("expected no error for empty event, got %v", err)
	}
}

func TestHandle_DispatchesInsert(t *testing.T) {
	items := savedItems(t, store.KindSetting,
		store.NewRecord().Put(store.ColumnJSON, store.Text(`{"a":1}`)))

	var got []stream.Change
	r := stream.NewRegistry()
	r.Register(store.KindSetting, func(_ context.Context, c stream.Change) error {
		got = append(got, c)
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:   "e1",
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			Keys:     keysOf(items[0]),
			NewImage: toStream(items[0]),
		},
	}}}

	if err := stream.NewHandler(r, nil).Handle(context.Background(), event); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 change, got %d", len(got))
	}

	c := got[0]
	if c.Type != stream.ChangeInsert || c.EventID != "e1" {
		t.Errorf("unexpected change header %+v", c)
	}
	if c.Key != (store.Key{Kind: store.KindSetting, ID: "1"}) {
		t.Errorf("unexpected key %v", c.Key)
	}
	if c.Old != nil {
		t.Error("expected no old image for insert")
	}
	if c.New == nil {
		t.Fatal("expected new image")
	}
	v, _ := c.New.Properties.Get(store.ColumnJSON)
	if js, _ := v.AsText(); js != `{"a":1}` {
		t.Errorf("unexpected Json %q", js)
	}
	if v, ok := c.New.Properties.Get(store.ColumnCreatedAt); !ok || v.Kind() != store.KindTimestamp {
		t.Error("expected CreatedAt timestamp to survive the stream round trip")
	}
}

func TestHandle_ModifyCarriesBothImages(t *testing.T) {
	items := savedItems(t, store.KindAuth,
		store.NewRecord().Put(store.ColumnToken, store.Text("old")))
	old := items[0]
	updated := make(map[string]types.AttributeValue, len(old))
	for k, v := range old {
		updated[k] = v
	}
	updated[store.ColumnToken] = &types.AttributeValueMemberS{Value: "new"}

	var got stream.Change
	r := stream.NewRegistry()
	r.Register(store.KindAuth, func(_ context.Context, c stream.Change) error {
		got = c
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			Keys:     keysOf(old),
			OldImage: toStream(old),
			NewImage: toStream(updated),
		},
	}}}
	if err := stream.NewHandler(r, nil).Handle(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	if got.Old == nil || got.New == nil {
		t.Fatal("expected both images")
	}
	ov, _ := got.Old.Properties.Get(store.ColumnToken)
	nv, _ := got.New.Properties.Get(store.ColumnToken)
	if o, _ := ov.AsText(); o != "old" {
		t.Errorf("expected old token, got %q", o)
	}
	if n, _ := nv.AsText(); n != "new" {
		t.Errorf("expected new token, got %q", n)
	}
}

func TestHandle_KeysOnlyRemove(t *testing.T) {
	var got []stream.Change
	r := stream.NewRegistry()
	r.RegisterAny(func(_ context.Context, c stream.Change) error {
		got = append(got, c)
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("demo#1f"),
				"id": events.NewStringAttribute("9"),
			},
		},
	}}}
	if err := stream.NewHandler(r, nil).Handle(context.Background(), event); err != nil {
		t.Fatal(err)
	}

	if len(got) != 1 {
		t.Fatalf("expected 1 change, got %d", len(got))
	}
	if got[0].Key != (store.Key{Kind: "demo", ID: "9"}) || got[0].Type != stream.ChangeRemove {
		t.Errorf("unexpected change %+v", got[0])
	}
	if got[0].Old != nil || got[0].New != nil {
		t.Error("expected no images for keys-only record")
	}
}

func TestHandle_SkipsCounterAndUnregistered(t *testing.T) {
	calls := 0
	r := stream.NewRegistry()
	r.Register(store.KindSetting, func(context.Context, stream.Change) error {
		calls++
		return nil
	})

	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{
		{
			EventName: "MODIFY",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("_sequence"),
					"id": events.NewStringAttribute(store.KindSetting),
				},
			},
		},
		{
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("auth#00"),
					"id": events.NewStringAttribute("1"),
				},
			},
		},
		{
			EventName: "UNKNOWN",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("setting#00"),
					"id": events.NewStringAttribute("1"),
				},
			},
		},
	}}

	if err := stream.NewHandler(r, nil).Handle(context.Background(), event); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Errorf("expected no dispatch, got %d calls", calls)
	}
}

func TestHandle_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	var seen []string
	r := stream.NewRegistry()
	r.RegisterAny(func(_ context.Context, c stream.Change) error {
		seen = append(seen, c.Key.ID)
		if c.Key.ID == "2" {
			return boom
		}
		return nil
	})

	var records []events.DynamoDBEventRecord
	for _, id := range []string{"1", "2", "3"} {
		records = append(records, events.DynamoDBEventRecord{
			EventID:   "e" + id,
			EventName: "INSERT",
			Change: events.DynamoDBStreamRecord{
				Keys: map[string]events.DynamoDBAttributeValue{
					"pk": events.NewStringAttribute("demo#00"),
					"id": events.NewStringAttribute(id),
				},
			},
		})
	}

	err := stream.NewHandler(r, nil).Handle(context.Background(), events.DynamoDBEvent{Records: records})
	if !errors.Is(err, boom) {
		t.Errorf("expected handler error, got %v", err)
	}
	if len(seen) != 2 || seen[1] != "2" {
		t.Errorf("expected processing to stop after record 2, saw %v", seen)
	}
}
