// Package stream provides a DynamoDB Streams handler that turns raw stream
// records into typed entity changes.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/kindstore/store"
)

// ChangeType is the stream event name.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeModify ChangeType = "MODIFY"
	ChangeRemove ChangeType = "REMOVE"
)

// Change is a decoded stream record. Old is nil for inserts and New is nil for
// removals; both are nil when the stream carries keys only.
type Change struct {
	EventID string
	Type    ChangeType
	Key     store.Key
	Old     *store.Entity
	New     *store.Entity
}

// Handler processes DynamoDB stream events and dispatches entity changes.
type Handler struct {
	registry *Registry
	logger   *slog.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(registry *Registry, logger *slog.Logger) *Handler {
	if registry == nil {
		registry = NewRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// Handle processes a batch of stream records in order. It stops at the first
// failing record so Lambda retries the batch.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) Handle(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				"eventID", record.EventID,
				"error", err,
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord decodes a single stream record and runs its handlers.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	typ := ChangeType(record.EventName)
	switch typ {
	case ChangeInsert, ChangeModify, ChangeRemove:
	default:
		return nil
	}

	keyEntity, err := store.DecodeEntity(ConvertImage(record.Change.Keys))
	if errors.Is(err, store.ErrNotEntity) {
		h.logger.Debug("skipping non-entity record",
			"eventID", record.EventID,
			"pk", getStringAttr(record.Change.Keys, "pk"),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode key: %w", err)
	}

	change := Change{
		EventID: record.EventID,
		Type:    typ,
		Key:     keyEntity.Key,
	}
	if !h.registry.HasHandlers(change.Key.Kind) {
		return nil
	}

	if len(record.Change.OldImage) > 0 {
		if change.Old, err = store.DecodeEntity(ConvertImage(record.Change.OldImage)); err != nil {
			return fmt.Errorf("decode old image: %w", err)
		}
	}
	if len(record.Change.NewImage) > 0 {
		if change.New, err = store.DecodeEntity(ConvertImage(record.Change.NewImage)); err != nil {
			return fmt.Errorf("decode new image: %w", err)
		}
	}

	h.logger.Info("dispatching change",
		"eventID", record.EventID,
		"type", string(typ),
		"key", change.Key.String(),
	)

	for _, fn := range h.registry.HandlersFor(change.Key.Kind) {
		if err := fn(ctx, change); err != nil {
			return fmt.Errorf("handle %s %s: %w", typ, change.Key, err)
		}
	}
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// ConvertImage converts a DynamoDB stream image into SDK attribute values.
// Use this when you need to hand stream keys or images to store operations.
func ConvertImage(image map[string]events.DynamoDBAttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue, len(image))
	for k, v := range image {
		if av := convertAttr(v); av != nil {
			result[k] = av
		}
	}
	return result
}

func convertAttr(v events.DynamoDBAttributeValue) types.AttributeValue {
	switch v.DataType() {
	case events.DataTypeString:
		return &types.AttributeValueMemberS{Value: v.String()}
	case events.DataTypeNumber:
		return &types.AttributeValueMemberN{Value: v.Number()}
	case events.DataTypeBinary:
		return &types.AttributeValueMemberB{Value: v.Binary()}
	case events.DataTypeBoolean:
		return &types.AttributeValueMemberBOOL{Value: v.Boolean()}
	case events.DataTypeNull:
		return &types.AttributeValueMemberNULL{Value: true}
	case events.DataTypeStringSet:
		return &types.AttributeValueMemberSS{Value: v.StringSet()}
	case events.DataTypeNumberSet:
		return &types.AttributeValueMemberNS{Value: v.NumberSet()}
	case events.DataTypeBinarySet:
		return &types.AttributeValueMemberBS{Value: v.BinarySet()}
	case events.DataTypeList:
		list := make([]types.AttributeValue, 0, len(v.List()))
		for _, item := range v.List() {
			if av := convertAttr(item); av != nil {
				list = append(list, av)
			}
		}
		return &types.AttributeValueMemberL{Value: list}
	case events.DataTypeMap:
		return &types.AttributeValueMemberM{Value: ConvertImage(v.Map())}
	default:
		return nil
	}
}
