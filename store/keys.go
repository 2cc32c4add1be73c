package store

import (
	"context"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// idBlock is a reserved range of sequence ids (next..last inclusive).
type idBlock struct {
	mu   sync.Mutex
	next int64
	last int64
}

// allocator hands out surrogate ids per kind.
type allocator struct {
	client    API
	table     string
	strategy  KeyStrategy
	blockSize int64
	blocks    *xsync.MapOf[string, *idBlock]
}

func newAllocator(client API, cfg Config) *allocator {
	return &allocator{
		client:    client,
		table:     cfg.Table,
		strategy:  cfg.KeyStrategy,
		blockSize: int64(cfg.KeyBlockSize),
		blocks:    xsync.NewMapOf[string, *idBlock](),
	}
}

func (a *allocator) allocate(ctx context.Context, kind string) (string, error) {
	if a.strategy == KeyUUID {
		return uuid.NewString(), nil
	}

	block, _ := a.blocks.LoadOrStore(kind, &idBlock{})
	block.mu.Lock()
	defer block.mu.Unlock()

	if block.next == 0 || block.next > block.last {
		last, err := a.reserve(ctx, kind)
		if err != nil {
			return "", err
		}
		block.next = last - a.blockSize + 1
		block.last = last
	}
	id := block.next
	block.next++
	return strconv.FormatInt(id, 10), nil
}

// reserve atomically advances the kind's counter by one block and returns the
// new high-water mark.
func (a *allocator) reserve(ctx context.Context, kind string) (int64, error) {
	out, err := a.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(a.table),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: sequencePartition},
			attrID: &types.AttributeValueMemberS{Value: kind},
		},
		UpdateExpression: aws.String("ADD #next :block"),
		ExpressionAttributeNames: map[string]string{
			"#next": "next",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":block": &types.AttributeValueMemberN{Value: strconv.FormatInt(a.blockSize, 10)},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, serverError("allocate key", err)
	}

	next, ok := out.Attributes["next"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, serverError("allocate key", errMissingCounter)
	}
	n, err := strconv.ParseInt(next.Value, 10, 64)
	if err != nil {
		return 0, serverError("allocate key", err)
	}
	return n, nil
}
