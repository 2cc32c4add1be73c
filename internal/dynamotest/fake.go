// Package dynamotest provides an in-memory stand-in for the DynamoDB operations
// used by the store package.
//
// The fake understands the expression shapes the store emits: equality clauses
// joined by AND (optionally parenthesized), attribute_not_exists conditions and
// single ADD updates. It keeps one table keyed by the "pk" and "id" attributes;
// table names are ignored.
package dynamotest

import (
	"context"
	"fmt"
	"maps"
	"math/big"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	partitionAttr = "pk"
	sortAttr      = "id"
)

// Fake is an in-memory DynamoDB table. It is safe for concurrent use.
type Fake struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue // "pk\x00id" -> item

	// Indexes maps local secondary index names to their sort attribute.
	Indexes map[string]string

	// PageSize caps items examined per Query page when the request sets no Limit.
	// Zero means unlimited.
	PageSize int

	// PutHook, if set, runs before every PutItem; a non-nil error fails the call.
	PutHook func(item map[string]types.AttributeValue) error

	// QueryErr, UpdateErr and GetErr fail the respective calls when set.
	QueryErr  error
	UpdateErr error
	GetErr    error

	queryCalls int
	putCalls   int
}

// New creates an empty fake with the default CreatedAt/UpdatedAt indexes.
func New() *Fake {
	return &Fake{
		items: make(map[string]map[string]types.AttributeValue),
		Indexes: map[string]string{
			"CreatedAtIndex": "CreatedAt",
			"UpdatedAtIndex": "UpdatedAt",
		},
	}
}

// QueryCalls returns how many Query requests were served.
func (f *Fake) QueryCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queryCalls
}

// PutCalls returns how many PutItem requests were served.
func (f *Fake) PutCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

// Seed stores a raw item directly, bypassing conditions and hooks.
func (f *Fake) Seed(item map[string]types.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[itemKey(item)] = maps.Clone(item)
}

// Items returns copies of all stored items, ordered by pk then id.
func (f *Fake) Items() []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := slices.Sorted(maps.Keys(f.items))
	out := make([]map[string]types.AttributeValue, 0, len(keys))
	for _, k := range keys {
		out = append(out, maps.Clone(f.items[k]))
	}
	return out
}

// GetItem implements the DynamoDB GetItem call.
func (f *Fake) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}
	item, ok := f.items[itemKey(params.Key)]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: maps.Clone(item)}, nil
}

// PutItem implements the DynamoDB PutItem call.
func (f *Fake) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++

	if f.PutHook != nil {
		if err := f.PutHook(params.Item); err != nil {
			return nil, err
		}
	}

	key := itemKey(params.Item)
	if cond := aws.ToString(params.ConditionExpression); cond != "" {
		if !strings.HasPrefix(cond, "attribute_not_exists(") {
			return nil, fmt.Errorf("dynamotest: unsupported condition %q", cond)
		}
		if _, exists := f.items[key]; exists {
			return nil, &types.ConditionalCheckFailedException{
				Message: aws.String("The conditional request failed"),
			}
		}
	}

	f.items[key] = maps.Clone(params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// UpdateItem implements DynamoDB UpdateItem for single "ADD #name :value" updates.
func (f *Fake) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}

	fields := strings.Fields(aws.ToString(params.UpdateExpression))
	if len(fields) != 3 || fields[0] != "ADD" {
		return nil, fmt.Errorf("dynamotest: unsupported update %q", aws.ToString(params.UpdateExpression))
	}
	attr := params.ExpressionAttributeNames[fields[1]]
	delta, ok := params.ExpressionAttributeValues[fields[2]].(*types.AttributeValueMemberN)
	if attr == "" || !ok {
		return nil, fmt.Errorf("dynamotest: unresolved update operands %q", aws.ToString(params.UpdateExpression))
	}

	key := itemKey(params.Key)
	item, exists := f.items[key]
	if !exists {
		item = maps.Clone(params.Key)
	}
	current := 0.0
	if n, ok := item[attr].(*types.AttributeValueMemberN); ok {
		current, _ = strconv.ParseFloat(n.Value, 64)
	}
	d, _ := strconv.ParseFloat(delta.Value, 64)
	updated := &types.AttributeValueMemberN{Value: strconv.FormatFloat(current+d, 'f', -1, 64)}
	item[attr] = updated
	f.items[key] = item

	out := &dynamodb.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueUpdatedNew {
		out.Attributes = map[string]types.AttributeValue{attr: updated}
	}
	return out, nil
}

// Query implements the DynamoDB Query call, including pagination, Limit,
// ScanIndexForward and local secondary indexes.
func (f *Fake) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.QueryErr != nil {
		return nil, f.QueryErr
	}

	names := params.ExpressionAttributeNames
	values := params.ExpressionAttributeValues
	keyCond := aws.ToString(params.KeyConditionExpression)

	orderAttr := sortAttr
	if idx := aws.ToString(params.IndexName); idx != "" {
		attr, ok := f.Indexes[idx]
		if !ok {
			return nil, fmt.Errorf("dynamotest: unknown index %q", idx)
		}
		orderAttr = attr
	}

	var candidates []map[string]types.AttributeValue
	for _, item := range f.items {
		ok, err := Match(keyCond, names, values, item)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if _, has := item[orderAttr].(*types.AttributeValueMemberS); !has {
			continue // sparse index
		}
		candidates = append(candidates, item)
	}

	slices.SortFunc(candidates, func(a, b map[string]types.AttributeValue) int {
		if c := strings.Compare(stringAttr(a, orderAttr), stringAttr(b, orderAttr)); c != 0 {
			return c
		}
		return strings.Compare(itemKey(a), itemKey(b))
	})
	if params.ScanIndexForward != nil && !*params.ScanIndexForward {
		slices.Reverse(candidates)
	}

	start := 0
	if params.ExclusiveStartKey != nil {
		last := itemKey(params.ExclusiveStartKey)
		for i, item := range candidates {
			if itemKey(item) == last {
				start = i + 1
				break
			}
		}
	}

	pageSize := f.PageSize
	if params.Limit != nil {
		pageSize = int(*params.Limit)
	}
	end := len(candidates)
	if pageSize > 0 && start+pageSize < end {
		end = start + pageSize
	}

	out := &dynamodb.QueryOutput{}
	filter := aws.ToString(params.FilterExpression)
	for _, item := range candidates[start:end] {
		out.ScannedCount++
		if filter != "" {
			ok, err := Match(filter, names, values, item)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		out.Items = append(out.Items, maps.Clone(item))
		out.Count++
	}
	if end < len(candidates) {
		lastItem := candidates[end-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			partitionAttr: lastItem[partitionAttr],
			sortAttr:      lastItem[sortAttr],
		}
	}
	return out, nil
}

// Match evaluates an expression made of "#name = :value" clauses joined by AND
// against item.
func Match(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	expr = strings.NewReplacer("(", "", ")", "").Replace(expr)
	for _, clause := range strings.Split(expr, " AND ") {
		lhs, rhs, ok := strings.Cut(strings.TrimSpace(clause), " = ")
		if !ok {
			return false, fmt.Errorf("dynamotest: unsupported clause %q", clause)
		}
		name, ok := names[lhs]
		if !ok {
			return false, fmt.Errorf("dynamotest: unresolved name %q", lhs)
		}
		want, ok := values[rhs]
		if !ok {
			return false, fmt.Errorf("dynamotest: unresolved value %q", rhs)
		}
		if !Equal(item[name], want) {
			return false, nil
		}
	}
	return true, nil
}

// Equal compares attribute values the way DynamoDB equality does for scalars:
// numbers exactly by numeric value, strings byte for byte.
func Equal(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		bv, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		x, ok1 := new(big.Rat).SetString(av.Value)
		y, ok2 := new(big.Rat).SetString(bv.Value)
		if !ok1 || !ok2 {
			return av.Value == bv.Value
		}
		return x.Cmp(y) == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	default:
		return false
	}
}

func stringAttr(item map[string]types.AttributeValue, attr string) string {
	if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

func itemKey(item map[string]types.AttributeValue) string {
	return stringAttr(item, partitionAttr) + "\x00" + stringAttr(item, sortAttr)
}
