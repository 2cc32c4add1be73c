package store

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/kindstore/internal/shard"
)

// API is the subset of the DynamoDB client used by Store. *dynamodb.Client
// satisfies it.
type API interface {
	dynamodb.QueryAPIClient
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// Store provides typed entity operations over a single DynamoDB table.
type Store struct {
	client API
	config Config
	logger *slog.Logger
	now    func() time.Time
	keys   *allocator
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock replaces time.Now for CreatedAt stamping.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new Store instance.
func New(client API, config Config, opts ...Option) *Store {
	config.validate()
	s := &Store{
		client: client,
		config: config,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.keys = newAllocator(client, config)
	return s
}

// Config returns the validated configuration.
func (s *Store) Config() Config {
	return s.config
}

// UpsertResult reports what an Upsert did.
type UpsertResult struct {
	// Matched is the number of entities that satisfied the criteria.
	Matched int

	// Written is the number of entities overwritten. It is less than Matched
	// only when a write failed.
	Written int
}

// QueryAll returns every entity of kind. Pages are fetched as the sequence is
// consumed; shards are read one after another.
func (s *Store) QueryAll(ctx context.Context, kind string) iter.Seq2[*Entity, error] {
	return s.queryShards(ctx, "query_all", kind, Filter{})
}

// QueryLastCreated returns at most one entity: the one with the greatest CreatedAt.
func (s *Store) QueryLastCreated(ctx context.Context, kind string) iter.Seq2[*Entity, error] {
	return s.queryLatest(ctx, "query_last_created", kind, s.config.CreatedAtIndex, ColumnCreatedAt)
}

// QueryLastUpdated returns at most one entity: the one with the greatest UpdatedAt.
func (s *Store) QueryLastUpdated(ctx context.Context, kind string) iter.Seq2[*Entity, error] {
	return s.queryLatest(ctx, "query_last_updated", kind, s.config.UpdatedAtIndex, ColumnUpdatedAt)
}

// QueryByOneField returns the entities whose single criteria field equals its value.
func (s *Store) QueryByOneField(ctx context.Context, kind string, criteria *Record) (iter.Seq2[*Entity, error], error) {
	field, err := criteria.OneKey()
	if err != nil {
		return nil, err
	}
	v, _ := criteria.Get(field)
	filter, err := Eq(field, v)
	if err != nil {
		return nil, err
	}
	return s.queryShards(ctx, "query_by_one_field", kind, filter), nil
}

// QueryByTwoFields returns the entities matching both criteria fields. Only text
// and timestamp criteria values are supported.
func (s *Store) QueryByTwoFields(ctx context.Context, kind string, criteria *Record) (iter.Seq2[*Entity, error], error) {
	field1, field2, err := criteria.TwoKeys()
	if err != nil {
		return nil, err
	}
	v1, _ := criteria.Get(field1)
	v2, _ := criteria.Get(field2)
	filter, err := And(PairEq(field1, v1), PairEq(field2, v2))
	if err != nil {
		return nil, err
	}
	return s.queryShards(ctx, "query_by_two_fields", kind, filter), nil
}

// Exists reports whether any entity of kind matches the single-field criteria.
func (s *Store) Exists(ctx context.Context, kind string, criteria *Record) (bool, error) {
	seq, err := s.QueryByOneField(ctx, kind, criteria)
	if err != nil {
		return false, err
	}
	for _, err := range seq {
		if err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Get reads one entity by key with a strongly consistent read.
func (s *Store) Get(ctx context.Context, key Key) (e *Entity, err error) {
	defer func(start time.Time) { observe("get", start, err) }(time.Now())

	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.config.Table),
		Key: map[string]types.AttributeValue{
			attrPK: &types.AttributeValueMemberS{Value: s.partitionKey(key)},
			attrID: &types.AttributeValueMemberS{Value: key.ID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, serverError("get", err)
	}
	if result.Item == nil {
		return nil, ErrNotFound
	}
	return DecodeEntity(result.Item)
}

// AllocateKey reserves a fresh surrogate key for kind.
func (s *Store) AllocateKey(ctx context.Context, kind string) (key Key, err error) {
	defer func(start time.Time) { observe("allocate_key", start, err) }(time.Now())

	id, err := s.keys.allocate(ctx, kind)
	if err != nil {
		return Key{}, err
	}
	return Key{Kind: kind, ID: id}, nil
}

// Save inserts record as a new entity of kind under a freshly allocated key.
// If the record has no CreatedAt, the current time is put into it first.
// Records that cannot be stored are rejected before a key is allocated.
func (s *Store) Save(ctx context.Context, kind string, record *Record) (Key, error) {
	if kind == "" {
		return Key{}, errors.New("kindstore: empty kind")
	}
	if err := checkRecord(record); err != nil {
		return Key{}, err
	}
	s.stampCreated(record)
	key, err := s.AllocateKey(ctx, kind)
	if err != nil {
		return Key{}, err
	}
	return s.insert(ctx, key, record)
}

// SaveWithKey inserts record under key. It returns ErrAlreadyExists if the key
// is taken; existing entities are never overwritten.
func (s *Store) SaveWithKey(ctx context.Context, key Key, record *Record) (Key, error) {
	if key.Kind == "" || key.ID == "" {
		return Key{}, fmt.Errorf("kindstore: incomplete key %q", key)
	}
	if err := checkRecord(record); err != nil {
		return Key{}, err
	}
	s.stampCreated(record)
	return s.insert(ctx, key, record)
}

// Upsert replaces the full property set of every entity matching the
// single-field criteria with newValues, keeping each entity's key. Properties
// missing from newValues are dropped. Writes are independent: on failure the
// earlier writes stay applied and the result reports how many succeeded.
func (s *Store) Upsert(ctx context.Context, kind string, criteria, newValues *Record) (res UpsertResult, err error) {
	defer func(start time.Time) { observe("upsert", start, err) }(time.Now())

	if err := checkRecord(newValues); err != nil {
		return res, err
	}
	seq, err := s.QueryByOneField(ctx, kind, criteria)
	if err != nil {
		return res, err
	}
	matches, err := Collect(seq)
	if err != nil {
		return res, err
	}
	res.Matched = len(matches)

	for _, m := range matches {
		item, err := encodeItem(s.partitionKey(m.Key), m.Key, newValues)
		if err != nil {
			return res, err
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.config.Table),
			Item:      item,
		})
		if err != nil {
			s.logger.Warn("upsert write failed",
				"key", m.Key.String(),
				"written", res.Written,
				"matched", res.Matched,
				"error", err,
			)
			return res, serverError("upsert", err)
		}
		res.Written++
	}

	s.logger.Debug("upsert completed",
		"kind", kind,
		"criteria", criteria.String(),
		"written", res.Written,
	)
	return res, nil
}

// Collect drains a query sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[*Entity, error]) ([]*Entity, error) {
	var entities []*Entity
	for e, err := range seq {
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

func (s *Store) stampCreated(record *Record) {
	if !record.Has(ColumnCreatedAt) {
		record.Put(ColumnCreatedAt, Timestamp(s.now()))
	}
}

func (s *Store) partitionKey(key Key) string {
	return shard.PartitionKey(key.Kind, key.ID, s.config.NumShards)
}

// insert writes a new entity, failing if the key already exists.
func (s *Store) insert(ctx context.Context, key Key, record *Record) (_ Key, err error) {
	defer func(start time.Time) { observe("save", start, err) }(time.Now())

	item, err := encodeItem(s.partitionKey(key), key, record)
	if err != nil {
		return Key{}, err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.config.Table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrID,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return Key{}, ErrAlreadyExists
		}
		return Key{}, serverError("save", err)
	}

	s.logger.Debug("entity saved", "key", key.String(), "fields", record.Len())
	return key, nil
}

// partitionQuery builds a query over one partition, optionally filtered.
func (s *Store) partitionQuery(pk string, filter Filter) *dynamodb.QueryInput {
	input := &dynamodb.QueryInput{
		TableName:                aws.String(s.config.Table),
		KeyConditionExpression:   aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{"#pk": attrPK},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	}
	if filter.Supported() {
		expr, names, values := filter.expression()
		input.FilterExpression = aws.String(expr)
		input.ExpressionAttributeNames = mergeExprNames(input.ExpressionAttributeNames, names)
		input.ExpressionAttributeValues = mergeExprValues(input.ExpressionAttributeValues, values)
	}
	return input
}

// queryShards walks every shard of kind, paginating lazily.
func (s *Store) queryShards(ctx context.Context, op, kind string, filter Filter) iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		for n := 0; n < s.config.NumShards; n++ {
			paginator := dynamodb.NewQueryPaginator(s.client, s.partitionQuery(shard.Key(kind, n), filter))
			for paginator.HasMorePages() {
				start := time.Now()
				page, err := paginator.NextPage(ctx)
				observe(op, start, err)
				if err != nil {
					yield(nil, serverError(op, err))
					return
				}
				for _, raw := range page.Items {
					e, err := DecodeEntity(raw)
					if err != nil {
						yield(nil, err)
						return
					}
					if !yield(e, nil) {
						return
					}
				}
			}
		}
	}
}

// queryLatest returns the newest entity by sortAttr through the given index.
// With several shards the per-shard winners are fetched concurrently.
func (s *Store) queryLatest(ctx context.Context, op, kind, index, sortAttr string) iter.Seq2[*Entity, error] {
	return func(yield func(*Entity, error) bool) {
		start := time.Now()
		raw, err := s.latestItem(ctx, kind, index, sortAttr)
		observe(op, start, err)
		if err != nil {
			yield(nil, serverError(op, err))
			return
		}
		if raw == nil {
			return
		}
		e, err := DecodeEntity(raw)
		if err != nil {
			yield(nil, err)
			return
		}
		yield(e, nil)
	}
}

func (s *Store) latestItem(ctx context.Context, kind, index, sortAttr string) (map[string]types.AttributeValue, error) {
	numShards := s.config.NumShards

	// Fast path for single shard (default)
	if numShards == 1 {
		return s.latestInShard(ctx, shard.Key(kind, 0), index)
	}

	var mu sync.Mutex
	var best map[string]types.AttributeValue
	var wg sync.WaitGroup
	errs := make(chan error, numShards)

	for n := 0; n < numShards; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			item, err := s.latestInShard(ctx, shard.Key(kind, n), index)
			if err != nil {
				errs <- fmt.Errorf("shard %02x: %w", n, err)
				return
			}
			if item == nil {
				return
			}

			mu.Lock()
			if best == nil || sortValue(item, sortAttr) > sortValue(best, sortAttr) {
				best = item
			}
			mu.Unlock()
		}(n)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return best, nil
}

func (s *Store) latestInShard(ctx context.Context, pk, index string) (map[string]types.AttributeValue, error) {
	input := s.partitionQuery(pk, Filter{})
	input.IndexName = aws.String(index)
	input.ScanIndexForward = aws.Bool(false)
	input.Limit = aws.Int32(1)

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(result.Items) == 0 {
		return nil, nil
	}
	return result.Items[0], nil
}

// sortValue extracts the index sort key. Timestamps are stored fixed width, so
// string comparison orders them chronologically.
func sortValue(item map[string]types.AttributeValue, attr string) string {
	if v, ok := item[attr].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}

// mergeExprNames merges multiple expression attribute name maps.
func mergeExprNames(maps ...map[string]string) map[string]string {
	result := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}

// mergeExprValues merges multiple expression attribute value maps.
func mergeExprValues(maps ...map[string]types.AttributeValue) map[string]types.AttributeValue {
	result := make(map[string]types.AttributeValue)
	for _, m := range maps {
		for k, v := range m {
			result[k] = v
		}
	}
	return result
}
