// Package store provides a typed entity access layer over a schema-less DynamoDB table.
//
// Entities belong to a kind (a logical namespace) and carry an ordered set of
// typed properties held in a [Record]. Property values are a closed union of
// text, 32-bit and 64-bit integers, floats and timestamps (see [Value]).
//
// # Operations
//
//   - [Store.Save] and [Store.SaveWithKey] insert new entities, stamping CreatedAt
//   - [Store.QueryAll], [Store.QueryByOneField] and [Store.QueryByTwoFields] return lazy sequences
//   - [Store.QueryLastCreated] and [Store.QueryLastUpdated] return the newest entity
//   - [Store.Upsert] overwrites every entity matching a criteria record
//   - [Store.AllocateKey] reserves surrogate keys
//
// Nothing is ever deleted by this package.
//
// # Filters
//
// Single-field queries accept every value kind ([Eq]). Two-field queries
// combine [PairEq] filters with [And] and only accept text and timestamp
// values; other kinds fail with [ErrUnsupportedFilterType].
//
// # Table layout
//
// All kinds share one table keyed by pk (kind plus shard suffix) and id. The
// table needs two local secondary indexes sorted by CreatedAt and UpdatedAt
// (both strings). Non-key queries are eventually consistent; [Store.Get] reads
// with strong consistency.
//
// # Errors
//
//   - [ErrServer] - wraps store failures and invalid filter composition
//   - [ErrUnsupportedFilterType] - value kind not allowed on a filter path
//   - [ErrCriteriaArity] - criteria record has the wrong number of fields
//   - [ErrAlreadyExists] - SaveWithKey on an existing key
//   - [ErrNotFound] - Get on a missing key
//   - [ErrReservedField] - record uses pk, id or _schema
//   - [ErrNotEntity] - raw item is a key counter or lacks pk/id
//   - [ErrTimestampRange] - timestamp year outside 0000-9999 in UTC
//   - [ErrNilRecord] - nil record passed to a write
//
// An empty sequence, not an error, signals that nothing matched.
package store
