package store

import (
	"errors"
	"fmt"
)

var (
	// ErrServer wraps failures of the underlying store and invalid filter composition.
	ErrServer = errors.New("kindstore: server error")

	// ErrUnsupportedFilterType is returned when a value kind is not allowed on the requested filter path.
	ErrUnsupportedFilterType = errors.New("kindstore: unsupported filter value type")

	// ErrCriteriaArity is returned when a criteria record has the wrong number of fields.
	ErrCriteriaArity = errors.New("kindstore: wrong number of criteria fields")

	// ErrAlreadyExists is returned when saving under a key that is already taken.
	ErrAlreadyExists = errors.New("kindstore: entity already exists")

	// ErrNotFound is returned by key lookups when no entity exists.
	ErrNotFound = errors.New("kindstore: entity not found")

	// ErrReservedField is returned when a record uses a field name owned by the storage layout.
	ErrReservedField = errors.New("kindstore: reserved field name")

	// ErrTimestampRange is returned when a timestamp's UTC year is outside 0000-9999.
	ErrTimestampRange = errors.New("kindstore: timestamp out of range")

	// ErrNilRecord is returned when a nil record is passed to a write.
	ErrNilRecord = errors.New("kindstore: nil record")

	// ErrNotEntity is returned when decoding an item that is not an entity (e.g. a key counter).
	ErrNotEntity = errors.New("kindstore: item is not an entity")

	errMissingCounter = errors.New("counter attribute missing from response")
)

// serverError wraps err as an ErrServer failure of op.
func serverError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrServer, op, err)
}
