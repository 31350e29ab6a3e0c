package listsync

import (
	"context"
	"errors"
	"fmt"

	"myday/backend"
)

// Entity kinds a Cache can fetch.
const (
	EntityList = "list"
	EntityTask = "task"
)

var (
	// ErrUnsupportedEntity is returned for an entity kind with no fetch operation.
	ErrUnsupportedEntity = errors.New("unsupported entity kind")
	// ErrEntityMismatch is returned when the query or item type does not fit the entity kind.
	ErrEntityMismatch = errors.New("query and item types do not match entity kind")
)

// Fetcher is the paged read side of backend.Store.
type Fetcher interface {
	FetchLists(ctx context.Context, filter backend.ListFilter) (backend.Page[backend.List], error)
	FetchTasks(ctx context.Context, filter backend.TaskFilter) (backend.Page[backend.Task], error)
}

// Source fetches one page of T for query q.
type Source[Q comparable, T any] func(ctx context.Context, q Q) (backend.Page[T], error)

// resolve returns the fetch operation of kind typed for Q and T.
func resolve[Q comparable, T any](f Fetcher, kind string) (Source[Q, T], error) {
	var src any
	switch kind {
	case EntityList:
		src = Source[backend.ListFilter, backend.List](f.FetchLists)
	case EntityTask:
		src = Source[backend.TaskFilter, backend.Task](f.FetchTasks)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEntity, kind)
	}

	typed, ok := src.(Source[Q, T])
	if !ok {
		var q Q
		var t T
		return nil, fmt.Errorf("%w: %s cannot serve %T queries with %T items", ErrEntityMismatch, kind, q, t)
	}
	return typed, nil
}
