package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row or item.
// Backends wrap their native error (e.g. sql.ErrNoRows) with it.
var ErrNotFound = errors.New("repository: not found")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
