package storage

import (
	"errors"

	"github.com/memloom/memloom/pkg/types"
)

var (
	// ErrNotFound indicates that the requested record was not found.
	// On the update path this is a state-machine branch, not a failure.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// SearchHit is one candidate returned by a vector similarity search: the
// stored payload plus the index-reported similarity score, assumed already
// normalized to a comparable scale across hits.
type SearchHit struct {
	Record     *types.MemoryRecord
	Similarity float64
}

// RelatedMemory is one result of a graph neighborhood walk.
type RelatedMemory struct {
	ID      string
	Summary string
}
