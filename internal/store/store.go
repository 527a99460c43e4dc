package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound is returned by Get when no document exists under the given id.
var ErrNotFound = errors.New("document not found")

// Document is one record in a collection. Data is the decoded JSON body.
type Document struct {
	Collection string
	ID         string
	Data       map[string]any
}

// DataTo decodes the document body into a typed struct via JSON round-trip.
func (d Document) DataTo(v any) error {
	raw, err := json.Marshal(d.Data)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}

// Op is a filter comparison operator.
type Op string

const (
	OpEq  Op = "=="
	OpLt  Op = "<"
	OpLte Op = "<="
	OpGt  Op = ">"
	OpGte Op = ">="
)

// Filter compares the value at a dot path against a literal.
// time.Time values are compared as RFC3339 UTC strings.
type Filter struct {
	Path  string
	Op    Op
	Value any
}

// Query is a bounded collection scan: equality/range filters, one sort key,
// and a mandatory result limit.
type Query struct {
	Collection string
	Filters    []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Where appends a filter and returns the query for chaining.
func (q Query) Where(path string, op Op, value any) Query {
	q.Filters = append(q.Filters, Filter{Path: path, Op: op, Value: value})
	return q
}

// Store is the record store contract: point reads, bounded queries, and
// partial-field merges that never clobber sibling fields.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, data map[string]any) error
	Query(ctx context.Context, q Query) ([]Document, error)
	// Merge applies dot-path field updates to a single document, creating it
	// if absent. Sibling fields are preserved.
	Merge(ctx context.Context, collection, id string, fields map[string]any) error
	// MergeIfAbsent sets the value at path only when nothing is stored there
	// yet. Returns false when the path was already occupied.
	MergeIfAbsent(ctx context.Context, collection, id, path string, value any) (bool, error)
	Close() error
}
