package records

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	// ErrDuplicate is returned when a record id already exists in a collection.
	ErrDuplicate = errors.New("record already exists")
	// ErrInvalidRecord is returned for records the store cannot accept.
	ErrInvalidRecord = errors.New("invalid record")
)

const (
	FieldID        = "id"
	FieldCreatedAt = "created_at"
)

// Record is a schemaless document. Values must be JSON encodable.
type Record map[string]any

// ID returns the record identifier.
func (r Record) ID() string {
	id, _ := r[FieldID].(string)
	return id
}

// String returns a string field or "".
func (r Record) String(field string) string {
	switch v := r[field].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Filter matches records whose fields equal the given values.
type Filter map[string]any

// Order sorts list results by one field.
type Order struct {
	Field string
	Desc  bool
}

// Store is the record-storage collaborator.
type Store interface {
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	List(ctx context.Context, collection string, filter Filter, order Order, limit int) ([]Record, error)
}

func prepare(collection string, rec Record, now time.Time) (Record, error) {
	if strings.TrimSpace(collection) == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidRecord)
	}
	if rec.ID() == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRecord)
	}
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if _, ok := out[FieldCreatedAt]; !ok {
		out[FieldCreatedAt] = now.UTC().Format(time.RFC3339Nano)
	}
	return out, nil
}

func sortRecords(recs []Record, order Order) {
	if order.Field == "" {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i].String(order.Field), recs[j].String(order.Field)
		if order.Desc {
			return a > b
		}
		return a < b
	})
}
