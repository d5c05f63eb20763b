package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Schema creates the table backing PostgresStore.
const Schema = `CREATE TABLE IF NOT EXISTS records (
    collection TEXT        NOT NULL,
    id         TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS records_collection_created_idx ON records (collection, created_at);`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate records: %w", err)
	}
	return nil
}

// PostgresStore keeps every collection in one jsonb table.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a Postgres-backed record store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Create implements Store.
func (s *PostgresStore) Create(ctx context.Context, collection string, rec Record) (Record, error) {
	stored, err := prepare(collection, rec, time.Now())
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	_, err = s.db.Exec(ctx, `INSERT INTO records (collection, id, data) VALUES ($1, $2, $3)`,
		collection, stored.ID(), payload)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicate, collection, stored.ID())
		}
		return nil, fmt.Errorf("insert record: %w", err)
	}
	return stored, nil
}

// List implements Store. Filter values are compared against the text form of
// the jsonb field.
func (s *PostgresStore) List(ctx context.Context, collection string, filter Filter, order Order, limit int) ([]Record, error) {
	query, args := buildListQuery(collection, filter, order, limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	payloads, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}

	out := make([]Record, 0, len(payloads))
	for _, p := range payloads {
		var rec Record
		if err := json.Unmarshal(p, &rec); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func buildListQuery(collection string, filter Filter, order Order, limit int) (string, []any) {
	var b strings.Builder
	args := []any{collection}
	b.WriteString(`SELECT data FROM records WHERE collection = $1`)

	for _, field := range sortedKeys(filter) {
		args = append(args, field, fmt.Sprint(filter[field]))
		fmt.Fprintf(&b, ` AND data->>($%d::text) = $%d`, len(args)-1, len(args))
	}

	if order.Field != "" {
		args = append(args, order.Field)
		fmt.Fprintf(&b, ` ORDER BY data->>($%d::text)`, len(args))
		if order.Desc {
			b.WriteString(` DESC`)
		}
	}
	if limit > 0 {
		args = append(args, limit)
		fmt.Fprintf(&b, ` LIMIT $%d`, len(args))
	}
	return b.String(), args
}

func sortedKeys(f Filter) []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
