package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SQLStore implements Store on top of database/sql with PostgreSQL
// placeholder syntax.
type SQLStore struct {
	db           *sql.DB
	catalogTable string
	log          *zap.Logger
}

// SQLOption configures a SQLStore.
type SQLOption func(*SQLStore)

// WithCatalogTable overrides the table the catalog is read from.
func WithCatalogTable(name string) SQLOption {
	return func(s *SQLStore) { s.catalogTable = name }
}

// WithLogger sets the logger used for query diagnostics.
func WithLogger(log *zap.Logger) SQLOption {
	return func(s *SQLStore) { s.log = log }
}

// NewSQLStore creates a SQL-backed store.
func NewSQLStore(db *sql.DB, opts ...SQLOption) *SQLStore {
	s := &SQLStore{
		db:           db,
		catalogTable: "lattice_tables",
		log:          zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Single returns exactly one record or ErrNotFound.
func (s *SQLStore) Single(ctx context.Context, q Query) (Record, error) {
	q.Limit = 1
	records, err := s.Many(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records[0], nil
}

// Many returns all records matching the query.
func (s *SQLStore) Many(ctx context.Context, q Query) ([]Record, error) {
	query, args, err := buildSelect(q)
	if err != nil {
		return nil, err
	}

	s.log.Debug("storage query", zap.String("table", q.Table), zap.Int("args", len(args)))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Table, err)
	}
	defer rows.Close()

	return scanRows(rows)
}

// Catalog reads the storage-side table catalog.
func (s *SQLStore) Catalog(ctx context.Context) ([]CatalogRow, error) {
	query := fmt.Sprintf("SELECT id, name FROM %s ORDER BY id", pq.QuoteIdentifier(s.catalogTable))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read table catalog: %w", err)
	}
	defer rows.Close()

	var catalog []CatalogRow
	for rows.Next() {
		var row CatalogRow
		if err := rows.Scan(&row.ID, &row.Name); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		catalog = append(catalog, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return catalog, nil
}

// buildSelect renders a Query into SQL with positional args. Filter keys are
// sorted so the same query always renders the same SQL.
func buildSelect(q Query) (string, []interface{}, error) {
	if q.Table == "" {
		return "", nil, ErrInvalidQuery
	}

	var sb strings.Builder
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(pq.QuoteIdentifier(q.Table))

	var conditions []string
	var args []interface{}
	param := 1

	if len(q.IDIn) > 0 {
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", param))
		args = append(args, pq.Array(q.IDIn))
		param++
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		conditions = append(conditions, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), param))
		args = append(args, q.Filters[k])
		param++
	}

	if len(conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(quoteSortClause(q.OrderBy))
	}

	if q.Limit > 0 {
		sb.WriteString(fmt.Sprintf(" LIMIT %d", q.Limit))
	}

	return sb.String(), args, nil
}

// quoteSortClause safely quotes column identifiers in an ORDER BY clause.
// Handles formats like "created_at DESC" or "name ASC, id DESC".
func quoteSortClause(orderBy string) string {
	parts := strings.Split(orderBy, ",")
	quoted := make([]string, 0, len(parts))

	for _, part := range parts {
		tokens := strings.Fields(strings.TrimSpace(part))
		if len(tokens) == 0 {
			continue
		}

		quotedCol := pq.QuoteIdentifier(tokens[0])

		if len(tokens) > 1 {
			direction := strings.ToUpper(tokens[1])
			if direction == "ASC" || direction == "DESC" {
				quoted = append(quoted, quotedCol+" "+direction)
				continue
			}
		}
		quoted = append(quoted, quotedCol)
	}

	return strings.Join(quoted, ", ")
}

// scanRows scans SQL rows into generic records. []byte values are converted
// to strings so text columns round-trip as plain strings.
func scanRows(rows *sql.Rows) ([]Record, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []Record
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Record, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				record[col] = string(b)
			} else {
				record[col] = values[i]
			}
		}

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
