package storage

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestBuildSelect(t *testing.T) {
	tests := []struct {
		name     string
		query    Query
		wantSQL  string
		wantArgs int
		wantErr  bool
	}{
		{
			name:    "missing table",
			query:   Query{},
			wantErr: true,
		},
		{
			name:    "bare table",
			query:   Query{Table: "posts"},
			wantSQL: `SELECT * FROM "posts"`,
		},
		{
			name:     "id batch",
			query:    Query{Table: "posts", IDIn: []string{"1", "2"}},
			wantSQL:  `SELECT * FROM "posts" WHERE id = ANY($1)`,
			wantArgs: 1,
		},
		{
			name:     "filters are sorted",
			query:    Query{Table: "posts", Filters: map[string]interface{}{"status": "live", "author_id": "a1"}},
			wantSQL:  `SELECT * FROM "posts" WHERE "author_id" = $1 AND "status" = $2`,
			wantArgs: 2,
		},
		{
			name:     "batch plus filter plus order and limit",
			query:    Query{Table: "posts", IDIn: []string{"1"}, Filters: map[string]interface{}{"status": "live"}, OrderBy: "created_at DESC", Limit: 10},
			wantSQL:  `SELECT * FROM "posts" WHERE id = ANY($1) AND "status" = $2 ORDER BY "created_at" DESC LIMIT 10`,
			wantArgs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotSQL, gotArgs, err := buildSelect(tt.query)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, gotSQL)
			assert.Len(t, gotArgs, tt.wantArgs)
		})
	}
}

func TestSingle(t *testing.T) {
	t.Run("returns the matching record", func(t *testing.T) {
		db, mock := setupTestDB(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE id = ANY($1) LIMIT 1`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow("p1", "Hello"))

		store := NewSQLStore(db)
		record, err := store.Single(context.Background(), Query{Table: "posts", IDIn: []string{"p1"}})
		require.NoError(t, err)
		assert.Equal(t, "p1", record["id"])
		assert.Equal(t, "Hello", record["title"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps empty result to ErrNotFound", func(t *testing.T) {
		db, mock := setupTestDB(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		store := NewSQLStore(db)
		_, err := store.Single(context.Background(), Query{Table: "posts", IDIn: []string{"missing"}})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMany(t *testing.T) {
	db, mock := setupTestDB(t)
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE id = ANY($1)`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow("p1", []byte("First")).
			AddRow("p2", []byte("Second")))

	store := NewSQLStore(db)
	records, err := store.Many(context.Background(), Query{Table: "posts", IDIn: []string{"p1", "p2"}})
	require.NoError(t, err)
	require.Len(t, records, 2)

	// []byte columns come back as strings
	assert.Equal(t, "First", records[0]["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCatalog(t *testing.T) {
	t.Run("reads the default catalog table", func(t *testing.T) {
		db, mock := setupTestDB(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM "lattice_tables" ORDER BY id`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
				AddRow(int64(7), "posts").
				AddRow(int64(8), "comments"))

		store := NewSQLStore(db)
		catalog, err := store.Catalog(context.Background())
		require.NoError(t, err)
		require.Len(t, catalog, 2)
		assert.Equal(t, CatalogRow{ID: 7, Name: "posts"}, catalog[0])
	})

	t.Run("honors a custom catalog table", func(t *testing.T) {
		db, mock := setupTestDB(t)
		defer db.Close()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, name FROM "app_tables" ORDER BY id`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

		store := NewSQLStore(db, WithCatalogTable("app_tables"))
		_, err := store.Catalog(context.Background())
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
