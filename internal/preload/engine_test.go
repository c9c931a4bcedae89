package preload

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticekit/lattice/internal/extension"
	"github.com/latticekit/lattice/internal/pointer"
	"github.com/latticekit/lattice/internal/storage"
	"github.com/latticekit/lattice/internal/storage/storagetest"
	"github.com/latticekit/lattice/internal/table"
)

type tableProvider struct{}

func (tableProvider) Tables() []table.Decl {
	return []table.Decl{
		{Name: "users", Schema: &struct{ n int }{1}},
		{Name: "posts", Schema: &struct{ n int }{2}},
		{Name: "avatars", Schema: &struct{ n int }{3}},
	}
}

const (
	usersTable   = int64(5)
	avatarsTable = int64(6)
	postsTable   = int64(7)
)

func setup(t *testing.T) (*Engine, *storagetest.Store) {
	t.Helper()

	store := storagetest.New()
	store.SeedCatalog(
		storage.CatalogRow{ID: usersTable, Name: "users"},
		storage.CatalogRow{ID: avatarsTable, Name: "avatars"},
		storage.CatalogRow{ID: postsTable, Name: "posts"},
	)

	inv := extension.NewInventory(nil, nil)
	require.NoError(t, inv.Register(&extension.Component{
		Name:  "app",
		Units: []*extension.Unit{{Name: "app.Tables", Impl: tableProvider{}}},
	}))

	tables := table.NewRegistry(inv, store, nil)
	require.NoError(t, tables.Build(context.Background()))

	return NewEngine(pointer.NewResolver(tables, store), nil), store
}

func TestPreloadSingleRecord(t *testing.T) {
	engine, store := setup(t)
	store.Seed("users", storage.Record{"id": "u1", "name": "Ada"})

	post := storage.Record{
		"id":     "p1",
		"author": pointer.Bare("u1", usersTable),
	}

	require.NoError(t, engine.Preload(context.Background(), post, []Path{{"author"}}))

	author, ok := post["author"].(storage.Record)
	require.True(t, ok, "pointer should be spliced into a concrete record")
	assert.Equal(t, "Ada", author["name"])
	assert.Equal(t, 1, store.QueryCount())
}

func TestPreloadBatchesByTable(t *testing.T) {
	engine, store := setup(t)

	var posts []storage.Record
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("u%d", i%3)
		posts = append(posts, storage.Record{
			"id":     fmt.Sprintf("p%d", i),
			"author": pointer.Bare(id, usersTable),
		})
	}
	for i := 0; i < 3; i++ {
		store.Seed("users", storage.Record{"id": fmt.Sprintf("u%d", i)})
	}

	require.NoError(t, engine.Preload(context.Background(), posts, []Path{{"author"}}))

	// 20 pointers, 3 distinct ids, one table: exactly one query.
	assert.Equal(t, 1, store.QueryCount())
	for _, post := range posts {
		_, ok := post["author"].(storage.Record)
		assert.True(t, ok)
	}
}

func TestPreloadPreservesPageWrapper(t *testing.T) {
	engine, store := setup(t)
	store.Seed("users", storage.Record{"id": "u1", "name": "Ada"})

	page := storage.Record{
		"cursor": "abc",
		"total":  2,
		"edges": []storage.Record{
			{"id": "p1", "author": pointer.Bare("u1", usersTable)},
			{"id": "p2", "author": pointer.Bare("u1", usersTable)},
		},
	}

	require.NoError(t, engine.Preload(context.Background(), page, []Path{{"author"}}))

	// The wrapper keys survive untouched; only the edges changed.
	assert.Equal(t, "abc", page["cursor"])
	assert.Equal(t, 2, page["total"])

	edges := page["edges"].([]storage.Record)
	for _, edge := range edges {
		author, ok := edge["author"].(storage.Record)
		require.True(t, ok)
		assert.Equal(t, "Ada", author["name"])
	}
}

func TestPreloadNestedPath(t *testing.T) {
	engine, store := setup(t)
	store.Seed("users", storage.Record{
		"id":     "u1",
		"name":   "Ada",
		"avatar": pointer.Bare("av1", avatarsTable),
	})
	store.Seed("avatars", storage.Record{"id": "av1", "url": "/ada.png"})

	post := storage.Record{
		"id":     "p1",
		"author": pointer.Bare("u1", usersTable),
	}

	require.NoError(t, engine.Preload(context.Background(), post, []Path{{"author", "avatar"}}))

	author := post["author"].(storage.Record)
	avatar, ok := author["avatar"].(storage.Record)
	require.True(t, ok, "nested pointer should resolve after its parent")
	assert.Equal(t, "/ada.png", avatar["url"])

	// One query per level.
	assert.Equal(t, 2, store.QueryCount())
}

func TestPreloadPointerList(t *testing.T) {
	engine, store := setup(t)
	store.Seed("posts",
		storage.Record{"id": "p1", "title": "One"},
		storage.Record{"id": "p2", "title": "Two"},
	)

	user := storage.Record{
		"id": "u1",
		"pinned": []*pointer.Pointer{
			pointer.Bare("p1", postsTable),
			pointer.Bare("p2", postsTable),
		},
	}

	require.NoError(t, engine.Preload(context.Background(), user, []Path{{"pinned"}}))

	pinned, ok := user["pinned"].([]interface{})
	require.True(t, ok)
	require.Len(t, pinned, 2)

	first := pinned[0].(storage.Record)
	assert.Equal(t, "One", first["title"])
	assert.Equal(t, 1, store.QueryCount())
}

func TestPreloadDegradesBadReference(t *testing.T) {
	engine, store := setup(t)
	store.Seed("users", storage.Record{"id": "u1", "name": "Ada"})

	posts := []storage.Record{
		{"id": "p1", "author": pointer.Bare("u1", usersTable)},
		{"id": "p2", "author": pointer.Bare("missing", usersTable)},
	}

	require.NoError(t, engine.Preload(context.Background(), posts, []Path{{"author"}}))

	_, resolved := posts[0]["author"].(storage.Record)
	assert.True(t, resolved)

	// The bad reference keeps its unresolved placeholder.
	placeholder, stillPointer := posts[1]["author"].(*pointer.Pointer)
	require.True(t, stillPointer)
	assert.False(t, placeholder.IsResolved())
}

func TestPreloadKey(t *testing.T) {
	engine, store := setup(t)
	store.Seed("users", storage.Record{"id": "u1", "name": "Ada"})

	post := storage.Record{"id": "p1", "author": pointer.Bare("u1", usersTable)}
	require.NoError(t, engine.PreloadKey(context.Background(), post, "author"))

	author, ok := post["author"].(storage.Record)
	require.True(t, ok)
	assert.Equal(t, "Ada", author["name"])
}

func TestPreloadMissingKeyIsNoop(t *testing.T) {
	engine, store := setup(t)

	post := storage.Record{"id": "p1"}
	require.NoError(t, engine.Preload(context.Background(), post, []Path{{"author"}}))
	assert.Zero(t, store.QueryCount())
}

func TestPreloadNilGraphIsNoop(t *testing.T) {
	engine, _ := setup(t)
	assert.NoError(t, engine.Preload(context.Background(), nil, []Path{{"author"}}))
	assert.NoError(t, engine.PreloadKey(context.Background(), 42, "author"))
}
