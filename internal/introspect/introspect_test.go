package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latticekit/lattice/internal/capability"
	"github.com/latticekit/lattice/internal/extension"
	"github.com/latticekit/lattice/internal/storage"
	"github.com/latticekit/lattice/internal/storage/storagetest"
	"github.com/latticekit/lattice/internal/table"
)

type renderer interface {
	Render() string
}

type htmlRenderer struct{}

func (htmlRenderer) Render() string { return "<html/>" }

func (htmlRenderer) DeclareContracts() []capability.Contract {
	return []capability.Contract{
		{Name: "Renderer", Probe: capability.ProbeFor[renderer]()},
	}
}

type tableProvider struct{}

func (tableProvider) Tables() []table.Decl {
	return []table.Decl{
		{Name: "posts", Schema: &struct{}{}},
		{Name: "drafts", Schema: &struct{ d int }{}, Virtual: true},
	}
}

func newHandler(t *testing.T) *Handler {
	t.Helper()

	inv := extension.NewInventory(nil, nil)
	require.NoError(t, inv.Register(&extension.Component{
		Name: "blog",
		Units: []*extension.Unit{
			{Name: "blog.HTML", Impl: htmlRenderer{}},
			{Name: "blog.Tables", Impl: tableProvider{}},
		},
	}))

	store := storagetest.New()
	store.SeedCatalog(storage.CatalogRow{ID: 7, Name: "posts"})

	tables := table.NewRegistry(inv, store, nil)
	require.NoError(t, tables.Build(context.Background()))

	return NewHandler(capability.NewIndex(inv), tables, nil)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestListContracts(t *testing.T) {
	router := newHandler(t).Router()

	rec := get(t, router, "/contracts")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var contracts []struct {
		Name  string `json:"name"`
		Units int    `json:"units"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &contracts))
	require.Len(t, contracts, 1)
	assert.Equal(t, "Renderer", contracts[0].Name)
	assert.Equal(t, 1, contracts[0].Units)
}

func TestListUnits(t *testing.T) {
	router := newHandler(t).Router()

	rec := get(t, router, "/contracts/Renderer/units")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Contract   string              `json:"contract"`
		Components map[string][]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "Renderer", payload.Contract)
	assert.Equal(t, []string{"blog.HTML"}, payload.Components["blog"])
}

func TestListUnitsUnknownContract(t *testing.T) {
	router := newHandler(t).Router()

	rec := get(t, router, "/contracts/Nope/units")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListTables(t *testing.T) {
	router := newHandler(t).Router()

	rec := get(t, router, "/tables")
	require.Equal(t, http.StatusOK, rec.Code)

	var tables []struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Virtual bool   `json:"virtual"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tables))
	require.Len(t, tables, 2)

	// All() sorts by name.
	assert.Equal(t, "drafts", tables[0].Name)
	assert.True(t, tables[0].Virtual)
	assert.Equal(t, "posts", tables[1].Name)
	assert.Equal(t, int64(7), tables[1].ID)
}

func TestListTablesWithoutRegistry(t *testing.T) {
	inv := extension.NewInventory(nil, nil)
	router := NewHandler(capability.NewIndex(inv), nil, nil).Router()

	rec := get(t, router, "/tables")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}
