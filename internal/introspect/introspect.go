// Package introspect exposes the warm capability snapshot and the reconciled
// table set over a read-only HTTP surface. It is a debugging aid for
// operators; nothing here mutates registry state.
package introspect

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/latticekit/lattice/internal/capability"
	"github.com/latticekit/lattice/internal/table"
)

// Handler serves the introspection routes.
type Handler struct {
	index  *capability.Index
	tables *table.Registry
	log    *zap.Logger
}

// NewHandler creates an introspection handler. The table registry may be nil
// when the host application does not use storage-backed tables; the /tables
// route then reports an empty set.
func NewHandler(index *capability.Index, tables *table.Registry, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{index: index, tables: tables, log: log}
}

// Router mounts the read-only routes:
//
//	GET /contracts               all declared contracts
//	GET /contracts/{name}/units  implementers of one contract, by component
//	GET /tables                  the reconciled table descriptors
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/contracts", h.listContracts)
	r.Get("/contracts/{name}/units", h.listUnits)
	r.Get("/tables", h.listTables)
	return r
}

type contractView struct {
	Name  string `json:"name"`
	Units int    `json:"units"`
}

type unitsView struct {
	Contract   string              `json:"contract"`
	Generation uint64              `json:"generation"`
	Components map[string][]string `json:"components"`
}

type tableView struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Virtual bool   `json:"virtual,omitempty"`
}

func (h *Handler) listContracts(w http.ResponseWriter, r *http.Request) {
	snap := h.index.Snapshot()

	views := make([]contractView, 0)
	for _, contract := range snap.Contracts() {
		views = append(views, contractView{
			Name:  contract.Name,
			Units: len(snap.Units(contract.Name)),
		})
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	snap := h.index.Snapshot()

	if _, ok := snap.Contract(name); !ok {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "unknown contract: " + name,
		})
		return
	}

	components := make(map[string][]string)
	for component, units := range snap.UnitsByComponent(name) {
		names := make([]string, 0, len(units))
		for _, unit := range units {
			names = append(names, unit.Name)
		}
		components[component] = names
	}

	h.writeJSON(w, http.StatusOK, unitsView{
		Contract:   name,
		Generation: snap.Generation(),
		Components: components,
	})
}

func (h *Handler) listTables(w http.ResponseWriter, r *http.Request) {
	views := make([]tableView, 0)
	if h.tables != nil {
		for _, desc := range h.tables.All() {
			views = append(views, tableView{
				ID:      desc.ID,
				Name:    desc.Name,
				Virtual: desc.Virtual,
			})
		}
	}
	h.writeJSON(w, http.StatusOK, views)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Warn("introspection response write failed", zap.Error(err))
	}
}
