package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kiloshop/orderform/internal/catalog"
	"github.com/kiloshop/orderform/internal/money"
)

// CatalogSource returns the catalog currently served to new sessions.
type CatalogSource interface {
	Catalog() *catalog.Index
}

type CatalogHandler struct {
	source CatalogSource
}

func NewCatalogHandler(source CatalogSource) *CatalogHandler {
	return &CatalogHandler{source: source}
}

func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/catalog", h.List)
}

type productResponse struct {
	Key   string         `json:"key"`
	Label string         `json:"label"`
	Names []catalog.Name `json:"names"`
	Price string         `json:"price"`
}

// List returns the products in display order.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	entries := h.source.Catalog().Entries()
	resp := make([]productResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, productResponse{
			Key:   e.Key,
			Label: e.Label(),
			Names: e.Names,
			Price: money.FormatMoney(e.Price),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
