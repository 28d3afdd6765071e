package handlers

import (
	"net/http"

	"github.com/dishpatch/dishpatch/pkg/api/response"
	"github.com/dishpatch/dishpatch/pkg/catalog"
)

// CatalogHandler serves the product catalog.
type CatalogHandler struct{}

// NewCatalogHandler creates a catalog handler.
func NewCatalogHandler() *CatalogHandler {
	return &CatalogHandler{}
}

// ListProducts handles GET /api/v1/products.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]any{
		"products": catalog.All(),
	})
}
