package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// index lists products. Each render carries a fresh attempt token so that
// a double click reuses one checkout while a later visit starts a new one.
func (h *Handler) index(c *gin.Context) {
	products, err := h.services.ListProducts(c.Request.Context())
	if err != nil {
		h.errorPage(c, "catalog_list_failed", err)
		return
	}
	h.page(c, http.StatusOK, "index.html", gin.H{
		"Title":    "Products",
		"Products": products,
		"Attempt":  uuid.NewString(),
		"Currency": h.currency,
	})
}

// @Summary      List products
// @Tags         catalog
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, products"
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/products [get]
func (h *Handler) apiListProducts(c *gin.Context) {
	products, err := h.services.ListProducts(c.Request.Context())
	if err != nil {
		h.serviceJSONError(c, "catalog_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(products), "products": products})
}
