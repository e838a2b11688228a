package handler

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/store"
)

type ProductHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewProductHandler(db *sql.DB, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{db: db, logger: logger}
}

// List is the public catalog: active products only, optional category
// and search filters.
func (h *ProductHandler) List(c *gin.Context) {
	page, pageSize := pageParams(c, 12)

	filter := store.ProductFilter{
		CategorySlug: c.Query("category"),
		Search:       c.Query("search"),
		ActiveOnly:   true,
	}

	result, err := store.ListProducts(c.Request.Context(), h.db, filter, page, pageSize)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProductHandler) GetBySlug(c *gin.Context) {
	product, err := store.GetProductBySlug(c.Request.Context(), h.db, c.Param("slug"))
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) ListCategories(c *gin.Context) {
	categories, err := store.ListCategories(c.Request.Context(), h.db)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, categories)
}
