package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/store"
)

// AdminHandler carries the admin-only surface: product CRUD and order
// status transitions. Routes using it sit behind the admin gate.
type AdminHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAdminHandler(db *sql.DB, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{db: db, logger: logger}
}

type createProductRequest struct {
	SKU             string   `json:"sku" binding:"required"`
	Slug            string   `json:"slug" binding:"required"`
	Name            string   `json:"name" binding:"required"`
	Description     string   `json:"description" binding:"required"`
	FullDescription string   `json:"full_description" binding:"required"`
	Price           float64  `json:"price" binding:"required,gt=0"`
	CompareAtPrice  *float64 `json:"compare_at_price" binding:"omitempty,gt=0"`
	Stock           int      `json:"stock" binding:"min=0"`
	CategoryID      int64    `json:"category_id" binding:"required"`
	Images          []string `json:"images" binding:"required,min=1,dive,url"`
	Colors          []string `json:"colors"`
	Sizes           []string `json:"sizes"`
}

func (h *AdminHandler) CreateProduct(c *gin.Context) {
	var req createProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	in := store.ProductInput{
		SKU:             req.SKU,
		Slug:            req.Slug,
		Name:            req.Name,
		Description:     req.Description,
		FullDescription: req.FullDescription,
		Price:           decimal.NewFromFloat(req.Price),
		Stock:           req.Stock,
		CategoryID:      req.CategoryID,
		Images:          req.Images,
		Colors:          req.Colors,
		Sizes:           req.Sizes,
	}
	if req.CompareAtPrice != nil {
		compareAt := decimal.NewFromFloat(*req.CompareAtPrice)
		in.CompareAtPrice = &compareAt
	}

	product, err := store.CreateProduct(c.Request.Context(), h.db, in)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

type updateProductRequest struct {
	Name            *string  `json:"name" binding:"omitempty,min=1"`
	Description     *string  `json:"description"`
	FullDescription *string  `json:"full_description"`
	Price           *float64 `json:"price" binding:"omitempty,gt=0"`
	CompareAtPrice  *float64 `json:"compare_at_price" binding:"omitempty,gt=0"`
	Stock           *int     `json:"stock" binding:"omitempty,min=0"`
	IsActive        *bool    `json:"is_active"`
	CategoryID      *int64   `json:"category_id"`
	Images          []string `json:"images" binding:"omitempty,min=1,dive,url"`
	Colors          []string `json:"colors"`
	Sizes           []string `json:"sizes"`
}

func (h *AdminHandler) UpdateProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	var req updateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	in := store.ProductUpdate{
		Name:            req.Name,
		Description:     req.Description,
		FullDescription: req.FullDescription,
		IsActive:        req.IsActive,
		Stock:           req.Stock,
		CategoryID:      req.CategoryID,
		Images:          req.Images,
		Colors:          req.Colors,
		Sizes:           req.Sizes,
	}
	if req.Price != nil {
		price := decimal.NewFromFloat(*req.Price)
		in.Price = &price
	}
	if req.CompareAtPrice != nil {
		compareAt := decimal.NewFromFloat(*req.CompareAtPrice)
		in.CompareAtPrice = &compareAt
	}

	product, err := store.UpdateProduct(c.Request.Context(), h.db, productID, in)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *AdminHandler) DeactivateProduct(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return
	}

	if err := store.DeactivateProduct(c.Request.Context(), h.db, productID); err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deactivated successfully"})
}

// ListProducts is the admin catalog view: inactive products included.
func (h *AdminHandler) ListProducts(c *gin.Context) {
	page, pageSize := pageParams(c, 20)

	filter := store.ProductFilter{
		CategorySlug: c.Query("category"),
		Search:       c.Query("search"),
		ActiveOnly:   false,
	}

	result, err := store.ListProducts(c.Request.Context(), h.db, filter, page, pageSize)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type createCategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Slug        string `json:"slug" binding:"required"`
	Description string `json:"description"`
}

func (h *AdminHandler) CreateCategory(c *gin.Context) {
	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	category, err := store.CreateCategory(c.Request.Context(), h.db, req.Name, req.Slug, req.Description)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *AdminHandler) ListOrders(c *gin.Context) {
	page, pageSize := pageParams(c, 20)

	result, err := store.ListAllOrders(c.Request.Context(), h.db, c.Query("status"), page, pageSize)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type updateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	var req updateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	order, err := store.UpdateOrderStatus(c.Request.Context(), h.db, orderID, req.Status)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	h.logger.Info("order status updated",
		zap.Int64("order_id", order.ID),
		zap.String("status", order.Status))

	c.JSON(http.StatusOK, order)
}
