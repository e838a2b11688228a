package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/middleware"
	"github.com/hadia/wholesale-store/internal/pricing"
	"github.com/hadia/wholesale-store/internal/store"
)

type CartHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewCartHandler(db *sql.DB, logger *zap.Logger) *CartHandler {
	return &CartHandler{db: db, logger: logger}
}

func (h *CartHandler) Get(c *gin.Context) {
	cart, err := store.GetCart(c.Request.Context(), h.db, middleware.UserID(c))
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cart)
}

type addToCartRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	SetType   string `json:"set_type" binding:"required"`
}

func (h *CartHandler) Add(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	if !pricing.ValidTier(req.SetType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown set type"})
		return
	}

	item, err := store.AddCartItem(c.Request.Context(), h.db, middleware.UserID(c), req.ProductID, req.SetType, req.Quantity)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, item)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,gt=0"`
}

func (h *CartHandler) UpdateItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	item, err := store.UpdateCartItemQuantity(c.Request.Context(), h.db, middleware.UserID(c), itemID, req.Quantity)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveItem(c *gin.Context) {
	itemID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cart item ID"})
		return
	}

	if err := store.RemoveCartItem(c.Request.Context(), h.db, middleware.UserID(c), itemID); err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Item removed from cart"})
}

func (h *CartHandler) Clear(c *gin.Context) {
	if err := store.ClearCart(c.Request.Context(), h.db, middleware.UserID(c)); err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared successfully"})
}
