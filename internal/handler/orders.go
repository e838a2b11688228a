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

type OrderHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewOrderHandler(db *sql.DB, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{db: db, logger: logger}
}

type orderLineRequest struct {
	ProductID int64  `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
	SetType   string `json:"set_type" binding:"required"`
}

type createOrderRequest struct {
	Items             []orderLineRequest `json:"items" binding:"required,min=1,dive"`
	ShippingAddressID int64              `json:"shipping_address_id" binding:"required"`
	BillingAddressID  int64              `json:"billing_address_id" binding:"required"`
	Notes             string             `json:"notes"`
}

func (h *OrderHandler) Create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	items := make([]store.OrderLineRequest, 0, len(req.Items))
	for _, line := range req.Items {
		if !pricing.ValidTier(line.SetType) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown set type"})
			return
		}
		items = append(items, store.OrderLineRequest{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			SetType:   line.SetType,
		})
	}

	order, err := store.CreateOrder(c.Request.Context(), h.db, store.CreateOrderRequest{
		UserID:            middleware.UserID(c),
		Items:             items,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Notes:             req.Notes,
	})
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	h.logger.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.String("total", order.Total.String()),
		zap.String("request_id", c.GetString(middleware.RequestIDKey)))

	c.JSON(http.StatusCreated, order)
}

func (h *OrderHandler) List(c *gin.Context) {
	limit := queryInt(c, "limit", 10)
	if limit < 1 || limit > 100 {
		limit = 10
	}

	result, err := store.ListOrdersCursor(c.Request.Context(), h.db, middleware.UserID(c), c.Query("cursor"), limit)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) Get(c *gin.Context) {
	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return
	}

	order, err := store.GetOrderForUser(c.Request.Context(), h.db, middleware.UserID(c), orderID)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, order)
}
