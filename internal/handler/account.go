package handler

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/middleware"
	"github.com/hadia/wholesale-store/internal/store"
)

// AccountHandler serves the signed-in user's own data: profile and
// addresses.
type AccountHandler struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewAccountHandler(db *sql.DB, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{db: db, logger: logger}
}

func (h *AccountHandler) GetProfile(c *gin.Context) {
	user, err := store.GetUser(c.Request.Context(), h.db, middleware.UserID(c))
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

type updateProfileRequest struct {
	Name  string `json:"name" binding:"omitempty,min=2"`
	Image string `json:"image" binding:"omitempty,url"`
}

func (h *AccountHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	user, err := store.UpdateProfile(c.Request.Context(), h.db, middleware.UserID(c), req.Name, req.Image)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *AccountHandler) ListAddresses(c *gin.Context) {
	addresses, err := store.ListAddresses(c.Request.Context(), h.db, middleware.UserID(c))
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, addresses)
}

type addressRequest struct {
	Name       string `json:"name" binding:"required,min=2"`
	Street     string `json:"street" binding:"required,min=5"`
	City       string `json:"city" binding:"required,min=2"`
	State      string `json:"state" binding:"required,min=2"`
	PostalCode string `json:"postal_code" binding:"required,min=3"`
	Country    string `json:"country" binding:"required,min=2"`
	Phone      string `json:"phone" binding:"required,min=10"`
	IsDefault  bool   `json:"is_default"`
}

func (r addressRequest) toInput() store.AddressInput {
	return store.AddressInput{
		Name:       r.Name,
		Street:     r.Street,
		City:       r.City,
		State:      r.State,
		PostalCode: r.PostalCode,
		Country:    r.Country,
		Phone:      r.Phone,
		IsDefault:  r.IsDefault,
	}
}

func (h *AccountHandler) CreateAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	address, err := store.CreateAddress(c.Request.Context(), h.db, middleware.UserID(c), req.toInput())
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, address)
}

func (h *AccountHandler) UpdateAddress(c *gin.Context) {
	addressID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address ID"})
		return
	}

	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	address, err := store.UpdateAddress(c.Request.Context(), h.db, middleware.UserID(c), addressID, req.toInput())
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, address)
}

func (h *AccountHandler) DeleteAddress(c *gin.Context) {
	addressID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid address ID"})
		return
	}

	if err := store.DeleteAddress(c.Request.Context(), h.db, middleware.UserID(c), addressID); err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Address deleted successfully"})
}
