package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/middleware"
)

// respondStoreError maps store-layer errors onto the API's error
// taxonomy: 404 for references that do not resolve (or belong to
// someone else), 409 for uniqueness conflicts, 400 for business-rule
// violations, 500 for everything else.
func respondStoreError(c *gin.Context, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, database.ErrUserNotFound),
		errors.Is(err, database.ErrProductNotFound),
		errors.Is(err, database.ErrCategoryNotFound),
		errors.Is(err, database.ErrAddressNotFound),
		errors.Is(err, database.ErrCartItemNotFound),
		errors.Is(err, database.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

	case errors.Is(err, database.ErrEmailTaken),
		errors.Is(err, database.ErrSlugTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})

	case errors.Is(err, database.ErrInsufficientStock),
		errors.Is(err, database.ErrProductUnavailable),
		errors.Is(err, database.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})

	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pageParams(c *gin.Context, defaultPageSize int) (int, int) {
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	pageSize := queryInt(c, "page_size", defaultPageSize)
	if pageSize < 1 || pageSize > 100 {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return v
}
