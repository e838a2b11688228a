package handler

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/auth"
	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/store"
)

type AuthHandler struct {
	db     *sql.DB
	tokens *auth.TokenIssuer
	logger *zap.Logger
}

func NewAuthHandler(db *sql.DB, tokens *auth.TokenIssuer, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, tokens: tokens, logger: logger}
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"omitempty,min=2"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	user, err := store.CreateUser(c.Request.Context(), h.db, req.Email, hash, req.Name)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "User created successfully", "user": user})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	user, err := store.GetUserByEmail(c.Request.Context(), h.db, req.Email)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		respondStoreError(c, h.logger, err)
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Role)
	if err != nil {
		respondStoreError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}
