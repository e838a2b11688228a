package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/hadia/wholesale-store/internal/auth"
	"github.com/hadia/wholesale-store/internal/config"
	"github.com/hadia/wholesale-store/internal/database"
	"github.com/hadia/wholesale-store/internal/handler"
	"github.com/hadia/wholesale-store/internal/middleware"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Load config", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Connected to database")

	tokens := auth.NewTokenIssuer(&cfg.Auth)

	authHandler := handler.NewAuthHandler(db, tokens, logger)
	productHandler := handler.NewProductHandler(db, logger)
	cartHandler := handler.NewCartHandler(db, logger)
	accountHandler := handler.NewAccountHandler(db, logger)
	orderHandler := handler.NewOrderHandler(db, logger)
	adminHandler := handler.NewAdminHandler(db, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", func(c *gin.Context) {
			if err := db.PingContext(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "healthy"})
		})

		v1.POST("/auth/register", authHandler.Register)
		v1.POST("/auth/login", authHandler.Login)

		v1.GET("/products", productHandler.List)
		v1.GET("/products/:slug", productHandler.GetBySlug)
		v1.GET("/categories", productHandler.ListCategories)

		authed := v1.Group("", middleware.Auth(tokens))
		{
			authed.GET("/cart", cartHandler.Get)
			authed.POST("/cart", cartHandler.Add)
			authed.PUT("/cart/:id", cartHandler.UpdateItem)
			authed.DELETE("/cart/:id", cartHandler.RemoveItem)
			authed.DELETE("/cart", cartHandler.Clear)

			authed.POST("/orders", orderHandler.Create)
			authed.GET("/orders", orderHandler.List)
			authed.GET("/orders/:id", orderHandler.Get)

			authed.GET("/user/profile", accountHandler.GetProfile)
			authed.PUT("/user/profile", accountHandler.UpdateProfile)
			authed.GET("/user/addresses", accountHandler.ListAddresses)
			authed.POST("/user/addresses", accountHandler.CreateAddress)
			authed.PUT("/user/addresses/:id", accountHandler.UpdateAddress)
			authed.DELETE("/user/addresses/:id", accountHandler.DeleteAddress)
		}

		admin := v1.Group("/admin", middleware.Auth(tokens), middleware.RequireAdmin())
		{
			admin.GET("/products", adminHandler.ListProducts)
			admin.POST("/products", adminHandler.CreateProduct)
			admin.PUT("/products/:id", adminHandler.UpdateProduct)
			admin.DELETE("/products/:id", adminHandler.DeactivateProduct)
			admin.POST("/categories", adminHandler.CreateCategory)
			admin.GET("/orders", adminHandler.ListOrders)
			admin.PUT("/orders/:id", adminHandler.UpdateOrderStatus)
		}
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}
