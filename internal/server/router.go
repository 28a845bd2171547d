package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/metcalfc/commonplace/internal/logger"
)

type RouterConfig struct {
	Log          *logger.Logger
	BookHandler  *BookHandler
	RelayHandler *RelayHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID())
	if cfg.Log != nil {
		router.Use(RequestLogger(cfg.Log))
	}

	// Cors
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Authorization", "X-Client-Info", "Apikey", "Content-Type"},
		ExposeHeaders:   []string{headerRequestID},
	}))

	router.GET("/healthcheck", HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/flipbook", cfg.BookHandler.Flipbook)
		api.GET("/books/:author", cfg.BookHandler.Book)
	}

	// Homeserver push; only mounted when the relay is configured.
	if cfg.RelayHandler != nil {
		router.PUT("/_matrix/app/v1/transactions/:txnId", cfg.RelayHandler.Transaction)
	}

	return router
}
