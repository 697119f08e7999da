package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Handler *Handler
	Logger  *zap.Logger

	// Observer and MetricsHandler are optional.
	Observer       HTTPObserver
	MetricsHandler http.Handler
	MetricsPath    string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger.Named("http")))
	if cfg.Observer != nil {
		router.Use(observe(cfg.Observer))
	}

	h := cfg.Handler
	router.GET("/", h.Root)
	router.GET("/healthz", h.Healthz)
	if cfg.MetricsHandler != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(cfg.MetricsHandler))
	}

	api := router.Group("/api", cors())
	api.GET("/domains", h.ListDomains)
	api.POST("/market_gap", h.MarketGap)
	api.POST("/domain_scan", h.DomainScan)
	api.POST("/generate_strategy", h.GenerateStrategy)
	// preflight requests never reach a registered method otherwise
	api.OPTIONS("/*path", func(c *gin.Context) {})

	return router
}
