package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/supatable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/supatable-api/internal/middleware"
	"github.com/noah-isme/supatable-api/internal/service"
	"github.com/noah-isme/supatable-api/pkg/config"
	"github.com/noah-isme/supatable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/supatable-api/pkg/middleware/cors"
	"github.com/noah-isme/supatable-api/pkg/middleware/traceid"
)

const metricsPath = "/metrics"

type routerDeps struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *service.MetricsService
	users   *service.UserService
}

func newRouter(deps routerDeps) (*gin.Engine, error) {
	cfg := deps.cfg

	graphqlHandler, err := handler.NewGraphQLHandler(deps.users, deps.logger)
	if err != nil {
		return nil, err
	}
	userHandler := handler.NewUserHandler(deps.users)
	opsHandler := handler.NewMetricsHandler(deps.metrics, deps.users)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(traceid.Middleware())
	r.Use(logger.GinMiddleware(deps.logger, metricsPath))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(deps.metrics))

	r.GET("/health", opsHandler.Health)
	r.GET("/ready", opsHandler.Ready)
	r.GET(metricsPath, opsHandler.Prometheus)

	r.Any(cfg.GraphQLPath, gin.WrapH(graphqlHandler))

	api := r.Group(cfg.APIPrefix)
	api.GET("/users", userHandler.List)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	if cfg.StaticDir != "" {
		mountStatic(r, cfg.StaticDir)
	}

	return r, nil
}

// mountStatic serves built SPA assets and falls back to index.html for client-side routes.
func mountStatic(r *gin.Engine, dir string) {
	index := filepath.Join(dir, "index.html")
	r.NoRoute(func(c *gin.Context) {
		if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
			c.Status(http.StatusNotFound)
			return
		}
		rel := filepath.Clean("/" + strings.TrimPrefix(c.Request.URL.Path, "/"))
		candidate := filepath.Join(dir, rel)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			c.File(candidate)
			return
		}
		c.File(index)
	})
}
