package router

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/leadflow-api/api/swagger"
	"github.com/noah-isme/leadflow-api/internal/handler"
	internalmiddleware "github.com/noah-isme/leadflow-api/internal/middleware"
	"github.com/noah-isme/leadflow-api/internal/models"
	"github.com/noah-isme/leadflow-api/internal/service"
	"github.com/noah-isme/leadflow-api/pkg/config"
	"github.com/noah-isme/leadflow-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/leadflow-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/leadflow-api/pkg/middleware/requestid"
)

// Handlers bundles every HTTP handler mounted by the router.
type Handlers struct {
	Auth      *handler.AuthHandler
	Leads     *handler.LeadHandler
	Dashboard *handler.DashboardHandler
	Messages  *handler.MessageHandler
	Metrics   *handler.MetricsHandler
}

// Params groups router dependencies.
type Params struct {
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *service.MetricsService
	Tokens   internalmiddleware.TokenValidator
	Handlers Handlers
}

// New builds the gin engine with global middleware and all API routes.
func New(p Params) *gin.Engine {
	cfg := p.Config
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(internalmiddleware.Metrics(p.Metrics, "/metrics", "/health", "/ready"))
	r.Use(internalmiddleware.WithResponseMeta())

	h := p.Handlers
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(internalmiddleware.JWT(p.Tokens))
	superOnly := internalmiddleware.RequireRoles(models.RoleSuperAdmin)

	secured.GET("/auth/me", h.Auth.Me)
	secured.GET("/stages", h.Leads.Stages)
	secured.GET("/counselors", superOnly, h.Leads.Counselors)

	leads := secured.Group("/leads")
	leads.GET("", h.Leads.List)
	leads.POST("", h.Leads.Create)
	leads.GET("/export", h.Leads.Export)
	leads.POST("/assign", superOnly, h.Leads.Assign)
	leads.GET("/:id", h.Leads.Get)
	leads.PATCH("/:id", h.Leads.Update)
	leads.DELETE("/:id", superOnly, h.Leads.Delete)
	leads.POST("/:id/stage", h.Leads.ChangeStage)
	leads.POST("/:id/remarks", h.Leads.AddRemark)

	secured.GET("/dashboard", h.Dashboard.Dashboard)
	secured.GET("/reports", h.Dashboard.Report)
	secured.GET("/reports/export", h.Dashboard.ReportExport)

	messages := secured.Group("/messages")
	messages.GET("/templates", h.Messages.Templates)
	messages.POST("/preview", h.Messages.Preview)
	messages.POST("/send", h.Messages.Send)

	return r
}
