package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/licensehub/internal/apikey"
	apikeydomain "github.com/smallbiznis/licensehub/internal/apikey/domain"
	"github.com/smallbiznis/licensehub/internal/audit"
	auditdomain "github.com/smallbiznis/licensehub/internal/audit/domain"
	"github.com/smallbiznis/licensehub/internal/authorization"
	"github.com/smallbiznis/licensehub/internal/cache"
	"github.com/smallbiznis/licensehub/internal/config"
	"github.com/smallbiznis/licensehub/internal/customer"
	customerdomain "github.com/smallbiznis/licensehub/internal/customer/domain"
	"github.com/smallbiznis/licensehub/internal/license"
	licensedomain "github.com/smallbiznis/licensehub/internal/license/domain"
	"github.com/smallbiznis/licensehub/internal/licensecrypto"
	"github.com/smallbiznis/licensehub/internal/metadata"
	"github.com/smallbiznis/licensehub/internal/observability"
	obslogger "github.com/smallbiznis/licensehub/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/licensehub/internal/observability/metrics"
	obstracing "github.com/smallbiznis/licensehub/internal/observability/tracing"
	"github.com/smallbiznis/licensehub/internal/product"
	productdomain "github.com/smallbiznis/licensehub/internal/product/domain"
	"github.com/smallbiznis/licensehub/internal/ratelimit"
	"github.com/smallbiznis/licensehub/internal/returnedfields"
	returnedfieldsdomain "github.com/smallbiznis/licensehub/internal/returnedfields/domain"
	"github.com/smallbiznis/licensehub/internal/team"
	teamdomain "github.com/smallbiznis/licensehub/internal/team/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires every domain service the HTTP surface needs. Binaries pick the
// route groups they serve.
var Module = fx.Module("http.server",
	cache.Module,
	licensecrypto.Module,
	authorization.Module,
	audit.Module,
	apikey.Module,
	team.Module,
	metadata.Module,
	customer.Module,
	product.Module,
	returnedfields.Module,
	license.Module,
	ratelimit.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	apiKeySvc         apikeydomain.Service
	authzSvc          authorization.Service
	auditSvc          auditdomain.Service
	teamSvc           teamdomain.Service
	customerSvc       customerdomain.Service
	productSvc        productdomain.Service
	licenseSvc        licensedomain.Service
	returnedFieldsSvc returnedfieldsdomain.Service

	verifyLimiter *ratelimit.VerifyLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin               *gin.Engine
	Cfg               config.Config
	Log               *zap.Logger
	APIKeySvc         apikeydomain.Service
	AuthzSvc          authorization.Service
	AuditSvc          auditdomain.Service
	TeamSvc           teamdomain.Service
	CustomerSvc       customerdomain.Service
	ProductSvc        productdomain.Service
	LicenseSvc        licensedomain.Service
	ReturnedFieldsSvc returnedfieldsdomain.Service
	VerifyLimiter     *ratelimit.VerifyLimiter `optional:"true"`
	ObsMetrics        *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:            p.Gin,
		cfg:               p.Cfg,
		log:               p.Log.Named("http.server"),
		apiKeySvc:         p.APIKeySvc,
		authzSvc:          p.AuthzSvc,
		auditSvc:          p.AuditSvc,
		teamSvc:           p.TeamSvc,
		customerSvc:       p.CustomerSvc,
		productSvc:        p.ProductSvc,
		licenseSvc:        p.LicenseSvc,
		returnedFieldsSvc: p.ReturnedFieldsSvc,
		verifyLimiter:     p.VerifyLimiter,
		obsMetrics:        p.ObsMetrics,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// RegisterAPIRoutes mounts the API-key authenticated external API.
func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api/v1", s.APIKeyRequired())

	api.POST("/licenses", s.requireScope(apikeydomain.ScopeLicensesWrite), s.CreateLicense)
	api.GET("/licenses", s.requireScope(apikeydomain.ScopeLicensesRead), s.ListLicenses)
	api.GET("/licenses/:id", s.requireScope(apikeydomain.ScopeLicensesRead), s.GetLicense)
}

// RegisterClientRoutes mounts the public verification endpoint used by
// licensed software.
func (s *Server) RegisterClientRoutes() {
	client := s.engine.Group("/api/v1/client/teams/:teamId", s.TeamFromPath())

	client.POST("/verification/verify", s.VerifyRateLimit(), s.VerifyLicense)
}

// RegisterAdminRoutes mounts the dashboard API.
func (s *Server) RegisterAdminRoutes() {
	admin := s.engine.Group("/admin/teams/:teamId")

	admin.Use(s.DashboardAuthRequired())

	admin.GET("", s.authorizeTeamAction(authorization.ObjectTeam, authorization.ActionTeamView), s.GetTeam)
	admin.GET("/signing-secret", s.authorizeTeamAction(authorization.ObjectTeam, authorization.ActionTeamSigningSecret), s.GetSigningSecret)

	// -------- Licenses --------
	admin.GET("/licenses", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseView), s.ListLicenses)
	admin.POST("/licenses", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseCreate), s.CreateLicense)
	admin.GET("/licenses/:id", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseView), s.GetLicense)
	admin.POST("/licenses/:id/reveal", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseReveal), s.RevealLicense)
	admin.POST("/licenses/:id/suspend", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseSuspend), s.SuspendLicense)
	admin.POST("/licenses/:id/unsuspend", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseSuspend), s.UnsuspendLicense)
	admin.DELETE("/licenses/:id", s.authorizeTeamAction(authorization.ObjectLicense, authorization.ActionLicenseDelete), s.DeleteLicense)

	// -------- Customers --------
	admin.GET("/customers", s.authorizeTeamAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.ListCustomers)
	admin.POST("/customers", s.authorizeTeamAction(authorization.ObjectCustomer, authorization.ActionCustomerCreate), s.CreateCustomer)
	admin.GET("/customers/:id", s.authorizeTeamAction(authorization.ObjectCustomer, authorization.ActionCustomerView), s.GetCustomerByID)

	// -------- Products --------
	admin.GET("/products", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductView), s.ListProducts)
	admin.POST("/products", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductCreate), s.CreateProduct)
	admin.GET("/products/:id", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductView), s.GetProductByID)
	admin.GET("/products/:id/releases", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductView), s.ListReleases)
	admin.POST("/products/:id/releases", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductUpdate), s.CreateRelease)
	admin.POST("/products/:id/releases/:releaseId/latest", s.authorizeTeamAction(authorization.ObjectProduct, authorization.ActionProductUpdate), s.SetLatestRelease)

	// -------- Returned fields --------
	admin.GET("/returned-fields", s.authorizeTeamAction(authorization.ObjectReturnedFields, authorization.ActionReturnedFieldsView), s.GetReturnedFields)
	admin.PUT("/returned-fields", s.authorizeTeamAction(authorization.ObjectReturnedFields, authorization.ActionReturnedFieldsUpdate), s.UpsertReturnedFields)

	// -------- API keys & audit --------
	admin.GET("/api-keys/scopes", s.authorizeTeamAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeyScopes)
	admin.GET("/api-keys", s.authorizeTeamAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
	admin.POST("/api-keys", s.authorizeTeamAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.CreateAPIKey)
	admin.POST("/api-keys/:key_id/revoke", s.authorizeTeamAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
	admin.GET("/audit-logs", s.authorizeTeamAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}

// RegisterAllRoutes mounts every route group on one engine.
func (s *Server) RegisterAllRoutes() {
	s.RegisterAPIRoutes()
	s.RegisterClientRoutes()
	s.RegisterAdminRoutes()
}

// noStore marks responses that carry plaintext secrets.
func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
