package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/reviewfolio/backend/internal/domain/shared"
	"github.com/reviewfolio/backend/internal/infrastructure/auth"
	"github.com/reviewfolio/backend/internal/infrastructure/logger"
	"github.com/reviewfolio/backend/internal/interfaces/http/dto"
	"github.com/reviewfolio/backend/internal/interfaces/http/handler"
	"github.com/reviewfolio/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// RouteRegistrar defines the interface for registering routes
type RouteRegistrar interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router manages HTTP route registration
type Router struct {
	engine     *gin.Engine
	apiVersion string
	middleware []gin.HandlerFunc
	registrars []RouteRegistrar
}

// RouterOption is a functional option for Router configuration
type RouterOption func(*Router)

// WithAPIVersion sets the API version prefix (e.g., "v1", "v2")
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) {
		r.apiVersion = version
	}
}

// WithAPIMiddleware adds middleware applied to every versioned route
func WithAPIMiddleware(mw ...gin.HandlerFunc) RouterOption {
	return func(r *Router) {
		r.middleware = append(r.middleware, mw...)
	}
}

// NewRouter creates a new Router instance
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{
		engine:     engine,
		apiVersion: "v1",
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a RouteRegistrar to be registered later
func (r *Router) Register(registrar RouteRegistrar) *Router {
	r.registrars = append(r.registrars, registrar)
	return r
}

// Setup registers all routes under /api/<version>
func (r *Router) Setup() {
	api := r.engine.Group("/api/"+r.apiVersion, r.middleware...)
	for _, registrar := range r.registrars {
		registrar.RegisterRoutes(api)
	}
}

// DomainGroup collects the routes of one domain under a prefix
type DomainGroup struct {
	name       string
	prefix     string
	routes     []routeDefinition
	subgroups  []*DomainGroup
	middleware []gin.HandlerFunc
}

type routeDefinition struct {
	method   string
	path     string
	handlers []gin.HandlerFunc
}

// NewDomainGroup creates a new domain-specific route group
func NewDomainGroup(name, prefix string) *DomainGroup {
	return &DomainGroup{name: name, prefix: prefix}
}

// Use adds middleware to this group
func (dg *DomainGroup) Use(middleware ...gin.HandlerFunc) *DomainGroup {
	dg.middleware = append(dg.middleware, middleware...)
	return dg
}

// GET registers a GET route
func (dg *DomainGroup) GET(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodGet, path, handlers)
}

// POST registers a POST route
func (dg *DomainGroup) POST(path string, handlers ...gin.HandlerFunc) *DomainGroup {
	return dg.handle(http.MethodPost, path, handlers)
}

func (dg *DomainGroup) handle(method, path string, handlers []gin.HandlerFunc) *DomainGroup {
	dg.routes = append(dg.routes, routeDefinition{method: method, path: path, handlers: handlers})
	return dg
}

// Group creates a sub-group within this domain
func (dg *DomainGroup) Group(name, prefix string) *DomainGroup {
	subgroup := NewDomainGroup(name, prefix)
	dg.subgroups = append(dg.subgroups, subgroup)
	return subgroup
}

// RegisterRoutes implements RouteRegistrar interface
func (dg *DomainGroup) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group(dg.prefix, dg.middleware...)
	for _, route := range dg.routes {
		group.Handle(route.method, route.path, route.handlers...)
	}
	for _, subgroup := range dg.subgroups {
		subgroup.RegisterRoutes(group)
	}
}

// Name returns the group name
func (dg *DomainGroup) Name() string {
	return dg.name
}

// Prefix returns the group prefix
func (dg *DomainGroup) Prefix() string {
	return dg.prefix
}

// Dependencies are everything NewEngine wires into the HTTP surface.
// Optional parts are skipped when nil or zero.
type Dependencies struct {
	Logger      *zap.Logger
	ServiceName string

	// Tracing starts request spans when telemetry is on
	Tracing        bool
	CORSOrigins    []string
	TrustedProxies []string

	JWT            *auth.JWTService
	RateLimiter    *middleware.RateLimiter
	Idempotency    shared.IdempotencyStore
	IdempotencyTTL time.Duration
	MaxBodyBytes   int64

	Ingestion *handler.IngestionHandler
	History   *handler.HistoryHandler
	System    *handler.SystemHandler
}

// NewEngine builds the gin engine with the global middleware chain, the
// unauthenticated system routes and the owner-scoped review API.
func NewEngine(deps Dependencies) *gin.Engine {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	if err := engine.SetTrustedProxies(deps.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(logger.Recovery(log))
	if deps.Tracing {
		engine.Use(middleware.Tracing(deps.ServiceName))
	}
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Secure(),
		middleware.CORS(deps.CORSOrigins),
	)

	notFound := func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(dto.ErrCodeNotFound, handler.MsgNotFound, middleware.GetRequestID(c)))
	}
	engine.NoRoute(notFound)
	engine.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, dto.NewErrorResponseWithRequestID(dto.ErrCodeBadRequest, handler.MsgInvalidRequest, middleware.GetRequestID(c)))
	})

	if deps.System != nil {
		engine.GET("/health", deps.System.Health)
		system := engine.Group("/api/v1/system")
		system.GET("/ping", deps.System.Ping)
		system.GET("/info", deps.System.GetSystemInfo)
	}

	api := []gin.HandlerFunc{
		middleware.OwnerAuth(middleware.OwnerAuthConfig{JWT: deps.JWT, Logger: log}),
	}
	if deps.Tracing {
		api = append(api, middleware.SpanAttributes())
	}
	if deps.RateLimiter != nil {
		api = append(api, middleware.RateLimit(deps.RateLimiter))
	}

	r := NewRouter(engine, WithAPIMiddleware(api...))
	r.Register(ReviewRoutes(deps))
	r.Setup()
	return engine
}

// ReviewRoutes returns the /reviews group. Ingestion endpoints carry the
// body limit and the idempotency check; history endpoints are read only.
func ReviewRoutes(deps Dependencies) *DomainGroup {
	reviews := NewDomainGroup("reviews", "/reviews")

	if deps.Ingestion != nil {
		ingest := reviews.Group("ingestion", "/ingest")
		if deps.MaxBodyBytes > 0 {
			ingest.Use(middleware.BodyLimit(deps.MaxBodyBytes))
		}
		if deps.Idempotency != nil {
			ingest.Use(middleware.Idempotency(deps.Idempotency, deps.IdempotencyTTL))
		}
		ingest.POST("/file", deps.Ingestion.IngestFile)
		ingest.POST("/text", deps.Ingestion.IngestTexts)
		ingest.POST("/images", deps.Ingestion.IngestImages)
	}

	if deps.History != nil {
		reviews.GET("/ingestions", deps.History.ListRuns)
		reviews.GET("/ingestions/:id", deps.History.GetRun)
	}
	return reviews
}
