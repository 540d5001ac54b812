// Package api: административный HTTP API экземпляра мира.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/annel0/blockverse/internal/auth"
	"github.com/annel0/blockverse/internal/logging"
	"github.com/annel0/blockverse/internal/middleware"
	"github.com/annel0/blockverse/internal/observability"
	"github.com/annel0/blockverse/internal/world"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const claimsKey = "operator_claims"

// GenericResponse общий формат ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Config содержит зависимости административного сервера
type Config struct {
	Addr     string
	Instance *world.Instance
	// Issuer проверяет токены операторов; nil: изменяющие эндпоинты открыты
	Issuer   *auth.TokenIssuer
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
	Monitor  *observability.ProcessMonitor
}

// AdminServer обслуживает запросы операторов к миру
type AdminServer struct {
	router  *gin.Engine
	server  *http.Server
	inst    *world.Instance
	issuer  *auth.TokenIssuer
	monitor *observability.ProcessMonitor
	logger  *logging.Logger
	started time.Time
}

// NewAdminServer создаёт сервер и настраивает маршруты
func NewAdminServer(cfg Config) (*AdminServer, error) {
	if cfg.Instance == nil {
		return nil, errors.New("admin server needs a world instance")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	// === Observability middleware ===
	logger := logging.GetComponentLogger(logging.ComponentHTTP)
	router.Use(middleware.NewRequestLogger(logger).Handler())
	router.Use(otelgin.Middleware("world_admin"))

	promMw, err := middleware.NewPrometheusMiddleware("world_admin", cfg.Registry)
	if err != nil {
		return nil, err
	}
	router.Use(promMw.Handler())
	if cfg.Gatherer != nil {
		middleware.RegisterMetricsEndpoint(router, cfg.Gatherer)
	}

	s := &AdminServer{
		router:  router,
		inst:    cfg.Instance,
		issuer:  cfg.Issuer,
		monitor: cfg.Monitor,
		logger:  logger,
		started: time.Now(),
	}
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.setupRoutes()
	return s, nil
}

func (s *AdminServer) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api")
	{
		api.GET("/world", s.handleWorld)
		api.GET("/columns", s.handleColumns)
		api.GET("/columns/:x/:z", s.handleColumn)
		api.GET("/block", s.handleGetBlock)
	}

	// Изменяющие эндпоинты требуют токен с правом записи
	write := api.Group("/")
	write.Use(s.operatorMiddleware())
	{
		write.PUT("/block", s.handleSetBlock)
		write.POST("/load", s.handleLoad)
		write.POST("/unload", s.handleUnload)
		write.POST("/save", s.handleSave)
	}
}

// operatorMiddleware проверяет Bearer токен оператора
func (s *AdminServer) operatorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.issuer == nil {
			c.Next()
			return
		}

		parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Message: "Отсутствует токен авторизации",
			})
			return
		}

		claims, err := s.issuer.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, GenericResponse{
				Message: "Недействительный токен",
			})
			return
		}
		if !claims.CanWrite || (claims.World != "" && claims.World != s.inst.Name()) {
			c.AbortWithStatusJSON(http.StatusForbidden, GenericResponse{
				Message: "Недостаточно прав",
			})
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Handler возвращает http.Handler сервера
func (s *AdminServer) Handler() http.Handler { return s.router }

// Start слушает адрес до вызова Shutdown
func (s *AdminServer) Start() error {
	s.logger.Info("🛠️ Административный API на %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown останавливает сервер, дожидаясь активных запросов
func (s *AdminServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func operator(c *gin.Context) string {
	if v, ok := c.Get(claimsKey); ok {
		return v.(*auth.Claims).Operator
	}
	return "anonymous"
}
