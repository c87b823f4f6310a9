package server

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/conf"
	"checklistadvisor/cmd/suggest-gateway/internal/domain"
	"checklistadvisor/cmd/suggest-gateway/internal/service"
	pkgerrors "checklistadvisor/pkg/errors"
	"checklistadvisor/pkg/health"
	"checklistadvisor/pkg/middleware"
	"checklistadvisor/pkg/monitoring"
	"checklistadvisor/pkg/observability"
)

// HTTPServer HTTP 服务器
type HTTPServer struct {
	engine         *gin.Engine
	service        *service.SuggestService
	health         *health.HealthChecker
	logger         *zap.Logger
	serviceName    string
	rateMax        int
	requestTimeout time.Duration
	maxBodyBytes   int64
}

// NewHTTPServer 创建 HTTP 服务器
func NewHTTPServer(cfg *conf.Config, srv *service.SuggestService, hc *health.HealthChecker, logger *zap.Logger) *HTTPServer {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, ignoring forwarded headers", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	s := &HTTPServer{
		engine:         engine,
		service:        srv,
		health:         hc,
		logger:         logger,
		serviceName:    cfg.Observability.ServiceName,
		rateMax:        cfg.RateLimit.Max,
		requestTimeout: cfg.Server.RequestTimeout,
		maxBodyBytes:   cfg.Server.MaxBodyBytes,
	}

	s.registerMiddlewares()
	s.registerRoutes()

	return s
}

// Engine 返回 gin 引擎
func (s *HTTPServer) Engine() *gin.Engine {
	return s.engine
}

// registerMiddlewares 注册中间件
func (s *HTTPServer) registerMiddlewares() {
	s.engine.Use(gin.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(observability.GinMiddleware(s.serviceName))
	s.engine.Use(monitoring.GinMiddleware(s.serviceName))
	s.engine.Use(s.requestLogger())
	s.engine.Use(middleware.SecurityHeaders())
}

// requestLogger 请求日志中间件
func (s *HTTPServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString("request_id")),
		}
		if traceID := observability.TraceID(c.Request.Context()); traceID != "" {
			fields = append(fields, zap.String("trace_id", traceID))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("error", c.Errors.Last().Error()))
		}
		s.logger.Info("HTTP request", fields...)
	}
}

// registerRoutes 注册路由
func (s *HTTPServer) registerRoutes() {
	api := s.engine.Group("/api/v1")
	api.POST("/suggest", middleware.BodyLimit(s.maxBodyBytes), s.suggest)

	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/ready", s.readinessCheck)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// suggest 获取推荐
func (s *HTTPServer) suggest(c *gin.Context) {
	var req service.SuggestRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(err)
		s.respondError(c, domain.ErrInvalidRequest.WithCause(err))
		return
	}

	ctx := c.Request.Context()
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}

	result, err := s.service.Suggest(ctx, c.ClientIP(), &req)
	if err != nil {
		_ = c.Error(err)
		s.respondError(c, err)
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(s.rateMax))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Rate.Remaining))
	c.JSON(http.StatusOK, pkgerrors.NewSuccessResponse(result.Data).WithRequestID(c.GetString("request_id")))
}

// respondError 统一错误响应；限流错误附带限流响应头
func (s *HTTPServer) respondError(c *gin.Context, err error) {
	status := pkgerrors.HTTPStatus(err)

	if domain.IsRateLimited(err) {
		md := pkgerrors.Metadata(err)
		c.Header("X-RateLimit-Limit", md["limit"])
		c.Header("X-RateLimit-Remaining", md["remaining"])
		c.Header("Retry-After", retryAfterSeconds(md["reset_in_ms"]))
	}

	c.JSON(status, pkgerrors.NewErrorResponse(err).WithRequestID(c.GetString("request_id")))
}

// retryAfterSeconds 毫秒向上取整为秒，至少1秒
func retryAfterSeconds(resetInMs string) string {
	ms, err := strconv.ParseInt(resetInMs, 10, 64)
	if err != nil || ms <= 0 {
		return "1"
	}
	return strconv.FormatInt(int64(math.Ceil(float64(ms)/1000)), 10)
}

// healthCheck 存活检查
func (s *HTTPServer) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": health.StatusHealthy})
}

// readinessCheck 就绪检查；降级仍视为就绪
func (s *HTTPServer) readinessCheck(c *gin.Context) {
	report := s.health.Check(c.Request.Context())
	status := http.StatusOK
	if report.Status == health.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
