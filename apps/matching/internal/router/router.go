package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/handler"
	v1 "github.com/sudo-enjoy/matching-app-be/apps/matching/internal/router/v1"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/config"
	rediskey "github.com/sudo-enjoy/matching-app-be/consts/redisKey"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

// Handlers 路由依赖的处理器
type Handlers struct {
	Auth     *v1.AuthHandler
	User     *v1.UserHandler
	Matching *v1.MatchingHandler
	Map      *v1.MapHandler
	Health   *v1.HealthHandler
	WS       *handler.WSHandler
}

// Options 中间件参数
// Redis 为 nil 时限流全部放行
type Options struct {
	Verifier       service.SessionVerifier
	Redis          *redis.Client
	RateLimit      config.RateLimitConfig
	AllowedOrigins []string
	RequestTimeout time.Duration
}

// InitRouter 初始化路由
func InitRouter(h Handlers, opts Options) *gin.Engine {
	r := gin.New()

	// 恢复中间件
	r.Use(middleware.GinRecovery(true))

	// 追踪中间件 (生成 trace_id)
	r.Use(util.TraceLogger())

	// 客户端 IP 中间件
	r.Use(middleware.ClientIPMiddleware())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// Prometheus 监控中间件
	r.Use(middleware.PrometheusMiddleware())

	// 跨域中间件
	r.Use(middleware.CorsMiddleware(opts.AllowedOrigins))

	// Prometheus 指标暴露接口
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket 入口，长连接不挂超时与限流
	if h.WS != nil {
		r.GET("/ws", h.WS.ServeWS)
	}

	auth := middleware.JWTAuthMiddleware(opts.Verifier)
	ipLimiter := middleware.NewRedisRateLimiter(opts.Redis, opts.RateLimit.IPRate, opts.RateLimit.IPBurst)
	smsLimiter := middleware.SMSRateLimitMiddleware(opts.Redis, opts.RateLimit.SMSPerWindow, opts.RateLimit.SMSWindow)

	// API 路由组
	api := r.Group("/api")
	api.Use(middleware.TimeoutMiddleware(opts.RequestTimeout))
	api.Use(middleware.IPRateLimitMiddleware(ipLimiter, rediskey.IPBlacklistKey()))
	{
		// 健康检查（无需认证）
		api.GET("/health", h.Health.Health)

		// 认证相关接口，下发验证码的接口额外按 (IP, 手机号) 限流
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", smsLimiter, h.Auth.Register)
			authGroup.POST("/login", smsLimiter, h.Auth.Login)
			authGroup.POST("/verify-sms", h.Auth.VerifySMS)
			authGroup.POST("/verify-login", h.Auth.VerifyLogin)
			authGroup.POST("/refresh", h.Auth.RefreshToken)
			authGroup.GET("/validate", h.Auth.Validate)
			authGroup.GET("/me", auth, h.Auth.Me)
		}

		users := api.Group("/users")
		users.Use(auth)
		{
			users.GET("/nearby", h.User.Nearby)
			users.GET("/all", h.User.ListUsers)
			users.POST("/update-location", h.User.UpdateLocation)
			users.GET("/profile/:id", h.User.GetProfile)
			users.PUT("/profile", h.User.UpdateProfile)
			users.POST("/status", h.User.SetStatus)
			users.POST("/avatar", h.User.UploadAvatar)
		}

		matching := api.Group("/matching")
		matching.Use(auth)
		{
			matching.POST("/request", h.Matching.Request)
			matching.POST("/respond", h.Matching.Respond)
			matching.GET("/history", h.Matching.History)
			matching.POST("/confirm-meeting", h.Matching.ConfirmMeeting)
			matching.POST("/rate-meeting", h.Matching.RateMeeting)
		}

		mapGroup := api.Group("/map")
		{
			mapGroup.GET("/config", h.Map.Config)
			mapGroup.GET("/data", auth, h.Map.Data)
			mapGroup.GET("/location", auth, h.Map.GetLocation)
			mapGroup.POST("/location", auth, h.Map.UpdateLocation)
		}
	}

	return r
}
