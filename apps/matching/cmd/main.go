package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/event"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/handler"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/manager"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/svc"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/router"
	v1 "github.com/sudo-enjoy/matching-app-be/apps/matching/internal/router/v1"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/server"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/pkg/async"
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
	pkgkafka "github.com/sudo-enjoy/matching-app-be/pkg/kafka"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	pkgminio "github.com/sudo-enjoy/matching-app-be/pkg/minio"
	pkgmysql "github.com/sudo-enjoy/matching-app-be/pkg/mysql"
	pkgredis "github.com/sudo-enjoy/matching-app-be/pkg/redis"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
	"github.com/sudo-enjoy/matching-app-be/pkg/sms"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

func main() {
	// 启动期日志串联用固定 trace_id
	ctx := ctxmeta.WithTraceID(context.Background(), "0")

	// 1. 读取 .env 与服务配置
	config.Load()
	appCfg := config.DefaultAppConfig()

	// 2. 初始化日志（必须最先完成，后续模块初始化都依赖日志输出）
	l, err := logger.Build(config.DefaultLoggerConfig())
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		_ = l.Sync()
	}()
	result.SetExposeDetails(!appCfg.IsProduction())

	logger.Info(ctx, "Matching 服务初始化中...",
		logger.String("env", appCfg.Env),
	)

	// 3. 雪花 ID 与令牌
	if err := util.InitSnowflake(appCfg.NodeID); err != nil {
		logger.Fatal(ctx, "初始化雪花节点失败", logger.ErrorField("error", err))
	}
	jwtCfg := config.DefaultJWTConfig()
	if err := jwtCfg.CheckSecret(appCfg.IsProduction()); err != nil {
		logger.Fatal(ctx, "JWT 密钥不可用于生产环境", logger.ErrorField("error", err))
	}
	util.InitJWT(jwtCfg)

	// 4. 协程池（事件投递、在线状态落库等旁路任务）
	if err := async.Init(config.DefaultAsyncConfig()); err != nil {
		logger.Fatal(ctx, "初始化协程池失败", logger.ErrorField("error", err))
	}
	defer func() {
		_ = async.Release()
	}()

	// 5. MySQL，失败直接退出
	mysqlCfg := config.DefaultMySQLConfig()
	db, err := pkgmysql.Build(mysqlCfg)
	if err != nil {
		logger.Fatal(ctx, "初始化 MySQL 失败", logger.ErrorField("error", err))
	}
	pkgmysql.ReplaceGlobal(db)
	defer func() {
		_ = pkgmysql.Close(db)
	}()
	migrated, err := repository.AutoMigrate(db, mysqlCfg.AutoMigrate)
	if err != nil {
		logger.Fatal(ctx, "数据表迁移失败", logger.ErrorField("error", err))
	}
	logger.Info(ctx, "MySQL 初始化成功", logger.Bool("migrated", migrated))

	// 6. Redis，不可用时限流降级放行
	redisCfg := config.DefaultRedisConfig()
	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		logger.Warn(ctx, "初始化 Redis 失败，限流功能降级",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		defer func() {
			_ = redisClient.Close()
		}()
		logger.Info(ctx, "Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 7. 领域事件：配置了 Kafka 才投递
	var publisher event.Publisher = event.NopPublisher{}
	kafkaCfg := config.DefaultKafkaConfig()
	if kafkaCfg.Enabled() {
		producer := pkgkafka.NewProducer(kafkaCfg, l)
		defer func() {
			_ = producer.Close()
		}()
		publisher = event.NewKafkaPublisher(producer)
		logger.Info(ctx, "Kafka 事件投递已启用",
			logger.Strings("brokers", kafkaCfg.Brokers),
			logger.String("topic", kafkaCfg.EventTopic),
		)
	}

	// 8. 头像存储：未配置或不可用时头像上传返回 503
	var avatars service.AvatarStorage
	minioCfg := config.DefaultMinIOConfig()
	if minioCfg.Enabled() {
		store, err := pkgminio.Build(minioCfg)
		if err != nil {
			logger.Warn(ctx, "初始化 MinIO 失败，头像上传不可用", logger.ErrorField("error", err))
		} else {
			avatars = store
			logger.Info(ctx, "MinIO 初始化成功", logger.String("bucket", minioCfg.BucketName))
		}
	}

	// 9. 验证码投递
	smsCfg := config.DefaultSMSConfig()
	notifier := sms.NewFromConfig(smsCfg, l)
	logger.Info(ctx, "验证码投递通道", logger.String("provider", notifier.Provider()))

	// 10. Repository / 实时通道 / Service（依赖注入）
	userRepo := repository.NewUserRepository(db)
	matchRepo := repository.NewMatchRepository(db)
	meetingRepo := repository.NewMeetingRepository(db)

	connManager := manager.NewConnectionManager()
	presence := svc.NewPresenceRegistry(connManager, userRepo, publisher)
	// 上次进程留下的在线标记全部作废
	presence.ResetPresence(ctx)

	authService := service.NewAuthService(userRepo, notifier, service.AuthOptions{
		Strict:     appCfg.IsProduction(),
		CodeExpire: smsCfg.CodeExpire,
	})
	verifier := service.NewSessionVerifier(userRepo, jwtCfg)
	userService := service.NewUserService(userRepo, presence, avatars)
	matchingService := service.NewMatchingService(matchRepo, meetingRepo, userRepo, presence, publisher)
	mapService := service.NewMapService(userRepo, presence)
	realtimeService := svc.NewRealtimeService(presence, userService)

	// 11. Handler 与路由
	realtimeCfg := config.DefaultRealtimeConfig()
	healthChecks := map[string]v1.HealthCheck{
		"mysql": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if redisClient != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	gin.SetMode(appCfg.GinMode)
	r := router.InitRouter(router.Handlers{
		Auth:     v1.NewAuthHandler(authService),
		User:     v1.NewUserHandler(userService),
		Matching: v1.NewMatchingHandler(matchingService),
		Map:      v1.NewMapHandler(mapService),
		Health:   v1.NewHealthHandler(healthChecks),
		WS:       handler.NewWSHandler(authService, presence, realtimeService, realtimeCfg),
	}, router.Options{
		Verifier:       verifier,
		Redis:          redisClient,
		RateLimit:      config.DefaultRateLimitConfig(),
		AllowedOrigins: realtimeCfg.AllowedOrigins,
		RequestTimeout: appCfg.RequestTimeout,
	})

	// 12. 后台任务：过期匹配清扫与心跳广播
	bgCtx, stopBackground := context.WithCancel(ctx)
	defer stopBackground()
	go service.RunMatchSweeper(bgCtx, matchingService, appCfg.MatchSweepPeriod)
	go presence.RunHeartbeat(bgCtx, realtimeCfg.PingInterval)

	// 13. 启动 HTTP 服务
	srv := server.New(appCfg, r)
	go func() {
		logger.Info(ctx, "Matching 服务启动中", logger.String("addr", srv.Addr()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal(ctx, "服务器启动失败", logger.ErrorField("error", err))
		}
	}()

	// 14. 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info(ctx, "收到关闭信号，开始优雅停机...",
		logger.String("signal", sig.String()),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
	defer cancel()

	// 先停后台任务并断开所有 WebSocket，再等待进行中的 HTTP 请求
	stopBackground()
	presence.Shutdown(shutdownCtx)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "服务器强制关闭", logger.ErrorField("error", err))
	}

	logger.Info(ctx, "Matching 服务已退出")
}
