package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/manager"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/svc"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

// WSHandler 处理 /ws 接入。
// 职责边界：
//   - HTTP 层取 token、鉴权、升级；
//   - PresenceRegistry 维护在线状态；
//   - RealtimeService 处理上行帧。
type WSHandler struct {
	authSvc  service.AuthService
	presence *svc.PresenceRegistry
	protocol *svc.RealtimeService
	cfg      config.RealtimeConfig
	upgrader websocket.Upgrader
}

// NewWSHandler 创建 WebSocket 入口处理器
func NewWSHandler(authSvc service.AuthService, presence *svc.PresenceRegistry, protocol *svc.RealtimeService, cfg config.RealtimeConfig) *WSHandler {
	h := &WSHandler{
		authSvc:  authSvc,
		presence: presence,
		protocol: protocol,
		cfg:      cfg,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

// ServeWS 处理握手与接入。
// 1. 从 query 或 Authorization 头读取 token
// 2. 校验为已验证用户的访问令牌，失败时升级前返回 401
// 3. 构建连接级 context（trace/user/ip）
// 4. 升级并进入连接主循环
func (h *WSHandler) ServeWS(c *gin.Context) {
	token := tokenFromRequest(c)
	if token == "" {
		result.Fail(c, consts.CodeUnauthorized)
		return
	}

	user, err := h.authSvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		code := bizerr.Code(err)
		if !consts.IsNonServerError(code) {
			result.FailWithError(c, consts.CodeInternalError, err)
			return
		}
		result.Fail(c, code)
		return
	}

	connCtx := context.Background()
	if traceID := ctxmeta.TraceIDFromGin(c); traceID != "" {
		connCtx = ctxmeta.WithTraceID(connCtx, traceID)
	}
	connCtx = ctxmeta.WithUserID(connCtx, user.ID)
	connCtx = ctxmeta.WithClientIP(connCtx, c.ClientIP())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(connCtx, "WebSocket 升级失败", logger.ErrorField("error", err))
		return
	}

	h.handleConnection(connCtx, conn, user)
}

// handleConnection 单个连接的完整生命周期，阻塞到连接断开
func (h *WSHandler) handleConnection(ctx context.Context, conn *websocket.Conn, user *model.User) {
	client := manager.NewClient(conn, util.GenIDString(), user.ID, user.Name, manager.Options{
		SendQueueSize: h.cfg.SendQueueSize,
		ReadLimit:     h.cfg.ReadLimit,
		InboundRate:   h.cfg.InboundRate,
		InboundBurst:  h.cfg.InboundBurst,
	})

	if err := h.presence.MarkOnline(ctx, client, user); err != nil {
		logger.Warn(ctx, "连接注册失败", logger.ErrorField("error", err))
		return
	}
	logger.Info(ctx, "WebSocket 连接已建立",
		logger.String("user_id", user.ID),
		logger.String("socket_id", client.ID()),
		logger.Int("online_count", h.presence.Connections().Count()),
	)

	client.Run(ctx, func(raw []byte) {
		h.protocol.HandleFrame(ctx, client, raw)
	}, func() {
		h.presence.MarkOffline(ctx, client)
		logger.Info(ctx, "WebSocket 连接已断开",
			logger.String("user_id", user.ID),
			logger.String("socket_id", client.ID()),
			logger.Int("online_count", h.presence.Connections().Count()),
		)
	})
}

// checkOrigin 未配置白名单或包含 * 时放行；没有 Origin 头的非浏览器客户端放行
func (h *WSHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.cfg.AllowedOrigins) == 0 {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func tokenFromRequest(c *gin.Context) string {
	if token := strings.TrimSpace(c.Query("token")); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
