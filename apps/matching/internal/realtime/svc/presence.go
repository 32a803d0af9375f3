package svc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/event"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/manager"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/metrics"
)

// Envelope WebSocket 帧：{type, data}
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// MarshalEnvelope 组装下行帧，data=nil 时省略 data 字段
func MarshalEnvelope(msgType string, data any) ([]byte, error) {
	if data == nil {
		return json.Marshal(Envelope{Type: msgType})
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msgType, Data: raw})
}

var nowFunc = time.Now

// PresenceRegistry 在线状态与事件下发。
// 连接表在进程内，在线标记持久化在 users 表；进程启动与退出时都会清空持久化的在线标记。
type PresenceRegistry struct {
	conns     *manager.ConnectionManager
	userRepo  repository.IUserRepository
	publisher event.Publisher
}

var _ service.EventEmitter = (*PresenceRegistry)(nil)

// NewPresenceRegistry 创建在线状态注册表
func NewPresenceRegistry(conns *manager.ConnectionManager, userRepo repository.IUserRepository, publisher event.Publisher) *PresenceRegistry {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &PresenceRegistry{
		conns:     conns,
		userRepo:  userRepo,
		publisher: publisher,
	}
}

// Connections 底层连接表
func (p *PresenceRegistry) Connections() *manager.ConnectionManager {
	return p.conns
}

// MarkOnline 注册连接并持久化在线状态。
// 1. 注册，关闭被替换的旧连接
// 2. 写入 is_online / socket_id / last_seen
// 3. 向其他人广播 userOnline
func (p *PresenceRegistry) MarkOnline(ctx context.Context, client *manager.Client, user *model.User) error {
	replaced, ok := p.conns.Register(client)
	if !ok {
		client.Close()
		return errRegistryClosed
	}
	if replaced != nil {
		replaced.Close()
		logger.Info(ctx, "旧连接已被新连接替换",
			logger.String("user_id", client.UserID()),
			logger.String("old_socket_id", replaced.ID()),
		)
	}

	if err := p.userRepo.MarkOnline(ctx, client.UserID(), client.ID(), nowFunc()); err != nil {
		logger.Error(ctx, "持久化在线状态失败",
			logger.String("user_id", client.UserID()),
			logger.ErrorField("error", err),
		)
	}

	payload := dto.UserOnlinePayload{
		UserID:       user.ID,
		Name:         user.Name,
		ProfilePhoto: user.ProfilePhoto,
	}
	if user.HasLocation() {
		loc := dto.Location{Lat: user.Lat, Lng: user.Lng}
		payload.Location = &loc
	}
	p.Broadcast(dto.EventUserOnline, payload, client.UserID())
	event.PublishAsync(ctx, p.publisher, event.BuildPresence(client.UserID(), true))
	return nil
}

// MarkOffline 注销连接。
// 只有该连接仍是用户的当前连接时才持久化离线并广播 userOffline，
// 被替换的旧连接断开不影响新连接的在线状态。
func (p *PresenceRegistry) MarkOffline(ctx context.Context, client *manager.Client) {
	if !p.conns.Unregister(client) {
		return
	}

	at := nowFunc()
	cleared, err := p.userRepo.MarkOffline(ctx, client.UserID(), client.ID(), at)
	if err != nil {
		logger.Error(ctx, "持久化离线状态失败",
			logger.String("user_id", client.UserID()),
			logger.ErrorField("error", err),
		)
		return
	}
	if !cleared {
		return
	}

	p.Broadcast(dto.EventUserOffline, dto.UserOfflinePayload{
		UserID:   client.UserID(),
		LastSeen: at,
	}, client.UserID())
	event.PublishAsync(ctx, p.publisher, event.BuildPresence(client.UserID(), false))
}

// Lookup 用户当前连接，不在线返回 nil
func (p *PresenceRegistry) Lookup(userID string) *manager.Client {
	return p.conns.Lookup(userID)
}

// EmitToUser 发给用户当前连接，不在线返回 false，在线但队列满时丢帧并计数
func (p *PresenceRegistry) EmitToUser(userID, eventName string, data any) bool {
	msg, err := MarshalEnvelope(eventName, data)
	if err != nil {
		logger.L().Warn("下行帧序列化失败", logger.String("event", eventName), logger.ErrorField("error", err))
		return false
	}
	sent, online := p.conns.SendToUser(userID, msg)
	if online && !sent {
		metrics.RealtimeFramesDropped.WithLabelValues(eventName).Inc()
	}
	return sent
}

// Broadcast 发给所有连接，excludeUserID 非空时跳过该用户
func (p *PresenceRegistry) Broadcast(eventName string, data any, excludeUserID string) {
	msg, err := MarshalEnvelope(eventName, data)
	if err != nil {
		logger.L().Warn("广播帧序列化失败", logger.String("event", eventName), logger.ErrorField("error", err))
		return
	}
	p.conns.Broadcast(msg, excludeUserID)
}

// SendToRoom 房间内除 sender 外的成员
func (p *PresenceRegistry) SendToRoom(roomID, eventName string, data any, sender *manager.Client) int {
	msg, err := MarshalEnvelope(eventName, data)
	if err != nil {
		return 0
	}
	return p.conns.SendToRoom(roomID, msg, sender)
}

// RunHeartbeat 每 interval 向所有连接广播 ping，阻塞到 ctx 结束
func (p *PresenceRegistry) RunHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Broadcast(dto.EventPing, dto.TimestampPayload{Timestamp: nowFunc().UnixMilli()}, "")
		}
	}
}

// ResetPresence 把持久化的在线标记全部置为离线
func (p *PresenceRegistry) ResetPresence(ctx context.Context) {
	n, err := p.userRepo.ResetPresence(ctx, nowFunc())
	if err != nil {
		logger.Error(ctx, "重置在线状态失败", logger.ErrorField("error", err))
		return
	}
	if n > 0 {
		logger.Info(ctx, "已重置在线状态", logger.Int64("count", n))
	}
}

// Shutdown 关闭所有连接并重置在线状态
func (p *PresenceRegistry) Shutdown(ctx context.Context) {
	p.conns.Shutdown()
	p.ResetPresence(ctx)
}

// send 序列化并投递，队列满时丢帧并计数
func (p *PresenceRegistry) send(client *manager.Client, eventName string, data any) bool {
	msg, err := MarshalEnvelope(eventName, data)
	if err != nil {
		logger.L().Warn("下行帧序列化失败", logger.String("event", eventName), logger.ErrorField("error", err))
		return false
	}
	if !client.Enqueue(msg) {
		metrics.RealtimeFramesDropped.WithLabelValues(eventName).Inc()
		return false
	}
	return true
}
