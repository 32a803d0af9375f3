package svc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/manager"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

const (
	defaultShareDuration = 5 * time.Minute
	minShareDuration     = time.Second
	maxShareDuration     = time.Hour
	shareTimerKeyPrefix  = "share:"
	roomIDMaxLen         = 128
	chatMessageMaxLen    = 1000
)

// 协议层错误码（error 帧内使用，不是 HTTP 状态码）
const (
	ErrCodeInvalidFrame    = "INVALID_FRAME"
	ErrCodeUnsupported     = "UNSUPPORTED_TYPE"
	ErrCodeInvalidPayload  = "INVALID_PAYLOAD"
	ErrCodeInvalidLocation = "INVALID_LOCATION"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

var (
	errRegistryClosed = errors.New("presence registry is shut down")
	errFrameType      = errors.New("type is required")
)

// ParseEnvelope 解析上行帧，type 缺失或 JSON 不合法返回错误
func ParseEnvelope(raw []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	envelope.Type = strings.TrimSpace(envelope.Type)
	if envelope.Type == "" {
		return nil, errFrameType
	}
	return &envelope, nil
}

// RealtimeService 实时协议处理。
// 同一连接的帧由其读循环串行调用 HandleFrame。
type RealtimeService struct {
	presence *PresenceRegistry
	users    service.UserService
}

// NewRealtimeService 创建协议处理器
func NewRealtimeService(presence *PresenceRegistry, users service.UserService) *RealtimeService {
	return &RealtimeService{
		presence: presence,
		users:    users,
	}
}

// HandleFrame 分发一帧上行消息
func (s *RealtimeService) HandleFrame(ctx context.Context, client *manager.Client, raw []byte) {
	if !client.Allow() {
		s.sendError(client, ErrCodeRateLimited, "too many messages")
		return
	}

	envelope, err := ParseEnvelope(raw)
	if err != nil {
		s.sendError(client, ErrCodeInvalidFrame, "invalid frame format")
		return
	}

	switch envelope.Type {
	case dto.EventUpdateLocation:
		s.onUpdateLocation(ctx, client, envelope.Data)
	case dto.EventJoinRoom:
		s.onRoom(client, envelope.Data, true)
	case dto.EventLeaveRoom:
		s.onRoom(client, envelope.Data, false)
	case dto.EventSendMessage:
		s.onSendMessage(client, envelope.Data)
	case dto.EventApproachingMeeting:
		s.onApproaching(client, envelope.Data)
	case dto.EventRequestLocationShare:
		s.onRequestShare(client, envelope.Data)
	case dto.EventShareLocation:
		s.onShareLocation(client, envelope.Data)
	case dto.EventPing:
		s.presence.send(client, dto.EventPong, dto.TimestampPayload{Timestamp: nowFunc().UnixMilli()})
	default:
		s.sendError(client, ErrCodeUnsupported, "unsupported message type")
	}
}

type locationData struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// toLocation 返回 0 表示合法，否则为错误码；(0,0) 是未设置哨兵，不能作为上报值
func (d locationData) toLocation() (dto.Location, int32) {
	if d.Lat == nil || d.Lng == nil {
		return dto.Location{}, consts.CodeInvalidCoordinate
	}
	loc := dto.Location{Lat: *d.Lat, Lng: *d.Lng}
	p := loc.ToPoint()
	if p.Validate() != nil {
		return dto.Location{}, consts.CodeInvalidCoordinate
	}
	if p.IsUnset() {
		return dto.Location{}, consts.CodeLocationUnset
	}
	return loc, 0
}

// onUpdateLocation 持久化位置并向其他人广播，成功后回执 locationUpdated
func (s *RealtimeService) onUpdateLocation(ctx context.Context, client *manager.Client, data json.RawMessage) {
	var in locationData
	if err := decodeData(data, &in); err != nil {
		s.sendError(client, ErrCodeInvalidPayload, "invalid location payload")
		return
	}
	loc, code := in.toLocation()
	if code != 0 {
		s.sendError(client, ErrCodeInvalidLocation, consts.GetMessage(code))
		return
	}

	saved, err := s.users.UpdateLocation(ctx, client.UserID(), loc)
	if err != nil {
		code := bizerr.Code(err)
		if consts.IsNonServerError(code) {
			s.sendError(client, ErrCodeInvalidLocation, consts.GetMessage(code))
			return
		}
		logger.Error(ctx, "实时位置更新失败",
			logger.String("user_id", client.UserID()),
			logger.ErrorField("error", err),
		)
		s.sendError(client, ErrCodeInternal, consts.GetMessage(consts.CodeInternalError))
		return
	}

	s.presence.send(client, dto.EventLocationUpdated, dto.LocationUpdatedPayload{
		Success:  true,
		Location: saved,
	})
}

type roomData struct {
	RoomID string `json:"roomId"`
}

// onRoom joinRoom / leaveRoom，参数可以是字符串或 {roomId}
func (s *RealtimeService) onRoom(client *manager.Client, data json.RawMessage, join bool) {
	roomID, ok := stringOrField(data, func(raw json.RawMessage) (string, error) {
		var in roomData
		err := json.Unmarshal(raw, &in)
		return in.RoomID, err
	})
	if !ok || len(roomID) > roomIDMaxLen {
		s.sendError(client, ErrCodeInvalidPayload, "roomId is required")
		return
	}
	if join {
		s.presence.conns.JoinRoom(roomID, client)
	} else {
		s.presence.conns.LeaveRoom(roomID, client)
	}
	logger.L().Debug("房间成员变化",
		logger.String("room_id", roomID),
		logger.String("user_id", client.UserID()),
		logger.Bool("join", join),
		logger.Int("room_size", s.presence.conns.RoomSize(roomID)),
	)
}

type sendMessageData struct {
	RoomID  string `json:"roomId"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

// onSendMessage 转发给房间内其他成员
func (s *RealtimeService) onSendMessage(client *manager.Client, data json.RawMessage) {
	var in sendMessageData
	if err := decodeData(data, &in); err != nil {
		s.sendError(client, ErrCodeInvalidPayload, "invalid message payload")
		return
	}
	text := in.Message
	if text == "" {
		text = in.Text
	}
	roomID := strings.TrimSpace(in.RoomID)
	if roomID == "" || strings.TrimSpace(text) == "" || len([]rune(text)) > chatMessageMaxLen {
		s.sendError(client, ErrCodeInvalidPayload, "roomId and message are required")
		return
	}

	s.presence.SendToRoom(roomID, dto.EventNewMessage, dto.NewMessagePayload{
		RoomID:     roomID,
		SenderID:   client.UserID(),
		SenderName: client.Name(),
		Message:    text,
		Timestamp:  nowFunc(),
	}, client)
}

type approachingData struct {
	MatchID      string  `json:"matchId"`
	TargetUserID string  `json:"targetUserId"`
	Distance     float64 `json:"distance"`
}

// onApproaching 向所有连接广播 userApproachingMeeting
func (s *RealtimeService) onApproaching(client *manager.Client, data json.RawMessage) {
	var in approachingData
	if err := decodeData(data, &in); err != nil || in.MatchID == "" {
		s.sendError(client, ErrCodeInvalidPayload, "matchId is required")
		return
	}
	if math.IsNaN(in.Distance) || in.Distance < 0 {
		in.Distance = 0
	}

	s.presence.Broadcast(dto.EventUserApproachingMeeting, dto.ApproachingPayload{
		MatchID:   in.MatchID,
		UserID:    client.UserID(),
		UserName:  client.Name(),
		Distance:  in.Distance,
		Timestamp: nowFunc(),
	}, "")
}

type targetData struct {
	TargetUserID string `json:"targetUserId"`
}

// onRequestShare 转发给目标当前连接，目标不在线时静默丢弃
func (s *RealtimeService) onRequestShare(client *manager.Client, data json.RawMessage) {
	targetID, ok := stringOrField(data, func(raw json.RawMessage) (string, error) {
		var in targetData
		err := json.Unmarshal(raw, &in)
		return in.TargetUserID, err
	})
	if !ok {
		s.sendError(client, ErrCodeInvalidPayload, "targetUserId is required")
		return
	}
	if targetID == client.UserID() {
		return
	}

	s.presence.EmitToUser(targetID, dto.EventLocationShareRequest, dto.LocationShareRequestPayload{
		RequesterID:   client.UserID(),
		RequesterName: client.Name(),
	})
}

type shareLocationData struct {
	TargetUserID string          `json:"targetUserId"`
	Location     locationData    `json:"location"`
	Duration     json.RawMessage `json:"duration"`
	DurationMs   json.RawMessage `json:"durationMs"`
}

// onShareLocation 发送 locationShared，并在到期时通知 locationShareExpired。
// 到期定时器归发送方连接所有，连接关闭即取消。
func (s *RealtimeService) onShareLocation(client *manager.Client, data json.RawMessage) {
	var in shareLocationData
	if err := decodeData(data, &in); err != nil || strings.TrimSpace(in.TargetUserID) == "" {
		s.sendError(client, ErrCodeInvalidPayload, "targetUserId is required")
		return
	}
	loc, code := in.Location.toLocation()
	if code != 0 {
		s.sendError(client, ErrCodeInvalidLocation, consts.GetMessage(code))
		return
	}

	targetID := strings.TrimSpace(in.TargetUserID)
	d := shareDuration(in.Duration, in.DurationMs)
	s.presence.EmitToUser(targetID, dto.EventLocationShared, dto.LocationSharedPayload{
		SenderID:   client.UserID(),
		SenderName: client.Name(),
		Location:   loc,
		ExpiresAt:  nowFunc().Add(d),
	})

	senderID := client.UserID()
	client.Schedule(shareTimerKeyPrefix+targetID, d, func() {
		s.presence.EmitToUser(targetID, dto.EventLocationShareExpired, dto.LocationShareExpiredPayload{
			SenderID: senderID,
		})
	})
}

// shareDuration 毫秒数，缺省 5 分钟，限制在 [1s, 1h]
func shareDuration(candidates ...json.RawMessage) time.Duration {
	for _, raw := range candidates {
		ms, ok := parseMillis(raw)
		if !ok {
			continue
		}
		d := time.Duration(ms * float64(time.Millisecond))
		if d < minShareDuration {
			return minShareDuration
		}
		if d > maxShareDuration {
			return maxShareDuration
		}
		return d
	}
	return defaultShareDuration
}

// parseMillis 接受数字或数字字符串
func parseMillis(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, !math.IsNaN(n) && !math.IsInf(n, 0)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// stringOrField data 为 JSON 字符串时直接使用，否则交给 field 从对象中取
func stringOrField(data json.RawMessage, field func(json.RawMessage) (string, error)) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return "", false
	}
	var value string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &value); err != nil {
			return "", false
		}
	} else {
		v, err := field(data)
		if err != nil {
			return "", false
		}
		value = v
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func decodeData(data json.RawMessage, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("data is required")
	}
	return json.Unmarshal(data, out)
}

// sendError 发送协议层错误帧，发送失败说明连接已不可写，直接关闭
func (s *RealtimeService) sendError(client *manager.Client, code, message string) {
	if !s.presence.send(client, dto.EventError, dto.ErrorPayload{Code: code, Message: message}) {
		client.Close()
	}
}
