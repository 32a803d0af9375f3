package event

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/ctxmeta"
)

// ==================== 领域事件定义 ====================

type Type string

const (
	TypeMatchRequested   Type = "match.requested"
	TypeMatchAccepted    Type = "match.accepted"
	TypeMatchRejected    Type = "match.rejected"
	TypeMatchExpired     Type = "match.expired"
	TypeMeetingConfirmed Type = "meeting.confirmed"
	TypeUserOnline       Type = "user.online"
	TypeUserOffline      Type = "user.offline"
)

// Event 写入 Kafka 的消息体，AggregateID 作为分区 key 保证同一聚合有序
type Event struct {
	Type        Type           `json:"type"`
	AggregateID string         `json:"aggregate_id"`
	Data        map[string]any `json:"data,omitempty"`

	// 元数据
	TraceID   string    `json:"trace_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Source    string    `json:"source,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ==================== 构造器函数（Builder） ====================

// BuildMatchRequested 新建匹配
func BuildMatchRequested(m *model.Match) Event {
	return Event{
		Type:        TypeMatchRequested,
		AggregateID: m.ID,
		Data: map[string]any{
			"requester_id":   m.RequesterID,
			"target_user_id": m.TargetUserID,
			"meeting_lat":    m.MeetingLat,
			"meeting_lng":    m.MeetingLng,
			"expires_at":     m.ExpiresAt,
		},
		Timestamp: time.Now(),
	}
}

// BuildMatchResolved 匹配进入终态
func BuildMatchResolved(m *model.Match, status string) Event {
	t := TypeMatchRejected
	switch status {
	case model.MatchStatusAccepted:
		t = TypeMatchAccepted
	case model.MatchStatusExpired:
		t = TypeMatchExpired
	}
	return Event{
		Type:        t,
		AggregateID: m.ID,
		Data: map[string]any{
			"requester_id":   m.RequesterID,
			"target_user_id": m.TargetUserID,
		},
		Timestamp: time.Now(),
	}
}

// BuildMatchesExpired 批量过期（清理任务）
func BuildMatchesExpired(count int64) Event {
	return Event{
		Type:      TypeMatchExpired,
		Data:      map[string]any{"count": count},
		Timestamp: time.Now(),
	}
}

// BuildMeetingConfirmed 会面确认，stamped 表示本次确认完成了双方见面
func BuildMeetingConfirmed(m *model.Meeting, confirmerID string, stamped bool) Event {
	return Event{
		Type:        TypeMeetingConfirmed,
		AggregateID: m.ID,
		Data: map[string]any{
			"match_id":       m.MatchID,
			"confirmed_by":   confirmerID,
			"both_confirmed": m.BothConfirmed,
			"completed":      stamped,
		},
		Timestamp: time.Now(),
	}
}

// BuildPresence 上线/离线
func BuildPresence(userID string, online bool) Event {
	t := TypeUserOffline
	if online {
		t = TypeUserOnline
	}
	return Event{
		Type:        t,
		AggregateID: userID,
		Timestamp:   time.Now(),
	}
}

// ==================== 链式方法 ====================

// WithContext 为事件添加 trace_id / user_id
func (e Event) WithContext(ctx context.Context) Event {
	if traceID := ctxmeta.TraceID(ctx); traceID != "" {
		e.TraceID = traceID
	}
	if userID := ctxmeta.UserID(ctx); userID != "" {
		e.UserID = userID
	}
	return e
}

// WithSource 设置事件来源
func (e Event) WithSource(source string) Event {
	e.Source = source
	return e
}
