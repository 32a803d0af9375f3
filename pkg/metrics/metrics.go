// Package metrics 进程内 Prometheus 指标，由 /metrics 暴露。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "matching"

var (
	// HTTPRequestsTotal 按路由模板统计请求数
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP 请求总数",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration 请求耗时
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP 请求耗时",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	// OnlineConnections 当前 WebSocket 在线连接数
	OnlineConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_connections",
		Help:      "当前在线连接数",
	})

	// RealtimeFramesDropped 写队列满或连接已关闭导致的丢帧
	RealtimeFramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "realtime_frames_dropped_total",
		Help:      "下行丢帧数",
	}, []string{"event"})

	// MatchTransitions 匹配状态迁移
	MatchTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "match_transitions_total",
		Help:      "匹配状态迁移次数",
	}, []string{"status"})

	// MeetingsCompleted 双方确认见面
	MeetingsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "meetings_completed_total",
		Help:      "双方确认的见面次数",
	})

	// SMSDeliveries 验证码投递结果
	SMSDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sms_deliveries_total",
		Help:      "验证码投递次数",
	}, []string{"provider", "result"})
)
