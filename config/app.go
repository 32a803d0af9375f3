package config

import (
	"strings"
	"time"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

// AppConfig 服务运行参数
type AppConfig struct {
	Env               string        `json:"env" yaml:"env"`                             // production 为严格模式
	Addr              string        `json:"addr" yaml:"addr"`                           // HTTP 监听地址
	GinMode           string        `json:"ginMode" yaml:"ginMode"`                     // gin 运行模式
	NodeID            int64         `json:"nodeId" yaml:"nodeId"`                       // 雪花算法节点号
	RequestTimeout    time.Duration `json:"requestTimeout" yaml:"requestTimeout"`       // 单请求超时
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"` // 读请求头超时
	ReadTimeout       time.Duration `json:"readTimeout" yaml:"readTimeout"`
	WriteTimeout      time.Duration `json:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `json:"shutdownTimeout" yaml:"shutdownTimeout"`
	MatchSweepPeriod  time.Duration `json:"matchSweepPeriod" yaml:"matchSweepPeriod"` // 过期匹配清扫周期，0 关闭
}

// DefaultAppConfig 从环境变量读取服务配置
func DefaultAppConfig() AppConfig {
	addr := getEnv("APP_ADDR", "")
	if addr == "" {
		addr = ":" + getEnv("PORT", "5000")
	}
	return AppConfig{
		Env:               strings.ToLower(getEnv("APP_ENV", EnvDevelopment)),
		Addr:              addr,
		GinMode:           getEnv("GIN_MODE", "release"),
		NodeID:            getEnvInt64("NODE_ID", 1),
		RequestTimeout:    getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      getEnvDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       60 * time.Second,
		ShutdownTimeout:   15 * time.Second,
		MatchSweepPeriod:  getEnvDuration("MATCH_SWEEP_INTERVAL", 15*time.Minute),
	}
}

// IsProduction 严格模式：短信投递失败时回滚
func (c AppConfig) IsProduction() bool {
	return c.Env == EnvProduction
}

// RateLimitConfig 限流参数
type RateLimitConfig struct {
	IPRate       float64       `json:"ipRate" yaml:"ipRate"`             // 每秒令牌数
	IPBurst      int           `json:"ipBurst" yaml:"ipBurst"`           // 桶容量
	SMSPerWindow int           `json:"smsPerWindow" yaml:"smsPerWindow"` // (IP, 手机号) 窗口内最大次数
	SMSWindow    time.Duration `json:"smsWindow" yaml:"smsWindow"`
}

// DefaultRateLimitConfig 默认 15 分钟 100 次，验证码 1 小时 5 次
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		IPRate:       getEnvFloat("RATE_LIMIT_IP_RATE", 100.0/(15*60)),
		IPBurst:      getEnvInt("RATE_LIMIT_IP_BURST", 100),
		SMSPerWindow: getEnvInt("RATE_LIMIT_SMS_MAX", 5),
		SMSWindow:    getEnvDuration("RATE_LIMIT_SMS_WINDOW", time.Hour),
	}
}

// RealtimeConfig WebSocket 通道参数
type RealtimeConfig struct {
	PingInterval   time.Duration `json:"pingInterval" yaml:"pingInterval"`     // 服务端 ping 广播周期
	SendQueueSize  int           `json:"sendQueueSize" yaml:"sendQueueSize"`   // 单连接写队列
	ReadLimit      int64         `json:"readLimit" yaml:"readLimit"`           // 单帧最大字节
	InboundRate    float64       `json:"inboundRate" yaml:"inboundRate"`       // 上行帧速率
	InboundBurst   int           `json:"inboundBurst" yaml:"inboundBurst"`     // 上行突发
	AllowedOrigins []string      `json:"allowedOrigins" yaml:"allowedOrigins"` // 为空表示不校验
}

func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		PingInterval:   getEnvDuration("WS_PING_INTERVAL", 30*time.Second),
		SendQueueSize:  getEnvInt("WS_SEND_QUEUE", 64),
		ReadLimit:      getEnvInt64("WS_READ_LIMIT", 64*1024),
		InboundRate:    getEnvFloat("WS_INBOUND_RATE", 20),
		InboundBurst:   getEnvInt("WS_INBOUND_BURST", 40),
		AllowedOrigins: getEnvList("CORS_ORIGINS", nil),
	}
}
