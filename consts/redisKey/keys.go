package rediskey

import (
	"fmt"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// SMSRequestWindowTTL 验证码请求 (IP, 手机号) 计数窗口
	SMSRequestWindowTTL = 1 * time.Hour
)

// ==================== Key 构造函数 ====================

// SMSRequestKey 验证码请求计数 Key: auth:sms:1h:{ip}:{phone}
func SMSRequestKey(ip, phone string) string {
	return fmt.Sprintf("auth:sms:1h:%s:%s", ip, phone)
}

// IPBlacklistKey IP 黑名单 Key: gateway:blacklist:ips
func IPBlacklistKey() string {
	return "gateway:blacklist:ips"
}

// IPRateLimitKey IP 限流 Key: rate:limit:ip:{ip}
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}

// UserRateLimitKey 用户限流 Key: rate:limit:user:{user_id}
func UserRateLimitKey(userID string) string {
	return fmt.Sprintf("rate:limit:user:%s", userID)
}
