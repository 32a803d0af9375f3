// Package sms 验证码投递。投递可能失败，失败原因通过哨兵错误区分，重试由调用方决定。
package sms

import (
	"context"
	"errors"
	"regexp"

	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"

	"go.uber.org/zap"
)

var (
	// ErrNotConfigured 未配置投递通道
	ErrNotConfigured = errors.New("sms: provider not configured")
	// ErrInvalidDestination 号码格式不合法或被运营商拒绝
	ErrInvalidDestination = errors.New("sms: invalid destination")
	// ErrUnavailable 通道熔断或暂不可用
	ErrUnavailable = errors.New("sms: provider unavailable")
)

// e164 国际格式：+ 开头，8-15 位数字
var e164 = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// Notifier 验证码投递接口
type Notifier interface {
	Send(ctx context.Context, phone, message string) error
	Provider() string
}

// ValidPhone 号码是否为 E.164 格式
func ValidPhone(phone string) bool {
	return e164.MatchString(phone)
}

// NewFromConfig 按 Provider 构建通道，外层包熔断。
// 未知 provider 或缺少凭证时返回 unconfigured 通道，调用时报 ErrNotConfigured。
func NewFromConfig(cfg config.SMSConfig, l *zap.Logger) Notifier {
	var n Notifier
	switch cfg.Provider {
	case config.SMSProviderTwilio:
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" || cfg.TwilioFrom == "" {
			logger.Warn(context.Background(), "Twilio 凭证未配置，验证码将无法投递")
			n = unconfigured{provider: cfg.Provider}
			break
		}
		n = NewTwilioNotifier(cfg)
	case config.SMSProviderSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPGateway == "" {
			logger.Warn(context.Background(), "SMTP 短信网关未配置，验证码将无法投递")
			n = unconfigured{provider: cfg.Provider}
			break
		}
		n = NewSMTPNotifier(cfg)
	case config.SMSProviderLog, "":
		return NewLogNotifier(l)
	default:
		n = unconfigured{provider: cfg.Provider}
	}
	return NewBreakerNotifier(n, cfg)
}

type unconfigured struct {
	provider string
}

func (u unconfigured) Send(context.Context, string, string) error { return ErrNotConfigured }
func (u unconfigured) Provider() string                            { return u.provider }
