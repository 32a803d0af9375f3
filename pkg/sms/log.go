package sms

import (
	"context"

	"github.com/sudo-enjoy/matching-app-be/pkg/util"

	"go.uber.org/zap"
)

// LogNotifier 开发环境使用：不外发，只记录投递动作
type LogNotifier struct {
	l *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogNotifier{l: l.Named("sms")}
}

// Send 日志中只出现脱敏号码，不输出短信正文
func (n *LogNotifier) Send(_ context.Context, phone, message string) error {
	if !ValidPhone(phone) {
		return ErrInvalidDestination
	}
	n.l.Info("验证码已模拟投递",
		zap.String("phone", util.MaskPhone(phone)),
		zap.Int("length", len(message)),
	)
	return nil
}

func (n *LogNotifier) Provider() string { return "log" }
