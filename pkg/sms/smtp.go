package sms

import (
	"context"
	"fmt"
	"strings"

	"github.com/sudo-enjoy/matching-app-be/config"

	"gopkg.in/gomail.v2"
)

// SMTPNotifier 邮件转短信网关：收件人为 {号码数字}@{gateway}
type SMTPNotifier struct {
	dialer  *gomail.Dialer
	from    string
	gateway string
}

func NewSMTPNotifier(cfg config.SMSConfig) *SMTPNotifier {
	return &SMTPNotifier{
		dialer:  gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		from:    cfg.SMTPFrom,
		gateway: cfg.SMTPGateway,
	}
}

// GatewayAddress 号码转为网关邮箱地址
func GatewayAddress(phone, gateway string) string {
	return strings.TrimPrefix(phone, "+") + "@" + gateway
}

// Send gomail 不支持 ctx，这里只在发送前检查取消
func (n *SMTPNotifier) Send(ctx context.Context, phone, message string) error {
	if !ValidPhone(phone) {
		return ErrInvalidDestination
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.from)
	m.SetHeader("To", GatewayAddress(phone, n.gateway))
	m.SetHeader("Subject", "Verification")
	m.SetBody("text/plain", message)

	if err := n.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("sms: smtp send: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) Provider() string { return config.SMSProviderSMTP }
