package config

import "time"

const (
	SMSProviderLog    = "log"
	SMSProviderTwilio = "twilio"
	SMSProviderSMTP   = "smtp"
)

// SMSConfig 验证码投递配置
type SMSConfig struct {
	Provider   string        `json:"provider" yaml:"provider"` // log/twilio/smtp
	CodeExpire time.Duration `json:"codeExpire" yaml:"codeExpire"`
	Timeout    time.Duration `json:"timeout" yaml:"timeout"`

	// Twilio
	TwilioAccountSID string `json:"twilioAccountSid" yaml:"twilioAccountSid"`
	TwilioAuthToken  string `json:"twilioAuthToken" yaml:"twilioAuthToken"`
	TwilioFrom       string `json:"twilioFrom" yaml:"twilioFrom"`
	TwilioBaseURL    string `json:"twilioBaseUrl" yaml:"twilioBaseUrl"`

	// 邮件转短信网关
	SMTPHost     string `json:"smtpHost" yaml:"smtpHost"`
	SMTPPort     int    `json:"smtpPort" yaml:"smtpPort"`
	SMTPUser     string `json:"smtpUser" yaml:"smtpUser"`
	SMTPPassword string `json:"smtpPassword" yaml:"smtpPassword"`
	SMTPFrom     string `json:"smtpFrom" yaml:"smtpFrom"`
	SMTPGateway  string `json:"smtpGateway" yaml:"smtpGateway"` // 例如 sms.example.com，收件人为 {digits}@gateway

	// 熔断
	BreakerMaxFailures uint32        `json:"breakerMaxFailures" yaml:"breakerMaxFailures"`
	BreakerOpenTimeout time.Duration `json:"breakerOpenTimeout" yaml:"breakerOpenTimeout"`
}

func DefaultSMSConfig() SMSConfig {
	return SMSConfig{
		Provider:   getEnv("SMS_PROVIDER", SMSProviderLog),
		CodeExpire: getEnvDuration("SMS_CODE_EXPIRE", 10*time.Minute),
		Timeout:    getEnvDuration("SMS_TIMEOUT", 10*time.Second),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFrom:       getEnv("TWILIO_PHONE_NUMBER", ""),
		TwilioBaseURL:    getEnv("TWILIO_BASE_URL", "https://api.twilio.com"),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
		SMTPGateway:  getEnv("SMTP_SMS_GATEWAY", ""),

		BreakerMaxFailures: uint32(getEnvInt("SMS_BREAKER_FAILURES", 5)),
		BreakerOpenTimeout: getEnvDuration("SMS_BREAKER_TIMEOUT", 30*time.Second),
	}
}
