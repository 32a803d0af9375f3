package config

import (
	"errors"
	"strings"
	"time"
)

// DevJWTSecret 未配置 JWT_SECRET 时使用的开发密钥，生产环境拒绝启动
const DevJWTSecret = "dev-secret-change-me"

// 生产环境 HS256 密钥最短字节数
const minProductionSecretLen = 32

var ErrInsecureJWTSecret = errors.New("JWT_SECRET must be set to a random value of at least 32 bytes in production")

// JWTConfig 令牌配置
type JWTConfig struct {
	Secret           string        `json:"secret" yaml:"secret"`
	AccessExpire     time.Duration `json:"accessExpire" yaml:"accessExpire"`         // 访问令牌 7 天
	RefreshExpire    time.Duration `json:"refreshExpire" yaml:"refreshExpire"`       // 刷新令牌 30 天
	Issuer           string        `json:"issuer" yaml:"issuer"`
	SessionCacheSize int           `json:"sessionCacheSize" yaml:"sessionCacheSize"` // 已验证用户缓存条数
	SessionCacheTTL  time.Duration `json:"sessionCacheTTL" yaml:"sessionCacheTTL"`
}

func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:           getEnv("JWT_SECRET", DevJWTSecret),
		AccessExpire:     getEnvDuration("JWT_EXPIRE", 7*24*time.Hour),
		RefreshExpire:    getEnvDuration("JWT_REFRESH_EXPIRE", 30*24*time.Hour),
		Issuer:           getEnv("JWT_ISSUER", "matching-app"),
		SessionCacheSize: getEnvInt("SESSION_CACHE_SIZE", 10000),
		SessionCacheTTL:  getEnvDuration("SESSION_CACHE_TTL", time.Minute),
	}
}

// CheckSecret 生产环境不允许空密钥、开发默认密钥或过短的密钥
func (c JWTConfig) CheckSecret(production bool) error {
	if !production {
		return nil
	}
	secret := strings.TrimSpace(c.Secret)
	if secret == "" || secret == DevJWTSecret || len(secret) < minProductionSecretLen {
		return ErrInsecureJWTSecret
	}
	return nil
}
