package util

import (
	"errors"
	"sync"
	"time"

	"github.com/sudo-enjoy/matching-app-be/config"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenInvalid 签名错误、过期或格式不对
	ErrTokenInvalid = errors.New("token is invalid")
	// ErrTokenType 访问令牌与刷新令牌混用
	ErrTokenType = errors.New("token type mismatch")
)

// Claims 令牌载荷
type Claims struct {
	UserID string `json:"userId"`
	Type   string `json:"type,omitempty"` // 刷新令牌为 refresh，访问令牌为空
	jwt.RegisteredClaims
}

var (
	jwtMu  sync.RWMutex
	jwtCfg = config.DefaultJWTConfig()
)

// InitJWT 设置签名密钥与有效期，进程启动时调用
func InitJWT(cfg config.JWTConfig) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtCfg = cfg
}

func currentJWTConfig() config.JWTConfig {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	return jwtCfg
}

// GenerateToken 签发访问令牌（默认 7 天）
func GenerateToken(userID string) (string, error) {
	cfg := currentJWTConfig()
	return sign(cfg, userID, "", cfg.AccessExpire)
}

// GenerateRefreshToken 签发刷新令牌（默认 30 天）
func GenerateRefreshToken(userID string) (string, error) {
	cfg := currentJWTConfig()
	return sign(cfg, userID, TokenTypeRefresh, cfg.RefreshExpire)
}

// GenerateTokenPair 同时签发访问令牌与刷新令牌
func GenerateTokenPair(userID string) (access, refresh string, err error) {
	if access, err = GenerateToken(userID); err != nil {
		return "", "", err
	}
	if refresh, err = GenerateRefreshToken(userID); err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// ParseToken 解析访问令牌，刷新令牌会被拒绝
func ParseToken(tokenString string) (*Claims, error) {
	claims, err := parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type == TokenTypeRefresh {
		return nil, ErrTokenType
	}
	return claims, nil
}

// ParseRefreshToken 解析刷新令牌，访问令牌会被拒绝
func ParseRefreshToken(tokenString string) (*Claims, error) {
	claims, err := parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Type != TokenTypeRefresh {
		return nil, ErrTokenType
	}
	return claims, nil
}

func sign(cfg config.JWTConfig, userID, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewUUID(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

func parse(tokenString string) (*Claims, error) {
	cfg := currentJWTConfig()
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return []byte(cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.UserID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
