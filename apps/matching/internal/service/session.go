package service

import (
	"context"
	"errors"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// sessionVerifierImpl 只缓存正向结果，未验证/不存在的用户每次都回源
type sessionVerifierImpl struct {
	userRepo repository.IUserRepository
	cache    *expirable.LRU[string, struct{}]
}

// NewSessionVerifier 创建会话校验器
func NewSessionVerifier(userRepo repository.IUserRepository, cfg config.JWTConfig) SessionVerifier {
	size := cfg.SessionCacheSize
	if size <= 0 {
		size = 10000
	}
	ttl := cfg.SessionCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &sessionVerifierImpl{
		userRepo: userRepo,
		cache:    expirable.NewLRU[string, struct{}](size, nil, ttl),
	}
}

func (v *sessionVerifierImpl) VerifySession(ctx context.Context, userID string) error {
	if _, ok := v.cache.Get(userID); ok {
		return nil
	}

	user, err := v.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return bizerr.New(consts.CodeInvalidToken)
		}
		return internalError(ctx, "会话校验", err)
	}
	if !user.SmsVerified {
		return bizerr.New(consts.CodeSessionUnverified)
	}

	v.cache.Add(userID, struct{}{})
	return nil
}

func (v *sessionVerifierImpl) Invalidate(userID string) {
	v.cache.Remove(userID)
}
