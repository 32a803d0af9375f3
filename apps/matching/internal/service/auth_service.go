package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/sms"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"

	"golang.org/x/crypto/bcrypt"
)

var (
	nowFunc = time.Now

	// generateCode 6 位数字验证码
	generateCode = func() (string, error) {
		n, err := rand.Int(rand.Reader, big.NewInt(1000000))
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%06d", n.Int64()), nil
	}

	// codeHashCost 验证码哈希强度
	codeHashCost = bcrypt.DefaultCost
)

const smsTemplate = "Your verification code for MatchApp is: %s. This code will expire in 10 minutes. Do not share this code with anyone."

// AuthOptions 认证服务参数
type AuthOptions struct {
	// Strict 严格模式：投递失败时回滚并返回错误
	Strict     bool
	CodeExpire time.Duration
}

// authServiceImpl 认证服务实现
type authServiceImpl struct {
	userRepo repository.IUserRepository
	notifier sms.Notifier
	opts     AuthOptions
}

// NewAuthService 创建认证服务实例
func NewAuthService(userRepo repository.IUserRepository, notifier sms.Notifier, opts AuthOptions) AuthService {
	if opts.CodeExpire <= 0 {
		opts.CodeExpire = 10 * time.Minute
	}
	return &authServiceImpl{
		userRepo: userRepo,
		notifier: notifier,
		opts:     opts,
	}
}

// Register 注册：同一手机号只保留一个待验证用户，一次只有一个有效验证码
func (s *authServiceImpl) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.CodeIssuedResponse, error) {
	// 1. 已验证用户不允许重复注册
	existing, err := s.userRepo.GetByPhone(ctx, req.PhoneNumber)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, internalError(ctx, "注册查询手机号", err)
	}
	if existing != nil && existing.SmsVerified {
		return nil, bizerr.New(consts.CodeUserAlreadyExist)
	}

	// 2. 刷新待验证用户，或创建新用户
	isNew := false
	user := existing
	if user != nil {
		ok, err := s.userRepo.RefreshPending(ctx, user.ID, req.Name, req.Gender, req.Address)
		if err != nil {
			return nil, internalError(ctx, "刷新待验证用户", err)
		}
		if !ok {
			// 期间已完成验证
			return nil, bizerr.New(consts.CodeUserAlreadyExist)
		}
		user.Name, user.Gender, user.Address = req.Name, req.Gender, req.Address
	} else {
		user = &model.User{
			ID:          util.GenIDString(),
			Name:        req.Name,
			PhoneNumber: req.PhoneNumber,
			Gender:      req.Gender,
			Address:     req.Address,
			LastSeen:    nowFunc(),
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			if !errors.Is(err, repository.ErrDuplicateKey) {
				return nil, internalError(ctx, "创建用户", err)
			}
			// 并发注册同一手机号，以先写入者为准
			user, err = s.userRepo.GetByPhone(ctx, req.PhoneNumber)
			if err != nil {
				return nil, internalError(ctx, "注册并发回读", err)
			}
			if user.SmsVerified {
				return nil, bizerr.New(consts.CodeUserAlreadyExist)
			}
		} else {
			isNew = true
		}
	}

	// 3. 下发验证码，严格模式下失败回滚
	rollback := func(rbCtx context.Context) error {
		if isNew {
			return s.userRepo.DeleteUnverified(rbCtx, user.ID)
		}
		return s.userRepo.ClearVerifyCode(rbCtx, user.ID)
	}
	if err := s.issueCode(ctx, user, rollback); err != nil {
		return nil, err
	}

	logger.Info(ctx, "注册验证码已下发",
		logger.String("user_id", user.ID),
		logger.String("phone", util.MaskPhone(user.PhoneNumber)),
		logger.Bool("is_new", isNew),
	)

	return &dto.CodeIssuedResponse{
		Message:              "Verification code sent to your phone",
		UserID:               user.ID,
		PhoneNumber:          user.PhoneNumber,
		IsNewUser:            isNew,
		RequiresVerification: true,
	}, nil
}

// Login 登录只对已验证用户下发验证码
func (s *authServiceImpl) Login(ctx context.Context, req *dto.LoginRequest) (*dto.CodeIssuedResponse, error) {
	user, err := s.userRepo.GetByPhone(ctx, req.PhoneNumber)
	if err != nil {
		return nil, notFoundOr(ctx, "登录查询手机号", err, consts.CodeUserNotRegistered)
	}
	if !user.SmsVerified {
		return nil, bizerr.New(consts.CodePhoneNotVerified)
	}

	rollback := func(rbCtx context.Context) error {
		return s.userRepo.ClearVerifyCode(rbCtx, user.ID)
	}
	if err := s.issueCode(ctx, user, rollback); err != nil {
		return nil, err
	}

	return &dto.CodeIssuedResponse{
		Message:              "Verification code sent to your phone",
		UserID:               user.ID,
		PhoneNumber:          user.PhoneNumber,
		IsNewUser:            false,
		RequiresVerification: true,
	}, nil
}

// issueCode 生成、存储并投递验证码
func (s *authServiceImpl) issueCode(ctx context.Context, user *model.User, rollback func(context.Context) error) error {
	code, err := generateCode()
	if err != nil {
		return internalError(ctx, "生成验证码", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), codeHashCost)
	if err != nil {
		return internalError(ctx, "验证码哈希", err)
	}
	if err := s.userRepo.SetVerifyCode(ctx, user.ID, string(hash), nowFunc().Add(s.opts.CodeExpire)); err != nil {
		return internalError(ctx, "保存验证码", err)
	}

	sendErr := s.notifier.Send(ctx, user.PhoneNumber, fmt.Sprintf(smsTemplate, code))
	if sendErr == nil {
		return nil
	}

	if !s.opts.Strict {
		logger.Warn(ctx, "验证码投递失败，非严格模式继续",
			logger.String("user_id", user.ID),
			logger.String("phone", util.MaskPhone(user.PhoneNumber)),
			logger.String("provider", s.notifier.Provider()),
			logger.ErrorField("error", sendErr),
		)
		return nil
	}

	// 严格模式：回滚本次写入，请求 ctx 可能已超时，单独给回滚留时间
	rbCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := rollback(rbCtx); err != nil {
		logger.Error(ctx, "验证码投递失败后回滚失败",
			logger.String("user_id", user.ID),
			logger.ErrorField("error", err),
		)
	}
	logger.Error(ctx, "验证码投递失败",
		logger.String("user_id", user.ID),
		logger.String("phone", util.MaskPhone(user.PhoneNumber)),
		logger.String("provider", s.notifier.Provider()),
		logger.ErrorField("error", sendErr),
	)
	return bizerr.Wrap(smsErrorCode(sendErr), sendErr)
}

// consumeCode 校验并消费验证码
// forLogin=false 为注册验证，已验证用户返回 AlreadyVerified；
// forLogin=true 为登录验证，未验证用户返回 PhoneNotVerified
func (s *authServiceImpl) consumeCode(ctx context.Context, userID, code string, forLogin bool) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "验证查询用户", err, consts.CodeUserNotFound)
	}

	// 1. 状态校验
	if !forLogin && user.SmsVerified {
		return nil, bizerr.New(consts.CodeAlreadyVerified)
	}
	if forLogin && !user.SmsVerified {
		return nil, bizerr.New(consts.CodePhoneNotVerified)
	}

	// 2. 验证码比对
	if user.SmsCode == nil || *user.SmsCode == "" {
		return nil, bizerr.New(consts.CodeVerifyCodeError)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.SmsCode), []byte(code)); err != nil {
		return nil, bizerr.New(consts.CodeVerifyCodeError)
	}
	if user.SmsCodeExpiry == nil || !nowFunc().Before(*user.SmsCodeExpiry) {
		return nil, bizerr.New(consts.CodeVerifyCodeExpire)
	}

	// 3. 以读到的哈希做条件消费，并发提交只有一个成功
	ok, err := s.userRepo.ConsumeVerifyCode(ctx, user.ID, *user.SmsCode)
	if err != nil {
		return nil, internalError(ctx, "消费验证码", err)
	}
	if !ok {
		return nil, bizerr.New(consts.CodeVerifyCodeError)
	}

	user.SmsVerified = true
	user.SmsCode = nil
	user.SmsCodeExpiry = nil
	return user, nil
}

func (s *authServiceImpl) VerifyRegistration(ctx context.Context, req *dto.VerifyCodeRequest) (*dto.VerifyRegistrationResponse, error) {
	user, err := s.consumeCode(ctx, req.UserID, req.Code, false)
	if err != nil {
		return nil, err
	}
	access, refresh, err := util.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, internalError(ctx, "签发令牌", err)
	}

	logger.Info(ctx, "注册验证成功", logger.String("user_id", user.ID))
	return &dto.VerifyRegistrationResponse{
		Message:                "Phone number verified successfully",
		Token:                  access,
		RefreshToken:           refresh,
		IsRegistrationComplete: true,
		User:                   dto.ConvertSelfInfo(user),
	}, nil
}

func (s *authServiceImpl) VerifyLogin(ctx context.Context, req *dto.VerifyCodeRequest) (*dto.VerifyLoginResponse, error) {
	user, err := s.consumeCode(ctx, req.UserID, req.Code, true)
	if err != nil {
		return nil, err
	}
	access, refresh, err := util.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, internalError(ctx, "签发令牌", err)
	}

	logger.Info(ctx, "登录验证成功", logger.String("user_id", user.ID))
	return &dto.VerifyLoginResponse{
		Message:         "Login successful",
		Token:           access,
		RefreshToken:    refresh,
		IsLoginComplete: true,
		User:            dto.ConvertSelfInfo(user),
	}, nil
}

func (s *authServiceImpl) RefreshToken(ctx context.Context, req *dto.RefreshTokenRequest) (*dto.RefreshTokenResponse, error) {
	claims, err := util.ParseRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, bizerr.New(consts.CodeInvalidRefreshToken)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, bizerr.New(consts.CodeInvalidRefreshToken)
		}
		return nil, internalError(ctx, "刷新令牌查询用户", err)
	}
	if !user.SmsVerified {
		return nil, bizerr.New(consts.CodeInvalidRefreshToken)
	}

	access, refresh, err := util.GenerateTokenPair(user.ID)
	if err != nil {
		return nil, internalError(ctx, "签发令牌", err)
	}
	return &dto.RefreshTokenResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         dto.ConvertSelfInfo(user),
	}, nil
}

func (s *authServiceImpl) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if token == "" {
		return nil, bizerr.New(consts.CodeUnauthorized)
	}
	claims, err := util.ParseToken(token)
	if err != nil {
		return nil, bizerr.New(consts.CodeInvalidToken)
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, bizerr.New(consts.CodeInvalidToken)
		}
		return nil, internalError(ctx, "鉴权查询用户", err)
	}
	if !user.SmsVerified {
		return nil, bizerr.New(consts.CodeSessionUnverified)
	}
	return user, nil
}

func (s *authServiceImpl) Me(ctx context.Context, userID string) (*dto.MeResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询当前用户", err, consts.CodeUserNotFound)
	}
	return &dto.MeResponse{User: dto.ConvertSelfInfo(user)}, nil
}
