package service

import (
	"context"
	"testing"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/sms"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture(t *testing.T, strict bool) (*memStore, *fakeNotifier, AuthService) {
	t.Helper()
	initSvcTest()
	store := newMemStore()
	notifier := &fakeNotifier{}
	svc := NewAuthService(&memUserRepo{memStore: store}, notifier, AuthOptions{Strict: strict})
	return store, notifier, svc
}

func registerReq(phone string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Name:        "Aki",
		PhoneNumber: phone,
		Gender:      "female",
		Address:     "Shibuya, Tokyo",
	}
}

func TestRegisterThenVerifyIssuesTokenPair(t *testing.T) {
	store, notifier, svc := newAuthFixture(t, false)
	stubCodes(t, "123456")
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550001"))
	require.NoError(t, err)
	assert.True(t, issued.IsNewUser)
	assert.True(t, issued.RequiresVerification)
	assert.Equal(t, "+15550001", issued.PhoneNumber)

	require.Equal(t, 1, notifier.count())
	assert.Contains(t, notifier.sent[0], "123456")
	assert.Equal(t, "+15550001", notifier.phones[0])

	// 验证码以哈希存储
	stored := store.user(issued.UserID)
	require.NotNil(t, stored.SmsCode)
	assert.NotEqual(t, "123456", *stored.SmsCode)
	assert.False(t, stored.SmsVerified)

	resp, err := svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "123456"})
	require.NoError(t, err)
	assert.True(t, resp.IsRegistrationComplete)
	assert.True(t, resp.User.SmsVerified)
	assert.Equal(t, "Aki", resp.User.Name)

	claims, err := util.ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, issued.UserID, claims.UserID)
	refresh, err := util.ParseRefreshToken(resp.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, issued.UserID, refresh.UserID)

	stored = store.user(issued.UserID)
	assert.True(t, stored.SmsVerified)
	assert.Nil(t, stored.SmsCode)
	assert.Nil(t, stored.SmsCodeExpiry)
}

func TestVerifyCodeIsSingleUse(t *testing.T) {
	_, _, svc := newAuthFixture(t, false)
	stubCodes(t, "111111", "222222")
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550002"))
	require.NoError(t, err)
	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "111111"})
	require.NoError(t, err)

	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "111111"})
	requireCode(t, err, consts.CodeAlreadyVerified)

	// 登录验证码同样只能使用一次
	_, err = svc.Login(ctx, &dto.LoginRequest{PhoneNumber: "+15550002"})
	require.NoError(t, err)
	_, err = svc.VerifyLogin(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "222222"})
	require.NoError(t, err)
	_, err = svc.VerifyLogin(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "222222"})
	requireCode(t, err, consts.CodeVerifyCodeError)
}

func TestVerifyCodeExpiresAfterWindow(t *testing.T) {
	_, _, svc := newAuthFixture(t, false)
	stubCodes(t, "123456")
	advance := stubNow(t, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550003"))
	require.NoError(t, err)

	advance(10 * time.Minute)
	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "123456"})
	requireCode(t, err, consts.CodeVerifyCodeExpire)
}

func TestVerifyWrongCode(t *testing.T) {
	_, _, svc := newAuthFixture(t, false)
	stubCodes(t, "123456")
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550004"))
	require.NoError(t, err)

	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "654321"})
	requireCode(t, err, consts.CodeVerifyCodeError)

	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: "missing", Code: "123456"})
	requireCode(t, err, consts.CodeUserNotFound)
}

func TestRegisterAgainReplacesPendingCode(t *testing.T) {
	store, _, svc := newAuthFixture(t, false)
	stubCodes(t, "111111", "222222")
	ctx := context.Background()

	first, err := svc.Register(ctx, registerReq("+15550005"))
	require.NoError(t, err)

	req := registerReq("+15550005")
	req.Name = "Aki Renamed"
	second, err := svc.Register(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.False(t, second.IsNewUser)
	assert.Equal(t, "Aki Renamed", store.user(first.UserID).Name)

	// 旧验证码失效
	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: first.UserID, Code: "111111"})
	requireCode(t, err, consts.CodeVerifyCodeError)
	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: first.UserID, Code: "222222"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerReq("+15550005"))
	requireCode(t, err, consts.CodeUserAlreadyExist)
}

func TestStrictModeRollsBackNewUser(t *testing.T) {
	store, notifier, svc := newAuthFixture(t, true)
	stubCodes(t, "123456")
	notifier.sendErr = sms.ErrInvalidDestination
	ctx := context.Background()

	_, err := svc.Register(ctx, registerReq("+15550006"))
	requireCode(t, err, consts.CodePhoneError)

	_, err = (&memUserRepo{memStore: store}).GetByPhone(ctx, "+15550006")
	assert.Error(t, err, "new user should be removed")
}

func TestStrictModeClearsCodeForExistingUser(t *testing.T) {
	store, notifier, svc := newAuthFixture(t, true)
	stubCodes(t, "123456")
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550007"))
	require.NoError(t, err)

	notifier.sendErr = sms.ErrUnavailable
	_, err = svc.Register(ctx, registerReq("+15550007"))
	requireCode(t, err, consts.CodeSMSUnavailable)

	stored := store.user(issued.UserID)
	require.NotNil(t, stored, "pending user survives")
	assert.Nil(t, stored.SmsCode)
}

func TestNonStrictDeliveryFailureStillIssuesCode(t *testing.T) {
	store, notifier, svc := newAuthFixture(t, false)
	stubCodes(t, "123456")
	notifier.sendErr = sms.ErrNotConfigured
	ctx := context.Background()

	issued, err := svc.Register(ctx, registerReq("+15550008"))
	require.NoError(t, err)
	require.NotNil(t, store.user(issued.UserID).SmsCode)

	_, err = svc.VerifyRegistration(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "123456"})
	require.NoError(t, err)
}

func TestLoginRequiresVerifiedUser(t *testing.T) {
	_, _, svc := newAuthFixture(t, false)
	stubCodes(t, "123456")
	ctx := context.Background()

	_, err := svc.Login(ctx, &dto.LoginRequest{PhoneNumber: "+15559999"})
	requireCode(t, err, consts.CodeUserNotRegistered)

	issued, err := svc.Register(ctx, registerReq("+15550009"))
	require.NoError(t, err)
	_, err = svc.Login(ctx, &dto.LoginRequest{PhoneNumber: "+15550009"})
	requireCode(t, err, consts.CodePhoneNotVerified)

	_, err = svc.VerifyLogin(ctx, &dto.VerifyCodeRequest{UserID: issued.UserID, Code: "123456"})
	requireCode(t, err, consts.CodePhoneNotVerified)
}

func TestRefreshToken(t *testing.T) {
	store, _, svc := newAuthFixture(t, false)
	ctx := context.Background()
	store.putUser(verifiedUser("u1", "Ren", 35.6, 139.7))

	refresh, err := util.GenerateRefreshToken("u1")
	require.NoError(t, err)
	resp, err := svc.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: refresh})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "u1", resp.User.ID)

	// 访问令牌不能当刷新令牌用
	access, err := util.GenerateToken("u1")
	require.NoError(t, err)
	_, err = svc.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: access})
	requireCode(t, err, consts.CodeInvalidRefreshToken)

	ghost, err := util.GenerateRefreshToken("ghost")
	require.NoError(t, err)
	_, err = svc.RefreshToken(ctx, &dto.RefreshTokenRequest{RefreshToken: ghost})
	requireCode(t, err, consts.CodeInvalidRefreshToken)
}

func TestAuthenticate(t *testing.T) {
	store, _, svc := newAuthFixture(t, false)
	ctx := context.Background()
	store.putUser(verifiedUser("u1", "Ren", 35.6, 139.7))
	pending := verifiedUser("u2", "Mio", 0, 0)
	pending.SmsVerified = false
	store.putUser(pending)

	_, err := svc.Authenticate(ctx, "")
	requireCode(t, err, consts.CodeUnauthorized)

	_, err = svc.Authenticate(ctx, "not-a-jwt")
	requireCode(t, err, consts.CodeInvalidToken)

	token, err := util.GenerateToken("u2")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, token)
	requireCode(t, err, consts.CodeSessionUnverified)

	token, err = util.GenerateToken("u1")
	require.NoError(t, err)
	user, err := svc.Authenticate(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "Ren", user.Name)

	me, err := svc.Me(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "+8190000u1", me.User.PhoneNumber)
}

func TestSessionVerifierCachesVerifiedUsers(t *testing.T) {
	initSvcTest()
	store := newMemStore()
	store.putUser(verifiedUser("u1", "Ren", 35.6, 139.7))
	pending := verifiedUser("u2", "Mio", 0, 0)
	pending.SmsVerified = false
	store.putUser(pending)

	v := NewSessionVerifier(&memUserRepo{memStore: store}, config.JWTConfig{SessionCacheSize: 16, SessionCacheTTL: time.Minute})
	ctx := context.Background()

	require.NoError(t, v.VerifySession(ctx, "u1"))
	requireCode(t, v.VerifySession(ctx, "u2"), consts.CodeSessionUnverified)
	requireCode(t, v.VerifySession(ctx, "ghost"), consts.CodeInvalidToken)

	// 命中缓存时不回源
	store.mu.Lock()
	store.getUserErr = errStoreDown
	store.mu.Unlock()
	require.NoError(t, v.VerifySession(ctx, "u1"))

	v.Invalidate("u1")
	requireCode(t, v.VerifySession(ctx, "u1"), consts.CodeInternalError)
}
