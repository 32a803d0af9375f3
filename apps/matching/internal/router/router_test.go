package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	v1 "github.com/sudo-enjoy/matching-app-be/apps/matching/internal/router/v1"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

var routerTestOnce sync.Once

func initRouterTest() {
	routerTestOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

// ==================== fakes ====================

type fakeRouterAuthService struct {
	service.AuthService

	authenticateFn func(context.Context, string) (*model.User, error)
	meFn           func(context.Context, string) (*dto.MeResponse, error)
}

var _ service.AuthService = (*fakeRouterAuthService)(nil)

func (f *fakeRouterAuthService) Authenticate(ctx context.Context, token string) (*model.User, error) {
	if f.authenticateFn == nil {
		return nil, bizerr.New(consts.CodeInvalidToken)
	}
	return f.authenticateFn(ctx, token)
}

func (f *fakeRouterAuthService) Me(ctx context.Context, userID string) (*dto.MeResponse, error) {
	if f.meFn == nil {
		return &dto.MeResponse{User: &dto.SelfInfo{}}, nil
	}
	return f.meFn(ctx, userID)
}

type fakeRouterUserService struct {
	service.UserService

	findNearbyFn     func(context.Context, string, *dto.NearbyQuery) (*dto.NearbyResponse, error)
	updateLocationFn func(context.Context, string, dto.Location) (dto.Location, error)
	uploadAvatarFn   func(context.Context, string, io.Reader, int64) (*dto.UploadAvatarResponse, error)
	listUsersFn      func(context.Context, *dto.PaginationQuery) (*dto.ListUsersResponse, error)
}

var _ service.UserService = (*fakeRouterUserService)(nil)

func (f *fakeRouterUserService) FindNearby(ctx context.Context, userID string, q *dto.NearbyQuery) (*dto.NearbyResponse, error) {
	if f.findNearbyFn == nil {
		return &dto.NearbyResponse{Users: []*dto.NearbyUser{}}, nil
	}
	return f.findNearbyFn(ctx, userID, q)
}

func (f *fakeRouterUserService) UpdateLocation(ctx context.Context, userID string, p dto.Location) (dto.Location, error) {
	if f.updateLocationFn == nil {
		return p, nil
	}
	return f.updateLocationFn(ctx, userID, p)
}

func (f *fakeRouterUserService) UploadAvatar(ctx context.Context, userID string, file io.Reader, size int64) (*dto.UploadAvatarResponse, error) {
	if f.uploadAvatarFn == nil {
		return &dto.UploadAvatarResponse{}, nil
	}
	return f.uploadAvatarFn(ctx, userID, file, size)
}

func (f *fakeRouterUserService) ListUsers(ctx context.Context, q *dto.PaginationQuery) (*dto.ListUsersResponse, error) {
	if f.listUsersFn == nil {
		return &dto.ListUsersResponse{}, nil
	}
	return f.listUsersFn(ctx, q)
}

type fakeRouterMatchingService struct {
	service.MatchingService

	requestMatchFn   func(context.Context, string, *dto.SendMatchRequest) (*dto.MatchResponse, error)
	respondToMatchFn func(context.Context, string, *dto.RespondMatchRequest) (*dto.MatchResponse, error)
	getHistoryFn     func(context.Context, string, *dto.MatchHistoryQuery) (*dto.MatchHistoryResponse, error)
}

var _ service.MatchingService = (*fakeRouterMatchingService)(nil)

func (f *fakeRouterMatchingService) RequestMatch(ctx context.Context, requesterID string, req *dto.SendMatchRequest) (*dto.MatchResponse, error) {
	if f.requestMatchFn == nil {
		return &dto.MatchResponse{}, nil
	}
	return f.requestMatchFn(ctx, requesterID, req)
}

func (f *fakeRouterMatchingService) RespondToMatch(ctx context.Context, responderID string, req *dto.RespondMatchRequest) (*dto.MatchResponse, error) {
	if f.respondToMatchFn == nil {
		return &dto.MatchResponse{}, nil
	}
	return f.respondToMatchFn(ctx, responderID, req)
}

func (f *fakeRouterMatchingService) GetHistory(ctx context.Context, userID string, q *dto.MatchHistoryQuery) (*dto.MatchHistoryResponse, error) {
	if f.getHistoryFn == nil {
		return &dto.MatchHistoryResponse{}, nil
	}
	return f.getHistoryFn(ctx, userID, q)
}

type fakeRouterMapService struct {
	service.MapService
}

var _ service.MapService = (*fakeRouterMapService)(nil)

func (f *fakeRouterMapService) GetConfig(context.Context) *dto.MapConfigResponse {
	return &dto.MapConfigResponse{}
}

type fakeRouterVerifier struct {
	errs map[string]error
}

func (f *fakeRouterVerifier) VerifySession(_ context.Context, userID string) error {
	return f.errs[userID]
}

func (f *fakeRouterVerifier) Invalidate(string) {}

// ==================== helpers ====================

type routerEnv struct {
	engine   *gin.Engine
	auth     *fakeRouterAuthService
	users    *fakeRouterUserService
	matching *fakeRouterMatchingService
	verifier *fakeRouterVerifier
}

func newRouterEnv(t *testing.T, checks map[string]v1.HealthCheck) *routerEnv {
	t.Helper()
	initRouterTest()

	env := &routerEnv{
		auth:     &fakeRouterAuthService{},
		users:    &fakeRouterUserService{},
		matching: &fakeRouterMatchingService{},
		verifier: &fakeRouterVerifier{errs: map[string]error{}},
	}
	env.engine = InitRouter(Handlers{
		Auth:     v1.NewAuthHandler(env.auth),
		User:     v1.NewUserHandler(env.users),
		Matching: v1.NewMatchingHandler(env.matching),
		Map:      v1.NewMapHandler(&fakeRouterMapService{}),
		Health:   v1.NewHealthHandler(checks),
	}, Options{
		Verifier:       env.verifier,
		RateLimit:      config.RateLimitConfig{IPRate: 10, IPBurst: 10, SMSPerWindow: 5, SMSWindow: time.Hour},
		RequestTimeout: 5 * time.Second,
	})
	return env
}

func bearer(t *testing.T, userID string) string {
	t.Helper()
	token, err := util.GenerateToken(userID)
	require.NoError(t, err)
	return "Bearer " + token
}

func (e *routerEnv) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) result.ErrorBody {
	t.Helper()
	var body result.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// ==================== tests ====================

func TestHealth(t *testing.T) {
	env := newRouterEnv(t, map[string]v1.HealthCheck{
		"mysql": func(context.Context) error { return nil },
	})
	w := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "Server is running", body["message"])
	assert.NotEmpty(t, w.Header().Get(util.HeaderXRequestID))

	degraded := newRouterEnv(t, map[string]v1.HealthCheck{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	w = degraded.do(t, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsExposed(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.do(t, http.MethodGet, "/api/health", "", nil)

	w := env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "matching_http_requests_total")
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newRouterEnv(t, nil)
	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/users/nearby?lat=35&lng=139"},
		{http.MethodPost, "/api/users/update-location"},
		{http.MethodPost, "/api/matching/request"},
		{http.MethodGet, "/api/matching/history"},
		{http.MethodGet, "/api/map/data?lat=35&lng=139"},
		{http.MethodGet, "/api/map/location"},
		{http.MethodGet, "/api/auth/me"},
	}
	for _, p := range paths {
		w := env.do(t, p.method, p.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, p.path)
	}
}

func TestUnverifiedSessionRejected(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.verifier.errs["u2"] = bizerr.New(consts.CodeSessionUnverified)

	w := env.do(t, http.MethodGet, "/api/auth/me", bearer(t, "u2"), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, consts.GetMessage(consts.CodeSessionUnverified), errorBody(t, w).Error)
}

func TestMapConfigIsPublic(t *testing.T) {
	env := newRouterEnv(t, nil)
	w := env.do(t, http.MethodGet, "/api/map/config", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNearby(t *testing.T) {
	env := newRouterEnv(t, nil)
	var gotUser string
	var gotQuery dto.NearbyQuery
	env.users.findNearbyFn = func(_ context.Context, userID string, q *dto.NearbyQuery) (*dto.NearbyResponse, error) {
		gotUser = userID
		gotQuery = *q
		return &dto.NearbyResponse{Users: []*dto.NearbyUser{}, Count: 0}, nil
	}

	w := env.do(t, http.MethodGet, "/api/users/nearby?lat=35.68&lng=139.76&radius=2000&onlineOnly=true", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", gotUser)
	require.NotNil(t, gotQuery.Lat)
	assert.InDelta(t, 35.68, *gotQuery.Lat, 1e-9)
	assert.Equal(t, 2000.0, gotQuery.Radius)
	assert.True(t, gotQuery.OnlineOnly)

	w = env.do(t, http.MethodGet, "/api/users/nearby?lat=95&lng=139.76", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "lat failed max=90", errorBody(t, w).Error)

	w = env.do(t, http.MethodGet, "/api/users/nearby?lng=139.76", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "lat is required", errorBody(t, w).Error)
}

func TestUpdateLocation(t *testing.T) {
	env := newRouterEnv(t, nil)
	var got dto.Location
	env.users.updateLocationFn = func(_ context.Context, _ string, p dto.Location) (dto.Location, error) {
		got = p
		return p, nil
	}

	w := env.do(t, http.MethodPost, "/api/users/update-location", bearer(t, "u1"), map[string]any{"lat": 35.0, "lng": 139.0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.Location{Lat: 35, Lng: 139}, got)

	var body dto.UpdateLocationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Location updated successfully", body.Message)
	assert.Equal(t, got, body.Location)

	w = env.do(t, http.MethodPost, "/api/users/update-location", bearer(t, "u1"), map[string]any{"lat": 35.0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	env.users.updateLocationFn = func(context.Context, string, dto.Location) (dto.Location, error) {
		return dto.Location{}, errors.New("db down")
	}
	w = env.do(t, http.MethodPost, "/api/users/update-location", bearer(t, "u1"), map[string]any{"lat": 1.0, "lng": 2.0})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	body2 := errorBody(t, w)
	assert.Equal(t, consts.GetMessage(consts.CodeInternalError), body2.Error)
	assert.Equal(t, "db down", body2.Details)
}

func TestRequestMatch(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.matching.requestMatchFn = func(_ context.Context, requesterID string, req *dto.SendMatchRequest) (*dto.MatchResponse, error) {
		if req.TargetUserID == "dup" {
			return nil, bizerr.New(consts.CodeDuplicatePending)
		}
		return &dto.MatchResponse{Message: "Match request sent successfully", Match: &dto.MatchInfo{ID: "m1"}}, nil
	}

	w := env.do(t, http.MethodPost, "/api/matching/request", bearer(t, "u1"),
		map[string]any{"targetUserId": "u2", "meetingReason": "coffee"})
	require.Equal(t, http.StatusCreated, w.Code)
	var body dto.MatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotNil(t, body.Match)
	assert.Equal(t, "m1", body.Match.ID)

	w = env.do(t, http.MethodPost, "/api/matching/request", bearer(t, "u1"),
		map[string]any{"targetUserId": "dup", "meetingReason": "coffee"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, consts.GetMessage(consts.CodeDuplicatePending), errorBody(t, w).Error)

	w = env.do(t, http.MethodPost, "/api/matching/request", bearer(t, "u1"), map[string]any{"targetUserId": "u2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRespondRejectsUnknownResponse(t *testing.T) {
	env := newRouterEnv(t, nil)
	called := false
	env.matching.respondToMatchFn = func(context.Context, string, *dto.RespondMatchRequest) (*dto.MatchResponse, error) {
		called = true
		return &dto.MatchResponse{}, nil
	}

	w := env.do(t, http.MethodPost, "/api/matching/respond", bearer(t, "u2"), map[string]any{"matchId": "m1", "response": "maybe"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "response must be one of [accepted rejected]", errorBody(t, w).Error)
	assert.False(t, called)

	w = env.do(t, http.MethodPost, "/api/matching/respond", bearer(t, "u2"), map[string]any{"matchId": "m1", "response": "accepted"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, called)
}

func TestHistoryBindsPagination(t *testing.T) {
	env := newRouterEnv(t, nil)
	var got dto.MatchHistoryQuery
	env.matching.getHistoryFn = func(_ context.Context, _ string, q *dto.MatchHistoryQuery) (*dto.MatchHistoryResponse, error) {
		got = *q
		return &dto.MatchHistoryResponse{CurrentPage: q.Page}, nil
	}

	w := env.do(t, http.MethodGet, "/api/matching/history?page=2&limit=5&status=accepted", bearer(t, "u1"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 5, got.Limit)
	assert.Equal(t, "accepted", got.Status)

	w = env.do(t, http.MethodGet, "/api/matching/history?status=unknown", bearer(t, "u1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidate(t *testing.T) {
	env := newRouterEnv(t, nil)
	env.auth.authenticateFn = func(_ context.Context, token string) (*model.User, error) {
		if token != "good" {
			return nil, bizerr.New(consts.CodeInvalidToken)
		}
		return &model.User{ID: "u1", Name: "Taro"}, nil
	}

	w := env.do(t, http.MethodGet, "/api/auth/validate", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body dto.ValidateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.IsAuthenticated)
	assert.NotEmpty(t, body.Error)

	w = env.do(t, http.MethodGet, "/api/auth/validate", "Bearer bad", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/auth/validate", "Bearer good", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = dto.ValidateResponse{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.IsAuthenticated)
	require.NotNil(t, body.User)
}

func TestUploadAvatar(t *testing.T) {
	env := newRouterEnv(t, nil)
	var gotSize int64
	var gotBytes []byte
	env.users.uploadAvatarFn = func(_ context.Context, userID string, file io.Reader, size int64) (*dto.UploadAvatarResponse, error) {
		gotSize = size
		gotBytes, _ = io.ReadAll(file)
		return &dto.UploadAvatarResponse{AvatarURL: "http://cdn/avatars/" + userID + ".png"}, nil
	}

	content := []byte("\x89PNG\r\n\x1a\nfake")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("avatar", "a.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/users/avatar", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", bearer(t, "u1"))
	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(len(content)), gotSize)
	assert.Equal(t, content, gotBytes)

	w = env.do(t, http.MethodPost, "/api/users/avatar", bearer(t, "u1"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
