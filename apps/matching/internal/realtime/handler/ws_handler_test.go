package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/manager"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/realtime/svc"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

var wsTestOnce sync.Once

func initWSTest() {
	wsTestOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

// ==================== fakes ====================

type fakeAuth struct {
	service.AuthService
	tokens map[string]*model.User
}

var _ service.AuthService = (*fakeAuth)(nil)

func (f *fakeAuth) Authenticate(_ context.Context, token string) (*model.User, error) {
	u, ok := f.tokens[token]
	if !ok {
		return nil, bizerr.New(consts.CodeInvalidToken)
	}
	return u, nil
}

type fakeUserRepo struct {
	repository.IUserRepository

	mu        sync.Mutex
	users     map[string]*model.User
	sockets   map[string]string
	offline   []string
	resetDone int
}

var _ repository.IUserRepository = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{
		users:   make(map[string]*model.User),
		sockets: make(map[string]string),
	}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) UpdateLocation(_ context.Context, id string, p geo.Point, _ *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.Lat, u.Lng, u.LastSeen = p.Lat, p.Lng, at
	return nil
}

func (r *fakeUserRepo) MarkOnline(_ context.Context, id, socketID string, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sockets[id] = socketID
	return nil
}

func (r *fakeUserRepo) MarkOffline(_ context.Context, id, socketID string, _ time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sockets[id] != socketID {
		return false, nil
	}
	delete(r.sockets, id)
	r.offline = append(r.offline, id)
	return true, nil
}

func (r *fakeUserRepo) ResetPresence(_ context.Context, _ time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.sockets))
	r.sockets = make(map[string]string)
	r.resetDone++
	return n, nil
}

func (r *fakeUserRepo) socketOf(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sockets[id]
}

func (r *fakeUserRepo) offlineCalls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.offline...)
}

// ==================== helpers ====================

type wsEnv struct {
	srv      *httptest.Server
	repo     *fakeUserRepo
	presence *svc.PresenceRegistry
}

func testUser(id, name string) *model.User {
	return &model.User{
		ID:          id,
		Name:        name,
		PhoneNumber: "+8190000" + id,
		Gender:      model.GenderOther,
		SmsVerified: true,
		Lat:         35.68,
		Lng:         139.76,
	}
}

func newWSEnv(t *testing.T, cfg config.RealtimeConfig) *wsEnv {
	t.Helper()
	initWSTest()

	repo := newFakeUserRepo(testUser("a", "Aki"), testUser("b", "Ben"), testUser("c", "Chie"))
	auth := &fakeAuth{tokens: map[string]*model.User{}}
	for id, u := range repo.users {
		cp := *u
		auth.tokens["tok-"+id] = &cp
	}

	presence := svc.NewPresenceRegistry(manager.NewConnectionManager(), repo, nil)
	users := service.NewUserService(repo, presence, nil)
	protocol := svc.NewRealtimeService(presence, users)
	h := NewWSHandler(auth, presence, protocol, cfg)

	r := gin.New()
	r.GET("/ws", h.ServeWS)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		presence.Shutdown(context.Background())
		srv.Close()
	})
	return &wsEnv{srv: srv, repo: repo, presence: presence}
}

func defaultRealtimeCfg() config.RealtimeConfig {
	return config.RealtimeConfig{
		SendQueueSize: 64,
		ReadLimit:     64 * 1024,
		InboundRate:   100,
		InboundBurst:  100,
	}
}

func (e *wsEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws" + query
}

// connect 建立连接并用一次 ping/pong 确认服务端已完成注册
func (e *wsEnv) connect(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL("?token=tok-"+userID), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	send(t, conn, dto.EventPing, nil)
	readUntil(t, conn, dto.EventPong)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	msg, err := svc.MarshalEnvelope(msgType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, msg))
}

// readUntil 读到指定类型的帧为止，跳过其他帧
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %s", msgType)
		env, err := svc.ParseEnvelope(raw)
		require.NoError(t, err)
		if env.Type == msgType {
			return env.Data
		}
	}
}

// expectNone 在 within 内不应收到该类型的帧。读超时后连接不可再读，只能作为最后一次读取
func expectNone(t *testing.T, conn *websocket.Conn, msgType string, within time.Duration) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(within)))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := svc.ParseEnvelope(raw)
		require.NoError(t, err)
		require.NotEqual(t, msgType, env.Type, "unexpected frame %s", raw)
	}
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

// ==================== tests ====================

func TestServeWS_RejectsBadTokenBeforeUpgrade(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	for _, query := range []string{"", "?token=garbage"} {
		_, resp, err := websocket.DefaultDialer.Dial(env.wsURL(query), nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "query %q", query)
		_ = resp.Body.Close()
	}
	assert.Equal(t, 0, env.presence.Connections().Count())
}

func TestServeWS_BearerHeader(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	header := http.Header{}
	header.Set("Authorization", "Bearer tok-a")
	conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL(""), header)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	send(t, conn, dto.EventPing, nil)
	pong := decode[dto.TimestampPayload](t, readUntil(t, conn, dto.EventPong))
	assert.Positive(t, pong.Timestamp)
	assert.NotEmpty(t, env.repo.socketOf("a"))
}

func TestPresence_OnlineAndOfflineBroadcast(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")

	online := decode[dto.UserOnlinePayload](t, readUntil(t, a, dto.EventUserOnline))
	assert.Equal(t, "b", online.UserID)
	assert.Equal(t, "Ben", online.Name)
	require.NotNil(t, online.Location)

	socketB := env.presence.Lookup("b").ID()
	assert.Equal(t, socketB, env.repo.socketOf("b"))

	require.NoError(t, b.Close())
	offline := decode[dto.UserOfflinePayload](t, readUntil(t, a, dto.EventUserOffline))
	assert.Equal(t, "b", offline.UserID)
	assert.Equal(t, []string{"b"}, env.repo.offlineCalls())
	assert.Empty(t, env.repo.socketOf("b"))
}

func TestPresence_ReplacedConnectionDoesNotMarkOffline(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	observer := env.connect(t, "c")
	first := env.connect(t, "a")
	readUntil(t, observer, dto.EventUserOnline)
	second := env.connect(t, "a")
	readUntil(t, observer, dto.EventUserOnline)

	// 旧连接被服务端关闭
	require.NoError(t, first.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := first.ReadMessage(); err != nil {
			break
		}
	}

	current := env.presence.Lookup("a")
	require.NotNil(t, current)
	assert.Equal(t, current.ID(), env.repo.socketOf("a"))
	assert.Empty(t, env.repo.offlineCalls())

	send(t, second, dto.EventPing, nil)
	readUntil(t, second, dto.EventPong)
	expectNone(t, observer, dto.EventUserOffline, 300*time.Millisecond)
}

func TestProtocol_UpdateLocation(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")
	readUntil(t, a, dto.EventUserOnline)

	send(t, b, dto.EventUpdateLocation, map[string]float64{"lat": 35.7, "lng": 139.7})
	ack := decode[dto.LocationUpdatedPayload](t, readUntil(t, b, dto.EventLocationUpdated))
	assert.True(t, ack.Success)
	assert.Equal(t, dto.Location{Lat: 35.7, Lng: 139.7}, ack.Location)

	update := decode[dto.UserLocationPayload](t, readUntil(t, a, dto.EventUserLocationUpdate))
	assert.Equal(t, "b", update.UserID)
	assert.InDelta(t, 35.7, update.Location.Lat, 1e-9)

	send(t, b, dto.EventUpdateLocation, map[string]float64{"lat": 95, "lng": 139.7})
	errFrame := decode[dto.ErrorPayload](t, readUntil(t, b, dto.EventError))
	assert.Equal(t, svc.ErrCodeInvalidLocation, errFrame.Code)

	// (0,0) 不会把已上报的位置清成未设置
	send(t, b, dto.EventUpdateLocation, map[string]float64{"lat": 0, "lng": 0})
	errFrame = decode[dto.ErrorPayload](t, readUntil(t, b, dto.EventError))
	assert.Equal(t, svc.ErrCodeInvalidLocation, errFrame.Code)
	assert.Equal(t, consts.GetMessage(consts.CodeLocationUnset), errFrame.Message)
	expectNone(t, a, dto.EventUserLocationUpdate, 300*time.Millisecond)
}

func TestProtocol_RoomMessageSkipsSender(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")

	send(t, a, dto.EventJoinRoom, "r1")
	send(t, a, dto.EventPing, nil)
	readUntil(t, a, dto.EventPong)

	send(t, b, dto.EventJoinRoom, map[string]string{"roomId": "r1"})
	send(t, b, dto.EventSendMessage, map[string]string{"roomId": "r1", "text": "hello"})

	msg := decode[dto.NewMessagePayload](t, readUntil(t, a, dto.EventNewMessage))
	assert.Equal(t, "r1", msg.RoomID)
	assert.Equal(t, "b", msg.SenderID)
	assert.Equal(t, "Ben", msg.SenderName)
	assert.Equal(t, "hello", msg.Message)

	assert.Equal(t, 2, env.presence.Connections().RoomSize("r1"))
	expectNone(t, b, dto.EventNewMessage, 300*time.Millisecond)
}

func TestProtocol_ApproachingMeetingReachesEveryone(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")

	send(t, a, dto.EventApproachingMeeting, map[string]any{"matchId": "m1", "targetUserId": "b", "distance": 120.5})

	for _, conn := range []*websocket.Conn{a, b} {
		got := decode[dto.ApproachingPayload](t, readUntil(t, conn, dto.EventUserApproachingMeeting))
		assert.Equal(t, "m1", got.MatchID)
		assert.Equal(t, "a", got.UserID)
		assert.Equal(t, "Aki", got.UserName)
		assert.InDelta(t, 120.5, got.Distance, 1e-9)
	}
}

func TestProtocol_LocationShareAndExpiry(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")

	send(t, a, dto.EventRequestLocationShare, "b")
	req := decode[dto.LocationShareRequestPayload](t, readUntil(t, b, dto.EventLocationShareRequest))
	assert.Equal(t, "a", req.RequesterID)
	assert.Equal(t, "Aki", req.RequesterName)

	start := time.Now()
	send(t, b, dto.EventShareLocation, map[string]any{
		"targetUserId": "a",
		"location":     map[string]float64{"lat": 35.69, "lng": 139.70},
		"durationMs":   10, // 低于下限，按 1 秒处理
	})
	shared := decode[dto.LocationSharedPayload](t, readUntil(t, a, dto.EventLocationShared))
	assert.Equal(t, "b", shared.SenderID)
	assert.Equal(t, "Ben", shared.SenderName)
	assert.WithinDuration(t, start.Add(time.Second), shared.ExpiresAt, 500*time.Millisecond)

	expired := decode[dto.LocationShareExpiredPayload](t, readUntil(t, a, dto.EventLocationShareExpired))
	assert.Equal(t, "b", expired.SenderID)
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestProtocol_ShareTimerCancelledWhenSenderLeaves(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())

	a := env.connect(t, "a")
	b := env.connect(t, "b")

	send(t, b, dto.EventShareLocation, map[string]any{
		"targetUserId": "a",
		"location":     map[string]float64{"lat": 35.69, "lng": 139.70},
		"duration":     1000,
	})
	readUntil(t, a, dto.EventLocationShared)

	require.NoError(t, b.Close())
	readUntil(t, a, dto.EventUserOffline)
	expectNone(t, a, dto.EventLocationShareExpired, 1500*time.Millisecond)
}

func TestProtocol_ErrorFrames(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())
	a := env.connect(t, "a")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("{not json")))
	bad := decode[dto.ErrorPayload](t, readUntil(t, a, dto.EventError))
	assert.Equal(t, svc.ErrCodeInvalidFrame, bad.Code)

	send(t, a, "dance", nil)
	unknown := decode[dto.ErrorPayload](t, readUntil(t, a, dto.EventError))
	assert.Equal(t, svc.ErrCodeUnsupported, unknown.Code)

	send(t, a, dto.EventJoinRoom, map[string]string{})
	noRoom := decode[dto.ErrorPayload](t, readUntil(t, a, dto.EventError))
	assert.Equal(t, svc.ErrCodeInvalidPayload, noRoom.Code)
}

func TestProtocol_InboundRateLimit(t *testing.T) {
	cfg := defaultRealtimeCfg()
	cfg.InboundRate = 0.001
	cfg.InboundBurst = 2
	env := newWSEnv(t, cfg)

	conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL("?token=tok-a"), nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	defer conn.Close()

	for i := 0; i < 3; i++ {
		send(t, conn, dto.EventPing, nil)
	}
	readUntil(t, conn, dto.EventPong)
	readUntil(t, conn, dto.EventPong)
	limited := decode[dto.ErrorPayload](t, readUntil(t, conn, dto.EventError))
	assert.Equal(t, svc.ErrCodeRateLimited, limited.Code)
}

func TestCheckOrigin(t *testing.T) {
	h := NewWSHandler(nil, nil, nil, config.RealtimeConfig{AllowedOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, h.checkOrigin(req), "no origin header")

	req.Header.Set("Origin", "https://app.example.com")
	assert.True(t, h.checkOrigin(req))

	req.Header.Set("Origin", "https://evil.example.com")
	assert.False(t, h.checkOrigin(req))

	open := NewWSHandler(nil, nil, nil, config.RealtimeConfig{})
	assert.True(t, open.checkOrigin(req))
}

func TestShutdownResetsPresence(t *testing.T) {
	env := newWSEnv(t, defaultRealtimeCfg())
	a := env.connect(t, "a")

	env.presence.Shutdown(context.Background())
	assert.Equal(t, 0, env.presence.Connections().Count())
	assert.Empty(t, env.repo.socketOf("a"))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := a.ReadMessage(); err != nil {
			break
		}
	}
}
