package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/minio"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var svcTestOnce sync.Once

func initSvcTest() {
	svcTestOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
		codeHashCost = bcrypt.MinCost
	})
}

// stubNow 固定当前时间，返回可推进时间的函数
func stubNow(t *testing.T, start time.Time) func(time.Duration) {
	t.Helper()
	var mu sync.Mutex
	cur := start
	old := nowFunc
	nowFunc = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return cur
	}
	t.Cleanup(func() { nowFunc = old })
	return func(d time.Duration) {
		mu.Lock()
		cur = cur.Add(d)
		mu.Unlock()
	}
}

// stubCodes 按顺序返回验证码，用完后重复最后一个
func stubCodes(t *testing.T, codes ...string) {
	t.Helper()
	var mu sync.Mutex
	i := 0
	old := generateCode
	generateCode = func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := codes[i]
		if i < len(codes)-1 {
			i++
		}
		return c, nil
	}
	t.Cleanup(func() { generateCode = old })
}

func requireCode(t *testing.T, err error, code int32) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, bizerr.Code(err), "err=%v", err)
}

// ==================== 内存存储 ====================

// memStore 三个 repository 共用的内存实现，语义对齐 gorm 版本的条件更新
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	matches  map[string]*model.Match
	meetings map[string]*model.Meeting

	// 注入错误
	getUserErr   error
	findInBoxErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		matches:  make(map[string]*model.Match),
		meetings: make(map[string]*model.Meeting),
	}
}

func cloneUser(u *model.User) *model.User {
	c := *u
	return &c
}

func cloneMatch(m *model.Match) *model.Match {
	c := *m
	return &c
}

func cloneMeeting(m *model.Meeting) *model.Meeting {
	c := *m
	return &c
}

// putUser 直接写入测试用户
func (s *memStore) putUser(u *model.User) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = cloneUser(u)
	return u
}

func (s *memStore) user(id string) *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		return cloneUser(u)
	}
	return nil
}

func (s *memStore) deleteUser(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
}

func (s *memStore) match(id string) *model.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.matches[id]; ok {
		return cloneMatch(m)
	}
	return nil
}

func (s *memStore) meeting(id string) *model.Meeting {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[id]; ok {
		return cloneMeeting(m)
	}
	return nil
}

func (s *memStore) matchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

// ==================== 用户 ====================

type memUserRepo struct {
	repository.IUserRepository
	*memStore
}

var _ repository.IUserRepository = (*memUserRepo)(nil)

func (r *memUserRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getUserErr != nil {
		return nil, r.getUserErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneUser(u), nil
}

func (r *memUserRepo) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *memUserRepo) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == phone {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *memUserRepo) Create(ctx context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.PhoneNumber == user.PhoneNumber {
			return repository.ErrDuplicateKey
		}
	}
	r.users[user.ID] = cloneUser(user)
	return nil
}

func (r *memUserRepo) RefreshPending(ctx context.Context, id, name, gender, address string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.SmsVerified {
		return false, nil
	}
	u.Name, u.Gender, u.Address = name, gender, address
	return true, nil
}

func (r *memUserRepo) DeleteUnverified(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok && !u.SmsVerified {
		delete(r.users, id)
	}
	return nil
}

func (r *memUserRepo) SetVerifyCode(ctx context.Context, id, codeHash string, expiry time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.SmsCode, u.SmsCodeExpiry = &codeHash, &expiry
	return nil
}

func (r *memUserRepo) ClearVerifyCode(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		u.SmsCode, u.SmsCodeExpiry = nil, nil
	}
	return nil
}

func (r *memUserRepo) ConsumeVerifyCode(ctx context.Context, id, codeHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.SmsCode == nil || *u.SmsCode != codeHash {
		return false, nil
	}
	u.SmsVerified = true
	u.SmsCode, u.SmsCodeExpiry = nil, nil
	return true, nil
}

func (r *memUserRepo) UpdateLocation(ctx context.Context, id string, p geo.Point, address *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.Lat, u.Lng, u.LastSeen = p.Lat, p.Lng, at
	if address != nil {
		u.Address = *address
	}
	return nil
}

func (r *memUserRepo) MarkOnline(ctx context.Context, id, socketID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.IsOnline, u.SocketID, u.LastSeen = true, &socketID, at
	return nil
}

func (r *memUserRepo) MarkOffline(ctx context.Context, id, socketID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok || u.SocketID == nil || *u.SocketID != socketID {
		return false, nil
	}
	u.IsOnline, u.SocketID, u.LastSeen = false, nil, at
	return true, nil
}

func (r *memUserRepo) SetOnlineFlag(ctx context.Context, id string, online bool, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	u.IsOnline, u.LastSeen = online, at
	return nil
}

func (r *memUserRepo) ResetPresence(ctx context.Context, at time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.IsOnline {
			u.IsOnline, u.SocketID, u.LastSeen = false, nil, at
			n++
		}
	}
	return n, nil
}

func (r *memUserRepo) FindInBox(ctx context.Context, q repository.NearbyQuery) ([]*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findInBoxErr != nil {
		return nil, r.findInBoxErr
	}
	out := make([]*model.User, 0)
	for _, u := range r.users {
		p := geo.Point{Lat: u.Lat, Lng: u.Lng}
		if u.ID == q.ExcludeID || !u.SmsVerified || p.IsUnset() || !q.Box.Contains(p) {
			continue
		}
		if q.OnlineOnly && !u.IsOnline {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool {
		return geo.Distance(q.Center, geo.Point{Lat: out[i].Lat, Lng: out[i].Lng}) <
			geo.Distance(q.Center, geo.Point{Lat: out[j].Lat, Lng: out[j].Lng})
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *memUserRepo) UpdateProfile(ctx context.Context, id string, upd repository.ProfileUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrRecordNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Bio != nil {
		u.Bio = *upd.Bio
	}
	if upd.ProfilePhoto != nil {
		u.ProfilePhoto = *upd.ProfilePhoto
	}
	if upd.Address != nil {
		u.Address = *upd.Address
	}
	return nil
}

func (r *memUserRepo) ListVerified(ctx context.Context, page, limit int) ([]*model.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.User, 0, len(r.users))
	for _, u := range r.users {
		if u.SmsVerified {
			all = append(all, cloneUser(u))
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func paginate[T any](items []T, page, limit int) []T {
	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// ==================== 匹配 ====================

type memMatchRepo struct {
	repository.IMatchRepository
	*memStore
}

var _ repository.IMatchRepository = (*memMatchRepo)(nil)

func (r *memMatchRepo) CreatePending(ctx context.Context, m *model.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	pair := model.PairKey(m.RequesterID, m.TargetUserID)
	for _, existing := range r.matches {
		if existing.PendingPair != nil && *existing.PendingPair == pair {
			return repository.ErrDuplicateKey
		}
	}
	m.Status = model.MatchStatusPending
	m.PendingPair = &pair
	r.matches[m.ID] = cloneMatch(m)
	return nil
}

func (r *memMatchRepo) GetPendingByPair(ctx context.Context, pairKey string) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.matches {
		if m.PendingPair != nil && *m.PendingPair == pairKey {
			return cloneMatch(m), nil
		}
	}
	return nil, repository.ErrRecordNotFound
}

func (r *memMatchRepo) GetByID(ctx context.Context, id string) (*model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneMatch(m), nil
}

// resolve 条件迁移，调用方持锁
func (r *memMatchRepo) resolve(id, status string, at time.Time, requireLive bool) bool {
	m, ok := r.matches[id]
	if !ok || m.Status != model.MatchStatusPending {
		return false
	}
	if requireLive && !at.Before(m.ExpiresAt) {
		return false
	}
	m.Status = status
	m.PendingPair = nil
	t := at
	m.RespondedAt = &t
	return true
}

func (r *memMatchRepo) Accept(ctx context.Context, matchID string, at time.Time, meeting *model.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resolve(matchID, model.MatchStatusAccepted, at, true) {
		return repository.ErrConflict
	}
	m := r.matches[matchID]
	r.users[m.RequesterID].MatchCount++
	r.users[m.TargetUserID].MatchCount++
	r.meetings[meeting.ID] = cloneMeeting(meeting)
	return nil
}

func (r *memMatchRepo) Reject(ctx context.Context, matchID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.resolve(matchID, model.MatchStatusRejected, at, true) {
		return repository.ErrConflict
	}
	return nil
}

func (r *memMatchRepo) Expire(ctx context.Context, matchID string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[matchID]
	if !ok || now.Before(m.ExpiresAt) {
		return false, nil
	}
	return r.resolve(matchID, model.MatchStatusExpired, now, false), nil
}

func (r *memMatchRepo) expireWhere(now time.Time, keep func(*model.Match) bool) int64 {
	var n int64
	for id, m := range r.matches {
		if m.Status == model.MatchStatusPending && !now.Before(m.ExpiresAt) && keep(m) {
			if r.resolve(id, model.MatchStatusExpired, now, false) {
				n++
			}
		}
	}
	return n
}

func (r *memMatchRepo) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expireWhere(now, func(*model.Match) bool { return true }), nil
}

func (r *memMatchRepo) ExpireStaleForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.expireWhere(now, func(m *model.Match) bool {
		return m.RequesterID == userID || m.TargetUserID == userID
	}), nil
}

func (r *memMatchRepo) History(ctx context.Context, userID, status string, page, limit int) ([]*model.Match, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := make([]*model.Match, 0)
	for _, m := range r.matches {
		if m.RequesterID != userID && m.TargetUserID != userID {
			continue
		}
		if status != "" && m.Status != status {
			continue
		}
		all = append(all, cloneMatch(m))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

// ==================== 会面 ====================

type memMeetingRepo struct {
	repository.IMeetingRepository
	*memStore
}

var _ repository.IMeetingRepository = (*memMeetingRepo)(nil)

func (r *memMeetingRepo) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[id]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	return cloneMeeting(m), nil
}

func (r *memMeetingRepo) Confirm(ctx context.Context, meetingID string, asRequester bool, now time.Time) (*repository.ConfirmResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[meetingID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	if asRequester {
		m.RequesterConfirmed = true
	} else {
		m.TargetConfirmed = true
	}
	m.BothConfirmed = m.RequesterConfirmed && m.TargetConfirmed

	stamped := false
	if m.BothConfirmed && m.ActualMeetingTime == nil {
		t := now
		m.ActualMeetingTime = &t
		m.MeetingSuccess = true
		r.users[m.RequesterID].ActualMeetCount++
		r.users[m.TargetUserID].ActualMeetCount++
		stamped = true
	}
	return &repository.ConfirmResult{Meeting: cloneMeeting(m), Stamped: stamped}, nil
}

func (r *memMeetingRepo) Rate(ctx context.Context, meetingID string, asRequester bool, rating int8, notes *string) (*model.Meeting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.meetings[meetingID]
	if !ok {
		return nil, repository.ErrRecordNotFound
	}
	if !m.BothConfirmed {
		return nil, repository.ErrConflict
	}
	v := rating
	if asRequester {
		m.RequesterRating = &v
	} else {
		m.TargetRating = &v
	}
	if notes != nil {
		m.Notes = notes
	}
	return cloneMeeting(m), nil
}

// ==================== 外部依赖 ====================

type fakeNotifier struct {
	mu       sync.Mutex
	sent     []string
	phones   []string
	sendErr  error
	provider string
}

func (f *fakeNotifier) Send(ctx context.Context, phone, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.phones = append(f.phones, phone)
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeNotifier) Provider() string {
	if f.provider == "" {
		return "fake"
	}
	return f.provider
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type emitted struct {
	to      string // 广播时为空
	event   string
	data    any
	exclude string
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

var _ EventEmitter = (*fakeEmitter)(nil)

func (f *fakeEmitter) EmitToUser(userID, event string, data any) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{to: userID, event: event, data: data})
	return true
}

func (f *fakeEmitter) Broadcast(event string, data any, excludeUserID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{event: event, data: data, exclude: excludeUserID})
}

// find 返回第一个匹配的事件
func (f *fakeEmitter) find(event, to string) (emitted, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.events {
		if e.event == event && e.to == to {
			return e, true
		}
	}
	return emitted{}, false
}

type fakeAvatarStorage struct {
	mu      sync.Mutex
	putErr  error
	deleted []string
}

var _ AvatarStorage = (*fakeAvatarStorage)(nil)

func (f *fakeAvatarStorage) PutAvatar(ctx context.Context, userID string, reader io.Reader, size int64) (*minio.UploadResult, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return nil, err
	}
	name := "avatars/" + userID + "/new.png"
	return &minio.UploadResult{ObjectName: name, Size: size, URL: "http://cdn.test/" + name, ContentType: "image/png"}, nil
}

func (f *fakeAvatarStorage) Delete(ctx context.Context, objectName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, objectName)
	return nil
}

func (f *fakeAvatarStorage) ObjectNameFromURL(url string) string {
	const prefix = "http://cdn.test/"
	if len(url) > len(prefix) && url[:len(prefix)] == prefix {
		return url[len(prefix):]
	}
	return ""
}

func (f *fakeAvatarStorage) deletedObjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

var errStoreDown = errors.New("store down")

// verifiedUser 已验证、在线、位于给定坐标的用户
func verifiedUser(id, name string, lat, lng float64) *model.User {
	return &model.User{
		ID:          id,
		Name:        name,
		PhoneNumber: "+8190000" + id,
		Gender:      model.GenderOther,
		Lat:         lat,
		Lng:         lng,
		IsOnline:    true,
		SmsVerified: true,
	}
}
