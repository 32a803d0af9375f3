package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/event"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/metrics"
	"github.com/sudo-enjoy/matching-app-be/pkg/util"
)

const (
	matchTTL         = 24 * time.Hour
	meetingDelay     = 30 * time.Minute
	reasonMinLen     = 5
	reasonMaxLen     = 200
	notesMaxLen      = 1000
	historyPageLimit = 10
	ratingMin        = 1
	ratingMax        = 5
)

// matchingServiceImpl 匹配服务实现
// 跨请求的状态约束全部落在存储层的条件更新与唯一索引上，这里只做编排
type matchingServiceImpl struct {
	matchRepo   repository.IMatchRepository
	meetingRepo repository.IMeetingRepository
	userRepo    repository.IUserRepository
	emitter     EventEmitter
	publisher   event.Publisher
}

// NewMatchingService 创建匹配服务实例
func NewMatchingService(
	matchRepo repository.IMatchRepository,
	meetingRepo repository.IMeetingRepository,
	userRepo repository.IUserRepository,
	emitter EventEmitter,
	publisher event.Publisher,
) MatchingService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &matchingServiceImpl{
		matchRepo:   matchRepo,
		meetingRepo: meetingRepo,
		userRepo:    userRepo,
		emitter:     emitter,
		publisher:   publisher,
	}
}

// RequestMatch 发起匹配
func (s *matchingServiceImpl) RequestMatch(ctx context.Context, requesterID string, req *dto.SendMatchRequest) (*dto.MatchResponse, error) {
	// 1. 参数校验
	reason := strings.TrimSpace(req.MeetingReason)
	if n := utf8.RuneCountInString(reason); n < reasonMinLen || n > reasonMaxLen {
		return nil, bizerr.New(consts.CodeParamError)
	}
	if req.TargetUserID == requesterID {
		return nil, bizerr.New(consts.CodeSelfMatch)
	}

	// 2. 双方状态校验
	requester, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, notFoundOr(ctx, "匹配查询发起人", err, consts.CodeUserNotFound)
	}
	target, err := s.userRepo.GetByID(ctx, req.TargetUserID)
	if err != nil {
		return nil, notFoundOr(ctx, "匹配查询对方", err, consts.CodeTargetUnavailable)
	}
	if !target.SmsVerified || !target.IsOnline || !target.HasLocation() {
		return nil, bizerr.New(consts.CodeTargetUnavailable)
	}
	if !requester.HasLocation() {
		return nil, bizerr.New(consts.CodeLocationUnset)
	}

	// 3. 见面点取双方位置的球面中点
	now := nowFunc()
	mid := geo.Midpoint(
		geo.Point{Lat: requester.Lat, Lng: requester.Lng},
		geo.Point{Lat: target.Lat, Lng: target.Lng},
	)
	m := &model.Match{
		ID:            util.GenIDString(),
		RequesterID:   requester.ID,
		TargetUserID:  target.ID,
		MeetingReason: reason,
		MeetingLat:    mid.Lat,
		MeetingLng:    mid.Lng,
		ExpiresAt:     now.Add(matchTTL),
		CreatedAt:     now,
	}

	// 4. 写入；同一用户对已有待处理匹配时，若对方的那条已过期则先过期再重试一次
	err = s.matchRepo.CreatePending(ctx, m)
	if errors.Is(err, repository.ErrDuplicateKey) && s.clearExpiredBlocker(ctx, model.PairKey(requester.ID, target.ID), now) {
		err = s.matchRepo.CreatePending(ctx, m)
	}
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			return nil, bizerr.New(consts.CodeDuplicatePending)
		}
		return nil, internalError(ctx, "创建匹配", err)
	}
	metrics.MatchTransitions.WithLabelValues(model.MatchStatusPending).Inc()

	// 5. 通知对方并发布领域事件
	s.emitter.EmitToUser(target.ID, dto.EventNewMatchRequest, &dto.NewMatchRequestPayload{
		MatchID:       m.ID,
		Requester:     dto.ConvertUserSummary(requester),
		MeetingReason: m.MeetingReason,
		MeetingPoint:  dto.ConvertMeetingPoint(m),
		ExpiresAt:     m.ExpiresAt,
	})
	event.PublishAsync(ctx, s.publisher, event.BuildMatchRequested(m).WithSource("MatchingService.RequestMatch"))

	logger.Info(ctx, "匹配请求已创建",
		logger.String("match_id", m.ID),
		logger.String("target_user_id", target.ID),
	)

	users := map[string]*model.User{requester.ID: requester, target.ID: target}
	return &dto.MatchResponse{
		Message: "Match request sent successfully",
		Match:   dto.ConvertMatchInfo(m, users),
	}, nil
}

// clearExpiredBlocker 阻塞的待处理匹配已过期时将其过期，返回是否值得重试
func (s *matchingServiceImpl) clearExpiredBlocker(ctx context.Context, pair string, now time.Time) bool {
	blocker, err := s.matchRepo.GetPendingByPair(ctx, pair)
	if err != nil {
		// 已被其他请求处理掉
		return errors.Is(err, repository.ErrRecordNotFound)
	}
	if !blocker.IsExpiredAt(now) {
		return false
	}
	s.expireMatch(ctx, blocker, now)
	return true
}

// expireMatch 条件过期单条匹配
func (s *matchingServiceImpl) expireMatch(ctx context.Context, m *model.Match, now time.Time) {
	ok, err := s.matchRepo.Expire(ctx, m.ID, now)
	if err != nil {
		logger.Warn(ctx, "过期匹配失败", logger.String("match_id", m.ID), logger.ErrorField("error", err))
		return
	}
	if ok {
		metrics.MatchTransitions.WithLabelValues(model.MatchStatusExpired).Inc()
		event.PublishAsync(ctx, s.publisher, event.BuildMatchResolved(m, model.MatchStatusExpired).WithSource("MatchingService.expireMatch"))
	}
}

// RespondToMatch 被邀请方接受或拒绝
func (s *matchingServiceImpl) RespondToMatch(ctx context.Context, responderID string, req *dto.RespondMatchRequest) (*dto.MatchResponse, error) {
	// 1. 状态校验
	m, err := s.matchRepo.GetByID(ctx, req.MatchID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询匹配", err, consts.CodeMatchNotFound)
	}
	if m.TargetUserID != responderID {
		return nil, bizerr.New(consts.CodeMatchForbidden)
	}
	if m.Status != model.MatchStatusPending {
		return nil, bizerr.New(consts.CodeMatchResolved)
	}
	now := nowFunc()
	if m.IsExpiredAt(now) {
		s.expireMatch(ctx, m, now)
		return nil, bizerr.New(consts.CodeMatchExpired)
	}

	users, err := s.loadUsers(ctx, m.RequesterID, m.TargetUserID)
	if err != nil {
		return nil, err
	}
	requester, target := users[m.RequesterID], users[m.TargetUserID]

	switch req.Response {
	case model.MatchStatusAccepted:
		// 2. 接受：状态、计数、会面在同一事务
		meeting := &model.Meeting{
			ID:            util.GenIDString(),
			MatchID:       m.ID,
			RequesterID:   m.RequesterID,
			TargetUserID:  m.TargetUserID,
			ScheduledTime: now.Add(meetingDelay),
		}
		if err := s.matchRepo.Accept(ctx, m.ID, now, meeting); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, bizerr.New(consts.CodeMatchResolved)
			}
			return nil, internalError(ctx, "接受匹配", err)
		}
		markResolved(m, model.MatchStatusAccepted, now)

		point := dto.ConvertMeetingPoint(m)
		s.emitter.EmitToUser(m.RequesterID, dto.EventMatchAccepted, &dto.MatchAcceptedPayload{
			MatchID:       m.ID,
			TargetUser:    dto.ConvertUserSummary(target),
			MeetingPoint:  point,
			MeetingID:     meeting.ID,
			ScheduledTime: meeting.ScheduledTime,
		})
		s.emitter.EmitToUser(m.TargetUserID, dto.EventMatchConfirmed, &dto.MatchConfirmedPayload{
			MatchID:       m.ID,
			Requester:     dto.ConvertUserSummary(requester),
			MeetingPoint:  point,
			MeetingID:     meeting.ID,
			ScheduledTime: meeting.ScheduledTime,
		})

	default:
		// 3. 拒绝
		if err := s.matchRepo.Reject(ctx, m.ID, now); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return nil, bizerr.New(consts.CodeMatchResolved)
			}
			return nil, internalError(ctx, "拒绝匹配", err)
		}
		markResolved(m, model.MatchStatusRejected, now)

		s.emitter.EmitToUser(m.RequesterID, dto.EventMatchRejected, &dto.MatchRejectedPayload{
			MatchID:      m.ID,
			TargetUserID: m.TargetUserID,
		})
	}

	metrics.MatchTransitions.WithLabelValues(m.Status).Inc()
	event.PublishAsync(ctx, s.publisher, event.BuildMatchResolved(m, m.Status).WithSource("MatchingService.RespondToMatch"))

	return &dto.MatchResponse{
		Message: "Match " + m.Status + " successfully",
		Match:   dto.ConvertMatchInfo(m, users),
	}, nil
}

func markResolved(m *model.Match, status string, at time.Time) {
	m.Status = status
	m.PendingPair = nil
	t := at
	m.RespondedAt = &t
}

// ConfirmMeeting 参与者确认见面
func (s *matchingServiceImpl) ConfirmMeeting(ctx context.Context, confirmerID string, req *dto.ConfirmMeetingRequest) (*dto.MeetingResponse, error) {
	meeting, err := s.meetingRepo.GetByID(ctx, req.MeetingID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询会面", err, consts.CodeMeetingNotFound)
	}
	if !meeting.IsParticipant(confirmerID) {
		return nil, bizerr.New(consts.CodeMeetingForbidden)
	}

	res, err := s.meetingRepo.Confirm(ctx, meeting.ID, meeting.RequesterID == confirmerID, nowFunc())
	if err != nil {
		return nil, notFoundOr(ctx, "确认会面", err, consts.CodeMeetingNotFound)
	}
	if res.Stamped {
		metrics.MeetingsCompleted.Inc()
		logger.Info(ctx, "会面双方已确认", logger.String("meeting_id", meeting.ID))
	}

	// 通知对方，confirmedBy 使用确认人昵称
	confirmedBy := confirmerID
	if confirmer, err := s.userRepo.GetByID(ctx, confirmerID); err == nil {
		confirmedBy = confirmer.Name
	}
	s.emitter.EmitToUser(res.Meeting.OtherParticipant(confirmerID), dto.EventMeetingConfirmed, &dto.MeetingConfirmedPayload{
		MeetingID:     res.Meeting.ID,
		ConfirmedBy:   confirmedBy,
		BothConfirmed: res.Meeting.BothConfirmed,
	})
	event.PublishAsync(ctx, s.publisher, event.BuildMeetingConfirmed(res.Meeting, confirmerID, res.Stamped).WithSource("MatchingService.ConfirmMeeting"))

	return &dto.MeetingResponse{
		Message: "Meeting confirmed successfully",
		Meeting: dto.ConvertMeetingInfo(res.Meeting),
	}, nil
}

// RateMeeting 双方确认后可评分
func (s *matchingServiceImpl) RateMeeting(ctx context.Context, raterID string, req *dto.RateMeetingRequest) (*dto.MeetingResponse, error) {
	if req.Rating < ratingMin || req.Rating > ratingMax {
		return nil, bizerr.New(consts.CodeParamError)
	}
	if req.Notes != nil && utf8.RuneCountInString(*req.Notes) > notesMaxLen {
		return nil, bizerr.New(consts.CodeParamError)
	}

	meeting, err := s.meetingRepo.GetByID(ctx, req.MeetingID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询会面", err, consts.CodeMeetingNotFound)
	}
	if !meeting.IsParticipant(raterID) {
		return nil, bizerr.New(consts.CodeMeetingForbidden)
	}
	if !meeting.BothConfirmed {
		return nil, bizerr.New(consts.CodeMeetingNotConfirmed)
	}

	updated, err := s.meetingRepo.Rate(ctx, meeting.ID, meeting.RequesterID == raterID, req.Rating, req.Notes)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, bizerr.New(consts.CodeMeetingNotConfirmed)
		}
		return nil, internalError(ctx, "会面评分", err)
	}
	return &dto.MeetingResponse{
		Message: "Meeting rated successfully",
		Meeting: dto.ConvertMeetingInfo(updated),
	}, nil
}

// GetHistory 匹配记录，读取前先把该用户超时的待处理匹配过期
func (s *matchingServiceImpl) GetHistory(ctx context.Context, userID string, q *dto.MatchHistoryQuery) (*dto.MatchHistoryResponse, error) {
	q.Normalize(historyPageLimit)

	if n, err := s.matchRepo.ExpireStaleForUser(ctx, userID, nowFunc()); err != nil {
		logger.Warn(ctx, "历史查询前过期匹配失败", logger.ErrorField("error", err))
	} else if n > 0 {
		metrics.MatchTransitions.WithLabelValues(model.MatchStatusExpired).Add(float64(n))
	}

	matches, total, err := s.matchRepo.History(ctx, userID, q.Status, q.Page, q.Limit)
	if err != nil {
		return nil, internalError(ctx, "查询匹配历史", err)
	}

	ids := make([]string, 0, len(matches)*2)
	for _, m := range matches {
		ids = append(ids, m.RequesterID, m.TargetUserID)
	}
	users, err := s.loadUsers(ctx, ids...)
	if err != nil {
		return nil, err
	}

	infos := make([]*dto.MatchInfo, 0, len(matches))
	for _, m := range matches {
		infos = append(infos, dto.ConvertMatchInfo(m, users))
	}
	return &dto.MatchHistoryResponse{
		Matches:     infos,
		TotalPages:  dto.TotalPages(total, q.Limit),
		CurrentPage: q.Page,
		Total:       total,
	}, nil
}

// ExpireStale 定时清理入口
func (s *matchingServiceImpl) ExpireStale(ctx context.Context) (int64, error) {
	n, err := s.matchRepo.ExpireStale(ctx, nowFunc())
	if err != nil {
		return 0, internalError(ctx, "批量过期匹配", err)
	}
	if n > 0 {
		metrics.MatchTransitions.WithLabelValues(model.MatchStatusExpired).Add(float64(n))
		event.PublishAsync(ctx, s.publisher, event.BuildMatchesExpired(n).WithSource("MatchingService.ExpireStale"))
	}
	return n, nil
}

// loadUsers 批量读取用户并按 id 建索引
func (s *matchingServiceImpl) loadUsers(ctx context.Context, ids ...string) (map[string]*model.User, error) {
	seen := make(map[string]struct{}, len(ids))
	uniq := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniq = append(uniq, id)
	}

	list, err := s.userRepo.GetByIDs(ctx, uniq)
	if err != nil {
		return nil, internalError(ctx, "批量查询用户", err)
	}
	users := make(map[string]*model.User, len(list))
	for _, u := range list {
		users[u.ID] = u
	}
	return users, nil
}
