package repository

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"

	"gorm.io/gorm"
	"gorm.io/plugin/dbresolver"
)

// matchRepositoryImpl 匹配数据访问层实现
type matchRepositoryImpl struct {
	db *gorm.DB
}

// NewMatchRepository 创建匹配仓储实例
func NewMatchRepository(db *gorm.DB) IMatchRepository {
	return &matchRepositoryImpl{db: db}
}

// terminalUpdates 迁出 pending 时必须同时清空 pending_pair
func terminalUpdates(status string, at time.Time) map[string]any {
	updates := map[string]any{
		"status":       status,
		"pending_pair": nil,
	}
	if status != model.MatchStatusExpired {
		updates["responded_at"] = at
	}
	return updates
}

func (r *matchRepositoryImpl) CreatePending(ctx context.Context, m *model.Match) error {
	pair := model.PairKey(m.RequesterID, m.TargetUserID)
	m.Status = model.MatchStatusPending
	m.PendingPair = &pair
	return WrapDBError(r.db.WithContext(ctx).Create(m).Error)
}

func (r *matchRepositoryImpl) GetPendingByPair(ctx context.Context, pairKey string) (*model.Match, error) {
	var m model.Match
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("pending_pair = ?", pairKey).
		First(&m).
		Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &m, nil
}

func (r *matchRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Match, error) {
	var m model.Match
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("id = ?", id).
		First(&m).
		Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &m, nil
}

// Accept 状态迁移、计数和会面创建在同一事务内，任何一步失败整体回滚
func (r *matchRepositoryImpl) Accept(ctx context.Context, matchID string, at time.Time, meeting *model.Meeting) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 条件更新：只有仍处于 pending 且未过期的匹配才能被接受
		res := tx.Model(&model.Match{}).
			Where("id = ? AND status = ? AND expires_at > ?", matchID, model.MatchStatusPending, at).
			Updates(terminalUpdates(model.MatchStatusAccepted, at))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		// 2. 双方匹配次数 +1
		if err := tx.Model(&model.User{}).
			Where("id IN ?", []string{meeting.RequesterID, meeting.TargetUserID}).
			UpdateColumn("match_count", gorm.Expr("match_count + 1")).
			Error; err != nil {
			return err
		}

		// 3. 创建会面
		return tx.Create(meeting).Error
	})
	return WrapDBError(err)
}

func (r *matchRepositoryImpl) Reject(ctx context.Context, matchID string, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND expires_at > ?", matchID, model.MatchStatusPending, at).
		Updates(terminalUpdates(model.MatchStatusRejected, at))
	if res.Error != nil {
		return WrapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

func (r *matchRepositoryImpl) Expire(ctx context.Context, matchID string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND expires_at <= ?", matchID, model.MatchStatusPending, now).
		Updates(terminalUpdates(model.MatchStatusExpired, now))
	if res.Error != nil {
		return false, WrapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *matchRepositoryImpl) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("status = ? AND expires_at <= ?", model.MatchStatusPending, now).
		Updates(terminalUpdates(model.MatchStatusExpired, now))
	return res.RowsAffected, WrapDBError(res.Error)
}

func (r *matchRepositoryImpl) ExpireStaleForUser(ctx context.Context, userID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("status = ? AND expires_at <= ?", model.MatchStatusPending, now).
		Where("requester_id = ? OR target_user_id = ?", userID, userID).
		Updates(terminalUpdates(model.MatchStatusExpired, now))
	return res.RowsAffected, WrapDBError(res.Error)
}

func (r *matchRepositoryImpl) History(ctx context.Context, userID, status string, page, limit int) ([]*model.Match, int64, error) {
	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("requester_id = ? OR target_user_id = ?", userID, userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, WrapDBError(err)
	}

	var matches []*model.Match
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Find(&matches).
		Error; err != nil {
		return nil, 0, WrapDBError(err)
	}
	return matches, total, nil
}
