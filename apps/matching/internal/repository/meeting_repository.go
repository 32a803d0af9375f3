package repository

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// meetingRepositoryImpl 会面数据访问层实现
type meetingRepositoryImpl struct {
	db *gorm.DB
}

// NewMeetingRepository 创建会面仓储实例
func NewMeetingRepository(db *gorm.DB) IMeetingRepository {
	return &meetingRepositoryImpl{db: db}
}

func (r *meetingRepositoryImpl) GetByID(ctx context.Context, id string) (*model.Meeting, error) {
	var m model.Meeting
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

// Confirm 双方并发确认时，行锁保证 both_confirmed 重算看到对方的写入，
// actual_meeting_time 的条件更新保证计数只加一次
func (r *meetingRepositoryImpl) Confirm(ctx context.Context, meetingID string, asRequester bool, now time.Time) (*ConfirmResult, error) {
	result := &ConfirmResult{}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 1. 设置己方确认（幂等）
		column := "target_confirmed"
		if asRequester {
			column = "requester_confirmed"
		}
		res := tx.Model(&model.Meeting{}).
			Where("id = ?", meetingID).
			UpdateColumn(column, true)
		if res.Error != nil {
			return res.Error
		}

		// 2. 加锁读取最新状态并重算 both_confirmed
		var m model.Meeting
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", meetingID).
			First(&m).
			Error; err != nil {
			return err
		}
		both := m.RequesterConfirmed && m.TargetConfirmed
		if both != m.BothConfirmed {
			if err := tx.Model(&model.Meeting{}).
				Where("id = ?", meetingID).
				UpdateColumn("both_confirmed", both).
				Error; err != nil {
				return err
			}
			m.BothConfirmed = both
		}

		// 3. 条件写入实际见面时间，只有第一个看到双方确认的事务能命中
		stamp := tx.Model(&model.Meeting{}).
			Where("id = ? AND actual_meeting_time IS NULL AND requester_confirmed = ? AND target_confirmed = ?", meetingID, true, true).
			UpdateColumns(map[string]any{
				"actual_meeting_time": now,
				"meeting_success":     true,
			})
		if stamp.Error != nil {
			return stamp.Error
		}

		// 4. 命中后双方实际见面次数 +1
		if stamp.RowsAffected > 0 {
			if err := tx.Model(&model.User{}).
				Where("id IN ?", []string{m.RequesterID, m.TargetUserID}).
				UpdateColumn("actual_meet_count", gorm.Expr("actual_meet_count + 1")).
				Error; err != nil {
				return err
			}
			t := now
			m.ActualMeetingTime = &t
			m.MeetingSuccess = true
			result.Stamped = true
		}

		result.Meeting = &m
		return nil
	})
	if err != nil {
		return nil, WrapDBError(err)
	}
	return result, nil
}

func (r *meetingRepositoryImpl) Rate(ctx context.Context, meetingID string, asRequester bool, rating int8, notes *string) (*model.Meeting, error) {
	column := "target_rating"
	if asRequester {
		column = "requester_rating"
	}
	updates := map[string]any{column: rating}
	if notes != nil {
		updates["notes"] = *notes
	}

	var m model.Meeting
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Meeting{}).
			Where("id = ? AND both_confirmed = ?", meetingID, true).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}
		return tx.Where("id = ?", meetingID).First(&m).Error
	})
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &m, nil
}
