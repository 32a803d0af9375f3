package repository

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/dbresolver"
)

// userRepositoryImpl 用户数据访问层实现
type userRepositoryImpl struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *gorm.DB) IUserRepository {
	return &userRepositoryImpl{db: db}
}

func (r *userRepositoryImpl) GetByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("id = ?", id).
		First(&user).
		Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

func (r *userRepositoryImpl) GetByIDs(ctx context.Context, ids []string) ([]*model.User, error) {
	if len(ids) == 0 {
		return []*model.User{}, nil
	}
	var users []*model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return users, nil
}

func (r *userRepositoryImpl) GetByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Clauses(dbresolver.Write).
		Where("phone_number = ?", phone).
		First(&user).
		Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &user, nil
}

func (r *userRepositoryImpl) Create(ctx context.Context, user *model.User) error {
	return WrapDBError(r.db.WithContext(ctx).Create(user).Error)
}

// RefreshPending 条件更新，已验证用户不受影响
func (r *userRepositoryImpl) RefreshPending(ctx context.Context, id, name, gender, address string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND sms_verified = ?", id, false).
		Updates(map[string]any{
			"name":    name,
			"gender":  gender,
			"address": address,
		})
	if res.Error != nil {
		return false, WrapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepositoryImpl) DeleteUnverified(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND sms_verified = ?", id, false).
		Delete(&model.User{}).
		Error
	return WrapDBError(err)
}

func (r *userRepositoryImpl) SetVerifyCode(ctx context.Context, id, codeHash string, expiry time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sms_code":        codeHash,
			"sms_code_expiry": expiry,
		}).
		Error
	return WrapDBError(err)
}

func (r *userRepositoryImpl) ClearVerifyCode(ctx context.Context, id string) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sms_code":        nil,
			"sms_code_expiry": nil,
		}).
		Error
	return WrapDBError(err)
}

// ConsumeVerifyCode 以哈希做 CAS，两个并发提交只有一个能命中
func (r *userRepositoryImpl) ConsumeVerifyCode(ctx context.Context, id, codeHash string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND sms_code = ?", id, codeHash).
		Updates(map[string]any{
			"sms_code":        nil,
			"sms_code_expiry": nil,
			"sms_verified":    true,
		})
	if res.Error != nil {
		return false, WrapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepositoryImpl) UpdateLocation(ctx context.Context, id string, p geo.Point, address *string, at time.Time) error {
	updates := map[string]any{
		"lat":       p.Lat,
		"lng":       p.Lng,
		"last_seen": at,
	}
	if address != nil {
		updates["address"] = *address
	}
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates).
		Error
	return WrapDBError(err)
}

func (r *userRepositoryImpl) MarkOnline(ctx context.Context, id, socketID string, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_online": true,
			"socket_id": socketID,
			"last_seen": at,
		}).
		Error
	return WrapDBError(err)
}

// MarkOffline 条件更新：若该用户已有新连接接管，则不改动
func (r *userRepositoryImpl) MarkOffline(ctx context.Context, id, socketID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ? AND socket_id = ?", id, socketID).
		Updates(map[string]any{
			"is_online": false,
			"socket_id": nil,
			"last_seen": at,
		})
	if res.Error != nil {
		return false, WrapDBError(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *userRepositoryImpl) SetOnlineFlag(ctx context.Context, id string, online bool, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_online": online,
			"last_seen": at,
		}).
		Error
	return WrapDBError(err)
}

func (r *userRepositoryImpl) ResetPresence(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("is_online = ? OR socket_id IS NOT NULL", true).
		Updates(map[string]any{
			"is_online": false,
			"socket_id": nil,
			"last_seen": at,
		})
	return res.RowsAffected, WrapDBError(res.Error)
}

// FindInBox 包围盒走 idx_lat_lng，排序交给 ST_Distance_Sphere。
// 结果只是候选集，精确距离由调用方用 haversine 复核。
func (r *userRepositoryImpl) FindInBox(ctx context.Context, q NearbyQuery) ([]*model.User, error) {
	if len(q.Box.LngRanges) == 0 {
		return []*model.User{}, nil
	}

	db := r.db.WithContext(ctx)
	query := db.Model(&model.User{}).
		Where("sms_verified = ?", true).
		Where("lat BETWEEN ? AND ?", q.Box.MinLat, q.Box.MaxLat).
		Where("NOT (lat = 0 AND lng = 0)")

	// 跨反经线时经度是两段区间
	lngCond := db.Where("lng BETWEEN ? AND ?", q.Box.LngRanges[0].Min, q.Box.LngRanges[0].Max)
	for _, rg := range q.Box.LngRanges[1:] {
		lngCond = lngCond.Or("lng BETWEEN ? AND ?", rg.Min, rg.Max)
	}
	query = query.Where(lngCond)

	if q.ExcludeID != "" {
		query = query.Where("id <> ?", q.ExcludeID)
	}
	if q.OnlineOnly {
		query = query.Where("is_online = ?", true)
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 200
	}

	var users []*model.User
	err := query.
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "ST_Distance_Sphere(POINT(lng, lat), POINT(?, ?), ?)",
			Vars: []any{q.Center.Lng, q.Center.Lat, geo.EarthRadiusMeters},
		}}).
		Limit(limit).
		Find(&users).
		Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return users, nil
}

func (r *userRepositoryImpl) UpdateProfile(ctx context.Context, id string, upd ProfileUpdate) error {
	updates := map[string]any{}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Bio != nil {
		updates["bio"] = *upd.Bio
	}
	if upd.ProfilePhoto != nil {
		updates["profile_photo"] = *upd.ProfilePhoto
	}
	if upd.Address != nil {
		updates["address"] = *upd.Address
	}
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return WrapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		// 值未变化时 MySQL 也返回 0，这里再确认一次是否存在
		var count int64
		if err := r.db.WithContext(ctx).Clauses(dbresolver.Write).
			Model(&model.User{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return WrapDBError(err)
		}
		if count == 0 {
			return ErrRecordNotFound
		}
	}
	return nil
}

func (r *userRepositoryImpl) ListVerified(ctx context.Context, page, limit int) ([]*model.User, int64, error) {
	offset := (page - 1) * limit

	query := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("sms_verified = ?", true)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, WrapDBError(err)
	}

	var users []*model.User
	if err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&users).
		Error; err != nil {
		return nil, 0, WrapDBError(err)
	}
	return users, total, nil
}
