package service

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/async"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/minio"
)

// userServiceImpl 用户服务实现
type userServiceImpl struct {
	userRepo repository.IUserRepository
	emitter  EventEmitter
	avatars  AvatarStorage
}

// NewUserService 创建用户服务实例
// avatars 为 nil 时头像上传返回 503
func NewUserService(userRepo repository.IUserRepository, emitter EventEmitter, avatars AvatarStorage) UserService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &userServiceImpl{
		userRepo: userRepo,
		emitter:  emitter,
		avatars:  avatars,
	}
}

// FindNearby 附近用户：包围盒预筛 + haversine 精确过滤
func (s *userServiceImpl) FindNearby(ctx context.Context, userID string, q *dto.NearbyQuery) (*dto.NearbyResponse, error) {
	center := geo.Point{Lat: *q.Lat, Lng: *q.Lng}
	if err := validatePoint(center); err != nil {
		return nil, err
	}
	radius := geo.ClampRadius(q.Radius, nearbyDefaultRadius, nearbyMinRadius, nearbyMaxRadius)

	candidates, err := s.userRepo.FindInBox(ctx, buildNearbyQuery(center, radius, userID, q.OnlineOnly))
	if err != nil {
		return nil, internalError(ctx, "附近用户预筛", err)
	}

	hits, truncated := limitHits(filterNearby(center, radius, userID, candidates))
	users := make([]*dto.NearbyUser, 0, len(hits))
	for _, h := range hits {
		users = append(users, &dto.NearbyUser{
			UserInfo: *dto.ConvertUserInfo(h.user),
			Distance: h.distance,
		})
	}

	logger.Debug(ctx, "附近用户查询",
		logger.Float64("radius", radius),
		logger.Int("candidates", len(candidates)),
		logger.Int("hits", len(users)),
		logger.Bool("truncated", truncated),
	)
	return &dto.NearbyResponse{Users: users, Count: len(users), Truncated: truncated}, nil
}

// UpdateLocation 写入位置，广播给其他在线用户
func (s *userServiceImpl) UpdateLocation(ctx context.Context, userID string, loc dto.Location) (dto.Location, error) {
	p := loc.ToPoint()
	if err := validatePoint(p); err != nil {
		return dto.Location{}, err
	}

	now := nowFunc()
	if err := s.userRepo.UpdateLocation(ctx, userID, p, nil, now); err != nil {
		return dto.Location{}, notFoundOr(ctx, "更新位置", err, consts.CodeUserNotFound)
	}

	s.emitter.Broadcast(dto.EventUserLocationUpdate, &dto.UserLocationPayload{
		UserID:    userID,
		Location:  loc,
		Timestamp: now,
	}, userID)
	return loc, nil
}

func (s *userServiceImpl) GetProfile(ctx context.Context, targetID string) (*dto.ProfileResponse, error) {
	user, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询用户资料", err, consts.CodeUserNotFound)
	}
	return &dto.ProfileResponse{User: dto.ConvertUserInfo(user)}, nil
}

func (s *userServiceImpl) UpdateProfile(ctx context.Context, userID string, req *dto.UpdateProfileRequest) (*dto.UpdateProfileResponse, error) {
	err := s.userRepo.UpdateProfile(ctx, userID, repository.ProfileUpdate{
		Name:         req.Name,
		Bio:          req.Bio,
		ProfilePhoto: req.ProfilePhoto,
		Address:      req.Address,
	})
	if err != nil {
		return nil, notFoundOr(ctx, "更新资料", err, consts.CodeUserNotFound)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "更新资料回读", err, consts.CodeUserNotFound)
	}
	return &dto.UpdateProfileResponse{
		Message: "Profile updated successfully",
		User:    dto.ConvertSelfInfo(user),
	}, nil
}

// SetStatus 手动切换在线状态
func (s *userServiceImpl) SetStatus(ctx context.Context, userID string, online bool) (*dto.SetStatusResponse, error) {
	now := nowFunc()
	if err := s.userRepo.SetOnlineFlag(ctx, userID, online, now); err != nil {
		return nil, notFoundOr(ctx, "更新在线状态", err, consts.CodeUserNotFound)
	}

	s.emitter.Broadcast(dto.EventUserStatusUpdate, &dto.UserStatusPayload{
		UserID:   userID,
		IsOnline: online,
		LastSeen: now,
	}, "")

	return &dto.SetStatusResponse{
		Message:  "Status updated successfully",
		IsOnline: online,
		LastSeen: now,
	}, nil
}

// UploadAvatar 上传成功后替换头像，旧对象异步删除
func (s *userServiceImpl) UploadAvatar(ctx context.Context, userID string, file io.Reader, size int64) (*dto.UploadAvatarResponse, error) {
	if s.avatars == nil {
		return nil, bizerr.New(consts.CodeServiceUnavailable)
	}

	// 1. 读取旧头像
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "上传头像查询用户", err, consts.CodeUserNotFound)
	}

	// 2. 上传到对象存储
	res, err := s.avatars.PutAvatar(ctx, userID, file, size)
	if err != nil {
		switch {
		case errors.Is(err, minio.ErrFileTooLarge):
			return nil, bizerr.New(consts.CodeBodyTooLarge)
		case errors.Is(err, minio.ErrUnsupportedType):
			return nil, bizerr.New(consts.CodeFileFormatNotSupport)
		}
		logger.Error(ctx, "头像上传失败", logger.ErrorField("error", err))
		return nil, bizerr.Wrap(consts.CodeFileUploadFail, err)
	}

	// 3. 更新资料，失败时删除刚上传的对象
	url := res.URL
	if err := s.userRepo.UpdateProfile(ctx, userID, repository.ProfileUpdate{ProfilePhoto: &url}); err != nil {
		s.removeObjectAsync(ctx, res.ObjectName)
		return nil, internalError(ctx, "更新头像地址", err)
	}

	// 4. 删除旧头像（仅限本存储中的对象）
	if old := s.avatars.ObjectNameFromURL(user.ProfilePhoto); old != "" {
		s.removeObjectAsync(ctx, old)
	}

	return &dto.UploadAvatarResponse{AvatarURL: url}, nil
}

func (s *userServiceImpl) removeObjectAsync(ctx context.Context, objectName string) {
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := s.avatars.Delete(runCtx, objectName); err != nil {
			logger.Warn(runCtx, "删除头像对象失败",
				logger.String("object", objectName),
				logger.ErrorField("error", err),
			)
		}
	}, 10*time.Second)
}

func (s *userServiceImpl) ListUsers(ctx context.Context, q *dto.PaginationQuery) (*dto.ListUsersResponse, error) {
	q.Normalize(20)
	users, total, err := s.userRepo.ListVerified(ctx, q.Page, q.Limit)
	if err != nil {
		return nil, internalError(ctx, "用户列表", err)
	}

	infos := make([]*dto.UserInfo, 0, len(users))
	for _, u := range users {
		infos = append(infos, dto.ConvertUserInfo(u))
	}
	return &dto.ListUsersResponse{
		Users:       infos,
		Count:       len(infos),
		Total:       total,
		TotalPages:  dto.TotalPages(total, q.Limit),
		CurrentPage: q.Page,
	}, nil
}

func (s *userServiceImpl) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询用户", err, consts.CodeUserNotFound)
	}
	return user, nil
}
