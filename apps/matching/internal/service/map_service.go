package service

import (
	"context"
	"fmt"
	"math"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
)

const (
	defaultBio     = "こんにちは！"
	defaultAddress = "Tokyo, Japan"
	defaultZoom    = 12
)

// defaultCenter 未上报位置时的地图中心（东京）
var defaultCenter = dto.Location{Lat: 35.6762, Lng: 139.6503}

var (
	defaultAvatars = map[string]string{
		model.GenderMale:   "https://randomuser.me/api/portraits/men/0.jpg",
		model.GenderFemale: "https://randomuser.me/api/portraits/women/0.jpg",
		model.GenderOther:  "https://randomuser.me/api/portraits/lego/0.jpg",
	}
	markerColors = map[string]string{
		model.GenderMale:   "#4A90E2",
		model.GenderFemale: "#E24A90",
		model.GenderOther:  "#50C878",
	}
	markerIcons = map[string]string{
		model.GenderMale:   "male",
		model.GenderFemale: "female",
		model.GenderOther:  "person",
	}
	configIcons = map[string]string{
		model.GenderMale:   "👨",
		model.GenderFemale: "👩",
		model.GenderOther:  "🧑",
	}
	radiusPresets = []int{1000, 5000, 10000, 25000, 50000, 100000}
)

// byGender 未知性别按 other 处理
func byGender(m map[string]string, gender string) string {
	if v, ok := m[gender]; ok {
		return v
	}
	return m[model.GenderOther]
}

type mapServiceImpl struct {
	userRepo repository.IUserRepository
	emitter  EventEmitter
	config   *dto.MapConfig
}

// NewMapService 创建地图服务实例
func NewMapService(userRepo repository.IUserRepository, emitter EventEmitter) MapService {
	if emitter == nil {
		emitter = NopEmitter{}
	}
	return &mapServiceImpl{
		userRepo: userRepo,
		emitter:  emitter,
		config:   buildMapConfig(),
	}
}

func buildMapConfig() *dto.MapConfig {
	styles := make(map[string]dto.MarkerStyle, len(configIcons))
	for gender, icon := range configIcons {
		styles[gender] = dto.MarkerStyle{Color: markerColors[gender], Icon: icon, Size: "medium"}
	}
	options := make([]dto.RadiusOption, 0, len(radiusPresets))
	for _, v := range radiusPresets {
		options = append(options, dto.RadiusOption{Label: fmt.Sprintf("%dkm", v/1000), Value: v})
	}
	return &dto.MapConfig{
		DefaultCenter: defaultCenter,
		DefaultZoom:   defaultZoom,
		MaxRadius:     mapMaxRadius,
		MinRadius:     mapMinRadius,
		MarkerStyles:  styles,
		MapSettings: dto.MapSettings{
			EnableClustering: true,
			ClusterRadius:    50,
			MaxClusterRadius: 100,
		},
		RadiusOptions: options,
	}
}

func (s *mapServiceImpl) GetConfig(ctx context.Context) *dto.MapConfigResponse {
	return &dto.MapConfigResponse{
		Success: true,
		Config:  s.config,
		Message: "マップ設定を取得しました",
	}
}

// GetMapData 地图只展示在线用户
func (s *mapServiceImpl) GetMapData(ctx context.Context, userID string, q *dto.MapDataQuery) (*dto.MapDataResponse, error) {
	center := geo.Point{Lat: *q.Lat, Lng: *q.Lng}
	if err := validatePoint(center); err != nil {
		return nil, err
	}
	radius := geo.ClampRadius(q.Radius, mapDefaultRadius, mapMinRadius, mapMaxRadius)

	candidates, err := s.userRepo.FindInBox(ctx, buildNearbyQuery(center, radius, userID, true))
	if err != nil {
		return nil, internalError(ctx, "地图用户预筛", err)
	}

	hits, truncated := limitHits(filterNearby(center, radius, userID, candidates))
	users := make([]*dto.MapUser, 0, len(hits))
	for _, h := range hits {
		users = append(users, convertMapUser(h.user, h.distance))
	}

	return &dto.MapDataResponse{
		Success: true,
		Data: &dto.MapData{
			Users:     users,
			Center:    dto.NewLocation(center),
			Radius:    radius,
			Count:     len(users),
			Truncated: truncated,
		},
		Message: fmt.Sprintf("%d人のユーザーが見つかりました", len(users)),
	}, nil
}

func convertMapUser(u *model.User, distance float64) *dto.MapUser {
	photo := u.ProfilePhoto
	if photo == "" {
		photo = byGender(defaultAvatars, u.Gender)
	}
	bio := u.Bio
	if bio == "" {
		bio = defaultBio
	}
	size := "medium"
	if u.IsOnline {
		size = "large"
	}
	return &dto.MapUser{
		ID:           u.ID,
		Name:         u.Name,
		Gender:       u.Gender,
		ProfilePhoto: photo,
		Bio:          bio,
		Location:     dto.Location{Lat: u.Lat, Lng: u.Lng},
		Distance:     int64(math.Round(distance)),
		IsOnline:     u.IsOnline,
		LastSeen:     u.LastSeen,
		MatchCount:   u.MatchCount,
		Marker: dto.MapMarker{
			Color: byGender(markerColors, u.Gender),
			Icon:  byGender(markerIcons, u.Gender),
			Size:  size,
		},
	}
}

// GetLocation 用于地图居中，未上报时返回东京
func (s *mapServiceImpl) GetLocation(ctx context.Context, userID string) (*dto.MapLocationResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "查询地图位置", err, consts.CodeUserNotFound)
	}

	loc := &dto.MapLocation{Lat: user.Lat, Lng: user.Lng, Address: user.Address}
	if !user.HasLocation() {
		loc = &dto.MapLocation{
			Lat:       defaultCenter.Lat,
			Lng:       defaultCenter.Lng,
			Address:   defaultAddress,
			IsDefault: true,
		}
	}
	return &dto.MapLocationResponse{
		Success:  true,
		Location: loc,
		Message:  "現在地を取得しました",
	}, nil
}

// UpdateLocation 从地图更新位置，可附带地址
func (s *mapServiceImpl) UpdateLocation(ctx context.Context, userID string, req *dto.UpdateMapLocationRequest) (*dto.MapLocationResponse, error) {
	p := geo.Point{Lat: *req.Lat, Lng: *req.Lng}
	if err := validatePoint(p); err != nil {
		return nil, err
	}

	var address *string
	if req.Address != nil && *req.Address != "" {
		address = req.Address
	}

	now := nowFunc()
	if err := s.userRepo.UpdateLocation(ctx, userID, p, address, now); err != nil {
		return nil, notFoundOr(ctx, "地图更新位置", err, consts.CodeUserNotFound)
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFoundOr(ctx, "地图更新位置回读", err, consts.CodeUserNotFound)
	}

	loc := dto.NewLocation(p)
	s.emitter.Broadcast(dto.EventUserLocationUpdate, &dto.UserLocationPayload{
		UserID:    userID,
		Location:  loc,
		Timestamp: now,
	}, userID)

	return &dto.MapLocationResponse{
		Success:  true,
		Location: &dto.MapLocation{Lat: loc.Lat, Lng: loc.Lng, Address: user.Address},
		Message:  "位置情報を更新しました",
	}, nil
}
