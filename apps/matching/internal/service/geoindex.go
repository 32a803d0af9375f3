package service

import (
	"sort"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/model"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/geo"
)

const (
	// /users/nearby 半径范围（米）
	nearbyDefaultRadius = 100000
	nearbyMinRadius     = 100
	nearbyMaxRadius     = 200000

	// /map/data 半径范围（米）
	mapDefaultRadius = 50000
	mapMinRadius     = 1000
	mapMaxRadius     = 200000

	// 单次最多返回的用户数
	nearbyResultLimit = 200
)

// nearbyHit 精确过滤后的候选
type nearbyHit struct {
	user     *model.User
	distance float64
}

// validatePoint 查询中心与位置上报共用：越界或 (0,0) 都不允许，(0,0) 是未设置的哨兵值
func validatePoint(p geo.Point) error {
	if err := p.Validate(); err != nil {
		return bizerr.Wrap(consts.CodeInvalidCoordinate, err)
	}
	if p.IsUnset() {
		return bizerr.New(consts.CodeLocationUnset)
	}
	return nil
}

// buildNearbyQuery 预筛条件，多取一条用来判断是否被截断
func buildNearbyQuery(center geo.Point, radius float64, excludeID string, onlineOnly bool) repository.NearbyQuery {
	return repository.NearbyQuery{
		Center:     center,
		Box:        geo.BoundingBox(center, radius),
		ExcludeID:  excludeID,
		OnlineOnly: onlineOnly,
		Limit:      nearbyResultLimit + 1,
	}
}

// filterNearby haversine 精确过滤并按距离稳定排序。
// 预筛结果只是候选，自己和未上报位置的用户在这里再排除一次。
func filterNearby(center geo.Point, radius float64, excludeID string, candidates []*model.User) []nearbyHit {
	hits := make([]nearbyHit, 0, len(candidates))
	for _, u := range candidates {
		if u == nil || u.ID == excludeID || !u.HasLocation() {
			continue
		}
		d := geo.Distance(center, geo.Point{Lat: u.Lat, Lng: u.Lng})
		if d > radius {
			continue
		}
		hits = append(hits, nearbyHit{user: u, distance: d})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].distance < hits[j].distance
	})
	return hits
}

// limitHits 截到返回上限，返回是否发生截断
func limitHits(hits []nearbyHit) ([]nearbyHit, bool) {
	if len(hits) <= nearbyResultLimit {
		return hits, false
	}
	return hits[:nearbyResultLimit], true
}
