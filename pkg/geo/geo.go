// Package geo 球面距离、中点与包围盒计算。
package geo

import (
	"errors"
	"math"
)

// EarthRadiusMeters 地球平均半径
const EarthRadiusMeters = 6371000.0

// ErrInvalidCoordinate 纬度不在 [-90,90] 或经度不在 [-180,180]
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point 经纬度（度）
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate 校验坐标范围
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) ||
		p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinate
	}
	return nil
}

// IsUnset (0,0) 为未设置哨兵值
func (p Point) IsUnset() bool {
	return p.Lat == 0 && p.Lng == 0
}

func rad(d float64) float64 { return d * math.Pi / 180 }
func deg(r float64) float64 { return r * 180 / math.Pi }

// Distance 半正矢公式，单位米
func Distance(a, b Point) float64 {
	lat1, lat2 := rad(a.Lat), rad(b.Lat)
	dLat := lat2 - lat1
	dLng := rad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Midpoint 大圆中点
func Midpoint(a, b Point) Point {
	lat1, lng1 := rad(a.Lat), rad(a.Lng)
	lat2 := rad(b.Lat)
	dLng := rad(b.Lng - a.Lng)

	bx := math.Cos(lat2) * math.Cos(dLng)
	by := math.Cos(lat2) * math.Sin(dLng)

	lat3 := math.Atan2(math.Sin(lat1)+math.Sin(lat2),
		math.Sqrt((math.Cos(lat1)+bx)*(math.Cos(lat1)+bx)+by*by))
	lng3 := lng1 + math.Atan2(by, math.Cos(lat1)+bx)

	return Point{Lat: deg(lat3), Lng: normalizeLng(deg(lng3))}
}

// normalizeLng 归一化到 [-180, 180]
func normalizeLng(lng float64) float64 {
	for lng > 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}

// ClampRadius 把半径限制在 [min, max]，非正数取默认值
func ClampRadius(r, def, min, max float64) float64 {
	if r <= 0 || math.IsNaN(r) {
		r = def
	}
	return math.Max(min, math.Min(max, r))
}

// LngRange 闭区间经度范围
type LngRange struct {
	Min float64
	Max float64
}

// Box 包围盒。跨越反经线时 LngRanges 有两段。
type Box struct {
	MinLat    float64
	MaxLat    float64
	LngRanges []LngRange
}

// BoundingBox 以 center 为中心、radius 米为半径的外接包围盒，只用于预筛
func BoundingBox(center Point, radius float64) Box {
	dLat := deg(radius / EarthRadiusMeters)
	box := Box{
		MinLat: math.Max(-90, center.Lat-dLat),
		MaxLat: math.Min(90, center.Lat+dLat),
	}

	// 包含极点时经度不受限
	if box.MinLat <= -90 || box.MaxLat >= 90 {
		box.LngRanges = []LngRange{{Min: -180, Max: 180}}
		return box
	}

	// 取纬度绝对值较大的一侧计算经度跨度，保证外接
	maxAbsLat := math.Max(math.Abs(box.MinLat), math.Abs(box.MaxLat))
	cosLat := math.Cos(rad(maxAbsLat))
	if cosLat <= 1e-12 {
		box.LngRanges = []LngRange{{Min: -180, Max: 180}}
		return box
	}
	dLng := deg(radius / (EarthRadiusMeters * cosLat))
	if dLng >= 180 {
		box.LngRanges = []LngRange{{Min: -180, Max: 180}}
		return box
	}

	minLng, maxLng := center.Lng-dLng, center.Lng+dLng
	switch {
	case minLng < -180:
		box.LngRanges = []LngRange{{Min: minLng + 360, Max: 180}, {Min: -180, Max: maxLng}}
	case maxLng > 180:
		box.LngRanges = []LngRange{{Min: minLng, Max: 180}, {Min: -180, Max: maxLng - 360}}
	default:
		box.LngRanges = []LngRange{{Min: minLng, Max: maxLng}}
	}
	return box
}

// Contains 点是否落在包围盒内
func (b Box) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	for _, r := range b.LngRanges {
		if p.Lng >= r.Min && p.Lng <= r.Max {
			return true
		}
	}
	return false
}
