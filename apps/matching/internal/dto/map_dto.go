package dto

import "time"

// ==================== 地图服务 DTO ====================

// MapDataQuery 地图数据查询
type MapDataQuery struct {
	Lat    *float64 `form:"lat" binding:"required,min=-90,max=90"`
	Lng    *float64 `form:"lng" binding:"required,min=-180,max=180"`
	Radius float64  `form:"radius" binding:"omitempty,min=0"`
}

// MapMarker 地图标记样式
type MapMarker struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Size  string `json:"size"`
}

// MapUser 地图上的用户
type MapUser struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Gender       string    `json:"gender"`
	ProfilePhoto string    `json:"profilePhoto"`
	Bio          string    `json:"bio"`
	Location     Location  `json:"location"`
	Distance     int64     `json:"distance"` // 米，四舍五入
	IsOnline     bool      `json:"isOnline"`
	LastSeen     time.Time `json:"lastSeen"`
	MatchCount   int       `json:"matchCount"`
	Marker       MapMarker `json:"marker"`
}

// MapData 地图数据
type MapData struct {
	Users     []*MapUser `json:"users"`
	Center    Location   `json:"center"`
	Radius    float64    `json:"radius"`
	Count     int        `json:"count"`
	Truncated bool       `json:"truncated"` // 半径内用户超过返回上限，只返回最近的一批
}

// MapDataResponse 地图数据响应
type MapDataResponse struct {
	Success bool     `json:"success"`
	Data    *MapData `json:"data"`
	Message string   `json:"message"`
}

// MapLocation 当前用户位置
type MapLocation struct {
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Address   string  `json:"address"`
	IsDefault bool    `json:"isDefault,omitempty"`
}

// MapLocationResponse 位置响应
type MapLocationResponse struct {
	Success  bool         `json:"success"`
	Location *MapLocation `json:"location"`
	Message  string       `json:"message"`
}

// UpdateMapLocationRequest 从地图更新位置
type UpdateMapLocationRequest struct {
	Lat     *float64 `json:"lat" binding:"required,min=-90,max=90"`
	Lng     *float64 `json:"lng" binding:"required,min=-180,max=180"`
	Address *string  `json:"address" binding:"omitempty,max=255"`
}

// MarkerStyle 地图配置中的标记样式
type MarkerStyle struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
	Size  string `json:"size"`
}

// MapSettings 地图显示设置
type MapSettings struct {
	ShowTraffic      bool `json:"showTraffic"`
	ShowTransit      bool `json:"showTransit"`
	EnableClustering bool `json:"enableClustering"`
	ClusterRadius    int  `json:"clusterRadius"`
	MaxClusterRadius int  `json:"maxClusterRadius"`
}

// RadiusOption 半径预设
type RadiusOption struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// MapConfig 地图静态配置
type MapConfig struct {
	DefaultCenter Location               `json:"defaultCenter"`
	DefaultZoom   int                    `json:"defaultZoom"`
	MaxRadius     int                    `json:"maxRadius"`
	MinRadius     int                    `json:"minRadius"`
	MarkerStyles  map[string]MarkerStyle `json:"markerStyles"`
	MapSettings   MapSettings            `json:"mapSettings"`
	RadiusOptions []RadiusOption         `json:"radiusOptions"`
}

// MapConfigResponse 地图配置响应
type MapConfigResponse struct {
	Success bool       `json:"success"`
	Config  *MapConfig `json:"config"`
	Message string     `json:"message"`
}
