package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// MapHandler 地图处理器
type MapHandler struct {
	mapService service.MapService
}

// NewMapHandler 创建地图处理器
func NewMapHandler(mapService service.MapService) *MapHandler {
	return &MapHandler{mapService: mapService}
}

// Config 静态地图配置，无需认证
// @Router /api/map/config [get]
func (h *MapHandler) Config(c *gin.Context) {
	result.Success(c, h.mapService.GetConfig(middleware.NewContextWithGin(c)))
}

// Data 地图上的在线用户
// @Router /api/map/data [get]
func (h *MapHandler) Data(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var q dto.MapDataQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.mapService.GetMapData(ctx, userID, &q)
	if err != nil {
		failWithServiceError(ctx, c, "地图数据", err)
		return
	}
	result.Success(c, resp)
}

// GetLocation 本人位置，未设置时返回默认位置
// @Router /api/map/location [get]
func (h *MapHandler) GetLocation(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	resp, err := h.mapService.GetLocation(ctx, userID)
	if err != nil {
		failWithServiceError(ctx, c, "获取位置", err)
		return
	}
	result.Success(c, resp)
}

// UpdateLocation 从地图更新位置
// @Router /api/map/location [post]
func (h *MapHandler) UpdateLocation(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateMapLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.mapService.UpdateLocation(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "更新地图位置", err)
		return
	}
	result.Success(c, resp)
}
