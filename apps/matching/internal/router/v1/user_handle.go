package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// avatarFormField 头像上传的表单字段
const avatarFormField = "avatar"

// UserHandler 用户处理器
type UserHandler struct {
	userService service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(userService service.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// Nearby 附近用户
// @Router /api/users/nearby [get]
func (h *UserHandler) Nearby(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var q dto.NearbyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.userService.FindNearby(ctx, userID, &q)
	if err != nil {
		failWithServiceError(ctx, c, "附近用户查询", err)
		return
	}
	result.Success(c, resp)
}

// UpdateLocation 更新位置
// @Router /api/users/update-location [post]
func (h *UserHandler) UpdateLocation(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	loc, err := h.userService.UpdateLocation(ctx, userID, dto.Location{Lat: *req.Lat, Lng: *req.Lng})
	if err != nil {
		failWithServiceError(ctx, c, "更新位置", err)
		return
	}
	result.Success(c, dto.UpdateLocationResponse{
		Message:  "Location updated successfully",
		Location: loc,
	})
}

// GetProfile 他人公开资料
// @Router /api/users/profile/{id} [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	targetID := c.Param("id")
	if targetID == "" {
		result.Fail(c, consts.CodeParamError)
		return
	}

	resp, err := h.userService.GetProfile(ctx, targetID)
	if err != nil {
		failWithServiceError(ctx, c, "获取用户资料", err)
		return
	}
	result.Success(c, resp)
}

// UpdateProfile 更新本人资料
// @Router /api/users/profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.userService.UpdateProfile(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "更新资料", err)
		return
	}
	result.Success(c, resp)
}

// SetStatus 手动切换在线状态
// @Router /api/users/status [post]
func (h *UserHandler) SetStatus(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.userService.SetStatus(ctx, userID, *req.IsOnline)
	if err != nil {
		failWithServiceError(ctx, c, "更新在线状态", err)
		return
	}
	result.Success(c, resp)
}

// UploadAvatar 上传头像（multipart 字段 avatar）
// @Router /api/users/avatar [post]
func (h *UserHandler) UploadAvatar(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	// 1. 读取上传文件
	fileHeader, err := c.FormFile(avatarFormField)
	if err != nil {
		result.FailWithMessage(c, consts.CodeParamError, "avatar file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		logger.Warn(ctx, "打开上传文件失败", logger.ErrorField("error", err))
		result.Fail(c, consts.CodeFileUploadFail)
		return
	}
	defer file.Close()

	// 2. 交给服务层校验类型与大小并上传
	resp, err := h.userService.UploadAvatar(ctx, userID, file, fileHeader.Size)
	if err != nil {
		failWithServiceError(ctx, c, "上传头像", err)
		return
	}
	result.Success(c, resp)
}

// ListUsers 已验证用户分页列表
// @Router /api/users/all [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	var q dto.PaginationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.userService.ListUsers(ctx, &q)
	if err != nil {
		failWithServiceError(ctx, c, "用户列表", err)
		return
	}
	result.Success(c, resp)
}
