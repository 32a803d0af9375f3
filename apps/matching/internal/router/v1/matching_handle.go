package v1

import (
	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/dto"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/service"
	"github.com/sudo-enjoy/matching-app-be/pkg/result"
)

// MatchingHandler 匹配与会面处理器
type MatchingHandler struct {
	matchingService service.MatchingService
}

// NewMatchingHandler 创建匹配处理器
func NewMatchingHandler(matchingService service.MatchingService) *MatchingHandler {
	return &MatchingHandler{matchingService: matchingService}
}

// Request 发起匹配，成功返回 201
// @Router /api/matching/request [post]
func (h *MatchingHandler) Request(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.SendMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.matchingService.RequestMatch(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "发起匹配", err)
		return
	}
	result.Created(c, resp)
}

// Respond 接受或拒绝匹配
// @Router /api/matching/respond [post]
func (h *MatchingHandler) Respond(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.RespondMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.matchingService.RespondToMatch(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "响应匹配", err)
		return
	}
	result.Success(c, resp)
}

// History 匹配历史
// @Router /api/matching/history [get]
func (h *MatchingHandler) History(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var q dto.MatchHistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.matchingService.GetHistory(ctx, userID, &q)
	if err != nil {
		failWithServiceError(ctx, c, "匹配历史", err)
		return
	}
	result.Success(c, resp)
}

// ConfirmMeeting 确认见面
// @Router /api/matching/confirm-meeting [post]
func (h *MatchingHandler) ConfirmMeeting(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.ConfirmMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.matchingService.ConfirmMeeting(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "确认见面", err)
		return
	}
	result.Success(c, resp)
}

// RateMeeting 评价会面，双方确认后可用
// @Router /api/matching/rate-meeting [post]
func (h *MatchingHandler) RateMeeting(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req dto.RateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}

	resp, err := h.matchingService.RateMeeting(ctx, userID, &req)
	if err != nil {
		failWithServiceError(ctx, c, "评价会面", err)
		return
	}
	result.Success(c, resp)
}
