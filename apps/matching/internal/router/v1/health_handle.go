package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/middleware"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// HealthCheck 依赖检查，返回 nil 表示正常
type HealthCheck func(ctx context.Context) error

// HealthHandler 健康检查
type HealthHandler struct {
	checks map[string]HealthCheck
}

// NewHealthHandler checks 为空时只返回进程存活
func NewHealthHandler(checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Health 任一依赖异常返回 503
// @Router /api/health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(middleware.NewContextWithGin(c), healthCheckTimeout)
	defer cancel()

	deps := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			healthy = false
			deps[name] = "down"
			logger.Warn(ctx, "健康检查失败", logger.String("dependency", name), logger.ErrorField("error", err))
			continue
		}
		deps[name] = "up"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":       "DEGRADED",
			"message":      "Dependency check failed",
			"dependencies": deps,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       "OK",
		"message":      "Server is running",
		"dependencies": deps,
	})
}
