package service

import (
	"context"
	"time"

	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
)

// RunMatchSweeper 周期性过期超时的待处理匹配，直到 ctx 取消。interval <= 0 时直接返回
func RunMatchSweeper(ctx context.Context, svc MatchingService, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ExpireStale(ctx)
			if err != nil {
				logger.Warn(ctx, "匹配过期清理失败", logger.ErrorField("error", err))
				continue
			}
			if n > 0 {
				logger.Info(ctx, "匹配过期清理完成", logger.Int64("expired", n))
			}
		}
	}
}
