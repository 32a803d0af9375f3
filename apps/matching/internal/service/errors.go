package service

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/sudo-enjoy/matching-app-be/apps/matching/internal/repository"
	"github.com/sudo-enjoy/matching-app-be/consts"
	"github.com/sudo-enjoy/matching-app-be/pkg/bizerr"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"
	"github.com/sudo-enjoy/matching-app-be/pkg/sms"
)

// internalError 记录非预期错误，返回不带细节的业务错误
// 存储不可达时返回 503，超时返回 504，其余 500
func internalError(ctx context.Context, op string, err error) error {
	code := int32(consts.CodeInternalError)
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = consts.CodeTimeoutError
	case errors.Is(err, driver.ErrBadConn), errors.As(err, &netErr):
		code = consts.CodeServiceUnavailable
	}
	logger.Error(ctx, op+" 失败", logger.ErrorField("error", err))
	return bizerr.Wrap(code, err)
}

// notFoundOr 记录不存在时返回 code，其他错误按内部错误处理
func notFoundOr(ctx context.Context, op string, err error, code int32) error {
	if errors.Is(err, repository.ErrRecordNotFound) {
		return bizerr.New(code)
	}
	return internalError(ctx, op, err)
}

// smsErrorCode 短信投递失败原因到业务码
func smsErrorCode(err error) int32 {
	switch {
	case errors.Is(err, sms.ErrInvalidDestination):
		return consts.CodePhoneError
	case errors.Is(err, sms.ErrNotConfigured), errors.Is(err, sms.ErrUnavailable):
		return consts.CodeSMSUnavailable
	default:
		return consts.CodeSMSDeliveryFailed
	}
}
