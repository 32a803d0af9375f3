package consts

import "net/http"

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError           = 10001 // 参数验证失败
	CodeBodyError            = 10002 // 请求体格式错误
	CodeResourceNotFound     = 10003 // 资源不存在
	CodeMethodNotAllowed     = 10004 // 请求方法不允许
	CodeTooManyRequests      = 10005 // 请求过于频繁
	CodeBodyTooLarge         = 10006 // 请求体过大
	CodeTooManySMS           = 10007 // 验证码请求过于频繁
	CodeFileFormatNotSupport = 10008 // 文件格式不支持
	CodeIPForbidden          = 10009 // IP 被封禁
)

// 认证错误 (2xxxx)
const (
	CodeUnauthorized        = 20001 // 未认证
	CodeInvalidToken        = 20002 // Token 无效
	CodeTokenExpired        = 20003 // Token 已过期
	CodePermissionDeny      = 20004 // 权限不足
	CodeInvalidRefreshToken = 20005 // 刷新令牌无效
	CodeSessionUnverified   = 20006 // 账号未完成短信验证
)

// 用户模块错误 (11xxx)
const (
	CodeUserNotFound      = 11001 // 用户不存在
	CodeUserAlreadyExist  = 11002 // 手机号已注册
	CodePhoneError        = 11005 // 手机号格式错误
	CodeVerifyCodeError   = 11006 // 验证码错误
	CodeVerifyCodeExpire  = 11007 // 验证码已过期
	CodeAlreadyVerified   = 11008 // 已完成验证
	CodeUserNotRegistered = 11009 // 手机号未注册
	CodePhoneNotVerified  = 11010 // 手机号未验证
	CodeInvalidCoordinate = 11011 // 坐标越界
	CodeLocationUnset     = 11012 // 位置未设置
)

// 匹配模块错误 (12xxx)
const (
	CodeSelfMatch           = 12001 // 不能匹配自己
	CodeTargetUnavailable   = 12002 // 对方不存在或不在线
	CodeDuplicatePending    = 12003 // 已存在待处理的匹配
	CodeMatchNotFound       = 12004 // 匹配不存在
	CodeMatchForbidden      = 12005 // 无权处理该匹配
	CodeMatchResolved       = 12006 // 匹配已处理
	CodeMatchExpired        = 12007 // 匹配已过期
	CodeMeetingNotFound     = 12008 // 会面不存在
	CodeMeetingForbidden    = 12009 // 不是会面参与者
	CodeMeetingNotConfirmed = 12010 // 会面尚未双方确认
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError      = 30001 // 服务器内部错误
	CodeServiceUnavailable = 30002 // 服务暂不可用
	CodeSMSDeliveryFailed  = 30003 // 验证码发送失败
	CodeSMSUnavailable     = 30004 // 短信服务不可用
	CodeTimeoutError       = 30005 // 请求超时
	CodeFileUploadFail     = 30006 // 文件上传失败
)

// 错误消息映射（返回给客户端的 error 字段）
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:           "Validation failed",
	CodeBodyError:            "Malformed request body",
	CodeResourceNotFound:     "Resource not found",
	CodeMethodNotAllowed:     "Method not allowed",
	CodeTooManyRequests:      "Too many requests from this IP, please try again later.",
	CodeBodyTooLarge:         "Request body too large",
	CodeTooManySMS:           "Too many SMS requests, please try again later.",
	CodeFileFormatNotSupport: "Unsupported file type",
	CodeIPForbidden:          "Access denied",

	// 认证错误
	CodeUnauthorized:        "Access denied. No token provided.",
	CodeInvalidToken:        "Invalid token.",
	CodeTokenExpired:        "Token expired.",
	CodePermissionDeny:      "Permission denied",
	CodeInvalidRefreshToken: "Invalid refresh token",
	CodeSessionUnverified:   "Phone number not verified.",

	// 用户模块
	CodeUserNotFound:      "User not found",
	CodeUserAlreadyExist:  "User already exists with this phone number",
	CodePhoneError:        "Invalid phone number format",
	CodeVerifyCodeError:   "Invalid verification code",
	CodeVerifyCodeExpire:  "Verification code expired",
	CodeAlreadyVerified:   "User already verified",
	CodeUserNotRegistered: "User not found. Please register first.",
	CodePhoneNotVerified:  "Phone number not verified. Please complete registration first.",
	CodeInvalidCoordinate: "Invalid coordinates",
	CodeLocationUnset:     "Location not set",

	// 匹配模块
	CodeSelfMatch:           "Cannot match with yourself",
	CodeTargetUnavailable:   "Target user not found or offline",
	CodeDuplicatePending:    "Match request already exists",
	CodeMatchNotFound:       "Match not found",
	CodeMatchForbidden:      "Not authorized to respond to this match",
	CodeMatchResolved:       "Match already responded to",
	CodeMatchExpired:        "Match request expired",
	CodeMeetingNotFound:     "Meeting not found",
	CodeMeetingForbidden:    "Not authorized to confirm this meeting",
	CodeMeetingNotConfirmed: "Meeting not confirmed by both users",

	// 服务端错误
	CodeInternalError:      "Server error",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeSMSDeliveryFailed:  "Failed to send SMS",
	CodeSMSUnavailable:     "SMS service unavailable",
	CodeTimeoutError:       "Request timeout",
	CodeFileUploadFail:     "File upload failed",
}

// codeStatus 业务码到 HTTP 状态码，未列出的按号段推断
var codeStatus = map[int32]int{
	CodeResourceNotFound:     http.StatusNotFound,
	CodeMethodNotAllowed:     http.StatusMethodNotAllowed,
	CodeTooManyRequests:      http.StatusTooManyRequests,
	CodeTooManySMS:           http.StatusTooManyRequests,
	CodeBodyTooLarge:         http.StatusRequestEntityTooLarge,
	CodeFileFormatNotSupport: http.StatusUnsupportedMediaType,
	CodeIPForbidden:          http.StatusForbidden,

	CodePermissionDeny:    http.StatusForbidden,
	CodeSessionUnverified: http.StatusUnauthorized,

	CodeUserNotFound:      http.StatusNotFound,
	CodeUserNotRegistered: http.StatusNotFound,
	CodeUserAlreadyExist:  http.StatusBadRequest,

	CodeTargetUnavailable:   http.StatusNotFound,
	CodeDuplicatePending:    http.StatusConflict,
	CodeMatchNotFound:       http.StatusNotFound,
	CodeMatchForbidden:      http.StatusForbidden,
	CodeMatchResolved:       http.StatusConflict,
	CodeMatchExpired:        http.StatusConflict,
	CodeMeetingNotFound:     http.StatusNotFound,
	CodeMeetingForbidden:    http.StatusForbidden,
	CodeMeetingNotConfirmed: http.StatusConflict,

	CodeServiceUnavailable: http.StatusServiceUnavailable,
	CodeSMSUnavailable:     http.StatusServiceUnavailable,
	CodeTimeoutError:       http.StatusGatewayTimeout,
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus 根据错误码获取 HTTP 状态码
func HTTPStatus(code int32) int {
	if code == CodeSuccess {
		return http.StatusOK
	}
	if s, ok := codeStatus[code]; ok {
		return s
	}
	switch {
	case code >= 30000:
		return http.StatusInternalServerError
	case code >= 20000:
		return http.StatusUnauthorized
	default:
		return http.StatusBadRequest
	}
}

// IsNonServerError 是否为业务错误（非 3xxxx）
func IsNonServerError(code int32) bool {
	return code != CodeSuccess && code < 30000
}
