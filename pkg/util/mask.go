package util

// MaskPhone 手机号脱敏，日志中不出现完整号码
// 示例: +15550001234 -> +155****1234
func MaskPhone(phone string) string {
	if len(phone) < 8 {
		return "****"
	}
	return phone[:4] + "****" + phone[len(phone)-4:]
}
