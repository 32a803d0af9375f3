package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ==================== Repository 层统一错误定义 ====================

var (
	// ErrRecordNotFound 记录不存在
	ErrRecordNotFound = errors.New("record not found")

	// ErrDuplicateKey 唯一键冲突
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrConflict 条件更新未命中（状态已被其他请求修改）
	ErrConflict = errors.New("conditional update lost")

	// ErrDatabase 数据库操作错误
	ErrDatabase = errors.New("database error")
)

// ==================== 核心包装函数 ====================

// wrapError 通用错误包装函数
// err: 要包装的错误
// rules: 映射规则 map[源错误]目标错误
// defaultErr: 默认错误
func wrapError(err error, rules map[error]error, defaultErr error) error {
	if err == nil {
		return nil
	}

	for source, target := range rules {
		if errors.Is(err, source) {
			return target
		}
	}

	// 未匹配任何规则，包装默认错误，原始错误仍可通过 errors.As 取出
	return fmt.Errorf("%w: %w", defaultErr, err)
}

var dbErrorRules = map[error]error{
	gorm.ErrRecordNotFound: ErrRecordNotFound,
	gorm.ErrDuplicatedKey:  ErrDuplicateKey,
	ErrConflict:            ErrConflict,
	ErrRecordNotFound:      ErrRecordNotFound,
}

// WrapDBError 包装数据库错误
func WrapDBError(err error) error {
	return wrapError(err, dbErrorRules, ErrDatabase)
}
