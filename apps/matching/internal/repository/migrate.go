package repository

import (
	"github.com/sudo-enjoy/matching-app-be/model"

	"gorm.io/gorm"
)

// AutoMigrate 建表与索引，enabled 对应 MYSQL_AUTO_MIGRATE，关闭时不访问数据库。
// 返回是否执行了迁移。
func AutoMigrate(db *gorm.DB, enabled bool) (bool, error) {
	if !enabled {
		return false, nil
	}
	if err := db.AutoMigrate(&model.User{}, &model.Match{}, &model.Meeting{}); err != nil {
		return false, err
	}
	return true, nil
}
