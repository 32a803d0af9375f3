package config

import "time"

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	DSN             string        `json:"dsn" yaml:"dsn"`                     // 主库
	Replicas        []string      `json:"replicas" yaml:"replicas"`           // 只读副本（可空）
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`   // 最大连接数
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`   // 最大空闲连接
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	SlowThreshold   time.Duration `json:"slowThreshold" yaml:"slowThreshold"` // 慢 SQL 阈值
	LogLevel        string        `json:"logLevel" yaml:"logLevel"`           // silent/error/warn/info
	AutoMigrate     bool          `json:"autoMigrate" yaml:"autoMigrate"`     // 启动时建表
}

func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		DSN:             getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/matching_app?charset=utf8mb4&parseTime=True&loc=UTC"),
		Replicas:        getEnvList("MYSQL_REPLICAS", nil),
		MaxOpenConns:    getEnvInt("MYSQL_MAX_OPEN", 50),
		MaxIdleConns:    getEnvInt("MYSQL_MAX_IDLE", 10),
		ConnMaxLifetime: time.Hour,
		SlowThreshold:   200 * time.Millisecond,
		LogLevel:        getEnv("MYSQL_LOG_LEVEL", "warn"),
		AutoMigrate:     getEnvBool("MYSQL_AUTO_MIGRATE", true),
	}
}
