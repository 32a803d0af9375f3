package config

import "time"

// AsyncConfig 协程池配置。
// 用于事件投递、在线状态落库等旁路任务。
type AsyncConfig struct {
	PoolSize         int           `json:"poolSize" yaml:"poolSize"`                 // 协程池容量
	MaxBlockingTasks int           `json:"maxBlockingTasks" yaml:"maxBlockingTasks"` // 最大阻塞任务数（0 表示不限制）
	ExpiryDuration   time.Duration `json:"expiryDuration" yaml:"expiryDuration"`     // 空闲 worker 过期时间
	Nonblocking      bool          `json:"nonblocking" yaml:"nonblocking"`           // 是否非阻塞提交
	ReleaseTimeout   time.Duration `json:"releaseTimeout" yaml:"releaseTimeout"`     // 停机时等待时间
	TaskTimeout      time.Duration `json:"taskTimeout" yaml:"taskTimeout"`           // 单任务超时
}

func DefaultAsyncConfig() AsyncConfig {
	return AsyncConfig{
		PoolSize:         getEnvInt("ASYNC_POOL_SIZE", 128),
		MaxBlockingTasks: getEnvInt("ASYNC_MAX_BLOCKING", 1024),
		ExpiryDuration:   10 * time.Second,
		Nonblocking:      getEnvBool("ASYNC_NONBLOCKING", false),
		ReleaseTimeout:   5 * time.Second,
		TaskTimeout:      getEnvDuration("ASYNC_TASK_TIMEOUT", 10*time.Second),
	}
}
