package config

import "time"

// MinIOConfig 头像存储配置，Endpoint 为空时头像上传不可用
type MinIOConfig struct {
	Endpoint        string `json:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `json:"accessKeyId" yaml:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey" yaml:"secretAccessKey"`
	UseSSL          bool   `json:"useSSL" yaml:"useSSL"`

	BucketName string `json:"bucketName" yaml:"bucketName"`
	Location   string `json:"location" yaml:"location"`

	MaxFileSize   int64         `json:"maxFileSize" yaml:"maxFileSize"`   // 头像最大字节
	AllowedTypes  []string      `json:"allowedTypes" yaml:"allowedTypes"` // 允许的 MIME
	UploadTimeout time.Duration `json:"uploadTimeout" yaml:"uploadTimeout"`

	PublicRead bool   `json:"publicRead" yaml:"publicRead"` // 头像公开可读
	BaseURL    string `json:"baseUrl" yaml:"baseUrl"`       // 返回给客户端的地址前缀
}

func DefaultMinIOConfig() MinIOConfig {
	return MinIOConfig{
		Endpoint:        getEnv("MINIO_ENDPOINT", ""),
		AccessKeyID:     getEnv("MINIO_ACCESS_KEY", ""),
		SecretAccessKey: getEnv("MINIO_SECRET_KEY", ""),
		UseSSL:          getEnvBool("MINIO_USE_SSL", false),

		BucketName: getEnv("MINIO_BUCKET", "matching-avatars"),
		Location:   getEnv("MINIO_LOCATION", "us-east-1"),

		MaxFileSize:   getEnvInt64("AVATAR_MAX_BYTES", 2*1024*1024),
		AllowedTypes:  []string{"image/jpeg", "image/png", "image/webp"},
		UploadTimeout: 30 * time.Second,

		PublicRead: true,
		BaseURL:    getEnv("MINIO_PUBLIC_URL", "http://localhost:9000"),
	}
}

// Enabled 是否配置了对象存储
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}
