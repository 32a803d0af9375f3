// Package minio 封装头像对象存储。
package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sudo-enjoy/matching-app-be/config"
	"github.com/sudo-enjoy/matching-app-be/pkg/logger"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	// ErrFileTooLarge 超过 MaxFileSize
	ErrFileTooLarge = errors.New("file too large")
	// ErrUnsupportedType 非允许的图片类型（按文件内容检测）
	ErrUnsupportedType = errors.New("unsupported file type")
)

// extByType 允许的图片类型对应的扩展名
var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// AvatarStore 头像存储客户端
type AvatarStore struct {
	client *minio.Client
	config config.MinIOConfig
}

// UploadResult 上传结果
type UploadResult struct {
	ObjectName  string
	Size        int64
	URL         string
	ContentType string
}

// Build 创建客户端并确保 bucket 存在
func Build(cfg config.MinIOConfig) (*AvatarStore, error) {
	// 1. 校验必填配置
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, errors.New("minio endpoint is empty")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, errors.New("minio credentials are empty")
	}
	if strings.TrimSpace(cfg.BucketName) == "" {
		return nil, errors.New("minio bucketName is empty")
	}

	// 2. 创建客户端
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	// 3. 确保 bucket 存在
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{Region: cfg.Location}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info(ctx, "MinIO Bucket 创建成功",
			logger.String("bucket", cfg.BucketName),
		)

		// 4. 头像公开可读
		if cfg.PublicRead {
			policy := fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, cfg.BucketName)
			if err := client.SetBucketPolicy(ctx, cfg.BucketName, policy); err != nil {
				logger.Warn(ctx, "设置 Bucket 公开策略失败",
					logger.String("bucket", cfg.BucketName),
					logger.ErrorField("error", err),
				)
			}
		}
	}

	return &AvatarStore{client: client, config: cfg}, nil
}

// PutAvatar 上传头像：avatars/{userID}/{uuid}{ext}
// 类型以文件内容前 512 字节检测结果为准，不信任客户端声明。
func (s *AvatarStore) PutAvatar(ctx context.Context, userID string, reader io.Reader, size int64) (*UploadResult, error) {
	if s.config.MaxFileSize > 0 && size > s.config.MaxFileSize {
		return nil, ErrFileTooLarge
	}

	head := make([]byte, 512)
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("read file head: %w", err)
	}
	head = head[:n]

	contentType, ext, err := SniffImage(head, s.config.AllowedTypes)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("avatars/%s/%s%s", userID, uuid.New().String(), ext)

	uploadCtx := ctx
	if s.config.UploadTimeout > 0 {
		var cancel context.CancelFunc
		uploadCtx, cancel = context.WithTimeout(ctx, s.config.UploadTimeout)
		defer cancel()
	}

	info, err := s.client.PutObject(uploadCtx, s.config.BucketName, objectName,
		io.MultiReader(bytes.NewReader(head), reader), size,
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return nil, fmt.Errorf("put object: %w", err)
	}

	return &UploadResult{
		ObjectName:  objectName,
		Size:        info.Size,
		URL:         s.ObjectURL(objectName),
		ContentType: contentType,
	}, nil
}

// Delete 删除对象（替换头像后清理旧文件）
func (s *AvatarStore) Delete(ctx context.Context, objectName string) error {
	return s.client.RemoveObject(ctx, s.config.BucketName, objectName, minio.RemoveObjectOptions{})
}

// ObjectURL 对外访问地址
func (s *AvatarStore) ObjectURL(objectName string) string {
	baseURL := strings.TrimSuffix(s.config.BaseURL, "/")
	return fmt.Sprintf("%s/%s/%s", baseURL, s.config.BucketName, strings.TrimPrefix(objectName, "/"))
}

// ObjectNameFromURL 从本存储生成的 URL 中还原对象名，非本存储地址返回空
func (s *AvatarStore) ObjectNameFromURL(url string) string {
	prefix := strings.TrimSuffix(s.config.BaseURL, "/") + "/" + s.config.BucketName + "/"
	if !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

// SniffImage 按内容检测图片类型，返回 MIME 与扩展名
func SniffImage(head []byte, allowed []string) (string, string, error) {
	detected := http.DetectContentType(head)
	ext, ok := extByType[detected]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	if len(allowed) > 0 {
		match := false
		for _, t := range allowed {
			if strings.EqualFold(t, detected) {
				match = true
				break
			}
		}
		if !match {
			return "", "", ErrUnsupportedType
		}
	}
	return detected, ext, nil
}
