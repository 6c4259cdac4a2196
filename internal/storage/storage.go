package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Storage 为图片等公开读取对象的存储接口
type Storage interface {
	// Upload 写入对象并返回可公开访问的 URL
	Upload(ctx context.Context, key, contentType string, data io.Reader) (string, error)

	// Delete 删除对象，不存在时不报错
	Delete(ctx context.Context, key string) error
}

// StorageType 表示存储后端类型
type StorageType string

const (
	StorageTypeLocal StorageType = "local"
	StorageTypeS3    StorageType = "s3"
)

// StorageConfig 汇总存储后端所需配置
type StorageConfig struct {
	Type          StorageType
	LocalPath     string
	LocalURLPath  string
	S3Bucket      string
	S3Region      string
	AWSAccessKey  string
	AWSSecretKey  string
	PublicBaseURL string
}

// NewStorage 根据配置创建存储实例
func NewStorage(cfg StorageConfig) (Storage, error) {
	switch cfg.Type {
	case "", StorageTypeLocal:
		return NewLocalStorage(cfg.LocalPath, cfg.LocalURLPath)
	case StorageTypeS3:
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, errors.New("AWS_S3_BUCKET is required for s3 storage")
		}
		return NewS3Storage(cfg)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// ObjectKey 生成唯一的对象键，形如 photos/ab/ab12...-x.png
func ObjectKey(prefix string, fileID uuid.UUID, ext string) string {
	id := fileID.String()
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return path.Join(sanitizeSegment(prefix), id[:2], id+ext)
}

// ContentTypeFor 按扩展名推断图片类型
func ContentTypeFor(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

func sanitizeSegment(v string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return -1
	}, v)
	if cleaned == "" {
		return "files"
	}
	return cleaned
}
