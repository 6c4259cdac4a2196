package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// LocalStorage 把对象写入本地目录，并通过静态路由对外提供
type LocalStorage struct {
	basePath string
	urlPath  string
}

// NewLocalStorage 创建本地存储，目录不存在时自动创建
func NewLocalStorage(basePath, urlPath string) (*LocalStorage, error) {
	if strings.TrimSpace(basePath) == "" {
		basePath = "web/static/uploads"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	urlPath = "/" + strings.Trim(strings.TrimSpace(urlPath), "/")
	if urlPath == "/" {
		urlPath = "/static/uploads"
	}

	return &LocalStorage{basePath: basePath, urlPath: urlPath}, nil
}

// Upload 写入本地文件
func (s *LocalStorage) Upload(_ context.Context, key, _ string, data io.Reader) (string, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, data); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path.Join(s.urlPath, filepath.ToSlash(key)), nil
}

// Delete 删除本地文件
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// BasePath 返回存储根目录，用于注册静态路由
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func (s *LocalStorage) resolve(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid storage key: %s", key)
	}
	return filepath.Join(s.basePath, cleaned), nil
}
