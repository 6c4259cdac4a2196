package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultMaxUploadBytes 为头像与背景图的默认体积上限（2MB）。
const DefaultMaxUploadBytes int64 = 2 << 20

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	AppEnv            string
	DBDriver          string
	DatabasePath      string
	DatabaseURL       string
	SessionSecret     string
	GinMode           string
	StorageType       string
	UploadDir         string
	UploadURLPath     string
	S3Bucket          string
	S3Region          string
	S3AccessKey       string
	S3SecretKey       string
	S3PublicBaseURL   string
	MaxUploadBytes    int64
	RedisAddr         string
	RedisPassword     string
	SiteBaseURL       string
	SuperRootUserName string
	SuperRootPassword string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
func Load() AppConfig {
	port := env("PORT", "8080")

	return AppConfig{
		ListenAddr:        env("LISTEN_ADDR", fmt.Sprintf(":%s", port)),
		Port:              port,
		AppEnv:            env("APP_ENV", "production"),
		DBDriver:          strings.ToLower(env("DB_DRIVER", "sqlite")),
		DatabasePath:      env("DATABASE_PATH", "tapcard.db"),
		DatabaseURL:       env("DATABASE_URL", ""),
		SessionSecret:     env("SESSION_SECRET", "tapcard-dev-secret"),
		GinMode:           env("GIN_MODE", "release"),
		StorageType:       strings.ToLower(env("STORAGE_TYPE", "local")),
		UploadDir:         env("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath:     env("UPLOAD_URL_PATH", "/static/uploads"),
		S3Bucket:          env("AWS_S3_BUCKET", ""),
		S3Region:          env("AWS_REGION", "us-east-1"),
		S3AccessKey:       env("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:       env("AWS_SECRET_ACCESS_KEY", ""),
		S3PublicBaseURL:   env("S3_PUBLIC_BASE_URL", ""),
		MaxUploadBytes:    envInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
		RedisAddr:         env("REDIS_ADDR", ""),
		RedisPassword:     env("REDIS_PASSWORD", ""),
		SiteBaseURL:       strings.TrimRight(env("SITE_BASE_URL", "http://localhost:"+port), "/"),
		SuperRootUserName: env("SUPER_ROOT_USER_NAME", ""),
		SuperRootPassword: env("SUPER_ROOT_PASSWORD", ""),
	}
}

// DatabaseDSN 根据驱动返回连接串，sqlite 使用文件路径。
func (c AppConfig) DatabaseDSN() string {
	if c.DBDriver == "postgres" || c.DBDriver == "postgresql" {
		return c.DatabaseURL
	}
	return c.DatabasePath
}

func env(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt64(key string, fallback int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
