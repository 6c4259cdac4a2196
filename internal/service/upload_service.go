package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/tapcard/internal/storage"
	"github.com/tapcard/internal/theme"
	_ "golang.org/x/image/webp"
)

const (
	// DefaultMaxUploadBytes 为上传文件的默认大小上限
	DefaultMaxUploadBytes int64 = 2 << 20

	avatarSize         = 400
	maxBackgroundWidth = 2560
)

// UploadPurpose 区分上传图片的用途
type UploadPurpose string

const (
	PurposePhoto      UploadPurpose = "photo"
	PurposeBackground UploadPurpose = "background"
)

// UploadResult 描述一次成功的上传
type UploadResult struct {
	URL    string `json:"url"`
	Key    string `json:"key"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// UploadService 负责校验、处理图片并写入对象存储
type UploadService struct {
	store    storage.Storage
	profiles *ProfileService
	designs  *DesignService
	maxBytes int64
	newID    func() uuid.UUID
}

// NewUploadService 构造 UploadService，maxBytes 非正时使用 2MB
func NewUploadService(store storage.Storage, profiles *ProfileService, designs *DesignService, maxBytes int64) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &UploadService{store: store, profiles: profiles, designs: designs, maxBytes: maxBytes, newID: uuid.New}
}

// MaxBytes 返回上传大小上限
func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Store 处理一张上传图片
// photo 会被裁剪为正方形头像并写入 profiles.photo_url，background 写入外观设置的 background_image_url
func (s *UploadService) Store(ctx context.Context, userID uint, purpose UploadPurpose, data io.Reader) (*UploadResult, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if purpose != PurposePhoto && purpose != PurposeBackground {
		return nil, NewValidationError(map[string]string{"purpose": "unknown upload purpose"})
	}

	raw, err := io.ReadAll(io.LimitReader(data, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > s.maxBytes {
		return nil, ErrUploadTooLarge
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, ErrUploadNotImage
	}

	body, ext, width, height, err := s.process(purpose, raw, format, cfg)
	if err != nil {
		return nil, err
	}

	key := storage.ObjectKey(string(purpose)+"s", s.newID(), ext)
	url, err := s.store.Upload(ctx, key, storage.ContentTypeFor(key), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	switch purpose {
	case PurposePhoto:
		_, err = s.profiles.Update(ctx, userID, ProfileInput{PhotoURL: &url})
	case PurposeBackground:
		_, err = s.designs.Save(ctx, userID, theme.Patch{BackgroundImageURL: &url})
	}
	if err != nil {
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			slog.Warn("remove orphaned upload failed", "key", key, "error", delErr)
		}
		return nil, err
	}

	return &UploadResult{URL: url, Key: key, Width: width, Height: height}, nil
}

// process 头像统一裁剪为正方形；背景图过宽时等比缩小，其余情况保留原始字节
func (s *UploadService) process(purpose UploadPurpose, raw []byte, format string, cfg image.Config) ([]byte, string, int, int, error) {
	needsResize := purpose == PurposePhoto || cfg.Width > maxBackgroundWidth
	if !needsResize {
		return raw, format, cfg.Width, cfg.Height, nil
	}

	img, err := imaging.Decode(bytes.NewReader(raw), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", 0, 0, ErrUploadNotImage
	}

	if purpose == PurposePhoto {
		img = imaging.Fill(img, avatarSize, avatarSize, imaging.Center, imaging.Lanczos)
	} else {
		img = imaging.Resize(img, maxBackgroundWidth, 0, imaging.Lanczos)
	}

	out, ext := imaging.PNG, "png"
	if format == "jpeg" {
		out, ext = imaging.JPEG, "jpg"
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, out, imaging.JPEGQuality(85)); err != nil {
		return nil, "", 0, 0, fmt.Errorf("encode image: %w", err)
	}
	bounds := img.Bounds()
	return buf.Bytes(), ext, bounds.Dx(), bounds.Dy(), nil
}
