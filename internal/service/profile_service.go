package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/realtime"
	"gorm.io/gorm"
)

const (
	maxSlugLength     = 64
	maxNameLength     = 120
	maxHeadlineLength = 160
)

// ProfileService 负责维护用户的公开名片资料
type ProfileService struct {
	db     *gorm.DB
	broker realtime.Broker
}

// NewProfileService 构造 ProfileService
func NewProfileService(gdb *gorm.DB, broker realtime.Broker) *ProfileService {
	return &ProfileService{db: gdb, broker: broker}
}

// ProfileInput 描述资料更新时可设置的字段，nil 表示不修改
type ProfileInput struct {
	Slug              *string `json:"slug"`
	Name              *string `json:"name"`
	Headline          *string `json:"headline"`
	Bio               *string `json:"bio"`
	PhotoURL          *string `json:"photo_url"`
	AllowNetworkSaves *bool   `json:"allow_network_saves"`
}

// NormalizeSlug 转为小写并去掉所有非字母数字字符
func NormalizeSlug(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Get 根据用户 ID 获取资料
func (s *ProfileService) Get(ctx context.Context, userID uint) (*db.Profile, error) {
	var profile db.Profile
	if err := s.db.WithContext(ctx).First(&profile, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &profile, nil
}

// GetBySlug 根据公开 slug 获取资料，slug 会先经过规范化
func (s *ProfileService) GetBySlug(ctx context.Context, slug string) (*db.Profile, error) {
	normalized := NormalizeSlug(slug)
	if normalized == "" {
		return nil, ErrProfileNotFound
	}

	var profile db.Profile
	if err := s.db.WithContext(ctx).Where("slug = ?", normalized).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile by slug: %w", err)
	}
	return &profile, nil
}

// Update 更新当前用户的资料；slug 被他人占用时返回 ErrSlugConflict 且不做任何修改
func (s *ProfileService) Update(ctx context.Context, userID uint, input ProfileInput) (*db.Profile, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates, err := s.profileUpdates(ctx, profile, input)
	if err != nil {
		return nil, err
	}
	if len(updates) == 0 {
		return profile, nil
	}

	previousSlug := profile.Slug
	if err := s.db.WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrSlugConflict
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	topics := []string{ProfileTopic(userID), ProfileSlugTopic(updated.Slug)}
	if previousSlug != updated.Slug {
		topics = append(topics, ProfileSlugTopic(previousSlug))
	}
	publish(ctx, s.broker, tableProfiles, realtime.EventUpdate, updated, topics...)

	return updated, nil
}

func (s *ProfileService) profileUpdates(ctx context.Context, profile *db.Profile, input ProfileInput) (map[string]interface{}, error) {
	updates := make(map[string]interface{})
	fields := make(map[string]string)

	if input.Slug != nil {
		slug := NormalizeSlug(*input.Slug)
		switch {
		case slug == "":
			fields["slug"] = "slug is required"
		case len(slug) > maxSlugLength:
			fields["slug"] = fmt.Sprintf("slug must be at most %d characters", maxSlugLength)
		case slug != profile.Slug:
			taken, err := s.slugTaken(ctx, slug, profile.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrSlugConflict
			}
			updates["slug"] = slug
		}
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if utf8.RuneCountInString(name) > maxNameLength {
			fields["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
		}
		updates["name"] = name
	}
	if input.Headline != nil {
		headline := strings.TrimSpace(*input.Headline)
		if utf8.RuneCountInString(headline) > maxHeadlineLength {
			fields["headline"] = fmt.Sprintf("headline must be at most %d characters", maxHeadlineLength)
		}
		updates["headline"] = headline
	}
	if input.Bio != nil {
		updates["bio"] = strings.TrimSpace(*input.Bio)
	}
	if input.PhotoURL != nil {
		updates["photo_url"] = strings.TrimSpace(*input.PhotoURL)
	}
	if input.AllowNetworkSaves != nil {
		updates["allow_network_saves"] = *input.AllowNetworkSaves
	}

	if len(fields) > 0 {
		return nil, NewValidationError(fields)
	}
	return updates, nil
}

func (s *ProfileService) slugTaken(ctx context.Context, slug string, ownerID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Profile{}).
		Where("slug = ? AND id <> ?", slug, ownerID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return count > 0, nil
}

// availableSlug 在 base 被占用时追加数字后缀，直到找到空闲的 slug
func availableSlug(tx *gorm.DB, base string) (string, error) {
	base = NormalizeSlug(base)
	if base == "" {
		base = "user"
	}
	if len(base) > maxSlugLength-4 {
		base = base[:maxSlugLength-4]
	}

	candidate := base
	for i := 2; ; i++ {
		var count int64
		if err := tx.Model(&db.Profile{}).Where("slug = ?", candidate).Count(&count).Error; err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s%d", base, i)
	}
}
