package service

import (
	"context"
	"fmt"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/realtime"
	"gorm.io/gorm"
)

// LinkService 把派生链接的增删改映射为资料字段的修改
type LinkService struct {
	db       *gorm.DB
	broker   realtime.Broker
	profiles *ProfileService
}

// NewLinkService 构造 LinkService
func NewLinkService(gdb *gorm.DB, broker realtime.Broker) *LinkService {
	return &LinkService{db: gdb, broker: broker, profiles: NewProfileService(gdb, broker)}
}

// LinkInput 为链接编辑表单，ID 为空表示新建
type LinkInput struct {
	ID    string `json:"id"`
	Title string `json:"title" binding:"required"`
	URL   string `json:"url" binding:"required"`
}

// List 返回用户资料上派生出的链接
func (s *LinkService) List(ctx context.Context, userID uint) ([]links.Link, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return links.Derive(profile.LinkFields()), nil
}

// Save 校验表单并写入对应的资料字段，返回保存后的链接
func (s *LinkService) Save(ctx context.Context, userID uint, input LinkInput) (links.Link, error) {
	if userID == 0 {
		return links.Link{}, ErrUnauthenticated
	}

	kind := links.ResolveKind(input.ID, input.Title)
	if errs := links.Validate(input.Title, input.URL, kind); !errs.Empty() {
		return links.Link{}, NewValidationError(errs)
	}

	profile, err := s.setField(ctx, userID, kind, links.StoredValue(kind, input.URL))
	if err != nil {
		return links.Link{}, err
	}

	for _, link := range links.Derive(profile.LinkFields()) {
		if link.Kind == kind {
			return link, nil
		}
	}
	return links.Link{}, fmt.Errorf("saved link %s missing from profile", links.ID(kind))
}

// Delete 把链接 id 对应的资料字段置空，未知 id 不做任何操作
func (s *LinkService) Delete(ctx context.Context, userID uint, id string) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	kind, ok := links.KindFromID(id)
	if !ok {
		return nil
	}

	_, err := s.setField(ctx, userID, kind, nil)
	return err
}

func (s *LinkService) setField(ctx context.Context, userID uint, kind links.Kind, value interface{}) (*db.Profile, error) {
	result := s.db.WithContext(ctx).Model(&db.Profile{}).
		Where("id = ?", userID).
		Update(links.Field(kind), value)
	if result.Error != nil {
		return nil, fmt.Errorf("update %s: %w", links.Field(kind), result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrProfileNotFound
	}

	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.broker, tableProfiles, realtime.EventUpdate, profile, ProfileTopic(userID), ProfileSlugTopic(profile.Slug))
	return profile, nil
}
