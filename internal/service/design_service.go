package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/theme"
	"gorm.io/gorm"
)

// DesignService 负责读取与保存资料页外观设置
type DesignService struct {
	db     *gorm.DB
	broker realtime.Broker
	now    func() time.Time
}

// NewDesignService 构造 DesignService，broker 可以为 nil
func NewDesignService(gdb *gorm.DB, broker realtime.Broker) *DesignService {
	return &DesignService{db: gdb, broker: broker, now: time.Now}
}

// Load 返回用户的外观设置；记录不存在或读取失败时返回默认值
func (s *DesignService) Load(ctx context.Context, userID uint) theme.Settings {
	settings, _, err := s.find(ctx, userID)
	if err != nil {
		slog.Warn("load design settings failed, using defaults", "user_id", userID, "error", err)
		return theme.Defaults()
	}
	return settings
}

// Save 以部分更新的方式保存外观设置，返回合并后的完整设置
// 记录不存在时插入 defaults ⊕ patch，存在时只更新补丁涉及的列和 updated_at
func (s *DesignService) Save(ctx context.Context, userID uint, patch theme.Patch) (theme.Settings, error) {
	if userID == 0 {
		return theme.Settings{}, ErrUnauthenticated
	}
	if errs := patch.Validate(); !errs.Empty() {
		return theme.Settings{}, NewValidationError(errs)
	}

	current, exists, err := s.find(ctx, userID)
	if err != nil {
		return theme.Settings{}, fmt.Errorf("check design settings: %w", err)
	}

	merged := patch.Apply(current)
	now := s.now()

	if !exists {
		row := db.ProfileDesignSettings{UserID: userID, Settings: merged, CreatedAt: now, UpdatedAt: now}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			return theme.Settings{}, fmt.Errorf("create design settings: %w", err)
		}
		publish(ctx, s.broker, tableDesignSettings, realtime.EventInsert, row, DesignTopic(userID))
		return merged, nil
	}

	cols := patch.Columns()
	cols["updated_at"] = now
	if err := s.db.WithContext(ctx).Model(&db.ProfileDesignSettings{}).
		Where("user_id = ?", userID).
		Updates(cols).Error; err != nil {
		return theme.Settings{}, fmt.Errorf("update design settings: %w", err)
	}

	row := db.ProfileDesignSettings{UserID: userID, Settings: merged, UpdatedAt: now}
	publish(ctx, s.broker, tableDesignSettings, realtime.EventUpdate, row, DesignTopic(userID))
	return merged, nil
}

// Reset 用静态默认值整体覆盖外观设置
func (s *DesignService) Reset(ctx context.Context, userID uint) (theme.Settings, error) {
	return s.Save(ctx, userID, theme.FullPatch(theme.Defaults()))
}

func (s *DesignService) find(ctx context.Context, userID uint) (theme.Settings, bool, error) {
	if userID == 0 {
		return theme.Defaults(), false, nil
	}

	var row db.ProfileDesignSettings
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return theme.Defaults(), false, nil
	case err != nil:
		return theme.Defaults(), false, err
	}
	return row.Settings, true, nil
}
