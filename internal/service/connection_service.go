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

const maxTagLength = 50

// ConnectionService 负责维护用户收藏的名片
type ConnectionService struct {
	db     *gorm.DB
	broker realtime.Broker
}

// NewConnectionService 构造 ConnectionService
func NewConnectionService(gdb *gorm.DB, broker realtime.Broker) *ConnectionService {
	return &ConnectionService{db: gdb, broker: broker}
}

// ConnectionInput 描述收藏备注与标签的修改，nil 表示不修改
type ConnectionInput struct {
	Note *string `json:"note"`
	Tag  *string `json:"tag"`
}

// ProfileSummary 为收藏列表中展示的目标名片摘要
type ProfileSummary struct {
	ID       uint   `json:"id"`
	Slug     string `json:"slug"`
	Name     string `json:"name"`
	Headline string `json:"headline"`
	PhotoURL string `json:"photo_url"`
}

// ConnectionView 为带目标名片摘要的收藏记录
type ConnectionView struct {
	db.Connection
	Profile *ProfileSummary `json:"profile"`
}

// Add 收藏目标名片；已收藏时直接返回已有记录，alreadySaved 为 true
func (s *ConnectionService) Add(ctx context.Context, userID, targetID uint) (conn *db.Connection, alreadySaved bool, err error) {
	if userID == 0 {
		return nil, false, ErrUnauthenticated
	}
	if targetID == 0 {
		return nil, false, NewValidationError(map[string]string{"profile_id": "profile_id is required"})
	}
	if targetID == userID {
		return nil, false, NewValidationError(map[string]string{"profile_id": "cannot save your own profile"})
	}

	existing, err := s.findPair(ctx, userID, targetID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, true, nil
	}

	var target db.Profile
	if err := s.db.WithContext(ctx).First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, ErrProfileNotFound
		}
		return nil, false, fmt.Errorf("find target profile: %w", err)
	}
	if !target.AllowNetworkSaves {
		return nil, false, ErrNetworkSavesDisabled
	}

	created := db.Connection{UserID: userID, ConnectedUserID: targetID}
	if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			existing, findErr := s.findPair(ctx, userID, targetID)
			if findErr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, fmt.Errorf("create connection: %w", err)
	}

	publish(ctx, s.broker, tableConnections, realtime.EventInsert, created, ConnectionsTopic(userID))
	return &created, false, nil
}

// Update 修改当前用户自己的收藏备注或标签
func (s *ConnectionService) Update(ctx context.Context, userID, id uint, input ConnectionInput) (*db.Connection, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	conn, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if input.Note != nil {
		conn.Note = strings.TrimSpace(*input.Note)
		updates["note"] = conn.Note
	}
	if input.Tag != nil {
		tag := strings.TrimSpace(*input.Tag)
		if utf8.RuneCountInString(tag) > maxTagLength {
			return nil, NewValidationError(map[string]string{"tag": fmt.Sprintf("tag must be at most %d characters", maxTagLength)})
		}
		conn.Tag = tag
		updates["tag"] = tag
	}
	if len(updates) == 0 {
		return conn, nil
	}

	if err := s.db.WithContext(ctx).Model(conn).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("update connection: %w", err)
	}

	publish(ctx, s.broker, tableConnections, realtime.EventUpdate, conn, ConnectionsTopic(userID))
	return conn, nil
}

// Remove 删除当前用户自己的收藏
func (s *ConnectionService) Remove(ctx context.Context, userID, id uint) error {
	if userID == 0 {
		return ErrUnauthenticated
	}

	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&db.Connection{})
	if result.Error != nil {
		return fmt.Errorf("delete connection: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrConnectionNotFound
	}

	publish(ctx, s.broker, tableConnections, realtime.EventDelete, db.Connection{ID: id, UserID: userID}, ConnectionsTopic(userID))
	return nil
}

// List 返回当前用户的收藏，按收藏时间倒序，附带目标名片摘要
func (s *ConnectionService) List(ctx context.Context, userID uint) ([]ConnectionView, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}

	var items []db.Connection
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	if len(items) == 0 {
		return []ConnectionView{}, nil
	}

	ids := make([]uint, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ConnectedUserID)
	}

	var profiles []db.Profile
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list connected profiles: %w", err)
	}
	summaries := make(map[uint]*ProfileSummary, len(profiles))
	for _, p := range profiles {
		summaries[p.ID] = &ProfileSummary{ID: p.ID, Slug: p.Slug, Name: p.Name, Headline: p.Headline, PhotoURL: p.PhotoURL}
	}

	views := make([]ConnectionView, 0, len(items))
	for _, item := range items {
		views = append(views, ConnectionView{Connection: item, Profile: summaries[item.ConnectedUserID]})
	}
	return views, nil
}

func (s *ConnectionService) findPair(ctx context.Context, userID, targetID uint) (*db.Connection, error) {
	var conn db.Connection
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND connected_user_id = ?", userID, targetID).
		First(&conn).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("check connection: %w", err)
	}
	return &conn, nil
}

func (s *ConnectionService) owned(ctx context.Context, userID, id uint) (*db.Connection, error) {
	var conn db.Connection
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&conn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConnectionNotFound
		}
		return nil, fmt.Errorf("find connection: %w", err)
	}
	return &conn, nil
}
