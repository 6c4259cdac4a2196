package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/service"
)

// ConnectionStore 为收藏关系的持久化接口，由 service.ConnectionService 实现
type ConnectionStore interface {
	Add(ctx context.Context, userID, targetID uint) (*db.Connection, bool, error)
	Update(ctx context.Context, userID, id uint, input service.ConnectionInput) (*db.Connection, error)
	Remove(ctx context.Context, userID, id uint) error
	List(ctx context.Context, userID uint) ([]service.ConnectionView, error)
}

// ConnectionsController 缓存当前用户的收藏列表
// 收到任何 connections 变更事件都会整体重新拉取
type ConnectionsController struct {
	store  ConnectionStore
	broker realtime.Broker
	userID uint

	mu       sync.RWMutex
	items    []service.ConnectionView
	onChange func([]service.ConnectionView)
	watcher  *watcher
}

// NewConnectionsController 构造控制器
func NewConnectionsController(store ConnectionStore, broker realtime.Broker, userID uint) *ConnectionsController {
	return &ConnectionsController{store: store, broker: broker, userID: userID}
}

// OnChange 注册列表变化回调
func (c *ConnectionsController) OnChange(fn func([]service.ConnectionView)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start 拉取列表并订阅变更
func (c *ConnectionsController) Start(ctx context.Context) error {
	err := c.Refresh(ctx)
	c.mu.Lock()
	if c.watcher == nil {
		c.watcher = watch(c.broker, service.ConnectionsTopic(c.userID), func(realtime.Event) {
			if err := c.Refresh(context.Background()); err != nil {
				slog.Warn("refresh connections after change event failed", "user_id", c.userID, "error", err)
			}
		})
	}
	c.mu.Unlock()
	return err
}

// Close 取消订阅
func (c *ConnectionsController) Close() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	w.stop()
}

// List 返回缓存的收藏列表副本
func (c *ConnectionsController) List() []service.ConnectionView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]service.ConnectionView(nil), c.items...)
}

// IsConnected 基于本地缓存判断是否已收藏目标名片
func (c *ConnectionsController) IsConnected(profileID uint) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.ConnectedUserID == profileID {
			return true
		}
	}
	return false
}

// Refresh 重新拉取收藏列表，失败时保留原缓存
func (c *ConnectionsController) Refresh(ctx context.Context) error {
	items, err := c.store.List(ctx, c.userID)
	if err != nil {
		return err
	}
	c.set(items)
	return nil
}

// Add 收藏目标名片，成功后重新拉取列表
func (c *ConnectionsController) Add(ctx context.Context, targetID uint) (alreadySaved bool, err error) {
	_, alreadySaved, err = c.store.Add(ctx, c.userID, targetID)
	if err != nil {
		return false, err
	}
	if alreadySaved {
		return true, nil
	}
	return false, c.Refresh(ctx)
}

// Update 修改备注或标签，成功后合并进本地缓存
func (c *ConnectionsController) Update(ctx context.Context, id uint, input service.ConnectionInput) error {
	updated, err := c.store.Update(ctx, c.userID, id, input)
	if err != nil {
		return err
	}

	c.mu.Lock()
	items := append([]service.ConnectionView(nil), c.items...)
	for i := range items {
		if items[i].ID == id {
			items[i].Note = updated.Note
			items[i].Tag = updated.Tag
			items[i].UpdatedAt = updated.UpdatedAt
		}
	}
	c.mu.Unlock()

	c.set(items)
	return nil
}

// Remove 删除收藏，成功后从本地缓存移除
func (c *ConnectionsController) Remove(ctx context.Context, id uint) error {
	if err := c.store.Remove(ctx, c.userID, id); err != nil {
		return err
	}

	c.mu.RLock()
	items := make([]service.ConnectionView, 0, len(c.items))
	for _, item := range c.items {
		if item.ID != id {
			items = append(items, item)
		}
	}
	c.mu.RUnlock()

	c.set(items)
	return nil
}

func (c *ConnectionsController) set(items []service.ConnectionView) {
	c.mu.Lock()
	c.items = items
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(append([]service.ConnectionView(nil), items...))
	}
}
