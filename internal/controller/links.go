package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/service"
)

// LinkStore 为派生链接的读写接口，由 service.LinkService 实现
type LinkStore interface {
	List(ctx context.Context, userID uint) ([]links.Link, error)
	Save(ctx context.Context, userID uint, input service.LinkInput) (links.Link, error)
	Delete(ctx context.Context, userID uint, id string) error
}

// LinksController 持有当前会话的链接列表
// 上移/下移只改变会话内顺序，不写回存储；刷新时保留已有条目的会话顺序
type LinksController struct {
	store  LinkStore
	broker realtime.Broker
	userID uint

	mu       sync.RWMutex
	items    []links.Link
	onChange func([]links.Link)
	watcher  *watcher
}

// NewLinksController 构造控制器
func NewLinksController(store LinkStore, broker realtime.Broker, userID uint) *LinksController {
	return &LinksController{store: store, broker: broker, userID: userID}
}

// OnChange 注册列表变化回调
func (c *LinksController) OnChange(fn func([]links.Link)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start 拉取链接并订阅资料行变更
func (c *LinksController) Start(ctx context.Context) error {
	err := c.Refresh(ctx)
	c.mu.Lock()
	if c.watcher == nil {
		c.watcher = watch(c.broker, service.ProfileTopic(c.userID), func(realtime.Event) {
			if err := c.Refresh(context.Background()); err != nil {
				slog.Warn("refresh links after change event failed", "user_id", c.userID, "error", err)
			}
		})
	}
	c.mu.Unlock()
	return err
}

// Close 取消订阅
func (c *LinksController) Close() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	w.stop()
}

// Links 返回当前会话顺序下的链接副本
func (c *LinksController) Links() []links.Link {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]links.Link(nil), c.items...)
}

// Refresh 重新读取链接
func (c *LinksController) Refresh(ctx context.Context) error {
	fetched, err := c.store.List(ctx, c.userID)
	if err != nil {
		return err
	}

	c.mu.RLock()
	ordered := keepOrder(c.items, fetched)
	c.mu.RUnlock()

	c.set(ordered)
	return nil
}

// Save 保存链接表单，返回字段级校验错误或保存后的链接
func (c *LinksController) Save(ctx context.Context, input service.LinkInput) (links.Link, error) {
	link, err := c.store.Save(ctx, c.userID, input)
	if err != nil {
		return links.Link{}, err
	}
	if err := c.Refresh(ctx); err != nil {
		slog.Warn("refresh links after save failed", "user_id", c.userID, "error", err)
	}
	return link, nil
}

// Delete 删除链接并从会话列表移除
func (c *LinksController) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, c.userID, id); err != nil {
		return err
	}

	c.mu.RLock()
	items := make([]links.Link, 0, len(c.items))
	for _, item := range c.items {
		if item.ID != id {
			items = append(items, item)
		}
	}
	c.mu.RUnlock()

	c.set(items)
	return nil
}

// Move 把链接移动 delta 位，返回顺序是否发生变化
func (c *LinksController) Move(id string, delta int) bool {
	c.mu.RLock()
	from := -1
	for i, item := range c.items {
		if item.ID == id {
			from = i
			break
		}
	}
	to := from + delta
	if from < 0 || delta == 0 || to < 0 || to >= len(c.items) {
		c.mu.RUnlock()
		return false
	}
	moved := links.Move(c.items, id, delta)
	c.mu.RUnlock()

	c.set(moved)
	return true
}

func (c *LinksController) set(items []links.Link) {
	c.mu.Lock()
	c.items = items
	fn := c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(append([]links.Link(nil), items...))
	}
}

// keepOrder 按 current 中的顺序排列 fetched，新出现的条目按派生顺序追加在末尾
func keepOrder(current, fetched []links.Link) []links.Link {
	byID := make(map[string]links.Link, len(fetched))
	for _, item := range fetched {
		byID[item.ID] = item
	}

	ordered := make([]links.Link, 0, len(fetched))
	seen := make(map[string]bool, len(fetched))
	for _, item := range current {
		if next, ok := byID[item.ID]; ok {
			ordered = append(ordered, next)
			seen[item.ID] = true
		}
	}
	for _, item := range fetched {
		if !seen[item.ID] {
			ordered = append(ordered, item)
		}
	}
	return ordered
}
