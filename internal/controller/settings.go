package controller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/theme"
)

// SettingsStore 为外观设置的持久化接口，由 service.DesignService 实现
type SettingsStore interface {
	Load(ctx context.Context, userID uint) theme.Settings
	Save(ctx context.Context, userID uint, patch theme.Patch) (theme.Settings, error)
}

// SettingsController 持有当前用户的外观设置
// 保存成功后乐观合并补丁，失败时状态不变；收到外部变更时整体替换（后写者胜）
type SettingsController struct {
	store  SettingsStore
	broker realtime.Broker
	userID uint

	mu       sync.RWMutex
	settings theme.Settings
	loading  bool
	saving   bool
	onChange func(theme.Settings)
	watcher  *watcher
}

// NewSettingsController 构造控制器，初始状态为默认外观
func NewSettingsController(store SettingsStore, broker realtime.Broker, userID uint) *SettingsController {
	return &SettingsController{
		store:    store,
		broker:   broker,
		userID:   userID,
		settings: theme.Defaults(),
	}
}

// OnChange 注册状态变化回调，回调在持锁之外执行
func (c *SettingsController) OnChange(fn func(theme.Settings)) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Start 加载当前设置并订阅该用户设置行的变更
func (c *SettingsController) Start(ctx context.Context) theme.Settings {
	settings := c.Refresh(ctx)
	if c.userID != 0 {
		c.mu.Lock()
		if c.watcher == nil {
			c.watcher = watch(c.broker, service.DesignTopic(c.userID), c.handleEvent)
		}
		c.mu.Unlock()
	}
	return settings
}

// Close 取消订阅
func (c *SettingsController) Close() {
	c.mu.Lock()
	w := c.watcher
	c.watcher = nil
	c.mu.Unlock()
	w.stop()
}

// Settings 返回当前内存中的设置
func (c *SettingsController) Settings() theme.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Loading 报告是否正在加载
func (c *SettingsController) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Saving 报告是否正在保存
func (c *SettingsController) Saving() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.saving
}

// Refresh 重新从存储读取设置；读取失败时存储返回默认值
func (c *SettingsController) Refresh(ctx context.Context) theme.Settings {
	c.setFlag(&c.loading, true)
	settings := c.store.Load(ctx, c.userID)
	c.setFlag(&c.loading, false)

	c.replace(settings)
	return settings
}

// Save 保存部分补丁，成功后把补丁合并进内存状态
func (c *SettingsController) Save(ctx context.Context, patch theme.Patch) error {
	if c.userID == 0 {
		return service.ErrUnauthenticated
	}

	c.setFlag(&c.saving, true)
	_, err := c.store.Save(ctx, c.userID, patch)
	c.setFlag(&c.saving, false)
	if err != nil {
		slog.Warn("save design settings failed", "user_id", c.userID, "error", err)
		return err
	}

	c.mu.Lock()
	c.settings = patch.Apply(c.settings)
	settings, fn := c.settings, c.onChange
	c.mu.Unlock()

	if fn != nil {
		fn(settings)
	}
	return nil
}

// Reset 用默认值整体覆盖
func (c *SettingsController) Reset(ctx context.Context) error {
	return c.Save(ctx, theme.FullPatch(theme.Defaults()))
}

func (c *SettingsController) handleEvent(evt realtime.Event) {
	if evt.Type == realtime.EventDelete {
		c.replace(theme.Defaults())
		return
	}

	var settings theme.Settings
	if err := evt.Decode(&settings); err != nil {
		slog.Warn("ignore malformed design event", "user_id", c.userID, "error", err)
		return
	}
	c.replace(settings)
}

func (c *SettingsController) replace(settings theme.Settings) {
	c.mu.Lock()
	changed := c.settings != settings
	c.settings = settings
	fn := c.onChange
	c.mu.Unlock()

	if changed && fn != nil {
		fn(settings)
	}
}

func (c *SettingsController) setFlag(flag *bool, v bool) {
	c.mu.Lock()
	*flag = v
	c.mu.Unlock()
}
