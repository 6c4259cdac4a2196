package theme

import (
	"sync"

	"github.com/google/uuid"
)

// Registry 保存当前挂载的主题实例，每个实例拥有独立的作用域与样式表。
// 编辑器实时预览与公开资料页各自挂载，互不覆盖。
type Registry struct {
	mu     sync.RWMutex
	mounts map[string]Settings
}

// NewRegistry 构造空的 Registry。
func NewRegistry() *Registry {
	return &Registry{mounts: make(map[string]Settings)}
}

// Mount 表示一次挂载，Unmount 可重复调用。
type Mount struct {
	ID       string
	registry *Registry
	once     sync.Once
}

// Mount 为设置分配新的实例 id 并登记。
func (r *Registry) Mount(s Settings) *Mount {
	id := uuid.NewString()

	r.mu.Lock()
	r.mounts[id] = s
	r.mu.Unlock()

	return &Mount{ID: id, registry: r}
}

// Update 替换实例的设置，实例不存在时返回 false。
func (r *Registry) Update(id string, s Settings) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mounts[id]; !ok {
		return false
	}
	r.mounts[id] = s
	return true
}

// Stylesheet 返回实例当前的作用域样式表。
func (r *Registry) Stylesheet(id string) (string, bool) {
	r.mu.RLock()
	s, ok := r.mounts[id]
	r.mu.RUnlock()

	if !ok {
		return "", false
	}
	return Resolve(s).Stylesheet(id), true
}

// Unmount 只移除该实例自己的条目，已移除时不报错。
func (r *Registry) Unmount(id string) {
	r.mu.Lock()
	delete(r.mounts, id)
	r.mu.Unlock()
}

// Len 返回当前挂载数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mounts)
}

// Update 替换本实例的设置。
func (m *Mount) Update(s Settings) bool {
	return m.registry.Update(m.ID, s)
}

// Stylesheet 返回本实例的样式表。
func (m *Mount) Stylesheet() string {
	css, _ := m.registry.Stylesheet(m.ID)
	return css
}

// Unmount 卸载本实例。
func (m *Mount) Unmount() {
	m.once.Do(func() {
		m.registry.Unmount(m.ID)
	})
}
