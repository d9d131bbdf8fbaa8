package health

import "sync"

// Readiness 就绪状态聚合，按组件名记录
type Readiness struct {
	mu         sync.RWMutex
	components map[string]bool
}

func New() *Readiness { return &Readiness{components: make(map[string]bool)} }

// Set 设置组件就绪状态
func (r *Readiness) Set(component string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[component] = ready
}

// Ready 总体就绪：已登记的组件均为 true，且至少登记了一个组件
func (r *Readiness) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.components) == 0 {
		return false
	}
	for _, ok := range r.components {
		if !ok {
			return false
		}
	}
	return true
}
