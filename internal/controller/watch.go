// Package controller 持有单个会话的内存状态，并通过变更订阅与存储保持同步。
package controller

import (
	"github.com/tapcard/internal/realtime"
)

// watcher 在后台消费一个订阅，直到订阅关闭
type watcher struct {
	sub *realtime.Subscription
}

func watch(broker realtime.Broker, topic string, handle func(realtime.Event)) *watcher {
	if broker == nil {
		return nil
	}

	w := &watcher{sub: broker.Subscribe(topic)}
	go func() {
		for evt := range w.sub.C {
			handle(evt)
		}
	}()
	return w
}

// stop 可在回调中调用，重复调用无副作用
func (w *watcher) stop() {
	if w == nil {
		return
	}
	w.sub.Close()
}
