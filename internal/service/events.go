package service

import (
	"context"
	"log/slog"

	"github.com/tapcard/internal/realtime"
)

const (
	tableProfiles       = "profiles"
	tableDesignSettings = "profile_design_settings"
	tableConnections    = "connections"
)

// DesignTopic 为某个用户外观设置行的变更主题
func DesignTopic(userID uint) string {
	return realtime.Topic(tableDesignSettings, "user_id", userID)
}

// ProfileTopic 为某个用户资料行的变更主题
func ProfileTopic(userID uint) string {
	return realtime.Topic(tableProfiles, "id", userID)
}

// ProfileSlugTopic 为公开页按 slug 订阅的变更主题
func ProfileSlugTopic(slug string) string {
	return realtime.Topic(tableProfiles, "slug", slug)
}

// ConnectionsTopic 为某个用户收藏列表的变更主题
func ConnectionsTopic(userID uint) string {
	return realtime.Topic(tableConnections, "user_id", userID)
}

// publish 发布变更事件；失败只记录日志，不影响已提交的写入
func publish(ctx context.Context, broker realtime.Broker, table string, typ realtime.EventType, record interface{}, topics ...string) {
	if broker == nil {
		return
	}
	evt := realtime.NewEvent(table, typ, record)
	if err := realtime.PublishAll(ctx, broker, evt, topics...); err != nil {
		slog.Warn("publish change event failed", "table", table, "type", typ, "error", err)
	}
}
