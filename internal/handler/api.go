package handler

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/storage"
	"github.com/tapcard/internal/theme"
	"gorm.io/gorm"
)

// Options 汇总构造 API 时可选的外部依赖。
type Options struct {
	Broker         realtime.Broker
	Storage        storage.Storage
	Themes         *theme.Registry
	MaxUploadBytes int64
	SiteBaseURL    string
}

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db          *gorm.DB
	broker      realtime.Broker
	themes      *theme.Registry
	auth        *service.AuthService
	profiles    *service.ProfileService
	designs     *service.DesignService
	links       *service.LinkService
	connections *service.ConnectionService
	analytics   *service.AnalyticsService
	uploads     *service.UploadService
	siteBaseURL string
	upgrader    websocket.Upgrader
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	broker := opts.Broker
	if broker == nil {
		broker = realtime.NewMemoryBroker()
	}
	themes := opts.Themes
	if themes == nil {
		themes = theme.NewRegistry()
	}

	profiles := service.NewProfileService(gdb, broker)
	designs := service.NewDesignService(gdb, broker)

	api := &API{
		db:          gdb,
		broker:      broker,
		themes:      themes,
		auth:        service.NewAuthService(gdb),
		profiles:    profiles,
		designs:     designs,
		links:       service.NewLinkService(gdb, broker),
		connections: service.NewConnectionService(gdb, broker),
		analytics:   service.NewAnalyticsService(gdb),
		siteBaseURL: opts.SiteBaseURL,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	if opts.Storage != nil {
		api.uploads = service.NewUploadService(opts.Storage, profiles, designs, opts.MaxUploadBytes)
	}
	return api
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Themes 返回当前挂载的主题实例表。
func (a *API) Themes() *theme.Registry {
	return a.themes
}
