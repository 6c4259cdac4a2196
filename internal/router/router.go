package router

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/handler"
	"github.com/tapcard/internal/view"
	"github.com/tapcard/web"
)

const sessionName = "tapcard_session"

// Options 汇总路由层需要的配置
type Options struct {
	SessionSecret string
	// UploadDir 为空时不挂载本地上传目录，例如使用 S3 存储时
	UploadDir string
	UploadURL string
	Logger    *slog.Logger
}

// SetupRouter 配置 Gin 引擎和路由
func SetupRouter(api *handler.API, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), LoggingMiddleware(logger))

	// 配置会话中间件
	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 60 * 60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))

	// 加载内嵌模板并添加自定义函数
	r.SetHTMLTemplate(template.Must(web.Templates(view.FuncMap())))

	// 静态文件服务
	if opts.UploadDir != "" {
		uploadURL := "/" + strings.Trim(opts.UploadURL, "/")
		if uploadURL == "/" {
			uploadURL = "/static/uploads"
		}
		r.Static(uploadURL, opts.UploadDir)
	}

	r.GET("/healthz", api.HealthCheck)

	// 公开名片，旧的 /:slug 地址由 NoRoute 兜底
	r.GET("/u/:slug", api.ShowProfile)
	r.GET("/u/:slug/links/:id", api.FollowLink)
	r.NoRoute(api.LegacyProfile)

	apiGroup := r.Group("/api")
	{
		apiGroup.POST("/auth/register", api.Register)
		apiGroup.POST("/auth/login", api.Login)
		apiGroup.POST("/auth/logout", api.Logout)
		apiGroup.GET("/public/:slug", api.PublicProfileJSON)

		// 需要认证的接口
		auth := apiGroup.Group("")
		auth.Use(handler.AuthRequired())
		{
			auth.GET("/auth/me", api.Me)
			auth.GET("/dashboard", api.Dashboard)

			auth.GET("/profile", api.GetProfile)
			auth.PUT("/profile", api.UpdateProfile)

			auth.GET("/links", api.ListLinks)
			auth.POST("/links", api.CreateLink)
			auth.PUT("/links/:id", api.UpdateLink)
			auth.DELETE("/links/:id", api.DeleteLink)

			auth.GET("/connections", api.ListConnections)
			auth.POST("/connections", api.AddConnection)
			auth.PATCH("/connections/:id", api.UpdateConnection)
			auth.DELETE("/connections/:id", api.RemoveConnection)

			auth.GET("/design", api.GetDesign)
			auth.PUT("/design", api.UpdateDesign)
			auth.POST("/design/reset", api.ResetDesign)
			auth.GET("/design/preview.css", api.PreviewStylesheet)

			auth.GET("/analytics", api.Analytics)

			auth.POST("/uploads/photo", api.UploadPhoto)
			auth.POST("/uploads/background", api.UploadBackground)

			auth.GET("/live", api.LiveSession)
		}
	}

	return r
}
