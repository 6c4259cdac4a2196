package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/theme"
)

const defaultPreviewScope = "preview"

// GetDesign 返回外观设置及其展示指令，未保存过时为默认值
func (a *API) GetDesign(c *gin.Context) {
	settings := a.designs.Load(c.Request.Context(), currentUserID(c))
	respondDesign(c, http.StatusOK, settings)
}

// UpdateDesign 保存部分外观补丁，只写入补丁中出现的字段
func (a *API) UpdateDesign(c *gin.Context) {
	var patch theme.Patch
	if !bindJSON(c, &patch, "请求格式错误") {
		return
	}
	if patch.IsEmpty() {
		handleServiceError(c, service.NewValidationError(map[string]string{"settings": "至少需要修改一项设置"}))
		return
	}

	settings, err := a.designs.Save(c.Request.Context(), currentUserID(c), patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respondDesign(c, http.StatusOK, settings)
}

// ResetDesign 恢复默认外观
func (a *API) ResetDesign(c *gin.Context) {
	settings, err := a.designs.Reset(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	respondDesign(c, http.StatusOK, settings)
}

// PreviewStylesheet 输出编辑器预览使用的作用域样式表
// 作用域由 scope 参数指定，与公开页的实例互不影响
func (a *API) PreviewStylesheet(c *gin.Context) {
	settings := a.designs.Load(c.Request.Context(), currentUserID(c))

	scope := strings.TrimSpace(c.Query("scope"))
	if scope == "" {
		scope = defaultPreviewScope
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/css; charset=utf-8", []byte(theme.Resolve(settings).Stylesheet(scope)))
}

func respondDesign(c *gin.Context, status int, settings theme.Settings) {
	directives := theme.Resolve(settings)
	c.JSON(status, gin.H{
		"settings":  settings,
		"variables": directives.VariablesMap(),
		"style":     directives.InlineStyle(),
	})
}
