// Package web 内嵌服务端渲染使用的页面模板。
package web

import (
	"embed"
	"html/template"
)

//go:embed template/*.html
var templateFS embed.FS

// Templates 解析全部页面模板，funcs 在解析前注册。
func Templates(funcs template.FuncMap) (*template.Template, error) {
	return template.New("").Funcs(funcs).ParseFS(templateFS, "template/*.html")
}
