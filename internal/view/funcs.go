package view

import "html/template"

// FuncMap 返回页面模板使用的辅助函数。
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"linkIcon": LinkIcon,
	}
}
