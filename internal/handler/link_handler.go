package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/service"
)

// ListLinks 返回由名片字段派生的链接
func (a *API) ListLinks(c *gin.Context) {
	items, err := a.links.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"links": items})
}

// CreateLink 按标题推断链接类型并写入对应字段
func (a *API) CreateLink(c *gin.Context) {
	var input service.LinkInput
	if !bindJSON(c, &input, "请求格式错误") {
		return
	}
	input.ID = ""
	a.saveLink(c, http.StatusCreated, input)
}

// UpdateLink 修改已有链接，类型由路径上的 id 决定
func (a *API) UpdateLink(c *gin.Context) {
	var input service.LinkInput
	if !bindJSON(c, &input, "请求格式错误") {
		return
	}
	input.ID = strings.TrimSpace(c.Param("id"))
	a.saveLink(c, http.StatusOK, input)
}

// DeleteLink 清空链接对应的名片字段，未知 id 不报错
func (a *API) DeleteLink(c *gin.Context) {
	if err := a.links.Delete(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (a *API) saveLink(c *gin.Context, status int, input service.LinkInput) {
	link, err := a.links.Save(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(status, gin.H{"link": link})
}
