package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/service"
)

type addConnectionRequest struct {
	ProfileID uint   `json:"profile_id"`
	Slug      string `json:"slug"`
}

// ListConnections 返回当前用户收藏的名片
func (a *API) ListConnections(c *gin.Context) {
	items, err := a.connections.List(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": items})
}

// AddConnection 收藏一张名片，可按 profile_id 或 slug 指定，重复收藏返回 already_saved
func (a *API) AddConnection(c *gin.Context) {
	var req addConnectionRequest
	if !bindJSON(c, &req, "请求格式错误") {
		return
	}

	ctx := c.Request.Context()
	targetID := req.ProfileID
	if targetID == 0 && strings.TrimSpace(req.Slug) != "" {
		target, err := a.profiles.GetBySlug(ctx, req.Slug)
		if err != nil {
			handleServiceError(c, err)
			return
		}
		targetID = target.ID
	}

	conn, alreadySaved, err := a.connections.Add(ctx, currentUserID(c), targetID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if alreadySaved {
		status = http.StatusOK
	}
	c.JSON(status, gin.H{"connection": conn, "already_saved": alreadySaved})
}

// UpdateConnection 修改备注或标签，只能修改自己的收藏
func (a *API) UpdateConnection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var input service.ConnectionInput
	if !bindJSON(c, &input, "请求格式错误") {
		return
	}

	conn, err := a.connections.Update(c.Request.Context(), currentUserID(c), id, input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"connection": conn})
}

// RemoveConnection 取消收藏
func (a *API) RemoveConnection(c *gin.Context) {
	id, err := parseUintParam(c, "id")
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.connections.Remove(c.Request.Context(), currentUserID(c), id); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
