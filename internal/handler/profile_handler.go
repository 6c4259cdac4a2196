package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/service"
)

// GetProfile 返回当前用户的名片
func (a *API) GetProfile(c *gin.Context) {
	profile, err := a.profiles.Get(c.Request.Context(), currentUserID(c))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "public_url": a.publicURL(profile)})
}

// UpdateProfile 更新名片基础字段，短链接冲突时返回 409
func (a *API) UpdateProfile(c *gin.Context) {
	var input service.ProfileInput
	if !bindJSON(c, &input, "请求格式错误") {
		return
	}

	profile, err := a.profiles.Update(c.Request.Context(), currentUserID(c), input)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile, "public_url": a.publicURL(profile)})
}

// Dashboard 汇总概览标签页需要的数据
func (a *API) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	userID := currentUserID(c)

	profile, err := a.profiles.Get(ctx, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	derived, err := a.links.List(ctx, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	connections, err := a.connections.List(ctx, userID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	summary, err := a.analytics.Summary(ctx, profile.ID, time.Now())
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile":           profile,
		"public_url":        a.publicURL(profile),
		"links":             derived,
		"connections_count": len(connections),
		"analytics":         summary,
		"design":            a.designs.Load(ctx, userID),
	})
}

func (a *API) publicURL(profile *db.Profile) string {
	return a.siteBaseURL + "/u/" + profile.Slug
}
