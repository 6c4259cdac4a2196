package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Analytics 返回访问统计：汇总、按日与按周访问量、热门链接以及来源分布
func (a *API) Analytics(c *gin.Context) {
	ctx := c.Request.Context()
	profileID := currentUserID(c)
	now := time.Now()

	summary, err := a.analytics.Summary(ctx, profileID, now)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	daily, err := a.analytics.DailyViews(ctx, profileID, parseIntQuery(c, "days", 7), now)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	weekly, err := a.analytics.WeeklyViews(ctx, profileID, parseIntQuery(c, "weeks", 8), now)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	topLinks, err := a.analytics.TopLinks(ctx, profileID, parseIntQuery(c, "limit", 5))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	sources, err := a.analytics.SourceBreakdown(ctx, profileID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"summary":   summary,
		"daily":     daily,
		"weekly":    weekly,
		"top_links": topLinks,
		"sources":   sources,
	})
}
