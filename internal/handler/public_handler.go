package handler

import (
	"bytes"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/theme"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
	)
	sanitizer = bluemonday.UGCPolicy()
)

const (
	visitorCookieName   = "tc_visitor_id"
	visitorCookieMaxAge = 365 * 24 * 60 * 60
)

// 访问来源参数，记录后从地址栏移除
var attributionParams = []string{"source", "utm_source"}

// ShowProfile 渲染 /u/:slug 公开名片
func (a *API) ShowProfile(c *gin.Context) {
	a.renderProfile(c, c.Param("slug"))
}

// LegacyProfile 兼容旧的 /:slug 地址，作为 NoRoute 处理器挂载
func (a *API) LegacyProfile(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		respondError(c, http.StatusNotFound, "接口不存在")
		return
	}

	path := strings.Trim(c.Request.URL.Path, "/")
	if c.Request.Method != http.MethodGet || path == "" || strings.ContainsAny(path, "/.") {
		a.renderNotFound(c)
		return
	}
	a.renderProfile(c, path)
}

func (a *API) renderProfile(c *gin.Context, slug string) {
	ctx := c.Request.Context()

	profile, err := a.profiles.GetBySlug(ctx, slug)
	if err != nil {
		if !errors.Is(err, service.ErrProfileNotFound) {
			slog.Warn("load public profile failed", "slug", slug, "error", err)
		}
		a.renderNotFound(c)
		return
	}

	settings := a.designs.Load(ctx, profile.ID)
	mount := a.themes.Mount(settings)
	defer mount.Unmount()

	a.trackView(c, profile)

	bio, err := renderMarkdown(profile.Bio)
	if err != nil {
		bio = template.HTML("<p>" + template.HTMLEscapeString(profile.Bio) + "</p>")
	}

	canonicalPath, stripped := canonicalProfilePath(profile.Slug, c.Request.URL.Query())

	c.HTML(http.StatusOK, "profile.html", gin.H{
		"title":         profileTitle(profile),
		"profile":       profile,
		"links":         links.Derive(profile.LinkFields()),
		"bio":           bio,
		"scope":         mount.ID,
		"stylesheet":    template.CSS(mount.Stylesheet()),
		"canonicalURL":  a.siteBaseURL + "/u/" + profile.Slug,
		"canonicalPath": canonicalPath,
		"stripSource":   stripped,
		"year":          time.Now().Year(),
	})
}

// trackView 记录访问，名片主人自己的访问不计入
func (a *API) trackView(c *gin.Context, profile *db.Profile) {
	if currentUserID(c) == profile.ID {
		return
	}

	visitorID := a.ensureVisitorID(c)
	source := service.AttributionSource(c.Query("source"), c.Query("utm_source"), c.Request.Referer())
	if _, _, err := a.analytics.RecordProfileView(c.Request.Context(), profile.ID, source, c.Request.Referer(), visitorID, time.Now()); err != nil {
		c.Error(err) // 不中断渲染，但记录错误
		slog.Warn("record profile view failed", "profile_id", profile.ID, "error", err)
	}
}

// FollowLink 记录链接点击并跳转到目标地址
func (a *API) FollowLink(c *gin.Context) {
	ctx := c.Request.Context()

	profile, err := a.profiles.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		a.renderNotFound(c)
		return
	}

	var target *links.Link
	for _, link := range links.Derive(profile.LinkFields()) {
		if link.ID == c.Param("id") {
			target = &link
			break
		}
	}
	if target == nil {
		a.renderNotFound(c)
		return
	}

	if currentUserID(c) != profile.ID {
		if err := a.analytics.RecordLinkClick(ctx, profile.ID, target.ID, a.ensureVisitorID(c), time.Now()); err != nil {
			c.Error(err)
			slog.Warn("record link click failed", "profile_id", profile.ID, "link_id", target.ID, "error", err)
		}
	}

	c.Redirect(http.StatusFound, target.URL)
}

// PublicProfileJSON 以 JSON 返回公开名片、派生链接与外观
func (a *API) PublicProfileJSON(c *gin.Context) {
	ctx := c.Request.Context()

	profile, err := a.profiles.GetBySlug(ctx, c.Param("slug"))
	if err != nil {
		handleServiceError(c, err)
		return
	}

	settings := a.designs.Load(ctx, profile.ID)
	c.JSON(http.StatusOK, gin.H{
		"profile": service.ProfileSummary{
			ID:       profile.ID,
			Slug:     profile.Slug,
			Name:     profile.Name,
			Headline: profile.Headline,
			PhotoURL: profile.PhotoURL,
		},
		"bio":                 profile.Bio,
		"links":               links.Derive(profile.LinkFields()),
		"design":              settings,
		"variables":           theme.Resolve(settings).VariablesMap(),
		"allow_network_saves": profile.AllowNetworkSaves,
	})
}

func (a *API) renderNotFound(c *gin.Context) {
	c.HTML(http.StatusNotFound, "not_found.html", gin.H{
		"title": "名片不存在",
		"year":  time.Now().Year(),
	})
}

func (a *API) ensureVisitorID(c *gin.Context) string {
	if id, err := c.Cookie(visitorCookieName); err == nil && strings.TrimSpace(id) != "" {
		return id
	}

	visitorID := uuid.NewString()
	secure := c.Request.TLS != nil

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     visitorCookieName,
		Value:    visitorID,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		MaxAge:   visitorCookieMaxAge,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
		SameSite: http.SameSiteLaxMode,
	})

	return visitorID
}

// canonicalProfilePath 返回去掉来源参数后的地址，以及是否有参数被移除
func canonicalProfilePath(slug string, query url.Values) (string, bool) {
	stripped := false
	rest := url.Values{}
	for key, values := range query {
		if slices.Contains(attributionParams, key) {
			stripped = true
			continue
		}
		rest[key] = values
	}

	path := "/u/" + slug
	if encoded := rest.Encode(); encoded != "" {
		path += "?" + encoded
	}
	return path, stripped
}

func profileTitle(profile *db.Profile) string {
	if name := strings.TrimSpace(profile.Name); name != "" {
		return name
	}
	return profile.Slug
}

func renderMarkdown(content string) (template.HTML, error) {
	if strings.TrimSpace(content) == "" {
		return "", nil
	}

	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return template.HTML(sanitizer.SanitizeBytes(buf.Bytes())), nil
}
