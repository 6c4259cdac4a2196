package handler

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
)

type credentialsRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Register 创建账号与名片，并直接登录
func (a *API) Register(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "请求格式错误") {
		return
	}

	user, profile, err := a.auth.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if !saveSession(c, user.ID, user.Username) {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":    gin.H{"id": user.ID, "username": user.Username},
		"profile": profile,
	})
}

// Login 校验用户名与密码并写入会话
func (a *API) Login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req, "请求格式错误") {
		return
	}

	user, err := a.auth.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if !saveSession(c, user.ID, user.Username) {
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "username": user.Username}})
}

// Logout 清空会话
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Me 返回当前登录用户
func (a *API) Me(c *gin.Context) {
	session := sessions.Default(c)
	c.JSON(http.StatusOK, gin.H{
		"user": gin.H{
			"id":       currentUserID(c),
			"username": session.Get(sessionUsernameKey),
		},
	})
}

// AuthRequired 是一个简单的认证中间件，未登录时返回 401
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if sessionUserID(sessions.Default(c)) == 0 {
			respondError(c, http.StatusUnauthorized, "请先登录")
			c.Abort()
			return
		}
		c.Next()
	}
}

func saveSession(c *gin.Context, userID uint, username string) bool {
	session := sessions.Default(c)
	session.Set(sessionUserIDKey, userID)
	session.Set(sessionUsernameKey, username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return false
	}
	return true
}

// currentUserID 返回会话中的用户 id，未登录时为 0
func currentUserID(c *gin.Context) uint {
	return sessionUserID(sessions.Default(c))
}

func sessionUserID(session sessions.Session) uint {
	switch v := session.Get(sessionUserIDKey).(type) {
	case uint:
		return v
	case int:
		if v > 0 {
			return uint(v)
		}
	case int64:
		if v > 0 {
			return uint(v)
		}
	case float64:
		if v > 0 {
			return uint(v)
		}
	}
	return 0
}
