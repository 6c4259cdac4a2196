package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/tapcard/internal/service"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// bindJSON 解析请求体，binding 标签校验失败时按字段返回 400
func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			handleServiceError(c, service.NewValidationError(bindingFieldErrors(verrs)))
			return false
		}
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

func bindingFieldErrors(verrs validator.ValidationErrors) map[string]string {
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := strings.ToLower(fe.Field())
		if fe.Tag() == "required" {
			fields[name] = name + " is required"
		} else {
			fields[name] = name + " is invalid"
		}
	}
	return fields
}

func parseUintParam(c *gin.Context, key string) (uint, error) {
	raw := c.Param(key)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return uint(id), nil
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// handleServiceError 把服务层错误映射为状态码，未知错误统一返回通用提示
func handleServiceError(c *gin.Context, err error) {
	status, body := serviceErrorBody(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	}
	c.JSON(status, body)
}

func serviceErrorBody(err error) (int, gin.H) {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized, gin.H{"error": "请先登录"}
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"}
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, gin.H{"error": "提交内容校验失败", "fields": service.FieldErrorsOf(err)}
	case errors.Is(err, service.ErrSlugConflict):
		return http.StatusConflict, gin.H{"error": "该短链接已被占用"}
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, gin.H{"error": "用户名已存在"}
	case errors.Is(err, service.ErrProfileNotFound):
		return http.StatusNotFound, gin.H{"error": "名片不存在"}
	case errors.Is(err, service.ErrConnectionNotFound):
		return http.StatusNotFound, gin.H{"error": "收藏不存在"}
	case errors.Is(err, service.ErrNetworkSavesDisabled):
		return http.StatusForbidden, gin.H{"error": "对方未开放收藏"}
	case errors.Is(err, service.ErrUploadTooLarge):
		return http.StatusRequestEntityTooLarge, gin.H{"error": "图片不能超过大小限制"}
	case errors.Is(err, service.ErrUploadNotImage):
		return http.StatusBadRequest, gin.H{"error": "只允许上传图片文件"}
	default:
		return http.StatusInternalServerError, gin.H{"error": "服务暂时不可用，请稍后重试"}
	}
}
