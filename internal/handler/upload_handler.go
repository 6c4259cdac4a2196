package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/service"
)

// multipart 头部与边界的额外余量
const multipartOverhead = 64 << 10

// UploadPhoto 上传头像，裁剪为正方形后写入名片
func (a *API) UploadPhoto(c *gin.Context) {
	a.handleUpload(c, service.PurposePhoto)
}

// UploadBackground 上传背景图并写入外观设置
func (a *API) UploadBackground(c *gin.Context) {
	a.handleUpload(c, service.PurposeBackground)
}

func (a *API) handleUpload(c *gin.Context, purpose service.UploadPurpose) {
	if a.uploads == nil {
		respondError(c, http.StatusServiceUnavailable, "未配置文件存储")
		return
	}

	limit := a.uploads.MaxBytes() + multipartOverhead
	if c.Request.ContentLength > limit {
		handleServiceError(c, service.ErrUploadTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	// 获取上传的文件
	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			handleServiceError(c, service.ErrUploadTooLarge)
			return
		}
		respondError(c, http.StatusBadRequest, "未找到上传的图片")
		return
	}
	if file.Size > a.uploads.MaxBytes() {
		handleServiceError(c, service.ErrUploadTooLarge)
		return
	}

	// 检查文件类型
	contentType := file.Header.Get("Content-Type")
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		handleServiceError(c, service.ErrUploadNotImage)
		return
	}

	src, err := file.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "读取上传文件失败")
		return
	}
	defer src.Close()

	result, err := a.uploads.Store(c.Request.Context(), currentUserID(c), purpose, src)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "data": result})
}
