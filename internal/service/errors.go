package service

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated 在没有登录用户时尝试写入返回
	ErrUnauthenticated = errors.New("authentication required")
	// ErrValidation 在输入数据不合法时返回
	ErrValidation = errors.New("validation failed")
	// ErrSlugConflict 在 slug 已被其他用户占用时返回
	ErrSlugConflict = errors.New("slug already taken")
	// ErrProfileNotFound 在资料不存在时返回
	ErrProfileNotFound = errors.New("profile not found")
	// ErrConnectionNotFound 在收藏关系不存在或不属于当前用户时返回
	ErrConnectionNotFound = errors.New("connection not found")
	// ErrNetworkSavesDisabled 在目标资料不允许被收藏时返回
	ErrNetworkSavesDisabled = errors.New("profile does not allow network saves")
	// ErrUploadTooLarge 在上传文件超过大小限制时返回
	ErrUploadTooLarge = errors.New("upload exceeds size limit")
	// ErrUploadNotImage 在上传内容不是受支持的图片时返回
	ErrUploadNotImage = errors.New("upload is not a supported image")
	// ErrInvalidCredentials 在用户名或密码错误时返回
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrUsernameTaken 在注册的用户名已存在时返回
	ErrUsernameTaken = errors.New("username already taken")
)

// ValidationError 携带字段级错误信息，errors.Is(err, ErrValidation) 为真
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError 由字段错误构造 ValidationError
func NewValidationError(fields map[string]string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

// Is 使 ValidationError 与 ErrValidation 匹配
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldErrorsOf 提取错误中的字段信息，非校验错误返回 nil
func FieldErrorsOf(err error) map[string]string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Fields
	}
	return nil
}
