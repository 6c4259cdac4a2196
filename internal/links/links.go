package links

import (
	"net/mail"
	"regexp"
	"strings"
)

// Kind 为派生链接的类型，每种类型对应资料上的一个字段。
type Kind string

const (
	KindLinkedIn Kind = "linkedin"
	KindWebsite  Kind = "website"
	KindEmail    Kind = "email"
)

// Order 为派生链接的固定构建顺序。
var Order = []Kind{KindLinkedIn, KindWebsite, KindEmail}

var (
	kindFields = map[Kind]string{
		KindLinkedIn: "linkedin",
		KindWebsite:  "website",
		KindEmail:    "email",
	}
	kindTitles = map[Kind]string{
		KindLinkedIn: "LinkedIn",
		KindWebsite:  "Website",
		KindEmail:    "Email",
	}
	schemePattern  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	httpURLPattern = regexp.MustCompile(`^https?://[^\s/$.?#][^\s]*\.[^\s]+$|^https?://localhost(:\d+)?(/[^\s]*)?$`)
)

// Fields 为资料行上承载链接的三个字段。
type Fields struct {
	LinkedIn string
	Website  string
	Email    string
}

// Get 返回指定类型对应的字段值。
func (f Fields) Get(kind Kind) string {
	switch kind {
	case KindLinkedIn:
		return f.LinkedIn
	case KindWebsite:
		return f.Website
	case KindEmail:
		return f.Email
	}
	return ""
}

// Link 为读取时合成的链接实体，不单独持久化。
type Link struct {
	ID    string `json:"id"`
	Kind  Kind   `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Raw   string `json:"value"`
}

// ID 返回类型对应的固定 id，例如 linkedin-link。
func ID(kind Kind) string {
	return string(kind) + "-link"
}

// Field 返回类型对应的资料字段名，未知类型返回空串。
func Field(kind Kind) string {
	return kindFields[kind]
}

// Title 返回类型的默认展示标题。
func Title(kind Kind) string {
	return kindTitles[kind]
}

// Derive 按 LinkedIn、Website、Email 顺序合成链接，跳过空字段。
func Derive(f Fields) []Link {
	items := make([]Link, 0, len(Order))
	for _, kind := range Order {
		raw := strings.TrimSpace(f.Get(kind))
		if raw == "" {
			continue
		}
		items = append(items, Link{
			ID:    ID(kind),
			Kind:  kind,
			Title: Title(kind),
			URL:   NormalizeURL(kind, raw),
			Raw:   raw,
		})
	}
	return items
}

// NormalizeURL 为缺少协议的值补全跳转地址。
func NormalizeURL(kind Kind, value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}

	switch kind {
	case KindLinkedIn:
		if hasScheme(trimmed) {
			return trimmed
		}
		return "https://linkedin.com/in/" + strings.TrimPrefix(trimmed, "/")
	case KindWebsite:
		if hasScheme(trimmed) {
			return trimmed
		}
		return "https://" + trimmed
	case KindEmail:
		if strings.HasPrefix(strings.ToLower(trimmed), "mailto:") {
			return trimmed
		}
		return "mailto:" + trimmed
	}
	return trimmed
}

// StoredValue 把表单提交的地址转换为写回资料字段的值，邮箱去掉 mailto: 前缀。
func StoredValue(kind Kind, value string) string {
	trimmed := strings.TrimSpace(value)
	if kind == KindEmail && strings.HasPrefix(strings.ToLower(trimmed), "mailto:") {
		return trimmed[len("mailto:"):]
	}
	return trimmed
}

// KindFromID 解析 <type>-link 格式的 id。
func KindFromID(id string) (Kind, bool) {
	trimmed := strings.ToLower(strings.TrimSpace(id))
	if !strings.HasSuffix(trimmed, "-link") {
		return "", false
	}
	kind := Kind(strings.TrimSuffix(trimmed, "-link"))
	if _, ok := kindFields[kind]; !ok {
		return "", false
	}
	return kind, true
}

// KindFromTitle 根据标题关键字推断类型，无匹配时默认为 website。
func KindFromTitle(title string) Kind {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "linkedin"):
		return KindLinkedIn
	case strings.Contains(lower, "website"), strings.Contains(lower, "portfolio"):
		return KindWebsite
	case strings.Contains(lower, "email"):
		return KindEmail
	}
	return KindWebsite
}

// ResolveKind 优先使用已有 id 推断类型，否则按标题推断。
func ResolveKind(id, title string) Kind {
	if kind, ok := KindFromID(id); ok {
		return kind
	}
	return KindFromTitle(title)
}

// FieldErrors 以字段名为键保存表单校验信息。
type FieldErrors map[string]string

// Empty 报告是否没有错误。
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// Validate 校验链接表单，错误挂在 title/url 字段上。
func Validate(title, rawURL string, kind Kind) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(title) == "" {
		errs["title"] = "title is required"
	}

	value := strings.TrimSpace(rawURL)
	switch {
	case value == "":
		errs["url"] = "url is required"
	case kind == KindEmail:
		if !validEmailTarget(value) {
			errs["url"] = "enter a valid email address"
		}
	default:
		if !httpURLPattern.MatchString(value) {
			errs["url"] = "enter a valid http(s) url"
		}
	}

	return errs
}

func validEmailTarget(value string) bool {
	// mailto: 前缀之后必须仍是合法地址
	if strings.HasPrefix(strings.ToLower(value), "mailto:") {
		value = strings.TrimSpace(value[len("mailto:"):])
	}
	if value == "" {
		return false
	}
	addr, err := mail.ParseAddress(value)
	if err != nil || addr.Address != value {
		return false
	}
	at := strings.LastIndex(value, "@")
	return at > 0 && strings.Contains(value[at+1:], ".")
}

func hasScheme(value string) bool {
	return schemePattern.MatchString(value) || strings.HasPrefix(strings.ToLower(value), "mailto:")
}

// Move 返回把 id 对应条目移动 delta 位后的新切片，越界或未知 id 时原样返回。
// 顺序只存在于当前会话，不写回存储。
func Move(items []Link, id string, delta int) []Link {
	from := -1
	for i, item := range items {
		if item.ID == id {
			from = i
			break
		}
	}
	to := from + delta
	if from < 0 || delta == 0 || to < 0 || to >= len(items) {
		return items
	}

	moved := append([]Link(nil), items...)
	item := moved[from]
	moved = append(moved[:from], moved[from+1:]...)
	moved = append(moved[:to], append([]Link{item}, moved[to:]...)...)
	return moved
}
