package theme

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// BackgroundType 决定背景字段中哪一组生效。
type BackgroundType string

const (
	BackgroundSolid    BackgroundType = "solid"
	BackgroundGradient BackgroundType = "gradient"
	BackgroundImage    BackgroundType = "image"
)

// IconPosition 表示按钮图标位于文字的哪一侧。
type IconPosition string

const (
	IconLeft  IconPosition = "left"
	IconRight IconPosition = "right"
)

// BorderStyle 表示按钮边框绘制在哪些边上。
type BorderStyle string

const (
	BorderNone   BorderStyle = "none"
	BorderAll    BorderStyle = "all"
	BorderLeft   BorderStyle = "left"
	BorderRight  BorderStyle = "right"
	BorderTop    BorderStyle = "top"
	BorderBottom BorderStyle = "bottom"
	BorderX      BorderStyle = "x"
	BorderY      BorderStyle = "y"
)

// ButtonSize 为按钮尺寸档位。
type ButtonSize string

const (
	ButtonS   ButtonSize = "S"
	ButtonM   ButtonSize = "M"
	ButtonL   ButtonSize = "L"
	ButtonXL  ButtonSize = "XL"
	Button2XL ButtonSize = "2XL"
)

// TextAlignment 为资料页文本对齐方式。
type TextAlignment string

const (
	AlignLeft   TextAlignment = "left"
	AlignCenter TextAlignment = "center"
	AlignRight  TextAlignment = "right"
)

// FontFamilies 为可选字体列表，值即 CSS font-family。
var FontFamilies = []string{
	"Inter, sans-serif",
	"Roboto, sans-serif",
	"Poppins, sans-serif",
	"Montserrat, sans-serif",
	"'Playfair Display', serif",
	"Georgia, serif",
	"ui-monospace, monospace",
}

// Settings 为单个用户的资料页外观设置。
type Settings struct {
	BackgroundType          BackgroundType `json:"background_type" gorm:"size:20;not null"`
	BackgroundColor         string         `json:"background_color" gorm:"size:64"`
	BackgroundGradientStart string         `json:"background_gradient_start" gorm:"size:64"`
	BackgroundGradientEnd   string         `json:"background_gradient_end" gorm:"size:64"`
	BackgroundImageURL      string         `json:"background_image_url" gorm:"size:512"`
	NameColor               string         `json:"name_color" gorm:"size:64"`
	DescriptionColor        string         `json:"description_color" gorm:"size:64"`
	SectionTitleColor       string         `json:"section_title_color" gorm:"size:64"`
	LinkTextColor           string         `json:"link_text_color" gorm:"size:64"`
	ButtonTextColor         string         `json:"button_text_color" gorm:"size:64"`
	ButtonBackgroundColor   string         `json:"button_background_color" gorm:"size:64"`
	ButtonIconColor         string         `json:"button_icon_color" gorm:"size:64"`
	ButtonBorderColor       string         `json:"button_border_color" gorm:"size:64"`
	ButtonIconPosition      IconPosition   `json:"button_icon_position" gorm:"size:10"`
	ButtonBorderStyle       BorderStyle    `json:"button_border_style" gorm:"size:10"`
	ButtonSize              ButtonSize     `json:"button_size" gorm:"size:5"`
	TextAlignment           TextAlignment  `json:"text_alignment" gorm:"size:10"`
	FontFamily              string         `json:"font_family" gorm:"size:64"`
}

// Defaults 返回静态默认外观。
func Defaults() Settings {
	return Settings{
		BackgroundType:          BackgroundSolid,
		BackgroundColor:         "#ffffff",
		BackgroundGradientStart: "#ffffff",
		BackgroundGradientEnd:   "#f0f9ff",
		BackgroundImageURL:      "",
		NameColor:               "#111827",
		DescriptionColor:        "#4b5563",
		SectionTitleColor:       "#111827",
		LinkTextColor:           "#2563eb",
		ButtonTextColor:         "#ffffff",
		ButtonBackgroundColor:   "#2563eb",
		ButtonIconColor:         "#ffffff",
		ButtonBorderColor:       "#1d4ed8",
		ButtonIconPosition:      IconLeft,
		ButtonBorderStyle:       BorderNone,
		ButtonSize:              ButtonM,
		TextAlignment:           AlignCenter,
		FontFamily:              FontFamilies[0],
	}
}

// Patch 描述一次部分更新，nil 字段表示未修改。
type Patch struct {
	BackgroundType          *BackgroundType `json:"background_type,omitempty"`
	BackgroundColor         *string         `json:"background_color,omitempty"`
	BackgroundGradientStart *string         `json:"background_gradient_start,omitempty"`
	BackgroundGradientEnd   *string         `json:"background_gradient_end,omitempty"`
	BackgroundImageURL      *string         `json:"background_image_url,omitempty"`
	NameColor               *string         `json:"name_color,omitempty"`
	DescriptionColor        *string         `json:"description_color,omitempty"`
	SectionTitleColor       *string         `json:"section_title_color,omitempty"`
	LinkTextColor           *string         `json:"link_text_color,omitempty"`
	ButtonTextColor         *string         `json:"button_text_color,omitempty"`
	ButtonBackgroundColor   *string         `json:"button_background_color,omitempty"`
	ButtonIconColor         *string         `json:"button_icon_color,omitempty"`
	ButtonBorderColor       *string         `json:"button_border_color,omitempty"`
	ButtonIconPosition      *IconPosition   `json:"button_icon_position,omitempty"`
	ButtonBorderStyle       *BorderStyle    `json:"button_border_style,omitempty"`
	ButtonSize              *ButtonSize     `json:"button_size,omitempty"`
	TextAlignment           *TextAlignment  `json:"text_alignment,omitempty"`
	FontFamily              *string         `json:"font_family,omitempty"`
}

// FullPatch 把完整设置转换为覆盖全部字段的补丁，用于重置。
func FullPatch(s Settings) Patch {
	return Patch{
		BackgroundType:          &s.BackgroundType,
		BackgroundColor:         &s.BackgroundColor,
		BackgroundGradientStart: &s.BackgroundGradientStart,
		BackgroundGradientEnd:   &s.BackgroundGradientEnd,
		BackgroundImageURL:      &s.BackgroundImageURL,
		NameColor:               &s.NameColor,
		DescriptionColor:        &s.DescriptionColor,
		SectionTitleColor:       &s.SectionTitleColor,
		LinkTextColor:           &s.LinkTextColor,
		ButtonTextColor:         &s.ButtonTextColor,
		ButtonBackgroundColor:   &s.ButtonBackgroundColor,
		ButtonIconColor:         &s.ButtonIconColor,
		ButtonBorderColor:       &s.ButtonBorderColor,
		ButtonIconPosition:      &s.ButtonIconPosition,
		ButtonBorderStyle:       &s.ButtonBorderStyle,
		ButtonSize:              &s.ButtonSize,
		TextAlignment:           &s.TextAlignment,
		FontFamily:              &s.FontFamily,
	}
}

// IsEmpty 报告补丁是否没有任何字段。
func (p Patch) IsEmpty() bool {
	return len(p.Columns()) == 0
}

// Apply 返回合并补丁后的新设置，原值不受影响。
func (p Patch) Apply(s Settings) Settings {
	if p.BackgroundType != nil {
		s.BackgroundType = *p.BackgroundType
	}
	if p.BackgroundColor != nil {
		s.BackgroundColor = *p.BackgroundColor
	}
	if p.BackgroundGradientStart != nil {
		s.BackgroundGradientStart = *p.BackgroundGradientStart
	}
	if p.BackgroundGradientEnd != nil {
		s.BackgroundGradientEnd = *p.BackgroundGradientEnd
	}
	if p.BackgroundImageURL != nil {
		s.BackgroundImageURL = *p.BackgroundImageURL
	}
	if p.NameColor != nil {
		s.NameColor = *p.NameColor
	}
	if p.DescriptionColor != nil {
		s.DescriptionColor = *p.DescriptionColor
	}
	if p.SectionTitleColor != nil {
		s.SectionTitleColor = *p.SectionTitleColor
	}
	if p.LinkTextColor != nil {
		s.LinkTextColor = *p.LinkTextColor
	}
	if p.ButtonTextColor != nil {
		s.ButtonTextColor = *p.ButtonTextColor
	}
	if p.ButtonBackgroundColor != nil {
		s.ButtonBackgroundColor = *p.ButtonBackgroundColor
	}
	if p.ButtonIconColor != nil {
		s.ButtonIconColor = *p.ButtonIconColor
	}
	if p.ButtonBorderColor != nil {
		s.ButtonBorderColor = *p.ButtonBorderColor
	}
	if p.ButtonIconPosition != nil {
		s.ButtonIconPosition = *p.ButtonIconPosition
	}
	if p.ButtonBorderStyle != nil {
		s.ButtonBorderStyle = *p.ButtonBorderStyle
	}
	if p.ButtonSize != nil {
		s.ButtonSize = *p.ButtonSize
	}
	if p.TextAlignment != nil {
		s.TextAlignment = *p.TextAlignment
	}
	if p.FontFamily != nil {
		s.FontFamily = *p.FontFamily
	}
	return s
}

// Columns 返回补丁涉及的列名与值，键为数据库列名。
func (p Patch) Columns() map[string]interface{} {
	cols := make(map[string]interface{})
	set := func(name string, ok bool, value interface{}) {
		if ok {
			cols[name] = value
		}
	}
	set("background_type", p.BackgroundType != nil, deref(p.BackgroundType))
	set("background_color", p.BackgroundColor != nil, deref(p.BackgroundColor))
	set("background_gradient_start", p.BackgroundGradientStart != nil, deref(p.BackgroundGradientStart))
	set("background_gradient_end", p.BackgroundGradientEnd != nil, deref(p.BackgroundGradientEnd))
	set("background_image_url", p.BackgroundImageURL != nil, deref(p.BackgroundImageURL))
	set("name_color", p.NameColor != nil, deref(p.NameColor))
	set("description_color", p.DescriptionColor != nil, deref(p.DescriptionColor))
	set("section_title_color", p.SectionTitleColor != nil, deref(p.SectionTitleColor))
	set("link_text_color", p.LinkTextColor != nil, deref(p.LinkTextColor))
	set("button_text_color", p.ButtonTextColor != nil, deref(p.ButtonTextColor))
	set("button_background_color", p.ButtonBackgroundColor != nil, deref(p.ButtonBackgroundColor))
	set("button_icon_color", p.ButtonIconColor != nil, deref(p.ButtonIconColor))
	set("button_border_color", p.ButtonBorderColor != nil, deref(p.ButtonBorderColor))
	set("button_icon_position", p.ButtonIconPosition != nil, deref(p.ButtonIconPosition))
	set("button_border_style", p.ButtonBorderStyle != nil, deref(p.ButtonBorderStyle))
	set("button_size", p.ButtonSize != nil, deref(p.ButtonSize))
	set("text_alignment", p.TextAlignment != nil, deref(p.TextAlignment))
	set("font_family", p.FontFamily != nil, deref(p.FontFamily))
	return cols
}

// Keys 返回补丁涉及的列名，按字母序。
func (p Patch) Keys() []string {
	cols := p.Columns()
	keys := make([]string, 0, len(cols))
	for key := range cols {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// FieldErrors 以 JSON 字段名为键保存校验信息。
type FieldErrors map[string]string

// Empty 报告是否没有错误。
func (e FieldErrors) Empty() bool {
	return len(e) == 0
}

// Validate 校验补丁中出现的枚举与图片地址，颜色字段不做校验。
func (p Patch) Validate() FieldErrors {
	errs := FieldErrors{}
	if p.BackgroundType != nil && !validBackgroundType(*p.BackgroundType) {
		errs["background_type"] = fmt.Sprintf("unknown background type %q", *p.BackgroundType)
	}
	if p.ButtonIconPosition != nil && *p.ButtonIconPosition != IconLeft && *p.ButtonIconPosition != IconRight {
		errs["button_icon_position"] = fmt.Sprintf("unknown icon position %q", *p.ButtonIconPosition)
	}
	if p.ButtonBorderStyle != nil && !validBorderStyle(*p.ButtonBorderStyle) {
		errs["button_border_style"] = fmt.Sprintf("unknown border style %q", *p.ButtonBorderStyle)
	}
	if p.ButtonSize != nil && !validButtonSize(*p.ButtonSize) {
		errs["button_size"] = fmt.Sprintf("unknown button size %q", *p.ButtonSize)
	}
	if p.TextAlignment != nil && !validAlignment(*p.TextAlignment) {
		errs["text_alignment"] = fmt.Sprintf("unknown text alignment %q", *p.TextAlignment)
	}
	if p.FontFamily != nil && !validFontFamily(*p.FontFamily) {
		errs["font_family"] = fmt.Sprintf("unsupported font family %q", *p.FontFamily)
	}
	if p.BackgroundImageURL != nil && !validImageURL(*p.BackgroundImageURL) {
		errs["background_image_url"] = "enter a valid http(s) image url"
	}
	return errs
}

func deref[T any](v *T) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func validBackgroundType(v BackgroundType) bool {
	switch v {
	case BackgroundSolid, BackgroundGradient, BackgroundImage:
		return true
	}
	return false
}

func validBorderStyle(v BorderStyle) bool {
	switch v {
	case BorderNone, BorderAll, BorderLeft, BorderRight, BorderTop, BorderBottom, BorderX, BorderY:
		return true
	}
	return false
}

func validButtonSize(v ButtonSize) bool {
	switch v {
	case ButtonS, ButtonM, ButtonL, ButtonXL, Button2XL:
		return true
	}
	return false
}

func validAlignment(v TextAlignment) bool {
	switch v {
	case AlignLeft, AlignCenter, AlignRight:
		return true
	}
	return false
}

func validFontFamily(v string) bool {
	for _, candidate := range FontFamilies {
		if v == candidate {
			return true
		}
	}
	return false
}

// 空串表示清除；允许站内相对路径或 http(s) 绝对地址。
func validImageURL(v string) bool {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return true
	}
	if strings.HasPrefix(trimmed, "/") && !strings.HasPrefix(trimmed, "//") {
		return true
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
