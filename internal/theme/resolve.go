package theme

import (
	"fmt"
	"strings"
)

// GradientAngle 为渐变背景的固定角度。
const GradientAngle = "135deg"

const borderWidth = "2px solid"

// Declaration 为一条 CSS 声明。
type Declaration struct {
	Property string
	Value    string
}

// Background 是解析后的背景指令，Value 为 none 表示无背景。
type Background struct {
	Type  BackgroundType
	Value string
}

// Declarations 返回背景对应的 CSS 声明。
func (b Background) Declarations() []Declaration {
	if b.Value == "" || b.Value == "none" {
		return []Declaration{{Property: "background", Value: "none"}}
	}
	switch b.Type {
	case BackgroundSolid:
		return []Declaration{
			{Property: "background-color", Value: b.Value},
			{Property: "background-image", Value: "none"},
		}
	case BackgroundGradient:
		return []Declaration{{Property: "background-image", Value: b.Value}}
	case BackgroundImage:
		return []Declaration{
			{Property: "background-image", Value: b.Value},
			{Property: "background-position", Value: "center"},
			{Property: "background-size", Value: "cover"},
			{Property: "background-repeat", Value: "no-repeat"},
		}
	}
	return []Declaration{{Property: "background", Value: "none"}}
}

// ResolveBackground 只读取 background_type 对应的字段组，缺失时回退为 none。
func ResolveBackground(s Settings) Background {
	none := Background{Type: s.BackgroundType, Value: "none"}

	switch s.BackgroundType {
	case BackgroundSolid:
		color := cssValue(s.BackgroundColor)
		if color == "" {
			return none
		}
		return Background{Type: BackgroundSolid, Value: color}
	case BackgroundGradient:
		start := cssValue(s.BackgroundGradientStart)
		end := cssValue(s.BackgroundGradientEnd)
		if start == "" || end == "" {
			return none
		}
		return Background{
			Type:  BackgroundGradient,
			Value: fmt.Sprintf("linear-gradient(%s, %s, %s)", GradientAngle, start, end),
		}
	case BackgroundImage:
		src := cssURL(s.BackgroundImageURL)
		if src == "" {
			return none
		}
		return Background{Type: BackgroundImage, Value: fmt.Sprintf(`url("%s")`, src)}
	}
	return none
}

// Border 为按钮四条边的边框声明。
type Border struct {
	Top    string
	Right  string
	Bottom string
	Left   string
}

// Declarations 返回四条边的 CSS 声明。
func (b Border) Declarations() []Declaration {
	return []Declaration{
		{Property: "border-top", Value: b.Top},
		{Property: "border-right", Value: b.Right},
		{Property: "border-bottom", Value: b.Bottom},
		{Property: "border-left", Value: b.Left},
	}
}

// ResolveBorder 把边框枚举映射为八种边框形态之一，未知值视为 none。
func ResolveBorder(style BorderStyle, color string) Border {
	c := cssValue(color)
	if c == "" {
		c = "currentColor"
	}
	on := borderWidth + " " + c
	off := "none"

	switch style {
	case BorderAll:
		return Border{Top: on, Right: on, Bottom: on, Left: on}
	case BorderX:
		return Border{Top: off, Right: on, Bottom: off, Left: on}
	case BorderY:
		return Border{Top: on, Right: off, Bottom: on, Left: off}
	case BorderLeft:
		return Border{Top: off, Right: off, Bottom: off, Left: on}
	case BorderRight:
		return Border{Top: off, Right: on, Bottom: off, Left: off}
	case BorderTop:
		return Border{Top: on, Right: off, Bottom: off, Left: off}
	case BorderBottom:
		return Border{Top: off, Right: off, Bottom: on, Left: off}
	}
	return Border{Top: off, Right: off, Bottom: off, Left: off}
}

// Variable 为一条 CSS 自定义属性。
type Variable struct {
	Name  string
	Value string
}

// Directives 是外观设置对应的全部展示指令。
type Directives struct {
	Variables     []Variable
	Background    Background
	Border        Border
	TextAlign     string
	FontFamily    string
	IconDirection string
}

// Resolve 把设置转换为展示指令，不产生任何副作用。
func Resolve(s Settings) Directives {
	align := string(s.TextAlignment)
	if !validAlignment(s.TextAlignment) {
		align = string(AlignCenter)
	}

	font := cssValue(s.FontFamily)
	if font == "" {
		font = FontFamilies[0]
	}

	direction := "row"
	if s.ButtonIconPosition == IconRight {
		direction = "row-reverse"
	}

	return Directives{
		Variables: []Variable{
			{Name: "--profile-name-color", Value: cssValue(s.NameColor)},
			{Name: "--profile-description-color", Value: cssValue(s.DescriptionColor)},
			{Name: "--profile-section-title-color", Value: cssValue(s.SectionTitleColor)},
			{Name: "--profile-link-text-color", Value: cssValue(s.LinkTextColor)},
			{Name: "--profile-button-text-color", Value: cssValue(s.ButtonTextColor)},
			{Name: "--profile-button-background-color", Value: cssValue(s.ButtonBackgroundColor)},
			{Name: "--profile-button-icon-color", Value: cssValue(s.ButtonIconColor)},
			{Name: "--profile-button-border-color", Value: cssValue(s.ButtonBorderColor)},
			{Name: "--profile-button-padding", Value: buttonPadding(s.ButtonSize)},
			{Name: "--profile-font-family", Value: font},
			{Name: "--profile-text-align", Value: align},
		},
		Background:    ResolveBackground(s),
		Border:        ResolveBorder(s.ButtonBorderStyle, s.ButtonBorderColor),
		TextAlign:     align,
		FontFamily:    font,
		IconDirection: direction,
	}
}

// VariablesMap 以 map 形式返回自定义属性，空值被省略。
func (d Directives) VariablesMap() map[string]string {
	vars := make(map[string]string, len(d.Variables))
	for _, v := range d.Variables {
		if v.Value != "" {
			vars[v.Name] = v.Value
		}
	}
	return vars
}

// InlineStyle 返回可直接写入 style 属性的自定义属性串。
func (d Directives) InlineStyle() string {
	var b strings.Builder
	for _, v := range d.Variables {
		if v.Value == "" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s; ", v.Name, v.Value)
	}
	return strings.TrimSpace(b.String())
}

// Stylesheet 生成以 scopeID 为作用域的样式表，不同实例之间互不影响。
func (d Directives) Stylesheet(scopeID string) string {
	scope := fmt.Sprintf(`[data-theme-scope="%s"]`, scopeToken(scopeID))

	var b strings.Builder
	writeRule := func(selector string, decls []Declaration) {
		b.WriteString(selector)
		b.WriteString(" {\n")
		for _, decl := range decls {
			if decl.Value == "" {
				continue
			}
			fmt.Fprintf(&b, "  %s: %s;\n", decl.Property, decl.Value)
		}
		b.WriteString("}\n")
	}

	root := make([]Declaration, 0, len(d.Variables)+6)
	for _, v := range d.Variables {
		root = append(root, Declaration{Property: v.Name, Value: v.Value})
	}
	root = append(root, d.Background.Declarations()...)
	root = append(root,
		Declaration{Property: "text-align", Value: d.TextAlign},
		Declaration{Property: "font-family", Value: d.FontFamily},
	)
	writeRule(scope, root)

	writeRule(scope+" .profile-name", []Declaration{{Property: "color", Value: "var(--profile-name-color)"}})
	writeRule(scope+" .profile-description", []Declaration{{Property: "color", Value: "var(--profile-description-color)"}})
	writeRule(scope+" .profile-section-title", []Declaration{{Property: "color", Value: "var(--profile-section-title-color)"}})
	writeRule(scope+" .profile-link-text", []Declaration{{Property: "color", Value: "var(--profile-link-text-color)"}})

	button := []Declaration{
		{Property: "color", Value: "var(--profile-button-text-color)"},
		{Property: "background-color", Value: "var(--profile-button-background-color)"},
		{Property: "padding", Value: "var(--profile-button-padding)"},
		{Property: "flex-direction", Value: d.IconDirection},
	}
	button = append(button, d.Border.Declarations()...)
	writeRule(scope+" .profile-button", button)
	writeRule(scope+" .profile-button-icon", []Declaration{{Property: "color", Value: "var(--profile-button-icon-color)"}})

	return b.String()
}

func buttonPadding(size ButtonSize) string {
	switch size {
	case ButtonS:
		return "0.5rem 0.75rem"
	case ButtonL:
		return "1rem 1.25rem"
	case ButtonXL:
		return "1.25rem 1.5rem"
	case Button2XL:
		return "1.5rem 1.75rem"
	}
	return "0.75rem 1rem"
}

// cssValue 移除可能跳出声明上下文的字符。
func cssValue(v string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ';', '{', '}', '<', '>', '\\', '"', '\n', '\r', '\t':
			return -1
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, v)
	return strings.TrimSpace(cleaned)
}

func cssURL(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return ""
	}
	replacer := strings.NewReplacer(
		`"`, "%22",
		`'`, "%27",
		"(", "%28",
		")", "%29",
		`\`, "%5C",
		"\n", "",
		"\r", "",
		"<", "%3C",
		">", "%3E",
	)
	return replacer.Replace(trimmed)
}

func scopeToken(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, id)
}
