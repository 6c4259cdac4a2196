package view

import (
	"html/template"
	"strings"

	"github.com/tapcard/internal/links"
)

// LinkIconOption describes the icon metadata for one derived link kind.
type LinkIconOption struct {
	Kind  links.Kind `json:"kind"`
	Label string     `json:"label"`
}

type linkIconAsset struct {
	Kind  links.Kind
	SVG   string
	Label string
}

var (
	linkIconDefinitions = []linkIconAsset{
		{Kind: links.KindLinkedIn, Label: "LinkedIn", SVG: `<svg viewBox="0 0 24 24" fill="currentColor" aria-hidden="true"><path d="M20.447 20.452h-3.554v-5.569c0-1.328-.027-3.037-1.852-3.037-1.853 0-2.136 1.445-2.136 2.939v5.667H9.351V9h3.414v1.561h.046c.477-.9 1.637-1.85 3.37-1.85 3.601 0 4.267 2.37 4.267 5.455v6.286zM5.337 7.433a2.062 2.062 0 1 1 0-4.125 2.062 2.062 0 0 1 0 4.125zM7.119 20.452H3.555V9h3.564v11.452zM22.225 0H1.771C.792 0 0 .774 0 1.729v20.542C0 23.227.792 24 1.771 24h20.451C23.2 24 24 23.227 24 22.271V1.729C24 .774 23.2 0 22.222 0h.003z"/></svg>`},
		{Kind: links.KindWebsite, Label: "个人网站", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="1.5" stroke-linecap="round" stroke-linejoin="round"><path d="M12 21c4.193 0 7.716-2.867 8.716-6.747M12 21c-4.193 0-7.716-2.867-8.716-6.747M12 21c2.485 0 4.5-4.03 4.5-9s-2.015-9-4.5-9m0 18c-2.485 0-4.5-4.03-4.5-9s2.015-9 4.5-9m0-0c3.365 0 6.299 1.847 7.843 4.582M12 3c-3.365 0-6.299 1.847-7.843 4.582m15.686 0c.737 1.305 1.157 2.812 1.157 4.418 0 .778-.099 1.533-.284 2.253m-.873 4.836C18.133 15.685 15.162 16.5 12 16.5s-6.134-.815-8.716-2.247m0 0A8.948 8.948 0 0 1 3 12c0-1.605.42-3.112 1.157-4.417"/></svg>`},
		{Kind: links.KindEmail, Label: "邮箱", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="1.5" stroke-linecap="round" stroke-linejoin="round"><path d="M21.75 6.75v10.5a2.25 2.25 0 0 1-2.25 2.25h-15A2.25 2.25 0 0 1 2.25 17.25V6.75M21.75 6.75A2.25 2.25 0 0 0 19.5 4.5h-15A2.25 2.25 0 0 0 2.25 6.75v.243c0 .781.405 1.506 1.071 1.916l7.5 4.615a2.25 2.25 0 0 0 2.157 0l7.5-4.615a2.25 2.25 0 0 0 1.072-1.916V6.75"/></svg>`},
	}
	defaultLinkIcon = linkIconAsset{Kind: "default", Label: "默认", SVG: `<svg viewBox="0 0 24 24" fill="none" stroke="currentColor" stroke-width="1.5" stroke-linecap="round" stroke-linejoin="round"><path d="M17.982 18.725C16.612 16.918 14.442 15.75 12 15.75s-4.612 1.168-5.982 2.975M17.982 18.725A8.97 8.97 0 0 0 21 12c0-4.971-4.03-9-9-9s-9 4.029-9 9a8.97 8.97 0 0 0 3.018 6.725M17.982 18.725C16.392 20.14 14.296 21 12 21s-4.392-.86-5.982-2.275M15 9.75a3 3 0 1 1-6 0 3 3 0 0 1 6 0Z"/></svg>`}
	linkIconLookup  = func() map[links.Kind]linkIconAsset {
		lookup := make(map[links.Kind]linkIconAsset, len(linkIconDefinitions))
		for _, icon := range linkIconDefinitions {
			lookup[icon.Kind] = icon
		}
		return lookup
	}()
)

// LinkIconOptions 按派生顺序返回图标元数据。
func LinkIconOptions() []LinkIconOption {
	options := make([]LinkIconOption, 0, len(linkIconDefinitions))
	for _, icon := range linkIconDefinitions {
		options = append(options, LinkIconOption{Kind: icon.Kind, Label: icon.Label})
	}
	return options
}

// LinkIconSVG resolves the SVG string for a link kind, falling back to the default icon.
func LinkIconSVG(kind links.Kind) string {
	trimmed := links.Kind(strings.ToLower(strings.TrimSpace(string(kind))))
	if icon, ok := linkIconLookup[trimmed]; ok {
		return icon.SVG
	}
	return defaultLinkIcon.SVG
}

// LinkIcon 返回可直接输出到模板的图标。
func LinkIcon(kind links.Kind) template.HTML {
	return template.HTML(LinkIconSVG(kind))
}
