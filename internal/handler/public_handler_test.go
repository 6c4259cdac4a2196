package handler_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/tapcard/internal/db"
)

func TestPublicProfileRecordsQRSourceAndStripsParam(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	ownerID := owner.register("alice")

	visitor := app.client(t)
	rr := visitor.request(http.MethodGet, "/u/alice?source=qr", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	body := rr.Body.String()
	if !strings.Contains(body, "history.replaceState") {
		t.Fatalf("expected url rewrite script, got %s", body)
	}
	if strings.Contains(body, "source=qr") {
		t.Fatalf("expected source param to be stripped from canonical path")
	}

	var views []db.ProfileView
	if err := app.db.Where("profile_id = ?", ownerID).Find(&views).Error; err != nil {
		t.Fatalf("failed to query views: %v", err)
	}
	if len(views) != 1 || views[0].Source != "qr" {
		t.Fatalf("expected one qr view, got %+v", views)
	}

	if !strings.Contains(rr.Header().Get("Set-Cookie"), "tc_visitor_id=") {
		t.Fatalf("expected visitor cookie to be set")
	}
}

func TestPublicProfileWithoutSourceDoesNotRewrite(t *testing.T) {
	app := newTestApp(t)
	app.client(t).register("alice")

	rr := app.client(t).request(http.MethodGet, "/u/alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "history.replaceState") {
		t.Fatalf("did not expect url rewrite without source param")
	}

	var view db.ProfileView
	if err := app.db.First(&view).Error; err != nil {
		t.Fatalf("expected view to be recorded: %v", err)
	}
	if view.Source != "direct" {
		t.Fatalf("expected direct source, got %q", view.Source)
	}
}

func TestLegacySlugResolvesIdentically(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")
	owner.request(http.MethodPut, "/api/profile", map[string]string{"name": "Alice Liddell"})

	visitor := app.client(t)
	canonical := visitor.request(http.MethodGet, "/u/alice", nil)
	legacy := visitor.request(http.MethodGet, "/alice?utm_source=nfc", nil)

	if canonical.Code != http.StatusOK || legacy.Code != http.StatusOK {
		t.Fatalf("expected both routes to render, got %d and %d", canonical.Code, legacy.Code)
	}
	for _, body := range []string{canonical.Body.String(), legacy.Body.String()} {
		if !strings.Contains(body, "Alice Liddell") {
			t.Fatalf("expected profile name in body, got %s", body)
		}
	}

	if again := visitor.request(http.MethodGet, "/alice", nil); again.Code != http.StatusOK {
		t.Fatalf("expected repeat legacy visit to render, got %d", again.Code)
	}

	var nfc, direct int64
	app.db.Model(&db.ProfileView{}).Where("source = ?", "nfc").Count(&nfc)
	app.db.Model(&db.ProfileView{}).Where("source = ?", "direct").Count(&direct)
	if nfc != 1 {
		t.Fatalf("expected nfc tap after a direct visit to be recorded, got %d", nfc)
	}
	if direct != 1 {
		t.Fatalf("expected repeat direct visit within the dedup window not to be recorded, got %d", direct)
	}

	missing := visitor.request(http.MethodGet, "/nobody", nil)
	if missing.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown slug, got %d", missing.Code)
	}
	nested := visitor.request(http.MethodGet, "/alice/extra", nil)
	if nested.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for nested path, got %d", nested.Code)
	}
}

func TestPublicProfileAppliesScopedStylesheetAndUnmounts(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")

	rr := owner.request(http.MethodPut, "/api/design", map[string]string{"name_color": "#ff0000"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 saving design, got %d: %s", rr.Code, rr.Body.String())
	}

	page := app.client(t).request(http.MethodGet, "/u/alice", nil)
	body := page.Body.String()
	if !strings.Contains(body, "--profile-name-color: #ff0000") {
		t.Fatalf("expected saved color in stylesheet, got %s", body)
	}
	if !strings.Contains(body, `data-theme-scope="`) {
		t.Fatalf("expected scoped container")
	}
	if n := app.api.Themes().Len(); n != 0 {
		t.Fatalf("expected theme instance to be unmounted after render, got %d", n)
	}
}

func TestPublicProfileSanitizesBio(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")
	owner.request(http.MethodPut, "/api/profile", map[string]string{"bio": "**hello** <script>alert(1)</script>"})

	body := app.client(t).request(http.MethodGet, "/u/alice", nil).Body.String()
	if !strings.Contains(body, "<strong>hello</strong>") {
		t.Fatalf("expected rendered markdown, got %s", body)
	}
	if strings.Contains(body, "<script>alert") {
		t.Fatalf("expected script to be sanitized")
	}
}

func TestOwnerViewIsNotRecorded(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")

	if rr := owner.request(http.MethodGet, "/u/alice", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var count int64
	app.db.Model(&db.ProfileView{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected owner view to be skipped, got %d", count)
	}
}

func TestFollowLinkRecordsClickAndRedirects(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")

	rr := owner.request(http.MethodPost, "/api/links", map[string]string{"title": "Website", "url": "https://alice.example.com"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating link, got %d: %s", rr.Code, rr.Body.String())
	}

	visitor := app.client(t)
	follow := visitor.request(http.MethodGet, "/u/alice/links/website-link", nil)
	if follow.Code != http.StatusFound {
		t.Fatalf("expected redirect, got %d", follow.Code)
	}
	if loc := follow.Header().Get("Location"); loc != "https://alice.example.com" {
		t.Fatalf("unexpected redirect target %q", loc)
	}

	var clicks int64
	app.db.Model(&db.LinkClick{}).Where("link_id = ?", "website-link").Count(&clicks)
	if clicks != 1 {
		t.Fatalf("expected one click, got %d", clicks)
	}

	if rr := visitor.request(http.MethodGet, "/u/alice/links/email-link", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unset link, got %d", rr.Code)
	}
}

func TestPublicProfileJSON(t *testing.T) {
	app := newTestApp(t)
	owner := app.client(t)
	owner.register("alice")
	owner.request(http.MethodPost, "/api/links", map[string]string{"title": "Email", "url": "alice@example.com"})

	rr := app.client(t).request(http.MethodGet, "/api/public/alice", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	var resp struct {
		Profile struct {
			Slug string `json:"slug"`
		} `json:"profile"`
		Links []struct {
			ID  string `json:"id"`
			URL string `json:"url"`
		} `json:"links"`
		Variables map[string]string `json:"variables"`
	}
	decodeJSON(t, rr, &resp)

	if resp.Profile.Slug != "alice" {
		t.Fatalf("unexpected slug %q", resp.Profile.Slug)
	}
	if len(resp.Links) != 1 || resp.Links[0].URL != "mailto:alice@example.com" {
		t.Fatalf("unexpected links %+v", resp.Links)
	}
	if resp.Variables["--profile-font-family"] == "" {
		t.Fatalf("expected resolved variables, got %+v", resp.Variables)
	}

	if rr := app.client(t).request(http.MethodGet, "/api/public/nobody", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
