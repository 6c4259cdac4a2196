package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tapcard/internal/db"
)

type liveEnvelope struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id"`
	Data      json.RawMessage   `json:"data"`
	Status    int               `json:"status"`
	Fields    map[string]string `json:"fields"`
}

func dialLive(t *testing.T, app *testApp, username string) (*websocket.Conn, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(app.router)
	t.Cleanup(server.Close)

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}
	payload, _ := json.Marshal(map[string]string{"username": username, "password": "password123"})
	resp, err := client.Post(server.URL+"/api/auth/register", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	dialer := websocket.Dialer{Jar: jar, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/live", nil)
	if err != nil {
		t.Fatalf("dial live session failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn, server
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(liveEnvelope) bool) liveEnvelope {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for {
		conn.SetReadDeadline(deadline)
		var msg liveEnvelope
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("failed waiting for live message: %v", err)
		}
		if match(msg) {
			return msg
		}
	}
}

func ofType(typ string) func(liveEnvelope) bool {
	return func(m liveEnvelope) bool { return m.Type == typ }
}

func TestLiveSessionRequiresLogin(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/api/live", nil)
	if err == nil {
		t.Fatalf("expected dial to fail without session")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
}

func TestLiveSessionPushesStateAndSavesDesign(t *testing.T) {
	app := newTestApp(t)
	conn, _ := dialLive(t, app, "alice")

	initial := readUntil(t, conn, ofType("theme"))
	var themeMsg struct {
		Scope      string `json:"scope"`
		Stylesheet string `json:"stylesheet"`
	}
	if err := json.Unmarshal(initial.Data, &themeMsg); err != nil {
		t.Fatalf("failed to decode theme payload: %v", err)
	}
	if themeMsg.Scope == "" || !strings.Contains(themeMsg.Stylesheet, themeMsg.Scope) {
		t.Fatalf("expected scoped stylesheet, got %+v", themeMsg)
	}

	if err := conn.WriteJSON(map[string]interface{}{
		"type":       "save_design",
		"request_id": "r1",
		"data":       map[string]string{"button_text_color": "#123456"},
	}); err != nil {
		t.Fatalf("failed to send save: %v", err)
	}
	readUntil(t, conn, func(m liveEnvelope) bool { return m.Type == "ack" && m.RequestID == "r1" })

	var row db.ProfileDesignSettings
	if err := app.db.First(&row).Error; err != nil {
		t.Fatalf("expected design row: %v", err)
	}
	if row.ButtonTextColor != "#123456" {
		t.Fatalf("expected saved color, got %q", row.ButtonTextColor)
	}

	if err := conn.WriteJSON(map[string]interface{}{
		"type":       "save_design",
		"request_id": "r2",
		"data":       map[string]string{"button_border_style": "zigzag"},
	}); err != nil {
		t.Fatalf("failed to send invalid save: %v", err)
	}
	failed := readUntil(t, conn, func(m liveEnvelope) bool { return m.RequestID == "r2" })
	if failed.Type != "error" || failed.Status != http.StatusBadRequest || failed.Fields["button_border_style"] == "" {
		t.Fatalf("expected validation error, got %+v", failed)
	}
}

func TestLiveSessionLinkMoveAndConnectionCheck(t *testing.T) {
	app := newTestApp(t)
	conn, _ := dialLive(t, app, "alice")

	for i, link := range []map[string]string{
		{"title": "LinkedIn", "url": "alice"},
		{"title": "Website", "url": "alice.dev"},
	} {
		id := []string{"l1", "l2"}[i]
		conn.WriteJSON(map[string]interface{}{"type": "save_link", "request_id": id, "data": link})
		readUntil(t, conn, func(m liveEnvelope) bool { return m.Type == "ack" && m.RequestID == id })
	}

	conn.WriteJSON(map[string]interface{}{"type": "move_link", "request_id": "m1", "data": map[string]interface{}{"id": "website-link", "delta": -1}})
	moved := readUntil(t, conn, func(m liveEnvelope) bool {
		if m.Type != "links" {
			return false
		}
		var items []struct {
			ID string `json:"id"`
		}
		json.Unmarshal(m.Data, &items)
		return len(items) == 2 && items[0].ID == "website-link"
	})
	if moved.Type != "links" {
		t.Fatalf("expected reordered links, got %+v", moved)
	}

	conn.WriteJSON(map[string]interface{}{"type": "is_connected", "request_id": "c1", "data": map[string]interface{}{"profile_id": 999}})
	check := readUntil(t, conn, func(m liveEnvelope) bool { return m.RequestID == "c1" })
	var answer struct {
		Connected bool `json:"connected"`
	}
	json.Unmarshal(check.Data, &answer)
	if check.Type != "is_connected" || answer.Connected {
		t.Fatalf("expected not connected, got %+v", check)
	}
}

func TestLiveSessionUnmountsThemeOnClose(t *testing.T) {
	app := newTestApp(t)
	conn, _ := dialLive(t, app, "alice")
	readUntil(t, conn, ofType("theme"))

	if n := app.api.Themes().Len(); n != 1 {
		t.Fatalf("expected one mounted theme, got %d", n)
	}

	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	deadline := time.Now().Add(3 * time.Second)
	for app.api.Themes().Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected theme to be unmounted after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
