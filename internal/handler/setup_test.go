package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/handler"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/router"
	"github.com/tapcard/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	ginOnce       sync.Once
	testDBCounter atomic.Int64
)

type testApp struct {
	api       *handler.API
	router    http.Handler
	db        *gorm.DB
	broker    *realtime.MemoryBroker
	uploadDir string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ginOnce.Do(func() {
		gin.SetMode(gin.TestMode)
	})

	dsn := fmt.Sprintf("file:handler-test-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), testDBCounter.Add(1))
	gdb, err := db.Open(db.DriverSQLite, dsn, logger.Silent)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	uploadDir := t.TempDir()
	store, err := storage.NewLocalStorage(uploadDir, "/static/uploads")
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}

	broker := realtime.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	api := handler.NewAPI(gdb, handler.Options{
		Broker:         broker,
		Storage:        store,
		MaxUploadBytes: 1 << 20,
		SiteBaseURL:    "http://tapcard.test",
	})

	return &testApp{
		api: api,
		router: router.SetupRouter(api, router.Options{
			SessionSecret: "test-secret",
			UploadDir:     uploadDir,
			UploadURL:     "/static/uploads",
		}),
		db:        gdb,
		broker:    broker,
		uploadDir: uploadDir,
	}
}

type testClient struct {
	t   *testing.T
	app *testApp
	jar http.CookieJar
}

func (app *testApp) client(t *testing.T) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	return &testClient{t: t, app: app, jar: jar}
}

func (c *testClient) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()

	base, _ := url.Parse("http://tapcard.test/")
	for _, cookie := range c.jar.Cookies(base) {
		req.AddCookie(cookie)
	}

	rr := httptest.NewRecorder()
	c.app.router.ServeHTTP(rr, req)
	c.jar.SetCookies(base, rr.Result().Cookies())
	return rr
}

func (c *testClient) request(method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			c.t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, "http://tapcard.test"+path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req)
}

// register 注册并保持登录状态
func (c *testClient) register(username string) uint {
	c.t.Helper()

	rr := c.request(http.MethodPost, "/api/auth/register", map[string]string{
		"username": username,
		"password": "password123",
	})
	if rr.Code != http.StatusCreated {
		c.t.Fatalf("register %s: expected 201, got %d: %s", username, rr.Code, rr.Body.String())
	}

	var resp struct {
		User struct {
			ID uint `json:"id"`
		} `json:"user"`
	}
	decodeJSON(c.t, rr, &resp)
	return resp.User.ID
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}
