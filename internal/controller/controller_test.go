package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/links"
	"github.com/tapcard/internal/realtime"
	"github.com/tapcard/internal/service"
	"github.com/tapcard/internal/theme"
)

type fakeSettingsStore struct {
	mu      sync.Mutex
	stored  theme.Settings
	loads   int
	saveErr error
}

func (f *fakeSettingsStore) Load(context.Context, uint) theme.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.stored
}

func (f *fakeSettingsStore) Save(_ context.Context, _ uint, patch theme.Patch) (theme.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return theme.Settings{}, f.saveErr
	}
	f.stored = patch.Apply(f.stored)
	return f.stored, nil
}

func strPtr(v string) *string {
	return &v
}

func TestSettingsSaveMergesOptimistically(t *testing.T) {
	store := &fakeSettingsStore{stored: theme.Defaults()}
	ctrl := NewSettingsController(store, nil, 1)
	ctrl.Start(context.Background())

	if err := ctrl.Save(context.Background(), theme.Patch{NameColor: strPtr("#ff0000")}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if got := ctrl.Settings().NameColor; got != "#ff0000" {
		t.Fatalf("expected merged name color, got %q", got)
	}
	if store.loads != 1 {
		t.Fatalf("save should not re-fetch, loads=%d", store.loads)
	}
	if ctrl.Saving() || ctrl.Loading() {
		t.Fatal("expected flags to be cleared")
	}
}

func TestSettingsSaveFailureKeepsState(t *testing.T) {
	store := &fakeSettingsStore{stored: theme.Defaults(), saveErr: errors.New("boom")}
	ctrl := NewSettingsController(store, nil, 1)
	ctrl.Start(context.Background())

	if err := ctrl.Save(context.Background(), theme.Patch{NameColor: strPtr("#ff0000")}); err == nil {
		t.Fatal("expected save error")
	}
	if ctrl.Settings() != theme.Defaults() {
		t.Fatalf("expected state unchanged, got %#v", ctrl.Settings())
	}
}

func TestSettingsSaveRequiresUser(t *testing.T) {
	ctrl := NewSettingsController(&fakeSettingsStore{stored: theme.Defaults()}, nil, 0)
	if err := ctrl.Save(context.Background(), theme.Patch{}); !errors.Is(err, service.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestSettingsResetRestoresDefaults(t *testing.T) {
	custom := theme.Defaults()
	custom.NameColor = "#000000"
	custom.ButtonSize = theme.ButtonXL
	store := &fakeSettingsStore{stored: custom}
	ctrl := NewSettingsController(store, nil, 1)
	ctrl.Start(context.Background())

	if err := ctrl.Reset(context.Background()); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if ctrl.Settings() != theme.Defaults() || store.stored != theme.Defaults() {
		t.Fatalf("expected defaults after reset, got %#v", ctrl.Settings())
	}
}

func TestSettingsExternalChangeReplacesState(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	ctrl := NewSettingsController(&fakeSettingsStore{stored: theme.Defaults()}, broker, 7)
	ctrl.Start(context.Background())
	defer ctrl.Close()

	changes := make(chan theme.Settings, 1)
	ctrl.OnChange(func(s theme.Settings) { changes <- s })

	remote := theme.Defaults()
	remote.BackgroundType = theme.BackgroundGradient
	remote.TextAlignment = theme.AlignLeft
	row := db.ProfileDesignSettings{UserID: 7, Settings: remote}
	broker.Publish(context.Background(), service.DesignTopic(7), realtime.NewEvent("profile_design_settings", realtime.EventUpdate, row))

	select {
	case got := <-changes:
		if got != remote {
			t.Fatalf("expected wholesale replace, got %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected change callback")
	}
	if ctrl.Settings() != remote {
		t.Fatalf("expected controller state to match remote, got %#v", ctrl.Settings())
	}
}

func TestSettingsCloseUnsubscribes(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	ctrl := NewSettingsController(&fakeSettingsStore{stored: theme.Defaults()}, broker, 3)
	ctrl.Start(context.Background())
	if broker.Subscribers(service.DesignTopic(3)) != 1 {
		t.Fatal("expected a subscription after start")
	}
	ctrl.Close()
	ctrl.Close()
	if broker.Subscribers(service.DesignTopic(3)) != 0 {
		t.Fatal("expected subscription to be removed")
	}
}

type fakeConnectionStore struct {
	mu     sync.Mutex
	nextID uint
	rows   []service.ConnectionView
	lists  int
}

func (f *fakeConnectionStore) Add(_ context.Context, userID, targetID uint) (*db.Connection, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.rows {
		if row.ConnectedUserID == targetID {
			conn := row.Connection
			return &conn, true, nil
		}
	}
	f.nextID++
	conn := db.Connection{ID: f.nextID, UserID: userID, ConnectedUserID: targetID}
	f.rows = append(f.rows, service.ConnectionView{Connection: conn})
	return &conn, false, nil
}

func (f *fakeConnectionStore) Update(_ context.Context, _ uint, id uint, input service.ConnectionInput) (*db.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			if input.Note != nil {
				f.rows[i].Note = *input.Note
			}
			if input.Tag != nil {
				f.rows[i].Tag = *input.Tag
			}
			conn := f.rows[i].Connection
			return &conn, nil
		}
	}
	return nil, service.ErrConnectionNotFound
}

func (f *fakeConnectionStore) Remove(_ context.Context, _ uint, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return service.ErrConnectionNotFound
}

func (f *fakeConnectionStore) List(context.Context, uint) ([]service.ConnectionView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	return append([]service.ConnectionView(nil), f.rows...), nil
}

func TestConnectionsControllerCache(t *testing.T) {
	store := &fakeConnectionStore{}
	ctrl := NewConnectionsController(store, nil, 1)
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	already, err := ctrl.Add(ctx, 2)
	if err != nil || already {
		t.Fatalf("add: already=%v err=%v", already, err)
	}
	if !ctrl.IsConnected(2) || ctrl.IsConnected(3) {
		t.Fatal("unexpected IsConnected results")
	}

	listsBefore := store.lists
	already, err = ctrl.Add(ctx, 2)
	if err != nil || !already {
		t.Fatalf("expected already saved, got already=%v err=%v", already, err)
	}
	if store.lists != listsBefore {
		t.Fatal("already-saved add should not re-fetch")
	}

	id := ctrl.List()[0].ID
	if err := ctrl.Update(ctx, id, service.ConnectionInput{Note: strPtr("coffee")}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if ctrl.List()[0].Note != "coffee" {
		t.Fatalf("expected note merged into cache, got %#v", ctrl.List()[0])
	}

	if err := ctrl.Remove(ctx, id); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(ctrl.List()) != 0 || ctrl.IsConnected(2) {
		t.Fatal("expected connection removed from cache")
	}
}

func TestConnectionsControllerRefetchesOnEvent(t *testing.T) {
	broker := realtime.NewMemoryBroker()
	defer broker.Close()

	store := &fakeConnectionStore{}
	ctrl := NewConnectionsController(store, broker, 1)
	if err := ctrl.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer ctrl.Close()

	changes := make(chan []service.ConnectionView, 1)
	ctrl.OnChange(func(items []service.ConnectionView) { changes <- items })

	store.Add(context.Background(), 1, 9)
	broker.Publish(context.Background(), service.ConnectionsTopic(1), realtime.NewEvent("connections", realtime.EventInsert, nil))

	select {
	case items := <-changes:
		if len(items) != 1 || items[0].ConnectedUserID != 9 {
			t.Fatalf("unexpected refreshed list %#v", items)
		}
	case <-time.After(time.Second):
		t.Fatal("expected refresh after change event")
	}
}

type fakeLinkStore struct {
	mu     sync.Mutex
	fields links.Fields
}

func (f *fakeLinkStore) List(context.Context, uint) ([]links.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return links.Derive(f.fields), nil
}

func (f *fakeLinkStore) Save(_ context.Context, _ uint, input service.LinkInput) (links.Link, error) {
	kind := links.ResolveKind(input.ID, input.Title)
	if errs := links.Validate(input.Title, input.URL, kind); !errs.Empty() {
		return links.Link{}, service.NewValidationError(errs)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	value := links.StoredValue(kind, input.URL)
	switch kind {
	case links.KindLinkedIn:
		f.fields.LinkedIn = value
	case links.KindWebsite:
		f.fields.Website = value
	case links.KindEmail:
		f.fields.Email = value
	}
	for _, link := range links.Derive(f.fields) {
		if link.Kind == kind {
			return link, nil
		}
	}
	return links.Link{}, nil
}

func (f *fakeLinkStore) Delete(_ context.Context, _ uint, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch id {
	case "linkedin-link":
		f.fields.LinkedIn = ""
	case "website-link":
		f.fields.Website = ""
	case "email-link":
		f.fields.Email = ""
	}
	return nil
}

func linkIDs(items []links.Link) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}

func TestLinksControllerSessionOrder(t *testing.T) {
	store := &fakeLinkStore{fields: links.Fields{LinkedIn: "jane", Website: "jane.dev"}}
	ctrl := NewLinksController(store, nil, 1)
	ctx := context.Background()
	if err := ctrl.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if !ctrl.Move("website-link", -1) {
		t.Fatal("expected move to change order")
	}
	if ctrl.Move("website-link", -1) {
		t.Fatal("expected out-of-range move to be ignored")
	}

	if _, err := ctrl.Save(ctx, service.LinkInput{Title: "Email", URL: "jane@example.com"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	got := linkIDs(ctrl.Links())
	want := []string{"website-link", "linkedin-link", "email-link"}
	if len(got) != len(want) {
		t.Fatalf("unexpected links %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected session order %v, got %v", want, got)
		}
	}

	fresh := NewLinksController(store, nil, 1)
	fresh.Start(ctx)
	if ids := linkIDs(fresh.Links()); ids[0] != "linkedin-link" {
		t.Fatalf("order should not be persisted, got %v", ids)
	}

	if err := ctrl.Delete(ctx, "linkedin-link"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if ids := linkIDs(ctrl.Links()); len(ids) != 2 || ids[0] != "website-link" || ids[1] != "email-link" {
		t.Fatalf("unexpected links after delete %v", ids)
	}
}

func TestLinksControllerSaveValidation(t *testing.T) {
	ctrl := NewLinksController(&fakeLinkStore{}, nil, 1)
	_, err := ctrl.Save(context.Background(), service.LinkInput{Title: "Website", URL: "example.com"})
	if !errors.Is(err, service.ErrValidation) || service.FieldErrorsOf(err)["url"] == "" {
		t.Fatalf("expected url validation error, got %v", err)
	}
	if len(ctrl.Links()) != 0 {
		t.Fatal("expected no links after failed save")
	}
}
