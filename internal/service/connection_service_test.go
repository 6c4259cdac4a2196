package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tapcard/internal/db"
	"github.com/tapcard/internal/realtime"
)

func TestConnectionAddIsIdempotent(t *testing.T) {
	gdb := setupTestDB(t)
	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	svc := NewConnectionService(gdb, nil)
	ctx := context.Background()

	first, already, err := svc.Add(ctx, alice.ID, bob.ID)
	if err != nil || already {
		t.Fatalf("first add: already=%v err=%v", already, err)
	}

	second, already, err := svc.Add(ctx, alice.ID, bob.ID)
	if err != nil || !already {
		t.Fatalf("second add should short-circuit: already=%v err=%v", already, err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected existing connection %d, got %d", first.ID, second.ID)
	}

	var count int64
	gdb.Model(&db.Connection{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single row, got %d", count)
	}
}

func TestConnectionAddRules(t *testing.T) {
	gdb := setupTestDB(t)
	alice := createTestUser(t, gdb, "alice")
	carol := createTestUser(t, gdb, "carol")
	svc := NewConnectionService(gdb, nil)
	ctx := context.Background()

	if err := gdb.Model(&db.Profile{}).Where("id = ?", carol.ID).Update("allow_network_saves", false).Error; err != nil {
		t.Fatalf("disable saves: %v", err)
	}

	if _, _, err := svc.Add(ctx, alice.ID, carol.ID); !errors.Is(err, ErrNetworkSavesDisabled) {
		t.Fatalf("expected ErrNetworkSavesDisabled, got %v", err)
	}
	if _, _, err := svc.Add(ctx, alice.ID, alice.ID); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected self save to fail validation, got %v", err)
	}
	if _, _, err := svc.Add(ctx, alice.ID, 999); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, _, err := svc.Add(ctx, 0, carol.ID); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestConnectionUpdateAndRemoveAreOwnerScoped(t *testing.T) {
	gdb := setupTestDB(t)
	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	svc := NewConnectionService(gdb, nil)
	ctx := context.Background()

	conn, _, err := svc.Add(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if _, err := svc.Update(ctx, bob.ID, conn.ID, ConnectionInput{Note: strPtr("hijack")}); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected other user update to fail, got %v", err)
	}
	if err := svc.Remove(ctx, bob.ID, conn.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected other user remove to fail, got %v", err)
	}

	updated, err := svc.Update(ctx, alice.ID, conn.ID, ConnectionInput{Note: strPtr(" met at conf "), Tag: strPtr("work")})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Note != "met at conf" || updated.Tag != "work" {
		t.Fatalf("unexpected connection %#v", updated)
	}

	tagOnly, err := svc.Update(ctx, alice.ID, conn.ID, ConnectionInput{Tag: strPtr("friend")})
	if err != nil {
		t.Fatalf("tag update failed: %v", err)
	}
	if tagOnly.Note != "met at conf" || tagOnly.Tag != "friend" {
		t.Fatalf("expected note to be kept, got %#v", tagOnly)
	}

	if err := svc.Remove(ctx, alice.ID, conn.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if err := svc.Remove(ctx, alice.ID, conn.ID); !errors.Is(err, ErrConnectionNotFound) {
		t.Fatalf("expected second remove to report not found, got %v", err)
	}
}

func TestConnectionListIncludesProfileSummary(t *testing.T) {
	gdb := setupTestDB(t)
	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	carol := createTestUser(t, gdb, "carol")
	svc := NewConnectionService(gdb, nil)
	ctx := context.Background()

	if _, _, err := svc.Add(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("add bob: %v", err)
	}
	if _, _, err := svc.Add(ctx, alice.ID, carol.ID); err != nil {
		t.Fatalf("add carol: %v", err)
	}
	if _, _, err := svc.Add(ctx, bob.ID, carol.ID); err != nil {
		t.Fatalf("add bob->carol: %v", err)
	}

	items, err := svc.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 connections, got %d", len(items))
	}
	slugs := map[string]bool{}
	for _, item := range items {
		if item.Profile == nil {
			t.Fatalf("missing profile summary for %#v", item)
		}
		slugs[item.Profile.Slug] = true
	}
	if !slugs["bob"] || !slugs["carol"] {
		t.Fatalf("unexpected summaries %#v", slugs)
	}
}

func TestConnectionChangesArePublished(t *testing.T) {
	gdb := setupTestDB(t)
	alice := createTestUser(t, gdb, "alice")
	bob := createTestUser(t, gdb, "bob")
	broker := realtime.NewMemoryBroker()
	defer broker.Close()
	svc := NewConnectionService(gdb, broker)
	ctx := context.Background()

	sub := broker.Subscribe(ConnectionsTopic(alice.ID))
	defer sub.Close()

	conn, _, err := svc.Add(ctx, alice.ID, bob.ID)
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := svc.Remove(ctx, alice.ID, conn.ID); err != nil {
		t.Fatalf("remove failed: %v", err)
	}

	for _, want := range []realtime.EventType{realtime.EventInsert, realtime.EventDelete} {
		select {
		case evt := <-sub.C:
			if evt.Type != want {
				t.Fatalf("expected %s, got %s", want, evt.Type)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected %s event", want)
		}
	}
}
