package metadata

import (
	"context"
	"errors"
	"testing"
)

func TestExtractOptions(t *testing.T) {
	if ExtractExpectedVersion(nil) != nil {
		t.Error("no options should yield nil expected version")
	}
	if v := ExtractExpectedVersion([]PutOption{WithExpectedVersion(7)}); v == nil || *v != 7 {
		t.Errorf("expected version 7, got %v", v)
	}
	if v := ExtractDeleteExpectedVersion([]DeleteOption{WithDeleteExpectedVersion(3)}); v == nil || *v != 3 {
		t.Errorf("expected delete version 3, got %v", v)
	}

	notExists, v := ExtractEphemeralOptions([]EphemeralOption{WithEphemeralExpectNotExists()})
	if !notExists || v != nil {
		t.Errorf("unexpected ephemeral options: %v %v", notExists, v)
	}
	notExists, v = ExtractEphemeralOptions([]EphemeralOption{WithEphemeralExpectedVersion(4)})
	if notExists || v == nil || *v != 4 {
		t.Errorf("unexpected ephemeral options: %v %v", notExists, v)
	}
}

func TestMockStore_CAS(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	v1, err := store.Put(ctx, "/k", []byte("a"), WithExpectedVersion(0))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := store.Put(ctx, "/k", []byte("b"), WithExpectedVersion(0)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("second create: expected ErrVersionMismatch, got %v", err)
	}

	v2, err := store.Put(ctx, "/k", []byte("b"), WithExpectedVersion(v1))
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if v2 <= v1 {
		t.Errorf("version did not increase: %d -> %d", v1, v2)
	}
	if _, err := store.Put(ctx, "/k", []byte("c"), WithExpectedVersion(v1)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale update: expected ErrVersionMismatch, got %v", err)
	}

	res, err := store.Get(ctx, "/k")
	if err != nil || !res.Exists || string(res.Value) != "b" || res.Version != v2 {
		t.Fatalf("unexpected Get result %+v err=%v", res, err)
	}

	if err := store.Delete(ctx, "/k", WithDeleteExpectedVersion(v1)); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("stale delete: expected ErrVersionMismatch, got %v", err)
	}
	if err := store.Delete(ctx, "/k", WithDeleteExpectedVersion(v2)); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if res, _ := store.Get(ctx, "/k"); res.Exists {
		t.Error("key should be gone")
	}
}

func TestMockStore_List(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()
	for _, k := range []string{"/p/b", "/p/a", "/p/c", "/q/a"} {
		if _, err := store.Put(ctx, k, []byte(k)); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	kvs, err := store.List(ctx, "/p/", "", 0)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(kvs) != 3 || kvs[0].Key != "/p/a" || kvs[2].Key != "/p/c" {
		t.Errorf("unexpected prefix listing: %+v", kvs)
	}

	kvs, _ = store.List(ctx, "/p/a", "/p/c", 0)
	if len(kvs) != 2 {
		t.Errorf("range listing: expected 2, got %d", len(kvs))
	}

	kvs, _ = store.List(ctx, "/p/", "", 1)
	if len(kvs) != 1 {
		t.Errorf("limited listing: expected 1, got %d", len(kvs))
	}
}

func TestMockStore_Ephemeral(t *testing.T) {
	ctx := context.Background()
	store := NewMockStore()

	v, err := store.PutEphemeral(ctx, "/lock", []byte("owner-1"), WithEphemeralExpectNotExists())
	if err != nil {
		t.Fatalf("acquire failed: %v", err)
	}
	if _, err := store.PutEphemeral(ctx, "/lock", []byte("owner-2"), WithEphemeralExpectNotExists()); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("contended acquire: expected ErrVersionMismatch, got %v", err)
	}
	if _, err := store.PutEphemeral(ctx, "/lock", []byte("owner-1"), WithEphemeralExpectedVersion(v)); err != nil {
		t.Fatalf("renew failed: %v", err)
	}

	store.ExpireSession()
	if res, _ := store.Get(ctx, "/lock"); res.Exists {
		t.Error("ephemeral key should vanish with the session")
	}
}

func TestMockStore_Closed(t *testing.T) {
	store := NewMockStore()
	store.Close()
	if _, err := store.Get(context.Background(), "/k"); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("expected ErrStoreClosed, got %v", err)
	}
}
