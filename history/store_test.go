package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aluiziolira/go-price-watch/models"
	"github.com/google/go-cmp/cmp"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "price_history.json")
	store := NewFileStore(path)
	ctx := context.Background()

	h := models.History{
		{Date: "2026-10-01", Price: price("150")},
		{Date: "2026-10-02", Price: price("159.99")},
	}
	if err := store.Save(ctx, h); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(h, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if !strings.Contains(string(data), `"date": "2026-10-02"`) {
		t.Fatalf("history file is not indented JSON:\n%s", data)
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "absent.json"))
	h, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(h) != 0 {
		t.Fatalf("expected empty history, got %+v", h)
	}
}

func TestFileStoreCorrupt(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "truncated", body: `[{"date": "2026-10-01", "price": "15`},
		{name: "wrong shape", body: `{"date": "2026-10-01"}`},
		{name: "bad date", body: `[{"date": "yesterday", "price": "150"}]`},
		{name: "out of order", body: `[{"date": "2026-10-20", "price": "100"}, {"date": "2026-10-19", "price": "90"}]`},
		{name: "duplicate date", body: `[{"date": "2026-10-19", "price": "100"}, {"date": "2026-10-19", "price": "90"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := NewFileStore(path).Load(context.Background()); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestFileStoreSaveReplacesWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	store := NewFileStore(path)
	ctx := context.Background()

	if err := store.Save(ctx, models.History{{Date: "2026-10-01", Price: price("150")}}); err != nil {
		t.Fatalf("first save: %v", err)
	}
	second := models.History{
		{Date: "2026-10-01", Price: price("150")},
		{Date: "2026-10-02", Price: price("140")},
	}
	if err := store.Save(ctx, second); err != nil {
		t.Fatalf("second save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "history.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Fatalf("unexpected files after save: %v", names)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(second, got); diff != "" {
		t.Fatalf("history mismatch (-want +got):\n%s", diff)
	}
}

func TestFileStoreFailedSaveKeepsPriorState(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	store := NewFileStore(path)

	prior := models.History{{Date: "2026-10-01", Price: price("150")}}
	if err := store.Save(context.Background(), prior); err != nil {
		t.Fatalf("save: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := store.Save(ctx, models.History{{Date: "2026-10-02", Price: price("1")}}); err == nil {
		t.Fatal("expected cancelled save to fail")
	}

	got, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if diff := cmp.Diff(prior, got); diff != "" {
		t.Fatalf("prior history changed (-want +got):\n%s", diff)
	}
}

func TestMemoryStore(t *testing.T) {
	seed := models.History{{Date: "2026-10-01", Price: price("150")}}
	store := NewMemoryStore(seed)
	ctx := context.Background()

	h, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	h[0].Date = "mutated"
	if store.History()[0].Date != "2026-10-01" {
		t.Fatal("load must return a copy")
	}

	if err := store.Save(ctx, append(h, models.HistoryEntry{Date: "2026-10-02", Price: price("140")})); err != nil {
		t.Fatalf("save: %v", err)
	}
	if store.Saves() != 1 || len(store.History()) != 2 {
		t.Fatalf("unexpected store state: saves=%d history=%+v", store.Saves(), store.History())
	}

	store.SaveErr = errors.New("disk full")
	if err := store.Save(ctx, nil); err == nil {
		t.Fatal("expected save error")
	}
}
