package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"walletcsv/internal/application"
	"walletcsv/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "walletcsv.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_Settings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, ok, err := store.Setting(ctx, application.SettingLLMProvider); err != nil || ok {
		t.Fatalf("expected missing setting, got ok=%v err=%v", ok, err)
	}
	if err := store.SetSetting(ctx, application.SettingLLMProvider, "openai"); err != nil {
		t.Fatal(err)
	}
	if err := store.SetSetting(ctx, application.SettingLLMProvider, "anthropic"); err != nil {
		t.Fatal(err)
	}
	value, ok, err := store.Setting(ctx, application.SettingLLMProvider)
	if err != nil || !ok || value != "anthropic" {
		t.Fatalf("Setting = %q, %v, %v", value, ok, err)
	}

	if err := store.SetSetting(ctx, "favourite_colour", "blue"); !errors.Is(err, application.ErrUnknownSetting) {
		t.Fatalf("expected ErrUnknownSetting, got %v", err)
	}

	if err := store.DeleteSetting(ctx, application.SettingLLMProvider); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := store.Setting(ctx, application.SettingLLMProvider); ok {
		t.Fatal("setting survived delete")
	}
}

func TestStore_Runs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	runs := []domain.ExportRun{
		{ID: "a", ChainID: "1", ChainName: "Ethereum", Address: "0xABC", Transactions: 2, Rows: 3, Filename: "a.csv", CreatedAt: base},
		{ID: "b", ChainID: "100", ChainName: "Gnosis", Address: "0xabc", Transactions: 1, Rows: 1, Partial: true, Filename: "b.csv", CreatedAt: base.Add(time.Minute)},
		{ID: "c", ChainID: "1", ChainName: "Ethereum", Address: "0xdef", Filename: "c.csv", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, run := range runs {
		if err := store.RecordRun(ctx, run); err != nil {
			t.Fatalf("record %s: %v", run.ID, err)
		}
	}
	if err := store.RecordRun(ctx, runs[0]); err != nil {
		t.Fatalf("re-recording a run must be a no-op: %v", err)
	}

	got, err := store.Runs(ctx, application.RunQuery{Address: "0xAbc"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "a" {
		t.Fatalf("unexpected runs %+v", got)
	}
	if !got[0].Partial || !got[0].CreatedAt.Equal(base.Add(time.Minute)) {
		t.Fatalf("unexpected run fields %+v", got[0])
	}

	got, err = store.Runs(ctx, application.RunQuery{ChainID: "1", Limit: 1})
	if err != nil || len(got) != 1 || got[0].ID != "c" {
		t.Fatalf("unexpected limited runs %+v, %v", got, err)
	}

	if err := store.Ping(ctx); err != nil {
		t.Fatal(err)
	}
}
