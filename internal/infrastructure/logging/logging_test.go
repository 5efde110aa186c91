package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		if got := ParseLevel(raw); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestFileWriterRotatesToBackup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "walletcsv.log")
	w := newFileWriter(path, 1, 2)
	defer w.Close()

	chunk := []byte(strings.Repeat("x", 700*1024))
	for range 2 {
		if _, err := w.Write(chunk); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("expected %s: %v", path, err)
	}
	if info.Size() != int64(len(chunk)) {
		t.Fatalf("%s size = %d, want %d", path, info.Size(), len(chunk))
	}
	backups, err := filepath.Glob(filepath.Join(dir, "walletcsv-*.log"))
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected one backup, got %v", backups)
	}
}

func TestFileWriterDefaults(t *testing.T) {
	w := newFileWriter("walletcsv.log", 0, -1)
	if w.MaxSize != defaultMaxSizeMB || w.MaxBackups != 0 {
		t.Fatalf("unexpected limits: size=%d backups=%d", w.MaxSize, w.MaxBackups)
	}
}

func TestInitWritesToFile(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	path := filepath.Join(t.TempDir(), "app.log")
	w, err := Init(Config{Level: "debug", Format: "json", File: path, Quiet: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	slog.Debug("export finished", "chain", "Ethereum")
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"chain":"Ethereum"`) {
		t.Fatalf("unexpected log output %q", data)
	}
}

func TestInitWithoutFileReturnsNilCloser(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	closer, err := Init(Config{Quiet: true})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if closer != nil {
		t.Fatalf("expected nil closer, got %T", closer)
	}
}
