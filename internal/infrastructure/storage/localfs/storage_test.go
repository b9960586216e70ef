package localfs

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveOpenRemoveRoundTrip(t *testing.T) {
	storage, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	key := "abc123/0000_jan.xml"
	if err := storage.Save(ctx, key, strings.NewReader("<Fatura/>")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	reader, err := storage.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "<Fatura/>" {
		t.Fatalf("content = %q", data)
	}

	if err := storage.Remove(ctx, "abc123"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := storage.Open(ctx, key); err == nil {
		t.Fatalf("expected open failure after remove")
	}
	if err := storage.Remove(ctx, "abc123"); err != nil {
		t.Fatalf("Remove() must be idempotent, got %v", err)
	}
}

func TestRemoveRefusesStorageRoot(t *testing.T) {
	dir := t.TempDir()
	storage, err := New(dir)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := storage.Remove(context.Background(), "."); err == nil {
		t.Fatalf("expected refusal for storage root")
	}
	if _, err := os.Stat(filepath.Join(dir)); err != nil {
		t.Fatalf("storage root must survive: %v", err)
	}
}
