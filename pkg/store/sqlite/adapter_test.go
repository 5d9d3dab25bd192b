package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nimburion/repokit/pkg/entity"
	"github.com/nimburion/repokit/pkg/observability/logger"
	"github.com/nimburion/repokit/pkg/query"
	"github.com/nimburion/repokit/pkg/repository"
)

type note struct {
	entity.Base
	Title string
	Tag   string
}

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Config{Path: "  "}, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestIsMemory(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: ":memory:", want: true},
		{path: "file::memory:?cache=shared", want: true},
		{path: "file:test.db?mode=memory", want: true},
		{path: "data/app.db", want: false},
	}
	for _, tt := range tests {
		if got := isMemory(tt.path); got != tt.want {
			t.Errorf("isMemory(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestAdapter_InMemory(t *testing.T) {
	a, err := NewAdapter(Config{Path: MemoryPath}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	if got := a.DB().Stats().MaxOpenConnections; got != 1 {
		t.Fatalf("MaxOpenConnections = %d, want 1", got)
	}
	if err := a.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := a.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected health check to fail after close")
	}
}

func TestAdapter_FileBackedRepository(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "notes.db")
	a, err := NewAdapter(Config{Path: path, MaxOpenConns: 4}, logger.NewNop())
	if err != nil {
		t.Fatalf("NewAdapter() error = %v", err)
	}
	defer a.Close()

	if err := a.Gorm().AutoMigrate(&note{}); err != nil {
		t.Fatalf("AutoMigrate() error = %v", err)
	}
	repo, err := repository.NewGormRepository[note](a.Gorm())
	if err != nil {
		t.Fatalf("NewGormRepository() error = %v", err)
	}

	ctx := context.Background()
	for _, n := range []*note{{Title: "one", Tag: "x"}, {Title: "two", Tag: "y"}, {Title: "three", Tag: "x"}} {
		if res := repo.AddItem(ctx, n); !res.Succeeded() {
			t.Fatalf("AddItem() = %s", res.Message)
		}
	}
	pages, err := repo.Count(ctx, query.SearchSpec{"tag": "x"}, 1)
	if err != nil || pages != 2 {
		t.Fatalf("Count() = %d, %v; want 2", pages, err)
	}
}
