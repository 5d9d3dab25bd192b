package entity

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

type widget struct {
	Base `bson:",inline"`
	Name string
}

func TestNewBase_StampsIdentityAndTimes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.FixedZone("X", 7*3600))
	ids := &SequenceGenerator{}

	b := NewBase(FixedClock(now), ids)

	if b.ID != "00000000-0000-0000-0000-000000000001" {
		t.Fatalf("ID = %q", b.ID)
	}
	want := Normalize(now)
	if !b.CreatedAt.Equal(want) || !b.UpdatedAt.Equal(want) {
		t.Fatalf("stamps = %v / %v, want %v", b.CreatedAt, b.UpdatedAt, want)
	}
	if b.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", b.CreatedAt.Location())
	}
	if b.IsDeleted || b.DeletedAt != nil {
		t.Fatal("new base must be live")
	}
}

func TestStamp_KeepsCallerValues(t *testing.T) {
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	b := Base{ID: "keep-me", CreatedAt: created}

	b.Stamp(FixedClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)), &SequenceGenerator{})

	if b.ID != "keep-me" {
		t.Fatalf("ID overwritten: %q", b.ID)
	}
	if !b.CreatedAt.Equal(created) {
		t.Fatalf("CreatedAt overwritten: %v", b.CreatedAt)
	}
	if !b.UpdatedAt.Equal(created) {
		t.Fatalf("UpdatedAt = %v, want CreatedAt", b.UpdatedAt)
	}
}

func TestEntityBase_PromotedThroughEmbedding(t *testing.T) {
	w := &widget{Name: "a"}
	var e Entity = w
	e.EntityBase().ID = "x"
	if w.ID != "x" {
		t.Fatalf("expected promoted base to be addressable, got %q", w.ID)
	}
}

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{name: "empty", id: "", wantErr: true},
		{name: "blank", id: "   ", wantErr: true},
		{name: "nil uuid", id: uuid.Nil.String(), wantErr: true},
		{name: "random uuid", id: uuid.NewString(), wantErr: false},
		{name: "opaque id", id: "abc", wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrEmptyID) {
				t.Fatalf("expected ErrEmptyID, got %v", err)
			}
		})
	}
}

func TestSequenceGenerator_ConcurrentUnique(t *testing.T) {
	g := &SequenceGenerator{}
	const n = 200

	var mu sync.Mutex
	seen := make(map[string]bool, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := g.NewID()
			if _, err := uuid.Parse(id); err != nil {
				t.Errorf("not a uuid: %q", id)
			}
			mu.Lock()
			seen[id] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("expected %d unique ids, got %d", n, len(seen))
	}
}

func TestUUIDGenerator(t *testing.T) {
	id := UUIDGenerator{}.NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("invalid uuid %q: %v", id, err)
	}
}

func TestClockFunc_Normalizes(t *testing.T) {
	raw := time.Date(2026, 5, 5, 5, 5, 5, 999999999, time.Local)
	got := ClockFunc(func() time.Time { return raw }).Now()
	if got.Nanosecond() != 999000000 {
		t.Fatalf("expected millisecond truncation, got %d ns", got.Nanosecond())
	}
	if got.Location() != time.UTC {
		t.Fatalf("expected UTC, got %v", got.Location())
	}
}
