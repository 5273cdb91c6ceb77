package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/iot-bridge/internal/infrastructure/config"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/database"
	"github.com/nerrad567/iot-bridge/migrations"
)

func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "audit.db"),
		BusyTimeout: 1,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if _, err := db.Migrate(context.Background(), migrations.FS); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	repo := NewSQLiteRepository(db.DB)
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	var tick int
	repo.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return repo
}

func TestCreateAndList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	entries := []*Entry{
		{Action: ActionLogin, EntityType: EntityOperator, EntityID: "alice", Operator: "alice"},
		{Action: ActionIdentityPut, EntityType: EntityIdentity, EntityID: "node-1", Operator: "alice",
			Details: map[string]any{"device_id": "D1"}},
		{Action: ActionSessionDrop, EntityType: EntitySession, EntityID: "conn-1", Operator: "bob"},
	}
	for _, e := range entries {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("Create() did not fill ID/CreatedAt: %+v", e)
		}
	}

	page, err := repo.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if page.Total != 3 || len(page.Entries) != 3 || page.Limit != defaultLimit {
		t.Fatalf("List() = total %d, %d entries, limit %d", page.Total, len(page.Entries), page.Limit)
	}
	if page.Entries[0].Action != ActionSessionDrop {
		t.Errorf("newest entry = %q, want %q", page.Entries[0].Action, ActionSessionDrop)
	}

	put := page.Entries[1]
	if put.Details["device_id"] != "D1" || put.Operator != "alice" || put.EntityID != "node-1" {
		t.Errorf("identity entry = %+v", put)
	}
	if !put.CreatedAt.Equal(entries[1].CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", put.CreatedAt, entries[1].CreatedAt)
	}
}

func TestListFilters(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		op := "alice"
		if i%2 == 1 {
			op = "bob"
		}
		if err := repo.Create(ctx, &Entry{Action: ActionLogin, EntityType: EntityOperator, EntityID: op, Operator: op}); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
	if err := repo.Create(ctx, &Entry{Action: ActionIdentityDelete, EntityType: EntityIdentity, EntityID: "n1"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name      string
		filter    Filter
		wantTotal int
		wantLen   int
	}{
		{"all", Filter{}, 6, 6},
		{"by action", Filter{Action: ActionLogin}, 5, 5},
		{"by operator", Filter{Operator: "bob"}, 2, 2},
		{"by entity", Filter{EntityType: EntityIdentity, EntityID: "n1"}, 1, 1},
		{"paged", Filter{Limit: 2, Offset: 4}, 6, 2},
		{"past the end", Filter{Offset: 10}, 6, 0},
		{"limit clamped", Filter{Limit: 1000}, 6, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := repo.List(ctx, tt.filter)
			if err != nil {
				t.Fatalf("List() error = %v", err)
			}
			if page.Total != tt.wantTotal || len(page.Entries) != tt.wantLen {
				t.Errorf("List() = total %d, len %d; want %d, %d", page.Total, len(page.Entries), tt.wantTotal, tt.wantLen)
			}
			if page.Limit > maxLimit {
				t.Errorf("Limit = %d, want <= %d", page.Limit, maxLimit)
			}
		})
	}
}

func TestCreateRequiresActionAndEntity(t *testing.T) {
	repo := setupTestRepo(t)

	for _, e := range []*Entry{
		{EntityType: EntitySession},
		{Action: ActionLogin},
	} {
		if err := repo.Create(context.Background(), e); err == nil {
			t.Errorf("Create(%+v) should fail", e)
		}
	}
}
