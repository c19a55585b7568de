package schedule

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/voltguard/voltguard-core/internal/infrastructure/database"
	_ "github.com/voltguard/voltguard-core/migrations"
)

func testRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db, err := database.Open(database.Config{
		Path:        filepath.Join(t.TempDir(), "schedules.db"),
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return NewSQLiteRepository(db.DB)
}

func TestRepository_CreateAndGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rule := validRule()
	if err := repo.Create(ctx, &rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rule.ID == "" {
		t.Fatal("Create() did not assign an ID")
	}

	got, err := repo.Get(ctx, rule.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != rule.Name || got.Action != rule.Action || got.Time != rule.Time {
		t.Errorf("Get() = %+v, want %+v", got, rule)
	}
	if len(got.Days) != 5 || got.Days[0] != "Mon" {
		t.Errorf("Days = %v, want Mon..Fri", got.Days)
	}
	if !got.Enabled {
		t.Error("Enabled not persisted")
	}
}

func TestRepository_CreateRejectsInvalid(t *testing.T) {
	repo := testRepo(t)

	rule := validRule()
	rule.Time = "25:00"
	if err := repo.Create(context.Background(), &rule); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("Create() error = %v, want ErrInvalidTime", err)
	}
}

func TestRepository_Update(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rule := validRule()
	if err := repo.Create(ctx, &rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rule.Name = "Morning coffee"
	rule.Action = "off"
	rule.Days = []string{"Sat", "Sun"}
	if err := repo.Update(ctx, &rule); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	got, err := repo.Get(ctx, rule.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Morning coffee" || got.Action != "off" || len(got.Days) != 2 {
		t.Errorf("updated rule = %+v", got)
	}
}

func TestRepository_UpdateMissing(t *testing.T) {
	repo := testRepo(t)

	rule := validRule()
	rule.ID = NewID()
	if err := repo.Update(context.Background(), &rule); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_Delete(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rule := validRule()
	if err := repo.Create(ctx, &rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Delete(ctx, rule.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, rule.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_SetEnabled(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rule := validRule()
	if err := repo.Create(ctx, &rule); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.SetEnabled(ctx, rule.ID, false)
	if err != nil {
		t.Fatalf("SetEnabled() error = %v", err)
	}
	if got.Enabled {
		t.Error("rule still enabled after toggle")
	}

	if _, err := repo.SetEnabled(ctx, "missing", true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetEnabled(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_EnabledRules(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	on := validRule()
	if err := repo.Create(ctx, &on); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	off := validRule()
	off.Name = "Disabled rule"
	off.Enabled = false
	if err := repo.Create(ctx, &off); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	rules, err := repo.EnabledRules(ctx)
	if err != nil {
		t.Fatalf("EnabledRules() error = %v", err)
	}
	if len(rules) != 1 || rules[0].ID != on.ID {
		t.Errorf("EnabledRules() = %+v, want only the enabled rule", rules)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("List() returned %d rules, want 2", len(all))
	}
}
