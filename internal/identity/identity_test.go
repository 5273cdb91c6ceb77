package identity

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/config"
	"github.com/nerrad567/iot-bridge/internal/infrastructure/database"
	"github.com/nerrad567/iot-bridge/migrations"
)

// setupTestRepo opens a migrated database in a temp dir.
func setupTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "identities.db"),
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
	repo.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return repo
}

func testIdentity(node string) deviceclient.Identity {
	return deviceclient.Identity{NodeID: node, DeviceID: "dev_" + node, Secret: "secret-" + node}
}

// =============================================================================
// Repository
// =============================================================================

func TestRepositorySaveGet(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	want := testIdentity("n1")
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := repo.Get(ctx, "n1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestRepositoryCertificateIdentity(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	want := deviceclient.Identity{NodeID: "n2", DeviceID: "d2", CertFile: "/etc/certs/d2.pem", KeyFile: "/etc/certs/d2.key"}
	if err := repo.Save(ctx, want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := repo.Get(ctx, "n2")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != want {
		t.Errorf("Get() = %+v, want %+v", got, want)
	}
}

func TestRepositoryUpsert(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	id := testIdentity("n1")
	if err := repo.Save(ctx, id); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	id.Secret = "rotated"
	if err := repo.Save(ctx, id); err != nil {
		t.Fatalf("Save() update error = %v", err)
	}

	got, _ := repo.Get(ctx, "n1")
	if got.Secret != "rotated" {
		t.Errorf("Secret = %q, want rotated", got.Secret)
	}
}

func TestRepositoryDeviceBoundTwice(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if err := repo.Save(ctx, deviceclient.Identity{NodeID: "a", DeviceID: "shared", Secret: "x"}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	err := repo.Save(ctx, deviceclient.Identity{NodeID: "b", DeviceID: "shared", Secret: "y"})
	if !errors.Is(err, ErrExists) {
		t.Errorf("Save() error = %v, want ErrExists", err)
	}
}

func TestRepositoryNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	if _, err := repo.Get(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() error = %v, want ErrNotFound", err)
	}
}

func TestRepositoryList(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	for _, n := range []string{"c", "a", "b"} {
		if err := repo.Save(ctx, testIdentity(n)); err != nil {
			t.Fatalf("Save(%s) error = %v", n, err)
		}
	}

	ids, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(ids) != 3 || ids[0].NodeID != "a" || ids[2].NodeID != "c" {
		t.Errorf("List() = %+v, want a, b, c", ids)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		id      deviceclient.Identity
		wantErr bool
	}{
		{"secret", deviceclient.Identity{NodeID: "n", DeviceID: "d", Secret: "s"}, false},
		{"certificate", deviceclient.Identity{NodeID: "n", DeviceID: "d", CertFile: "c", KeyFile: "k"}, false},
		{"missing node", deviceclient.Identity{DeviceID: "d", Secret: "s"}, true},
		{"missing device", deviceclient.Identity{NodeID: "n", Secret: "s"}, true},
		{"no credentials", deviceclient.Identity{NodeID: "n", DeviceID: "d"}, true},
		{"cert without key", deviceclient.Identity{NodeID: "n", DeviceID: "d", CertFile: "c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.id)
			if tt.wantErr != (err != nil) {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() error = %v, want ErrInvalid", err)
			}
		})
	}
}

// =============================================================================
// Registry
// =============================================================================

// countingRepo wraps a Repository and counts Get calls.
type countingRepo struct {
	Repository
	gets int

	// afterGet runs once a Get has read the repository.
	afterGet func()
}

func (c *countingRepo) Get(ctx context.Context, nodeID string) (deviceclient.Identity, error) {
	c.gets++
	id, err := c.Repository.Get(ctx, nodeID)
	if c.afterGet != nil {
		c.afterGet()
	}
	return id, err
}

func TestRegistryLookupCaches(t *testing.T) {
	repo := &countingRepo{Repository: setupTestRepo(t)}
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := repo.Save(ctx, testIdentity("n1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	for range 3 {
		id, err := reg.LookupIdentity(ctx, "n1")
		if err != nil {
			t.Fatalf("LookupIdentity() error = %v", err)
		}
		if id.DeviceID != "dev_n1" {
			t.Errorf("DeviceID = %q, want dev_n1", id.DeviceID)
		}
	}
	if repo.gets != 1 {
		t.Errorf("repository Get() calls = %d, want 1", repo.gets)
	}
}

func TestRegistryMissNotCached(t *testing.T) {
	repo := setupTestRepo(t)
	reg := NewRegistry(repo)
	ctx := context.Background()

	if _, err := reg.LookupIdentity(ctx, "late"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("LookupIdentity() error = %v, want ErrNotFound", err)
	}

	// Provisioned behind the registry's back; the next lookup finds it.
	if err := repo.Save(ctx, testIdentity("late")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if _, err := reg.LookupIdentity(ctx, "late"); err != nil {
		t.Errorf("LookupIdentity() after provisioning error = %v", err)
	}
}

func TestRegistryRegisterUnregister(t *testing.T) {
	reg := NewRegistry(setupTestRepo(t))
	ctx := context.Background()

	if err := reg.Register(ctx, testIdentity("n1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	if ids, err := reg.List(ctx); err != nil || len(ids) != 1 {
		t.Errorf("List() = %d identities, %v, want 1", len(ids), err)
	}

	if err := reg.Unregister(ctx, "n1"); err != nil {
		t.Fatalf("Unregister() error = %v", err)
	}
	if _, err := reg.LookupIdentity(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupIdentity() after Unregister() error = %v, want ErrNotFound", err)
	}
}

func TestRegistryUnregisterDuringLookup(t *testing.T) {
	repo := &countingRepo{Repository: setupTestRepo(t)}
	reg := NewRegistry(repo)
	ctx := context.Background()

	if err := repo.Save(ctx, testIdentity("n1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	repo.afterGet = func() {
		repo.afterGet = nil
		if err := reg.Unregister(ctx, "n1"); err != nil {
			t.Errorf("Unregister() error = %v", err)
		}
	}

	if _, err := reg.LookupIdentity(ctx, "n1"); err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0 after Unregister()", reg.Count())
	}
	if _, err := reg.LookupIdentity(ctx, "n1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LookupIdentity() after Unregister() error = %v, want ErrNotFound", err)
	}
}

func TestRegistryRefreshCache(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	for _, n := range []string{"a", "b"} {
		if err := repo.Save(ctx, testIdentity(n)); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	reg := NewRegistry(repo)
	if err := reg.RefreshCache(ctx); err != nil {
		t.Fatalf("RefreshCache() error = %v", err)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
}

// =============================================================================
// Seed file
// =============================================================================

func writeSeed(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "identities.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing seed: %v", err)
	}
	return path
}

func TestLoadSeedFile(t *testing.T) {
	path := writeSeed(t, `
identities:
  - node_id: meter-17
    device_id: dev_meter-17
    secret: s3cr3t
  - node_id: cam-2
    device_id: dev_cam-2
    cert_file: /etc/certs/cam-2.pem
    key_file: /etc/certs/cam-2.key
`)

	ids, err := LoadSeedFile(path)
	if err != nil {
		t.Fatalf("LoadSeedFile() error = %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("LoadSeedFile() returned %d identities, want 2", len(ids))
	}
	if ids[1].CertFile != "/etc/certs/cam-2.pem" {
		t.Errorf("CertFile = %q", ids[1].CertFile)
	}

	reg := NewRegistry(setupTestRepo(t))
	n, err := reg.Import(context.Background(), ids)
	if err != nil || n != 2 {
		t.Fatalf("Import() = %d, %v, want 2, nil", n, err)
	}
	if _, err := reg.LookupIdentity(context.Background(), "meter-17"); err != nil {
		t.Errorf("LookupIdentity() error = %v", err)
	}
}

func TestLoadSeedFileInvalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "missing secret",
			body:    "identities:\n  - node_id: a\n    device_id: d\n",
			wantErr: ErrInvalid,
		},
		{
			name: "device bound twice",
			body: "identities:\n" +
				"  - {node_id: a, device_id: d, secret: x}\n" +
				"  - {node_id: b, device_id: d, secret: y}\n",
			wantErr: ErrExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSeedFile(writeSeed(t, tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadSeedFile() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadSeedFile() on missing file error = nil")
	}
}
