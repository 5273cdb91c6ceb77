package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/iot-bridge/internal/deviceclient"
)

// Repository persists device identities keyed by node id.
type Repository interface {
	// Get returns the identity for nodeID or ErrNotFound.
	Get(ctx context.Context, nodeID string) (deviceclient.Identity, error)

	// List returns every identity ordered by node id.
	List(ctx context.Context) ([]deviceclient.Identity, error)

	// Save inserts or replaces the identity for id.NodeID.
	// Returns ErrExists if id.DeviceID belongs to a different node.
	Save(ctx context.Context, id deviceclient.Identity) error

	// Delete removes the identity for nodeID or returns ErrNotFound.
	Delete(ctx context.Context, nodeID string) error
}

// SQLiteRepository implements Repository on the device_identities table.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

const selectIdentity = `
	SELECT node_id, device_id, secret, cert_file, key_file
	FROM device_identities`

// Get returns the identity for nodeID.
func (r *SQLiteRepository) Get(ctx context.Context, nodeID string) (deviceclient.Identity, error) {
	row := r.db.QueryRowContext(ctx, selectIdentity+" WHERE node_id = ?", nodeID)
	id, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return deviceclient.Identity{}, fmt.Errorf("%w: node %q", ErrNotFound, nodeID)
	}
	if err != nil {
		return deviceclient.Identity{}, fmt.Errorf("querying identity: %w", err)
	}
	return id, nil
}

// List returns all identities.
func (r *SQLiteRepository) List(ctx context.Context) ([]deviceclient.Identity, error) {
	rows, err := r.db.QueryContext(ctx, selectIdentity+" ORDER BY node_id")
	if err != nil {
		return nil, fmt.Errorf("querying identities: %w", err)
	}
	defer rows.Close()

	var ids []deviceclient.Identity
	for rows.Next() {
		id, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning identity: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating identities: %w", err)
	}
	return ids, nil
}

// Save upserts id.
func (r *SQLiteRepository) Save(ctx context.Context, id deviceclient.Identity) error {
	if err := Validate(id); err != nil {
		return err
	}

	now := r.now().UTC().Format(time.RFC3339)
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO device_identities
			(node_id, device_id, secret, cert_file, key_file, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(node_id) DO UPDATE SET
			device_id  = excluded.device_id,
			secret     = excluded.secret,
			cert_file  = excluded.cert_file,
			key_file   = excluded.key_file,
			updated_at = excluded.updated_at`,
		id.NodeID, id.DeviceID,
		nullable(id.Secret), nullable(id.CertFile), nullable(id.KeyFile),
		now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: device_identities.device_id") {
			return fmt.Errorf("%w: %s", ErrExists, id.DeviceID)
		}
		return fmt.Errorf("saving identity: %w", err)
	}
	return nil
}

// Delete removes the identity for nodeID.
func (r *SQLiteRepository) Delete(ctx context.Context, nodeID string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM device_identities WHERE node_id = ?", nodeID)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: node %q", ErrNotFound, nodeID)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIdentity(s scanner) (deviceclient.Identity, error) {
	var (
		id                        deviceclient.Identity
		secret, certFile, keyFile sql.NullString
	)
	if err := s.Scan(&id.NodeID, &id.DeviceID, &secret, &certFile, &keyFile); err != nil {
		return deviceclient.Identity{}, err
	}
	id.Secret = secret.String
	id.CertFile = certFile.String
	id.KeyFile = keyFile.String
	return id, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// Validate checks that id can be stored and used to authenticate.
func Validate(id deviceclient.Identity) error {
	switch {
	case id.NodeID == "":
		return fmt.Errorf("%w: node id is required", ErrInvalid)
	case id.DeviceID == "":
		return fmt.Errorf("%w: device id is required for node %q", ErrInvalid, id.NodeID)
	case id.Secret == "" && (id.CertFile == "" || id.KeyFile == ""):
		return fmt.Errorf("%w: node %q needs a secret or a certificate and key", ErrInvalid, id.NodeID)
	}
	return nil
}
