package persist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SnapshotRow is one stored scene capture.
type SnapshotRow struct {
	ID        uuid.UUID
	Name      string
	Data      []byte
	CreatedAt time.Time
}

// SceneRepo stores encoded scene snapshots keyed by scene name.
type SceneRepo struct {
	db *DB
}

func NewSceneRepo(db *DB) *SceneRepo {
	return &SceneRepo{db: db}
}

// SaveSnapshot inserts a new snapshot and returns its id.
func (r *SceneRepo) SaveSnapshot(ctx context.Context, name string, data []byte) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Pool.Exec(ctx,
		`INSERT INTO scene_snapshots (id, name, data) VALUES ($1, $2, $3)`,
		id, name, data,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert snapshot %s: %w", name, err)
	}
	return id, nil
}

// Latest returns the newest snapshot of name, or nil if there is none.
func (r *SceneRepo) Latest(ctx context.Context, name string) (*SnapshotRow, error) {
	row := &SnapshotRow{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT id, name, data, created_at FROM scene_snapshots
		 WHERE name = $1 ORDER BY created_at DESC LIMIT 1`, name,
	).Scan(&row.ID, &row.Name, &row.Data, &row.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row, nil
}

// List returns up to limit snapshots of name, newest first, without data.
func (r *SceneRepo) List(ctx context.Context, name string, limit int) ([]SnapshotRow, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT id, name, created_at FROM scene_snapshots
		 WHERE name = $1 ORDER BY created_at DESC LIMIT $2`, name, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var s SnapshotRow
		if err := rows.Scan(&s.ID, &s.Name, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Prune deletes all but the newest keep snapshots of name.
func (r *SceneRepo) Prune(ctx context.Context, name string, keep int) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`DELETE FROM scene_snapshots WHERE name = $1 AND id NOT IN (
		     SELECT id FROM scene_snapshots WHERE name = $1
		     ORDER BY created_at DESC LIMIT $2)`, name, keep,
	)
	if err != nil {
		return 0, fmt.Errorf("prune snapshots %s: %w", name, err)
	}
	return tag.RowsAffected(), nil
}
