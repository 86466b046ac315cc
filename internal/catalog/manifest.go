package catalog

import (
	"context"
	"encoding/json"
	"fmt"
)

// EnsureManifest creates the append-only ingestion audit table if needed.
func (c *DB) EnsureManifest(ctx context.Context) error {
	return c.Exec(ctx, `
	CREATE TABLE IF NOT EXISTS ingest_manifest(
		dataset TEXT,
		file_path TEXT,
		rows BIGINT,
		created_at TIMESTAMP DEFAULT now(),
		extra JSON
	);`)
}

// AppendManifest logs one lake write. The manifest is append-only; rows are
// never updated or deleted.
func (c *DB) AppendManifest(ctx context.Context, dataset, filePath string, rows int, extra map[string]any) error {
	if extra == nil {
		extra = map[string]any{}
	}
	payload, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("encoding manifest extra: %w", err)
	}
	return c.Exec(ctx,
		"INSERT INTO ingest_manifest(dataset, file_path, rows, extra) VALUES (?,?,?,?);",
		dataset, filePath, rows, string(payload),
	)
}
