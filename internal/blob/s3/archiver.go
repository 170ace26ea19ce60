package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TemamAb/ainex-sub004/internal/domain"
)

// ExecutionArchiveStore is the narrow read surface the archiver needs from
// the execution store. The Postgres implementation satisfies it through a
// purpose-built adapter; the archiver never sees the full store interface.
type ExecutionArchiveStore interface {
	// ListBefore returns all execution results submitted strictly before the
	// cutoff time.
	ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionResult, error)
}

// ArchiveImpl implements domain.Archiver by querying aged execution history,
// serializing it to JSONL, and uploading the result to object storage.
//
// Deletion of archived rows from the primary store is intentionally NOT
// performed here; that is a separate, explicit step to be executed after the
// archive has been verified.
type ArchiveImpl struct {
	writer     domain.BlobWriter
	executions ExecutionArchiveStore
	audit      domain.AuditStore
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, executions ExecutionArchiveStore, audit domain.AuditStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:     writer,
		executions: executions,
		audit:      audit,
	}
}

// ArchiveExecutions queries all execution results before the cutoff,
// serializes them to JSONL, and uploads the file to
// archive/executions/YYYY-MM.jsonl. The archival event is recorded in the
// audit log and the count of archived records is returned.
func (a *ArchiveImpl) ArchiveExecutions(ctx context.Context, before time.Time) (int64, error) {
	results, err := a.executions.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions query: %w", err)
	}
	if len(results) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(results)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive executions marshal: %w", err)
	}

	path := archivePath("executions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive executions upload: %w", err)
	}

	count := int64(len(results))

	if err := a.audit.Log(ctx, "archive.executions", map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive executions audit log: %w", err)
	}

	return count, nil
}

// ArchiveErrorEvents uploads a snapshot of the breaker's error event buffer
// to archive/error_events/<timestamp>.jsonl. The buffer is capped in memory,
// so snapshots taken around a circuit trip are the only durable record of the
// events that caused it.
func (a *ArchiveImpl) ArchiveErrorEvents(ctx context.Context, events []domain.ErrorEvent) error {
	if len(events) == 0 {
		return nil
	}

	buf, err := marshalJSONL(events)
	if err != nil {
		return fmt.Errorf("s3blob: archive error events marshal: %w", err)
	}

	path := fmt.Sprintf("archive/error_events/%s.jsonl", time.Now().UTC().Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return fmt.Errorf("s3blob: archive error events upload: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.error_events", map[string]any{
		"path":  path,
		"count": len(events),
	}); err != nil {
		return fmt.Errorf("s3blob: archive error events audit log: %w", err)
	}

	return nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/executions/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
// Each element is marshalled as a single compact JSON line followed by '\n'.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

// Compile-time interface check.
var _ domain.Archiver = (*ArchiveImpl)(nil)
