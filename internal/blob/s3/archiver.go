package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/agentfight/arena/internal/domain"
)

// Narrow store interfaces for archival. The archiver only needs the
// time-ranged queries, not the full domain store surfaces; the Postgres
// stores satisfy these implicitly.

// HistoryArchiveStore provides read access to settled results for archival.
type HistoryArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.MatchResult, error)
}

// BetArchiveStore provides read access to bets for archival.
type BetArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Bet, error)
}

// Exister reports whether an object already exists, letting a retention run
// that is retried after a crash skip re-uploading.
type Exister interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// ArchiveImpl implements domain.Archiver by querying the stores for aged
// records, serialising them to JSONL and uploading to object storage.
//
// Deletion of archived records from the primary store is intentionally NOT
// performed here; the retention runner deletes only after a successful
// upload.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	exists   Exister
	history  HistoryArchiveStore
	bets     BetArchiveStore
	activity domain.ActivityStore
}

// NewArchiver creates an ArchiveImpl. exists and activity may be nil.
func NewArchiver(writer domain.BlobWriter, exists Exister, history HistoryArchiveStore, bets BetArchiveStore, activity domain.ActivityStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		exists:   exists,
		history:  history,
		bets:     bets,
		activity: activity,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveHistory exports settled results decided before the cutoff to
// archive/history/YYYY-MM-DD.jsonl and returns the exported count.
func (a *ArchiveImpl) ArchiveHistory(ctx context.Context, before time.Time) (int64, error) {
	results, err := a.history.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive history query: %w", err)
	}
	return a.upload(ctx, "history", before, len(results), func() ([]byte, error) {
		return marshalJSONL(results)
	})
}

// ArchiveBets exports bets placed before the cutoff to
// archive/bets/YYYY-MM-DD.jsonl and returns the exported count.
func (a *ArchiveImpl) ArchiveBets(ctx context.Context, before time.Time) (int64, error) {
	bets, err := a.bets.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets query: %w", err)
	}
	return a.upload(ctx, "bets", before, len(bets), func() ([]byte, error) {
		return marshalJSONL(bets)
	})
}

func (a *ArchiveImpl) upload(ctx context.Context, kind string, before time.Time, count int, marshal func() ([]byte, error)) (int64, error) {
	if count == 0 {
		return 0, nil
	}

	path := archivePath(kind, before)
	if a.exists != nil {
		if ok, err := a.exists.Exists(ctx, path); err == nil && ok {
			return 0, nil
		}
	}

	buf, err := marshal()
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	if a.activity != nil {
		if err := a.activity.Log(ctx, "archive."+kind, map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return int64(count), fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
		}
	}
	return int64(count), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// cutoff date: archive/history/2026-08-01.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01-02"))
}

// marshalJSONL serialises records as newline-delimited JSON.
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
