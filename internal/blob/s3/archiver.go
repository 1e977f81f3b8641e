package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/vaultbot/internal/domain"
)

// jsonlContentType is the MIME type of archive objects.
const jsonlContentType = "application/x-ndjson"

// TradeArchiveStore is the part of domain.TradeStore the archiver needs.
type TradeArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.TradeRecord, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// VaultArchiveStore is the part of domain.VaultStore the archiver needs.
type VaultArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.VaultSweep, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// ArchiveImpl implements domain.Archiver. Rows older than the cutoff are
// grouped by calendar month, written as JSONL to archive/<kind>/YYYY-MM.jsonl
// and then deleted from the primary store. Existing objects are never
// overwritten; a numeric suffix is added instead.
type ArchiveImpl struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	trades TradeArchiveStore
	vault  VaultArchiveStore
	audit  domain.AuditStore
	logger *slog.Logger
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	trades TradeArchiveStore,
	vault VaultArchiveStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *ArchiveImpl {
	return &ArchiveImpl{
		writer: writer,
		reader: reader,
		trades: trades,
		vault:  vault,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTrades exports and purges trade history older than before.
func (a *ArchiveImpl) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.trades.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	paths, err := upload(ctx, a, "trades", rows, func(r domain.TradeRecord) time.Time { return r.Timestamp })
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades: %w", err)
	}

	if _, err := a.trades.DeleteBefore(ctx, before); err != nil {
		return 0, fmt.Errorf("s3blob: archive trades purge: %w", err)
	}
	return a.finish(ctx, "archive.trades", paths, int64(len(rows)), before)
}

// ArchiveVaultSweeps exports and purges vault sweeps older than before.
func (a *ArchiveImpl) ArchiveVaultSweeps(ctx context.Context, before time.Time) (int64, error) {
	rows, err := a.vault.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive vault sweeps query: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	paths, err := upload(ctx, a, "vault_locks", rows, func(r domain.VaultSweep) time.Time { return r.CreatedAt })
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive vault sweeps: %w", err)
	}

	if _, err := a.vault.DeleteBefore(ctx, before); err != nil {
		return 0, fmt.Errorf("s3blob: archive vault sweeps purge: %w", err)
	}
	return a.finish(ctx, "archive.vault_locks", paths, int64(len(rows)), before)
}

func (a *ArchiveImpl) finish(ctx context.Context, event string, paths []string, count int64, before time.Time) (int64, error) {
	a.logger.InfoContext(ctx, "archived rows",
		slog.String("event", event),
		slog.Int64("count", count),
		slog.String("paths", strings.Join(paths, ",")),
	)
	if err := a.audit.Log(ctx, event, map[string]any{
		"paths":  paths,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: %s audit log: %w", event, err)
	}
	return count, nil
}

// upload writes one JSONL object per calendar month and returns the paths
// written, in month order.
func upload[T any](ctx context.Context, a *ArchiveImpl, kind string, rows []T, at func(T) time.Time) ([]string, error) {
	byMonth := make(map[string][]T)
	for _, r := range rows {
		m := at(r).UTC().Format("2006-01")
		byMonth[m] = append(byMonth[m], r)
	}
	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	sort.Strings(months)

	paths := make([]string, 0, len(months))
	for _, m := range months {
		buf, err := marshalJSONL(byMonth[m])
		if err != nil {
			return paths, err
		}
		path, err := a.freePath(ctx, kind, m)
		if err != nil {
			return paths, err
		}
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// freePath returns archive/<kind>/<month>.jsonl, or the first
// archive/<kind>/<month>-N.jsonl that does not exist yet.
func (a *ArchiveImpl) freePath(ctx context.Context, kind, month string) (string, error) {
	path := archivePath(kind, month, 0)
	for n := 1; ; n++ {
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return "", err
		}
		if !exists {
			return path, nil
		}
		path = archivePath(kind, month, n)
	}
}

// archivePath builds the object key for an archive file.
//
//	archive/trades/2026-01.jsonl
//	archive/vault_locks/2026-01-1.jsonl
func archivePath(kind, month string, n int) string {
	if n == 0 {
		return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
	}
	return fmt.Sprintf("archive/%s/%s-%d.jsonl", kind, month, n)
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
