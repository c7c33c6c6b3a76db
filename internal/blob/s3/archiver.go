package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/edgehound/edgehound/internal/domain"
)

// Archiver moves aged rows out of the primary store into object storage as
// JSONL files, one file per record kind per year-month.
//
// Deletion of the archived rows from the primary store is intentionally NOT
// performed here. That is a separate, explicit step to run after the archive
// has been verified.
type Archiver struct {
	writer  domain.BlobWriter
	trades  domain.TradeStore
	signals domain.SignalStore
	arbs    domain.ArbStore
	audit   domain.AuditStore
}

// NewArchiver creates an Archiver over the given writer and stores.
func NewArchiver(
	writer domain.BlobWriter,
	trades domain.TradeStore,
	signals domain.SignalStore,
	arbs domain.ArbStore,
	audit domain.AuditStore,
) *Archiver {
	return &Archiver{
		writer:  writer,
		trades:  trades,
		signals: signals,
		arbs:    arbs,
		audit:   audit,
	}
}

// ArchiveTrades uploads all trade records executed before the cutoff to
// archive/trades/YYYY-MM.jsonl and logs the run. Returns the record count.
func (a *Archiver) ArchiveTrades(ctx context.Context, before time.Time) (int64, error) {
	records, err := a.trades.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive trades query: %w", err)
	}
	return archive(ctx, a, "trades", before, records)
}

// ArchiveSignals uploads all signals created before the cutoff to
// archive/signals/YYYY-MM.jsonl and logs the run. Returns the record count.
func (a *Archiver) ArchiveSignals(ctx context.Context, before time.Time) (int64, error) {
	signals, err := a.signals.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	return archive(ctx, a, "signals", before, signals)
}

// ArchiveArbs uploads all arb opportunities detected before the cutoff to
// archive/arbs/YYYY-MM.jsonl and logs the run. Returns the record count.
func (a *Archiver) ArchiveArbs(ctx context.Context, before time.Time) (int64, error) {
	opps, err := a.arbs.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive arbs query: %w", err)
	}
	return archive(ctx, a, "arbs", before, opps)
}

func archive[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
	}

	path := archivePath(kind, before)
	if err := a.upload(ctx, path, buf); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
	}

	count := int64(len(records))
	if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
		"path":   path,
		"count":  count,
		"before": before.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
	}
	return count, nil
}

// multipartPutter is satisfied by Writer; large payloads go through the
// multipart upload manager instead of a single PutObject.
type multipartPutter interface {
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if mp, ok := a.writer.(multipartPutter); ok && int64(len(buf)) >= minPartSize {
		return mp.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// archivePath builds the S3 key, partitioned by year-month of the cutoff:
//
//	archive/trades/2026-08.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serializes records as newline-delimited JSON, one compact
// object per line.
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
