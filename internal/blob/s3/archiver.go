package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

const (
	archivePageSize = 1000
	ndjson          = "application/x-ndjson"
)

// ObjectChecker reports the stored size of an object, or domain.ErrNotFound.
type ObjectChecker interface {
	Size(ctx context.Context, path string) (int64, error)
}

// LogArchiver implements domain.Archiver: it exports agent log entries older
// than a cutoff as one JSONL object and then deletes them from the store.
// Nothing is deleted unless the upload succeeded (and, with a checker,
// the stored object has the uploaded length).
type LogArchiver struct {
	writer  domain.BlobWriter
	checker ObjectChecker
	logs    domain.AgentLogStore
	logger  *slog.Logger
}

// NewLogArchiver creates a LogArchiver. checker may be nil.
func NewLogArchiver(writer domain.BlobWriter, checker ObjectChecker, logs domain.AgentLogStore, logger *slog.Logger) *LogArchiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogArchiver{
		writer:  writer,
		checker: checker,
		logs:    logs,
		logger:  logger.With(slog.String("component", "log-archiver")),
	}
}

// archiveRecord is the JSONL line written per log entry.
type archiveRecord struct {
	ID            string    `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	AgentName     string    `json:"agent_name"`
	Level         string    `json:"level"`
	Message       string    `json:"message"`
	CreatedAt     time.Time `json:"created_at"`
}

// ArchiveAgentLogs uploads every entry created before the cutoff and
// removes them locally. It returns the number of entries deleted.
func (a *LogArchiver) ArchiveAgentLogs(ctx context.Context, before time.Time) (int64, error) {
	var records []archiveRecord
	for offset := 0; ; offset += archivePageSize {
		page, err := a.logs.List(ctx, domain.LogFilter{
			ListOpts: domain.ListOpts{Limit: archivePageSize, Offset: offset, Until: &before},
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive agent logs query: %w", err)
		}
		for _, e := range page {
			records = append(records, archiveRecord{
				ID:            e.ID,
				WalletAddress: e.WalletAddress,
				AgentName:     e.AgentName,
				Level:         string(e.Level),
				Message:       e.Message,
				CreatedAt:     e.CreatedAt.UTC(),
			})
		}
		if len(page) < archivePageSize {
			break
		}
	}
	if len(records) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(records)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive agent logs marshal: %w", err)
	}

	path := archivePath("agent_logs", before)
	if int64(len(buf)) > minPartSize {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), ndjson)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive agent logs upload: %w", err)
	}

	if a.checker != nil {
		size, err := a.checker.Size(ctx, path)
		if errors.Is(err, domain.ErrNotFound) {
			return 0, domain.E(domain.KindInvariant, "s3blob: archive agent logs verify",
				errors.New("uploaded object not found: "+path))
		}
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive agent logs verify: %w", err)
		}
		if size != int64(len(buf)) {
			return 0, domain.E(domain.KindInvariant, "s3blob: archive agent logs verify",
				fmt.Errorf("%s: stored %d bytes, uploaded %d", path, size, len(buf)))
		}
	}

	deleted, err := a.logs.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive agent logs delete: %w", err)
	}
	a.logger.InfoContext(ctx, "archived agent logs",
		slog.String("path", path),
		slog.Int("exported", len(records)),
		slog.Int64("deleted", deleted),
	)
	return deleted, nil
}

// archivePath builds the object key for an archive, named after the cutoff:
//
//	archive/agent_logs/2025-01-31T000000Z.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.UTC().Format("2006-01-02T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
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

var _ domain.Archiver = (*LogArchiver)(nil)
