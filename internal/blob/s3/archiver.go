package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/orderpool/internal/domain"
)

// OrderArchiveStore provides the read access the archiver needs. The
// Postgres order store satisfies it; the archiver does not need the full
// repository interface.
type OrderArchiveStore interface {
	// ListTerminalBefore returns all orders that reached a terminal status
	// and were created strictly before the given cutoff time.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// Archiver serializes settled, cancelled and expired orders to JSONL and
// uploads monthly archive files to S3. Deletion of the archived records from
// the primary store is intentionally not performed here; that is a separate,
// explicit step to be executed after the archive has been verified.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	orders OrderArchiveStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, orders OrderArchiveStore) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		orders: orders,
	}
}

// ArchiveOrders queries all terminal orders before the cutoff, serializes
// them to JSONL, and uploads the file to S3 at archive/orders/YYYY-MM.jsonl.
// An archive that already exists for the partition is left untouched. The
// count of archived records is returned.
func (a *Archiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	path := archivePath("orders", before)

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders head: %w", err)
	}
	if exists {
		return 0, nil
	}

	orders, err := a.orders.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	if len(orders) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(orders)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders marshal: %w", err)
	}

	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive orders upload: %w", err)
	}

	// Read the archive back before reporting success; a short or unreadable
	// object is removed so the next run re-archives the partition.
	if err := a.verifyArchive(ctx, path, len(orders)); err != nil {
		if delErr := a.reader.Delete(ctx, path); delErr != nil {
			return 0, fmt.Errorf("s3blob: remove unverified archive: %w", delErr)
		}
		return 0, err
	}

	return int64(len(orders)), nil
}

// verifyArchive re-reads the uploaded archive and checks it holds the
// expected number of records.
func (a *Archiver) verifyArchive(ctx context.Context, path string, want int) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return fmt.Errorf("s3blob: verify archive %s: %w", path, err)
	}
	defer body.Close()

	var got int
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxArchiveLineBytes)
	for scanner.Scan() {
		if len(bytes.TrimSpace(scanner.Bytes())) > 0 {
			got++
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("s3blob: verify archive %s: %w", path, err)
	}
	if got != want {
		return fmt.Errorf("s3blob: archive %s holds %d records, want %d", path, got, want)
	}
	return nil
}

// maxArchiveLineBytes bounds a single archived record during verification.
const maxArchiveLineBytes = 1 << 20

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/orders/2025-01.jsonl
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
