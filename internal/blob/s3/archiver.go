package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alanyoungcy/curvemarket/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"
	day              = 24 * time.Hour
)

// EventArchiver implements domain.Archiver. It writes one JSONL object per
// UTC day of events to archive/events/YYYY-MM-DD.jsonl. A day is archived
// only once it is complete and only if its object does not exist yet, so
// running it repeatedly is safe. Archived events stay in the event store.
type EventArchiver struct {
	events domain.EventStore
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
	// multipartThreshold switches large days to multipart uploads.
	multipartThreshold int
}

// NewArchiver creates an EventArchiver. audit may be nil.
func NewArchiver(events domain.EventStore, writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *EventArchiver {
	return &EventArchiver{
		events:             events,
		writer:             writer,
		reader:             reader,
		audit:              audit,
		multipartThreshold: int(minPartSize),
	}
}

// ArchiveEvents uploads every complete day of events created before the
// given time and returns how many events were written.
func (a *EventArchiver) ArchiveEvents(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UTC().Truncate(day)
	records, err := a.events.ListBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive events query: %w", err)
	}
	if len(records) == 0 {
		return 0, nil
	}

	byDay := make(map[time.Time][]domain.EventRecord)
	for _, r := range records {
		d := r.CreatedAt.UTC().Truncate(day)
		byDay[d] = append(byDay[d], r)
	}
	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var total int64
	for _, d := range days {
		path := archivePath(d)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events check %s: %w", path, err)
		}
		if exists {
			continue
		}

		recs := byDay[d]
		sort.Slice(recs, func(i, j int) bool { return recs[i].Seq < recs[j].Seq })
		buf, err := marshalJSONL(recs)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events marshal: %w", err)
		}

		if len(buf) > a.multipartThreshold {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
		}
		if err != nil {
			return total, fmt.Errorf("s3blob: archive events upload %s: %w", path, err)
		}

		count := int64(len(recs))
		total += count
		if a.audit != nil {
			if err := a.audit.Log(ctx, "archive.events", map[string]any{
				"path":      path,
				"count":     count,
				"first_seq": recs[0].Seq,
				"last_seq":  recs[len(recs)-1].Seq,
			}); err != nil {
				return total, fmt.Errorf("s3blob: archive events audit log: %w", err)
			}
		}
	}
	return total, nil
}

// ArchivedDays lists the days that have an archive object, oldest first,
// formatted as YYYY-MM-DD.
func (a *EventArchiver) ArchivedDays(ctx context.Context) ([]string, error) {
	infos, err := a.reader.List(ctx, archivePrefix)
	if err != nil {
		return nil, fmt.Errorf("s3blob: list archives: %w", err)
	}
	days := make([]string, 0, len(infos))
	for _, info := range infos {
		name, ok := strings.CutPrefix(info.Path, archivePrefix)
		if !ok {
			continue
		}
		if d, ok := strings.CutSuffix(name, ".jsonl"); ok {
			days = append(days, d)
		}
	}
	sort.Strings(days)
	return days, nil
}

// ReadDay returns the events archived for the given UTC day. A day with no
// archive object yields domain.ErrNotFound.
func (a *EventArchiver) ReadDay(ctx context.Context, d time.Time) ([]domain.EventRecord, error) {
	path := archivePath(d.UTC().Truncate(day))
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: read archive %s: %w", path, err)
	}
	defer body.Close()

	var out []domain.EventRecord
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec domain.EventRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("s3blob: decode archive %s line %d: %w", path, len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("s3blob: scan archive %s: %w", path, err)
	}
	return out, nil
}

const archivePrefix = "archive/events/"

// archivePath is archive/events/2026-01-31.jsonl for the given day.
func archivePath(d time.Time) string {
	return archivePrefix + d.Format("2006-01-02") + ".jsonl"
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

// Compile-time interface check.
var _ domain.Archiver = (*EventArchiver)(nil)
