package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mdrrmo/evac-gateway/internal/core/domain"
	"github.com/mdrrmo/evac-gateway/internal/core/ports"
)

// exportFilename matches what the stations' spreadsheets tooling expects.
const exportFilename = "mdrrmo_records_all.csv"

type activityTracker interface {
	RecordActivity(ctx context.Context, action, details string)
}

// RecordService proxies household reads and writes to the upstream sheet.
// Reads fall back to the last cached snapshot when the upstream is down;
// writes never do.
type RecordService struct {
	upstream  ports.Upstream
	cache     ports.RecordCache
	broadcast ports.Broadcaster
	actors    ports.ActorSource
	tracker   activityTracker
	archiver  ports.ExportArchiver
	log       zerolog.Logger
	now       func() time.Time
}

var _ ports.RecordService = (*RecordService)(nil)

func NewRecordService(
	up ports.Upstream,
	cache ports.RecordCache,
	broadcast ports.Broadcaster,
	actors ports.ActorSource,
	tracker activityTracker,
	archiver ports.ExportArchiver,
	log zerolog.Logger,
) *RecordService {
	return &RecordService{
		upstream:  up,
		cache:     cache,
		broadcast: broadcast,
		actors:    actors,
		tracker:   tracker,
		archiver:  archiver,
		log:       log,
		now:       time.Now,
	}
}

func (r *RecordService) List(ctx context.Context, q ports.RecordQuery) (*ports.RecordListing, error) {
	page, err := r.upstream.GetRecords(ctx, q)
	if err == nil {
		if r.cache != nil && q.Barangay == "" && q.Search == "" {
			if cerr := r.cache.PutSnapshot(ctx, page); cerr != nil {
				r.log.Warn().Err(cerr).Msg("record snapshot write failed")
			}
		}
		return &ports.RecordListing{
			Header:     page.Header,
			Households: domain.GroupHouseholds(page.Rows),
			FetchedAt:  r.now(),
		}, nil
	}
	if !errors.Is(err, domain.ErrUpstreamUnavailable) || r.cache == nil {
		return nil, err
	}

	snap, fetchedAt, cerr := r.cache.Snapshot(ctx)
	if cerr != nil {
		return nil, err
	}
	r.log.Info().Msg("upstream unreachable, serving cached records")
	return &ports.RecordListing{
		Header:     snap.Header,
		Households: domain.GroupHouseholds(filterRows(snap.Rows, q)),
		Stale:      true,
		FetchedAt:  fetchedAt,
	}, nil
}

// filterRows reapplies the query locally against a cached snapshot, since
// the snapshot was fetched unfiltered.
func filterRows(rows []domain.Row, q ports.RecordQuery) []domain.Row {
	if q.Barangay == "" && q.Search == "" {
		return rows
	}
	needle := strings.ToLower(q.Search)
	out := make([]domain.Row, 0, len(rows))
	for _, row := range rows {
		if q.Barangay != "" && row[domain.ColBarangay] != q.Barangay {
			continue
		}
		if needle != "" && !rowMatches(row, needle) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func rowMatches(row domain.Row, needle string) bool {
	for _, v := range row {
		if strings.Contains(strings.ToLower(v), needle) {
			return true
		}
	}
	return false
}

func (r *RecordService) Create(ctx context.Context, fields map[string]string) error {
	if err := r.upstream.CreateRecord(ctx, fields); err != nil {
		return err
	}
	r.afterWrite(ctx, domain.ActionCreateRecord, fields[domain.ColHeadName])
	return nil
}

func (r *RecordService) Update(ctx context.Context, dataID string, fields map[string]string) error {
	if err := r.upstream.UpdateRecord(ctx, dataID, fields); err != nil {
		return err
	}
	r.afterWrite(ctx, domain.ActionUpdateHousehold, dataID)
	return nil
}

func (r *RecordService) Delete(ctx context.Context, dataID string) error {
	if err := r.upstream.DeleteHousehold(ctx, dataID); err != nil {
		return err
	}
	r.afterWrite(ctx, domain.ActionDeleteHousehold, dataID)
	return nil
}

// afterWrite fans a successful write out: the activity trail, then the
// data-change broadcast so sibling stations refresh.
func (r *RecordService) afterWrite(ctx context.Context, action, details string) {
	if r.tracker != nil {
		r.tracker.RecordActivity(ctx, action, details)
	}
	if r.broadcast == nil {
		return
	}

	username, actor, err := r.actors.ActorInfo(ctx)
	if err != nil {
		return
	}
	event := domain.Activity{
		ID:        uuid.NewString(),
		Username:  username,
		Actor:     actor,
		Action:    action,
		Details:   details,
		Timestamp: r.now(),
	}
	if err := r.broadcast.Publish(ctx, event); err != nil {
		r.log.Warn().Err(err).Str("action", action).Msg("data-change broadcast failed")
	}
}

func (r *RecordService) ExportCSV(ctx context.Context, q ports.RecordQuery) ([]byte, string, error) {
	listing, err := r.List(ctx, q)
	if err != nil {
		return nil, "", err
	}

	body := renderCSV(listing.Header, listing.Households)

	if r.archiver != nil {
		if err := r.archiver.Store(ctx, r.now().Format("2006-01-02")+"_"+exportFilename, body); err != nil {
			r.log.Warn().Err(err).Msg("export archive failed")
		}
	}
	if r.tracker != nil {
		r.tracker.RecordActivity(ctx, "Export Records", exportFilename)
	}
	return body, exportFilename, nil
}

// renderCSV writes the grouped listing in the exact shape the municipal
// tooling ingests: every field quoted, CRLF line endings, head row first and
// member rows directly below it. encoding/csv quotes only when it must, so
// the rows are rendered by hand.
func renderCSV(header []string, households []domain.Household) []byte {
	var buf bytes.Buffer
	writeCSVRow(&buf, header, func(col string) string { return col })
	for _, h := range households {
		if h.Head != nil {
			writeCSVRow(&buf, header, func(col string) string { return h.Head[col] })
		}
		for _, m := range h.Members {
			writeCSVRow(&buf, header, func(col string) string { return m[col] })
		}
	}
	return buf.Bytes()
}

func writeCSVRow(buf *bytes.Buffer, header []string, value func(col string) string) {
	for i, col := range header {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('"')
		buf.WriteString(strings.ReplaceAll(value(col), `"`, `""`))
		buf.WriteByte('"')
	}
	buf.WriteString("\r\n")
}
