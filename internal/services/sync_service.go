// Package services – SyncService
//
// This file implements the attendee cache synchronizer: an incremental,
// cursor-based pull of changed attendee records from the master. Payloads are
// stored verbatim (still ciphertext); nothing is decrypted here.
//
// Cursors come exclusively from the master's response header, never from the
// local clock. They live in an in-memory map: losing them on restart only
// costs one redundant full resync, so they are deliberately not durable.
package services

import (
	"context"
	"sync"

	"gorm.io/gorm"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-checkin-station/internal/master"
	"github.com/tbourn/go-checkin-station/internal/repo"
)

// defaultBatchSize bounds one payload-fetch request; it caps request/response
// size and memory on both ends.
const defaultBatchSize = 200

// SyncService pulls changed attendee records and label configurations from
// the master into the local encrypted cache.
type SyncService struct {
	DB        *gorm.DB
	Master    master.Client
	BatchSize int
	Log       zerolog.Logger

	mu      sync.Mutex
	cursors map[string]int64
}

var _ AttendeeSyncer = (*SyncService)(nil)

// NewSyncService builds a SyncService with the default batch size.
func NewSyncService(db *gorm.DB, m master.Client, log zerolog.Logger) *SyncService {
	return &SyncService{
		DB:        db,
		Master:    m,
		BatchSize: defaultBatchSize,
		Log:       log.With().Str("component", "sync").Logger(),
		cursors:   make(map[string]int64),
	}
}

// SyncAttendees performs one incremental synchronization pass for an event.
// Transport failures on individual payload batches degrade to empty batches
// and are logged; the pass resumes on the next scheduled run.
func (s *SyncService) SyncAttendees(ctx context.Context, eventKey string) error {
	tr := otel.Tracer("services/SyncService")
	ctx, span := tr.Start(ctx, "SyncAttendees",
		trace.WithAttributes(attribute.String("event.key", eventKey)),
	)
	defer span.End()

	since := s.cursor(eventKey)
	ids, serverTime, err := s.Master.ListOfflineIdentifiers(ctx, eventKey, since)
	if err != nil {
		syncRunsTotal.WithLabelValues(eventKey, "error").Inc()
		return err
	}
	s.Log.Info().Str("event", eventKey).Int("changed", len(ids)).Msg("found changed attendees")

	records := make(map[string]string)
	if len(ids) > 0 {
		s.mergeLabelConfiguration(ctx, eventKey)

		for _, batch := range partition(ids, s.batchSize()) {
			page, err := s.Master.FetchAttendees(ctx, eventKey, batch)
			if err != nil {
				s.Log.Warn().Err(err).Str("event", eventKey).Int("batch", len(batch)).Msg("cannot load remote attendees")
				continue
			}
			for identifier, data := range page {
				if data == "" {
					// Identifier advertised as changed but no payload came
					// back: remember the miss so it is not re-requested.
					data = repo.AttendeeDataNotFound
				}
				records[identifier] = data
			}
		}
	}

	if err := repo.BulkUpsertAttendees(ctx, s.DB, eventKey, serverTime, records); err != nil {
		syncRunsTotal.WithLabelValues(eventKey, "error").Inc()
		return err
	}
	s.setCursor(eventKey, serverTime)

	syncRunsTotal.WithLabelValues(eventKey, "ok").Inc()
	syncedRecordsTotal.WithLabelValues(eventKey).Add(float64(len(records)))
	s.Log.Info().Str("event", eventKey).Int("merged", len(records)).Int64("cursor", serverTime).Msg("attendee sync finished")
	return nil
}

// mergeLabelConfiguration refreshes the event's label layout alongside a
// non-empty attendee delta. Best effort: a failure here never fails the sync.
func (s *SyncService) mergeLabelConfiguration(ctx context.Context, eventKey string) {
	layout, err := s.Master.LoadLabelConfiguration(ctx, eventKey)
	if err != nil {
		s.Log.Warn().Err(err).Str("event", eventKey).Msg("cannot load label configuration")
		return
	}
	if layout == nil {
		return
	}
	event, err := repo.FindEventByKey(ctx, s.DB, eventKey)
	if err != nil {
		return
	}
	if err := repo.MergeLabelConfiguration(ctx, s.DB, event.ID, layout.Layout, layout.Enabled); err != nil {
		s.Log.Warn().Err(err).Str("event", eventKey).Msg("cannot merge label configuration")
	}
}

// cursor returns the last server-supplied cursor for the event, or nil for a
// full sync.
func (s *SyncService) cursor(eventKey string) *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.cursors[eventKey]; ok {
		return &v
	}
	return nil
}

func (s *SyncService) setCursor(eventKey string, v int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursors == nil {
		s.cursors = make(map[string]int64)
	}
	s.cursors[eventKey] = v
}

func (s *SyncService) batchSize() int {
	if s.BatchSize > 0 {
		return s.BatchSize
	}
	return defaultBatchSize
}

// partition splits ids into consecutive chunks of at most size elements.
func partition(ids []int, size int) [][]int {
	if size < 1 || len(ids) == 0 {
		return nil
	}
	out := make([][]int, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}
