package services

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/master"
	"github.com/tbourn/go-checkin-station/internal/notify"
	"github.com/tbourn/go-checkin-station/internal/repo"
	"github.com/tbourn/go-checkin-station/internal/ticketcrypto"
)

// newServiceDB opens a throwaway SQLite database with the same PRAGMAs as
// production (WAL matters: the engine writes cache rows outside the check-in
// transaction).
func newServiceDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("services_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA busy_timeout=5000;")

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// ----- Fakes -----

type fakeMaster struct {
	// ListOfflineIdentifiers
	listIDs    []int
	listTime   int64
	listErr    error
	listCalls  []*int64
	listEvents []string

	// FetchAttendees
	fetchPages map[string]string
	fetchErr   error
	batches    [][]int

	// LoadLabelConfiguration
	layout    *master.LabelLayout
	layoutErr error

	// CheckIn (mu guards the counters for concurrent scans)
	mu           sync.Mutex
	checkInResp  domain.CheckInResponse
	checkInCalls int
	lastSecret   string
	lastUser     string

	// ListEvents
	events    []master.RemoteEvent
	eventsErr error
}

func (m *fakeMaster) ListOfflineIdentifiers(ctx context.Context, eventKey string, changedSince *int64) ([]int, int64, error) {
	var cp *int64
	if changedSince != nil {
		v := *changedSince
		cp = &v
	}
	m.listCalls = append(m.listCalls, cp)
	m.listEvents = append(m.listEvents, eventKey)
	return m.listIDs, m.listTime, m.listErr
}

func (m *fakeMaster) FetchAttendees(ctx context.Context, eventKey string, ids []int) (map[string]string, error) {
	m.batches = append(m.batches, append([]int(nil), ids...))
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	out := make(map[string]string, len(ids))
	for identifier, data := range m.fetchPages {
		out[identifier] = data
	}
	return out, nil
}

func (m *fakeMaster) LoadLabelConfiguration(ctx context.Context, eventKey string) (*master.LabelLayout, error) {
	return m.layout, m.layoutErr
}

func (m *fakeMaster) CheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkInCalls++
	m.lastSecret = ticketSecret
	m.lastUser = username
	return m.checkInResp
}

func (m *fakeMaster) ListEvents(ctx context.Context) ([]master.RemoteEvent, error) {
	return m.events, m.eventsErr
}

type fakeCluster struct {
	leader      bool
	syncDone    bool
	forwarded   int
	forwardResp domain.CheckInResponse
}

func (c *fakeCluster) IsLeader() bool              { return c.leader }
func (c *fakeCluster) MarkInitialSyncDone()        { c.syncDone = true }
func (c *fakeCluster) LeaderInitialSyncDone() bool { return c.syncDone }
func (c *fakeCluster) ForwardCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse {
	c.forwarded++
	return c.forwardResp
}

type fakePrinter struct {
	calls  int
	ticket domain.Ticket
	ret    bool
}

func (p *fakePrinter) PrintLabel(operator domain.User, ticket domain.Ticket, cfg *domain.LabelConfiguration) bool {
	p.calls++
	p.ticket = ticket
	return p.ret
}

type fakeSyncer struct {
	calls int
	fn    func(ctx context.Context, eventKey string) error
}

func (s *fakeSyncer) SyncAttendees(ctx context.Context, eventKey string) error {
	s.calls++
	if s.fn != nil {
		return s.fn(ctx, eventKey)
	}
	return nil
}

// ----- Seed helpers -----

func seedEvent(t *testing.T, db *gorm.DB, key string) *domain.Event {
	t.Helper()
	if err := repo.UpsertEvent(context.Background(), db, key, "Event "+key, true); err != nil {
		t.Fatalf("seed event: %v", err)
	}
	ev, err := repo.FindEventByKey(context.Background(), db, key)
	if err != nil {
		t.Fatalf("load event: %v", err)
	}
	return ev
}

func seedUser(t *testing.T, db *gorm.DB, username string) *domain.User {
	t.Helper()
	u := domain.User{Username: username}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

// seedAttendee encrypts td with "{uuid}/{secret}" and stores it under the
// secret's cache identifier, exactly as the synchronizer would.
func seedAttendee(t *testing.T, db *gorm.DB, eventKey, ticketUUID, secret string, td domain.TicketData) {
	t.Helper()
	plain, err := json.Marshal(td)
	if err != nil {
		t.Fatalf("marshal ticket data: %v", err)
	}
	payload, err := ticketcrypto.Encrypt(ticketUUID+"/"+secret, string(plain))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	identifier := ticketcrypto.Sha256Hex(secret)
	if err := repo.BulkUpsertAttendees(context.Background(), db, eventKey, 1, map[string]string{identifier: payload}); err != nil {
		t.Fatalf("seed attendee: %v", err)
	}
}

func newCheckInService(db *gorm.DB, m *fakeMaster, c *fakeCluster, p *fakePrinter, sy *fakeSyncer) *CheckInService {
	svc := &CheckInService{
		DB:      db,
		Master:  m,
		Cluster: c,
		Printer: p,
		Bus:     &notify.Bus{},
		Log:     zerolog.Nop(),
	}
	// Assign only a non-nil fake: storing a typed nil *fakeSyncer in the
	// interface field would defeat the service's Syncer != nil guard.
	if sy != nil {
		svc.Syncer = sy
	}
	return svc
}

// ----- Tests -----

func TestPerformCheckIn_OfflineFirst_RetryBecomesLocalSuccess(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.org",
		CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.RetryResult()} // master unreachable
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{ret: true}, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("offline check-in must succeed locally: %+v", resp)
	}
	if resp.Ticket == nil || resp.Ticket.FirstName != "Ada" {
		t.Fatalf("ticket not decrypted: %+v", resp.Ticket)
	}
	if resp.Ticket.HMAC != "" {
		t.Fatalf("returned ticket must not leak the secret")
	}

	// The deferred upload keeps the secret in the stored snapshot.
	pending, err := repo.FindRemoteFailures(context.Background(), db)
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %+v err %v", pending, err)
	}
	snapshot, err := pending[0].Ticket()
	if err != nil || snapshot == nil {
		t.Fatalf("snapshot: %+v %v", snapshot, err)
	}
	if snapshot.HMAC != "s3cret" {
		t.Fatalf("snapshot must retain the secret for replay, got %q", snapshot.HMAC)
	}
	if pending[0].LocalResult != domain.StatusSuccess || pending[0].RemoteResult != domain.StatusRetry {
		t.Fatalf("unexpected statuses: %+v", pending[0])
	}
}

func TestPerformCheckIn_RemoteSuccess_NoSecretRetained(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.SuccessfulCheckIn(&domain.Ticket{UUID: "tick-1"}, domain.StatusSuccess)}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{ret: true}, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if m.checkInCalls != 1 || m.lastSecret != "s3cret" || m.lastUser != "desk-1" {
		t.Fatalf("remote call mismatch: %+v", m)
	}

	scan, err := repo.FindSuccessfulScan(context.Background(), db, ev.ID, "tick-1")
	if err != nil {
		t.Fatalf("scan row: %v", err)
	}
	snapshot, err := scan.Ticket()
	if err != nil || snapshot == nil {
		t.Fatalf("snapshot: %v %v", snapshot, err)
	}
	if snapshot.HMAC != "" {
		t.Fatalf("acknowledged scan must not retain the secret")
	}
	if pending, _ := repo.FindRemoteFailures(context.Background(), db); len(pending) != 0 {
		t.Fatalf("nothing should be pending: %+v", pending)
	}
}

func TestPerformCheckIn_DuplicateShortCircuits(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.RetryResult()}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{ret: true}, nil)

	first := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !first.Successful() {
		t.Fatalf("first scan: %+v", first)
	}
	remoteCallsAfterFirst := m.checkInCalls

	second := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !second.Duplicate() {
		t.Fatalf("second scan must be a duplicate: %+v", second)
	}
	if second.Result.Status != domain.StatusAlreadyCheckIn {
		t.Fatalf("duplicate status = %s", second.Result.Status)
	}
	if second.OriginalScan == nil || second.OriginalScan.TicketUUID != "tick-1" {
		t.Fatalf("duplicate must reference the original scan: %+v", second.OriginalScan)
	}
	if m.checkInCalls != remoteCallsAfterFirst {
		t.Fatalf("duplicate must not reach the master")
	}

	var rows int64
	if err := db.Model(&domain.ScanLog{}).Count(&rows).Error; err != nil || rows != 1 {
		t.Fatalf("expected a single scan row, got %d (err=%v)", rows, err)
	}
}

func TestPerformCheckIn_MasterRejectionOverridesLocalView(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.CheckInResponse{
		Result: domain.CheckInResult{Status: domain.StatusAlreadyCheckIn, Message: "checked in elsewhere"},
	}}
	printer := &fakePrinter{ret: true}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, printer, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if resp.Successful() {
		t.Fatalf("explicit rejection must not yield local SUCCESS")
	}
	if resp.Result.Status != domain.StatusAlreadyCheckIn {
		t.Fatalf("status = %s", resp.Result.Status)
	}

	// The rejection is recorded verbatim; no future duplicate short-circuit.
	if _, err := repo.FindSuccessfulScan(context.Background(), db, ev.ID, "tick-1"); err == nil {
		t.Fatalf("no SUCCESS row expected")
	}
	if printer.calls != 0 {
		t.Fatalf("no badge for a rejected scan")
	}
}

func TestPerformCheckIn_CachedMustPayBlocksWithoutRemoteCall(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusMustPay,
	})

	m := &fakeMaster{checkInResp: domain.RetryResult()}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{ret: true}, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if resp.Result.Status != domain.StatusMustPay {
		t.Fatalf("status = %s; want MUST_PAY", resp.Result.Status)
	}
	if m.checkInCalls != 0 {
		t.Fatalf("locally blocked ticket must not reach the master")
	}
}

func TestPerformCheckIn_UnknownEventOrOperator(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")

	s := newCheckInService(db, &fakeMaster{}, &fakeCluster{leader: true}, &fakePrinter{}, nil)

	if resp := s.PerformCheckIn(context.Background(), "nope", "t", "s", "desk-1"); resp.Result.Status != domain.StatusTicketNotFound {
		t.Fatalf("unknown event: %+v", resp)
	}
	if resp := s.PerformCheckIn(context.Background(), "summit", "t", "s", "ghost"); resp.Result.Status != domain.StatusTicketNotFound {
		t.Fatalf("unknown operator: %+v", resp)
	}
}

func TestPerformCheckIn_WrongSecretIsNotFound(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.RetryResult()}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{}, nil)

	// Same cache row would not even be found: a different secret hashes to a
	// different identifier.
	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "wrong", "desk-1")
	if resp.Result.Status != domain.StatusTicketNotFound {
		t.Fatalf("status = %s", resp.Result.Status)
	}
	if m.checkInCalls != 0 {
		t.Fatalf("undecryptable ticket must not reach the master")
	}
}

func TestPerformCheckIn_CacheMissSelfHeals(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")

	// The syncer fills the cache on demand, as a real resync would.
	syncer := &fakeSyncer{fn: func(ctx context.Context, eventKey string) error {
		seedAttendee(t, db, eventKey, "tick-1", "s3cret", domain.TicketData{
			FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
		})
		return nil
	}}
	m := &fakeMaster{checkInResp: domain.RetryResult()}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{}, syncer)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("expected success after self-heal: %+v", resp)
	}
	if syncer.calls != 1 {
		t.Fatalf("expected exactly one resync, got %d", syncer.calls)
	}
}

func TestPerformCheckIn_UnknownTicketWritesSentinelOnce(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")

	syncer := &fakeSyncer{} // resync finds nothing
	s := newCheckInService(db, &fakeMaster{}, &fakeCluster{leader: true}, &fakePrinter{}, syncer)

	first := s.PerformCheckIn(context.Background(), "summit", "ghost", "nope", "desk-1")
	if first.Result.Status != domain.StatusTicketNotFound {
		t.Fatalf("first: %+v", first)
	}
	if syncer.calls != 1 {
		t.Fatalf("first miss must resync once, got %d", syncer.calls)
	}

	// The sentinel row suppresses further resyncs for the same unknown code.
	second := s.PerformCheckIn(context.Background(), "summit", "ghost", "nope", "desk-1")
	if second.Result.Status != domain.StatusTicketNotFound {
		t.Fatalf("second: %+v", second)
	}
	if syncer.calls != 1 {
		t.Fatalf("sentinel must prevent repeated resyncs, got %d", syncer.calls)
	}

	identifier := ticketcrypto.Sha256Hex("nope")
	data, err := repo.GetAttendeeData(context.Background(), db, "summit", identifier)
	if err != nil || data != repo.AttendeeDataNotFound {
		t.Fatalf("sentinel row: %q %v", data, err)
	}
}

func TestPerformCheckIn_PrintsWhenLayoutEnabled(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "ada", LastName: "lovelace", CheckInStatus: domain.StatusSuccess,
	})
	layout := `{"qrCode":{}}`
	if err := repo.MergeLabelConfiguration(context.Background(), db, ev.ID, &layout, true); err != nil {
		t.Fatalf("seed layout: %v", err)
	}

	printer := &fakePrinter{ret: true}
	m := &fakeMaster{checkInResp: domain.SuccessfulCheckIn(&domain.Ticket{UUID: "tick-1"}, domain.StatusSuccess)}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, printer, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("check-in failed: %+v", resp)
	}
	if printer.calls != 1 || printer.ticket.UUID != "tick-1" {
		t.Fatalf("printer calls = %d ticket %+v", printer.calls, printer.ticket)
	}

	scan, err := repo.FindSuccessfulScan(context.Background(), db, ev.ID, "tick-1")
	if err != nil || !scan.BadgePrinted {
		t.Fatalf("badge flag not recorded: %+v %v", scan, err)
	}
}

func TestPerformCheckIn_NoPrintWhileRemotePending(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})
	layout := `{"qrCode":{}}`
	if err := repo.MergeLabelConfiguration(context.Background(), db, ev.ID, &layout, true); err != nil {
		t.Fatalf("seed layout: %v", err)
	}

	printer := &fakePrinter{ret: true}
	m := &fakeMaster{checkInResp: domain.RetryResult()} // master unreachable
	s := newCheckInService(db, m, &fakeCluster{leader: true}, printer, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("check-in failed: %+v", resp)
	}
	if printer.calls != 0 {
		t.Fatalf("deferred check-in must not print, printer called %d time(s)", printer.calls)
	}
	scan, err := repo.FindSuccessfulScan(context.Background(), db, ev.ID, "tick-1")
	if err != nil || scan.BadgePrinted {
		t.Fatalf("badge flag must stay false: %+v %v", scan, err)
	}
}

func TestPerformCheckIn_ConcurrentScansYieldOneSuccess(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.RetryResult()}
	s := newCheckInService(db, m, &fakeCluster{leader: true}, &fakePrinter{}, nil)

	// Two operators scan the same ticket at once. Whatever the interleaving
	// (serialized duplicate short-circuit or a losing write transaction), only
	// one SUCCESS row may ever exist.
	var wg sync.WaitGroup
	results := make([]domain.CheckInResponse, 2)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
		}(i)
	}
	wg.Wait()

	var successes int64
	if err := db.Model(&domain.ScanLog{}).
		Where("event_id = ? AND ticket_uuid = ? AND local_result = ?", ev.ID, "tick-1", domain.StatusSuccess).
		Count(&successes).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if successes != 1 {
		t.Fatalf("SUCCESS rows = %d; want exactly 1", successes)
	}

	fresh := 0
	for _, r := range results {
		if r.Successful() {
			fresh++
		}
	}
	if fresh > 1 {
		t.Fatalf("both concurrent scans reported a fresh SUCCESS: %+v", results)
	}
}

func TestPerformCheckIn_FollowerForwardsThroughCluster(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	m := &fakeMaster{checkInResp: domain.SuccessfulCheckIn(nil, domain.StatusSuccess)}
	cl := &fakeCluster{leader: false, forwardResp: domain.SuccessfulCheckIn(nil, domain.StatusSuccess)}
	s := newCheckInService(db, m, cl, &fakePrinter{}, nil)

	resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1")
	if !resp.Successful() {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if cl.forwarded != 1 {
		t.Fatalf("follower must forward, got %d", cl.forwarded)
	}
	if m.checkInCalls != 0 {
		t.Fatalf("follower must not call the master directly")
	}
}

func TestPerformCheckIn_PublishesScanEvent(t *testing.T) {
	db := newServiceDB(t)
	seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")
	seedAttendee(t, db, "summit", "tick-1", "s3cret", domain.TicketData{
		FirstName: "Ada", CheckInStatus: domain.StatusSuccess,
	})

	s := newCheckInService(db, &fakeMaster{checkInResp: domain.RetryResult()}, &fakeCluster{leader: true}, &fakePrinter{}, nil)
	ch := s.Bus.Subscribe(1)

	if resp := s.PerformCheckIn(context.Background(), "summit", "tick-1", "s3cret", "desk-1"); !resp.Successful() {
		t.Fatalf("check-in failed: %+v", resp)
	}

	select {
	case ev := <-ch:
		if ev.Event.Key != "summit" || ev.ScanLog.TicketUUID != "tick-1" {
			t.Fatalf("unexpected notification: %+v", ev)
		}
	case <-time.After(time.Second):
		t.Fatalf("no scan notification published")
	}
}

func TestScanLogPageAndEvents(t *testing.T) {
	db := newServiceDB(t)
	ev := seedEvent(t, db, "summit")
	seedUser(t, db, "desk-1")

	for i := 0; i < 3; i++ {
		if _, err := repo.InsertScan(context.Background(), db, ev.ID, fmt.Sprintf("t%d", i), 1,
			domain.StatusSuccess, domain.StatusSuccess, false, ""); err != nil {
			t.Fatalf("seed scan %d: %v", i, err)
		}
	}

	s := newCheckInService(db, &fakeMaster{}, &fakeCluster{leader: true}, &fakePrinter{}, nil)

	items, total, err := s.ScanLogPage(context.Background(), 0, 1, 2)
	if err != nil || total != 3 || len(items) != 2 {
		t.Fatalf("page: items=%d total=%d err=%v", len(items), total, err)
	}
	// Out-of-range inputs are clamped.
	if _, _, err := s.ScanLogPage(context.Background(), 0, -1, 0); err != nil {
		t.Fatalf("clamped page: %v", err)
	}

	events, err := s.Events(context.Background())
	if err != nil || len(events) != 1 || events[0].Key != "summit" {
		t.Fatalf("events: %+v %v", events, err)
	}
}
