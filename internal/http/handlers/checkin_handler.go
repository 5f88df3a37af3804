// Check-in HTTP handlers.
//
// This file exposes the scan endpoint of the station API:
//   - POST /check-in/event/{eventKey}/ticket/{uuid}   (decide a scan)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses. The check-in endpoint always
// answers 200 with a decision envelope once the payload parses; outcome
// distinctions (unknown ticket, duplicate, rejection) live inside the
// envelope, not in the status code.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/http/middleware"
)

//
// Service contracts (context-aware)
//

// CheckInService defines the scan decision operation consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type CheckInService interface {
	// PerformCheckIn decides a scan for the given event, ticket, and operator.
	// It is total: it always returns an envelope, never an error.
	PerformCheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse
}

// ScanLogService defines the read operations over the local scan log and the
// locally mirrored event list.
type ScanLogService interface {
	// ScanLogPage returns a page of scan-log rows, optionally filtered by event.
	ScanLogPage(ctx context.Context, eventID, page, pageSize int) ([]domain.ScanLog, int64, error)
	// Events returns the locally known events.
	Events(ctx context.Context) ([]domain.Event, error)
}

// SyncTrigger starts a synchronization pass on demand.
type SyncTrigger interface {
	PerformSync(ctx context.Context)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the station API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	checkInSvc CheckInService
	scanSvc    ScanLogService
	syncSvc    SyncTrigger
}

// New constructs and returns a Handlers instance bound to the given services.
func New(checkInSvc CheckInService, scanSvc ScanLogService, syncSvc SyncTrigger) *Handlers {
	return &Handlers{checkInSvc: checkInSvc, scanSvc: scanSvc, syncSvc: syncSvc}
}

// operator extracts the scanning operator from the Gin context (set by
// upstream middleware). If absent, it falls back to the "Alfio-Operator"
// header, then the "offlineUser" query parameter. It never touches c.Request
// if it's nil.
func operator(c *gin.Context) string {
	if v, ok := c.Get(middleware.OperatorKey); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("Alfio-Operator")); h != "" {
			return h
		}
		if q := strings.TrimSpace(c.Query("offlineUser")); q != "" {
			return q
		}
	}
	return ""
}

//
// DTOs
//

// CheckInRequest is the JSON payload of a scan: the full scanned code in the
// form "<ticket uuid>/<ticket secret>".
type CheckInRequest struct {
	Code string `json:"code" binding:"required"`
}

//
// Handlers
//

// PerformCheckIn decides a scanned ticket.
//
// The scanned code must be "<uuid>/<secret>" and its uuid part must match the
// path parameter; mismatches are client errors. A resolvable request always
// yields 200 with a decision envelope, even when the ticket is unknown or the
// master rejected it.
func (h *Handlers) PerformCheckIn(c *gin.Context) {
	eventKey := c.Param("eventKey")
	ticketUUID := c.Param("uuid")

	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uuidPart, secret, found := strings.Cut(strings.TrimSpace(req.Code), "/")
	if !found || secret == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code must be <uuid>/<secret>")
		return
	}
	if uuidPart != ticketUUID {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "code does not match ticket uuid")
		return
	}

	op := operator(c)
	if op == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "operator required (Alfio-Operator header or offlineUser query)")
		return
	}
	c.Set(middleware.OperatorKey, op)

	resp := h.checkInSvc.PerformCheckIn(c.Request.Context(), eventKey, ticketUUID, secret, op)
	ok(c, http.StatusOK, resp)
}
