// Scan log and event HTTP handlers.
//
// This file exposes the read side of the station API plus the manual sync
// trigger:
//   - GET  /events      (locally mirrored events)
//   - GET  /scan-log    (paginated scan history, optional event filter)
//   - POST /sync        (kick a synchronization pass)
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-checkin-station/internal/domain"
	"github.com/tbourn/go-checkin-station/internal/utils"
)

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ScanLogResponse wraps a page of scan-log rows and pagination information.
type ScanLogResponse struct {
	Scans      []domain.ScanLog `json:"scans"`
	Pagination Pagination       `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// ListEvents returns the events known locally, as last mirrored from the
// master.
func (h *Handlers) ListEvents(c *gin.Context) {
	events, err := h.scanSvc.Events(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, events)
}

// ListScanLog returns a page of the local scan history, most recent first.
// An optional event_id query parameter restricts the page to one event.
func (h *Handlers) ListScanLog(c *gin.Context) {
	page, pageSize := clampPagination(c)
	eventID := utils.AtoiDefault(c.Query("event_id"), 0)

	items, total, err := h.scanSvc.ScanLogPage(c.Request.Context(), eventID, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ScanLogResponse{
		Scans: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// TriggerSync starts a synchronization pass in the background and returns
// immediately. The pass itself reports through logs and metrics.
func (h *Handlers) TriggerSync(c *gin.Context) {
	// Detached from the request context: the pass outlives the response.
	go h.syncSvc.PerformSync(context.WithoutCancel(c.Request.Context()))
	noContent(c)
}
