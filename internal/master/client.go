// Package master implements the HTTP client for the central check-in
// authority. It covers the offline synchronization endpoints (changed
// identifier lists, encrypted payload batches, label layouts, the remote
// event list) and the synchronous check-in call.
//
// Transport policy:
//   - Background calls (sync, uploads) use the default request timeout.
//   - CheckIn uses a deliberately tight timeout (100ms by default) because it
//     sits in the synchronous path of a human waiting at a gate. Any failure,
//     timeout, or non-2xx response maps to an empty envelope with status
//     RETRY; it never raises to the caller.
package master

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-checkin-station/internal/config"
	"github.com/tbourn/go-checkin-station/internal/domain"
)

// cursorHeader carries the master's current server time on identifier
// responses. It is the only source of sync cursors; local clocks are never
// used, avoiding terminal/master clock skew.
const cursorHeader = "Alfio-TIME"

// RemoteEvent is an event as listed by the master. Key is nil for events the
// master has not yet published for offline check-in.
type RemoteEvent struct {
	Key    *string `json:"key"`
	Name   string  `json:"name"`
	Active bool    `json:"active"`
}

// LabelLayout is the label configuration advertised by the master for one
// event. Layout is nil when printing is disabled.
type LabelLayout struct {
	Layout  *string
	Enabled bool
}

// Client is the remote master API consumed by the synchronization and
// check-in subsystems.
type Client interface {
	// ListOfflineIdentifiers returns the identifiers changed since the given
	// cursor (nil = everything) and the new cursor from the response header.
	ListOfflineIdentifiers(ctx context.Context, eventKey string, changedSince *int64) ([]int, int64, error)

	// FetchAttendees retrieves the encrypted attendee payloads for a batch
	// of identifiers, keyed by cache identifier.
	FetchAttendees(ctx context.Context, eventKey string, ids []int) (map[string]string, error)

	// LoadLabelConfiguration returns the event's label layout, or nil when
	// the master has no configuration available.
	LoadLabelConfiguration(ctx context.Context, eventKey string) (*LabelLayout, error)

	// CheckIn submits a scan to the master. It is total: every failure is
	// folded into the returned envelope (status RETRY).
	CheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse

	// ListEvents returns the events currently known to the master.
	ListEvents(ctx context.Context) ([]RemoteEvent, error)
}

// HTTPClient is the production Client backed by net/http.
type HTTPClient struct {
	baseURL        string
	username       string
	password       string
	hc             *http.Client
	checkInTimeout time.Duration
	log            zerolog.Logger
}

var _ Client = (*HTTPClient)(nil)

// New builds an HTTPClient from the master connection configuration.
func New(cfg config.MasterConfig, log zerolog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:        cfg.URL,
		username:       cfg.Username,
		password:       cfg.Password,
		hc:             &http.Client{Timeout: cfg.RequestTimeout},
		checkInTimeout: cfg.CheckInTimeout,
		log:            log.With().Str("component", "master").Logger(),
	}
}

// newRequest builds an authenticated request for the given master path.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// ListOfflineIdentifiers implements Client.
func (c *HTTPClient) ListOfflineIdentifiers(ctx context.Context, eventKey string, changedSince *int64) ([]int, int64, error) {
	path := fmt.Sprintf("/admin/api/check-in/%s/offline-identifiers", url.PathEscape(eventKey))
	if changedSince != nil {
		path += "?changedSince=" + strconv.FormatInt(*changedSince, 10)
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, 0, fmt.Errorf("offline-identifiers for %s: unexpected status %d", eventKey, resp.StatusCode)
	}
	serverTime, err := strconv.ParseInt(resp.Header.Get(cursorHeader), 10, 64)
	if err != nil {
		return nil, 0, fmt.Errorf("offline-identifiers for %s: missing or invalid %s header", eventKey, cursorHeader)
	}
	var ids []int
	if err := json.NewDecoder(resp.Body).Decode(&ids); err != nil {
		return nil, 0, err
	}
	return ids, serverTime, nil
}

// FetchAttendees implements Client.
func (c *HTTPClient) FetchAttendees(ctx context.Context, eventKey string, ids []int) (map[string]string, error) {
	payload, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	path := fmt.Sprintf("/admin/api/check-in/%s/offline", url.PathEscape(eventKey))
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("offline payloads for %s: unexpected status %d", eventKey, resp.StatusCode)
	}
	var out map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadLabelConfiguration implements Client. A 412 means printing is disabled
// for the event; any other non-2xx means no configuration is available.
func (c *HTTPClient) LoadLabelConfiguration(ctx context.Context, eventKey string) (*LabelLayout, error) {
	path := fmt.Sprintf("/admin/api/check-in/%s/label-layout", url.PathEscape(eventKey))
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		layout := string(body)
		return &LabelLayout{Layout: &layout, Enabled: true}, nil
	case resp.StatusCode == http.StatusPreconditionFailed:
		return &LabelLayout{Enabled: false}, nil
	default:
		return nil, nil
	}
}

// CheckIn implements Client.
func (c *HTTPClient) CheckIn(ctx context.Context, eventKey, ticketUUID, ticketSecret, username string) domain.CheckInResponse {
	ctx, cancel := context.WithTimeout(ctx, c.checkInTimeout)
	defer cancel()

	payload, err := json.Marshal(map[string]string{"code": ticketUUID + "/" + ticketSecret})
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot encode check-in request")
		return domain.RetryResult()
	}
	path := fmt.Sprintf("/admin/api/check-in/event/%s/ticket/%s?offlineUser=%s",
		url.PathEscape(eventKey), url.PathEscape(ticketUUID), url.QueryEscape(username))
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(payload))
	if err != nil {
		c.log.Warn().Err(err).Msg("cannot build check-in request")
		return domain.RetryResult()
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("ticket", ticketUUID).Msg("remote check-in failed")
		return domain.RetryResult()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Str("ticket", ticketUUID).Msg("remote check-in rejected")
		return domain.RetryResult()
	}
	var out domain.CheckInResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warn().Err(err).Str("ticket", ticketUUID).Msg("cannot decode check-in response")
		return domain.RetryResult()
	}
	return out
}

// ListEvents implements Client.
func (c *HTTPClient) ListEvents(ctx context.Context) ([]RemoteEvent, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/admin/api/events", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("event list: unexpected status %d", resp.StatusCode)
	}
	var out []RemoteEvent
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
