// Package domain – check-in result types.
//
// This file defines the check-in status enumeration, the decrypted ticket
// forms, and the tagged CheckInResponse envelope exchanged between the
// check-in engine, the master client, and the HTTP layer. The envelope is a
// total value: every check-in path produces exactly one of successful,
// duplicate, or empty, never an error.
package domain

import "strings"

// CheckInStatus enumerates check-in outcomes as reported locally or by the
// master. The master may return statuses outside this set; unknown values are
// treated conservatively as non-success and persisted verbatim for audit.
type CheckInStatus string

const (
	StatusSuccess            CheckInStatus = "SUCCESS"
	StatusAlreadyCheckIn     CheckInStatus = "ALREADY_CHECK_IN"
	StatusMustPay            CheckInStatus = "MUST_PAY"
	StatusInvalidTicketState CheckInStatus = "INVALID_TICKET_STATE"
	StatusTicketNotFound     CheckInStatus = "TICKET_NOT_FOUND"

	// StatusRetry is a local-only placeholder meaning "remote call did not
	// complete; try again later". It is never a terminal, user-visible state.
	StatusRetry CheckInStatus = "RETRY"
)

// Rejection reports whether the status is an authoritative rejection by the
// master, which overrides the optimistic local view.
func (s CheckInStatus) Rejection() bool {
	switch s {
	case StatusAlreadyCheckIn, StatusMustPay, StatusInvalidTicketState:
		return true
	}
	return false
}

// Ticket is the identity snapshot of an attendee ticket. HMAC (the ticket
// secret) is populated only on snapshots persisted for deferred uploads.
type Ticket struct {
	UUID           string            `json:"uuid"`
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Email          string            `json:"email"`
	AdditionalInfo map[string]string `json:"additionalInfo,omitempty"`
	HMAC           string            `json:"hmac,omitempty"`
}

// FullName returns "First Last" with surrounding whitespace trimmed.
func (t Ticket) FullName() string {
	return strings.TrimSpace(t.FirstName + " " + t.LastName)
}

// WithHMAC returns a copy of the ticket carrying the given secret.
func (t Ticket) WithHMAC(hmac string) Ticket {
	t.HMAC = hmac
	return t
}

// TicketData is the decrypted form of an attendee cache entry. CheckInStatus
// reflects the ticket state as last known by the master at cache-fill time.
type TicketData struct {
	FirstName      string            `json:"firstName"`
	LastName       string            `json:"lastName"`
	Email          string            `json:"email"`
	AdditionalInfo map[string]string `json:"additionalInfo,omitempty"`
	CheckInStatus  CheckInStatus     `json:"checkInStatus"`
}

// CheckInResult carries the status of a check-in decision.
type CheckInResult struct {
	Status  CheckInStatus `json:"status"`
	Message string        `json:"message,omitempty"`
}

// CheckInResponse is the tagged result of a check-in attempt. Exactly one
// shape is populated:
//   - successful: Ticket set, Result.Status carries the decision
//   - duplicate:  OriginalScan set, Result.Status ALREADY_CHECK_IN
//   - empty:      neither set; Result.Status explains (default TICKET_NOT_FOUND)
type CheckInResponse struct {
	Ticket       *Ticket       `json:"ticket,omitempty"`
	Result       CheckInResult `json:"result"`
	OriginalScan *ScanLog      `json:"originalScanLog,omitempty"`
}

// SuccessfulCheckIn builds a successful envelope for the given ticket.
func SuccessfulCheckIn(t *Ticket, status CheckInStatus) CheckInResponse {
	return CheckInResponse{Ticket: t, Result: CheckInResult{Status: status}}
}

// DuplicateScan builds a duplicate envelope referencing the original
// successful scan for the same (event, ticket).
func DuplicateScan(original *ScanLog) CheckInResponse {
	return CheckInResponse{
		Result:       CheckInResult{Status: StatusAlreadyCheckIn, Message: "already checked in on this device"},
		OriginalScan: original,
	}
}

// EmptyResult builds the failure envelope used when the event, operator, or
// ticket cannot be resolved.
func EmptyResult() CheckInResponse {
	return CheckInResponse{Result: CheckInResult{Status: StatusTicketNotFound}}
}

// RetryResult builds the failure envelope signalling that the remote call did
// not complete and must be retried later.
func RetryResult() CheckInResponse {
	return CheckInResponse{Result: CheckInResult{Status: StatusRetry}}
}

// Successful reports whether the envelope carries a SUCCESS decision.
func (r CheckInResponse) Successful() bool {
	return r.Result.Status == StatusSuccess
}

// Duplicate reports whether the envelope references a prior successful scan.
func (r CheckInResponse) Duplicate() bool {
	return r.OriginalScan != nil
}
