// Package services – Prometheus collectors for the check-in domain.
//
// Label cardinality stays bounded: statuses are a small enum and the event
// set on a station is small and known.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// checkInsTotal counts check-in decisions by local status.
	checkInsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkins_total",
			Help: "Total number of check-in decisions by local status.",
		},
		[]string{"status"},
	)

	// syncRunsTotal counts attendee synchronization passes per event.
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendee_sync_runs_total",
			Help: "Total number of attendee synchronization passes.",
		},
		[]string{"event", "result"},
	)

	// syncedRecordsTotal counts attendee records merged into the cache.
	syncedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "attendee_records_synced_total",
			Help: "Total number of attendee records merged into the local cache.",
		},
		[]string{"event"},
	)

	// pendingUploadsTotal counts retry-sweep submissions by resulting status.
	pendingUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pending_upload_attempts_total",
			Help: "Total number of pending check-in upload attempts by resulting remote status.",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(checkInsTotal, syncRunsTotal, syncedRecordsTotal, pendingUploadsTotal)
}
