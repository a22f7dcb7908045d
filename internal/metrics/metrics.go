package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "creditslot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_reservations_total",
			Help: "Reservation attempts by outcome",
		},
		[]string{"outcome"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_cancellations_total",
			Help: "Booking cancellations, split by whether credits were refunded",
		},
		[]string{"refunded"},
	)

	LedgerEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_ledger_entries_total",
			Help: "Credit transactions appended to wallet ledgers",
		},
		[]string{"type"},
	)

	LedgerCreditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_ledger_credits_total",
			Help: "Absolute credits moved by ledger entries",
		},
		[]string{"type", "tier"},
	)

	PayoutsCalculatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_payouts_calculated_total",
			Help: "Merchant slot payouts created, by initial status",
		},
		[]string{"status"},
	)

	PayoutScanFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditslot_payout_scan_failures_total",
			Help: "Slots skipped by the payout scanner because of an error",
		},
	)

	PayoutScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "creditslot_payout_scan_duration_seconds",
			Help:    "Duration of a full payout scan",
			Buckets: prometheus.DefBuckets,
		},
	)

	PayoutsReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "creditslot_payouts_released_total",
			Help: "Payouts moved from locked to pending",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "creditslot_notifications_total",
			Help: "Notifications by kind and delivery status",
		},
		[]string{"kind", "status"},
	)

	NotificationQueueLength = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "creditslot_notification_queue_length",
			Help: "Current length of the notification queue",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordReservation uses outcomes such as "confirmed", "replayed",
// "slot_full" or "insufficient_credits".
func RecordReservation(outcome string) {
	ReservationsTotal.WithLabelValues(outcome).Inc()
}

func RecordCancellation(refunded bool) {
	label := "false"
	if refunded {
		label = "true"
	}
	CancellationsTotal.WithLabelValues(label).Inc()
}

func RecordLedgerEntry(txType string, free, paid int64) {
	LedgerEntriesTotal.WithLabelValues(txType).Inc()
	LedgerCreditsTotal.WithLabelValues(txType, "free").Add(float64(abs(free)))
	LedgerCreditsTotal.WithLabelValues(txType, "paid").Add(float64(abs(paid)))
}

func RecordPayout(status string) {
	PayoutsCalculatedTotal.WithLabelValues(status).Inc()
}

func RecordPayoutScan(failures int, seconds float64) {
	PayoutScanFailuresTotal.Add(float64(failures))
	PayoutScanDuration.Observe(seconds)
}

func RecordPayoutsReleased(n int) {
	PayoutsReleasedTotal.Add(float64(n))
}

func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
