package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"joingate/internal/countersign"
)

var (
	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joingate_updates_total",
			Help: "Bot updates processed by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	reviewsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joingate_reviews_total",
			Help: "Moderator decisions applied by action",
		},
		[]string{"action"},
	)

	reviewDecodeErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "joingate_review_decode_errors_total",
			Help: "Button payloads that could not be decoded",
		},
	)

	countersignFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "joingate_countersign_fetches_total",
			Help: "Countersign list refresh attempts by result",
		},
		[]string{"result"},
	)

	countersignIDsDesc = prometheus.NewDesc(
		"joingate_countersign_ids",
		"Number of user ids in the cached Countersign list",
		nil, nil,
	)

	countersignAgeDesc = prometheus.NewDesc(
		"joingate_countersign_age_seconds",
		"Seconds since the cached Countersign list was fetched",
		nil, nil,
	)
)

// SnapshotSource exposes the current Countersign snapshot summary.
type SnapshotSource interface {
	Stats() countersign.Stats
}

// CountersignCollector reads the gate snapshot on each scrape.
type CountersignCollector struct {
	source SnapshotSource
	now    func() time.Time
}

// NewCountersignCollector creates a collector for source.
func NewCountersignCollector(source SnapshotSource) *CountersignCollector {
	return &CountersignCollector{source: source, now: time.Now}
}

// Describe sends the metric descriptors to the channel.
func (c *CountersignCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- countersignIDsDesc
	ch <- countersignAgeDesc
}

// Collect emits the snapshot size and, once a fetch succeeded, its age.
func (c *CountersignCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(countersignIDsDesc, prometheus.GaugeValue, float64(stats.Size))
	if !stats.FetchedAt.IsZero() {
		ch <- prometheus.MustNewConstMetric(countersignAgeDesc, prometheus.GaugeValue, c.now().Sub(stats.FetchedAt).Seconds())
	}
}

var initOnce sync.Once

// Init registers all collectors with the default registry.
// Must be called once at startup.
func Init(source SnapshotSource) {
	initOnce.Do(func() {
		Register(prometheus.DefaultRegisterer, source)
	})
}

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer, source SnapshotSource) {
	reg.MustRegister(updatesTotal, reviewsTotal, reviewDecodeErrors, countersignFetches)
	if source != nil {
		reg.MustRegister(NewCountersignCollector(source))
	}
}

// RecordUpdate counts one processed update.
func RecordUpdate(kind, outcome string) {
	updatesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordReview counts one applied moderator decision.
func RecordReview(action string) {
	reviewsTotal.WithLabelValues(action).Inc()
}

// RecordReviewDecodeError counts one undecodable button payload.
func RecordReviewDecodeError() {
	reviewDecodeErrors.Inc()
}

// RecordCountersignFetch counts one refresh attempt.
func RecordCountersignFetch(result countersign.Result) {
	countersignFetches.WithLabelValues(string(result)).Inc()
}
