// Package metrics holds the Prometheus instrumentation exposed on /metrics.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recetas_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recetas_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recetas_http_active_requests",
			Help: "Number of requests currently being served",
		},
	)

	// Domain
	RatingsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recetas_ratings_submitted_total",
			Help: "Ratings accepted, split by first vote vs. resubmission",
		},
		[]string{"kind"},
	)

	RecipesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recetas_recipes_created_total",
			Help: "Recipes created",
		},
	)

	LikesToggled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recetas_likes_toggled_total",
			Help: "Like toggles by resulting state",
		},
		[]string{"state"},
	)

	MediaUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recetas_media_uploads_total",
			Help: "Image uploads by folder and outcome",
		},
		[]string{"folder", "result"},
	)
)

// RecordHTTPRequest records one served request. route is the chi pattern,
// never the raw path, to keep cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

// RecordRating counts an accepted rating.
func RecordRating(inserted bool) {
	kind := "update"
	if inserted {
		kind = "insert"
	}
	RatingsSubmitted.WithLabelValues(kind).Inc()
}

// RecordRecipeCreated counts a new recipe.
func RecordRecipeCreated() {
	RecipesCreated.Inc()
}

// RecordLike counts a like toggle.
func RecordLike(liked bool) {
	state := "unliked"
	if liked {
		state = "liked"
	}
	LikesToggled.WithLabelValues(state).Inc()
}

// RecordUpload counts an image upload attempt.
func RecordUpload(folder string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	MediaUploads.WithLabelValues(folder, result).Inc()
}

// PoolStatter is satisfied by *store.Store.
type PoolStatter interface {
	Stats() *pgxpool.Stat
}

// PoolCollector exports connection-pool statistics at scrape time.
type PoolCollector struct {
	source PoolStatter

	total    *prometheus.Desc
	idle     *prometheus.Desc
	acquired *prometheus.Desc
	max      *prometheus.Desc
	waits    *prometheus.Desc
}

// NewPoolCollector builds a collector reading from source.
func NewPoolCollector(source PoolStatter) *PoolCollector {
	return &PoolCollector{
		source:   source,
		total:    prometheus.NewDesc("recetas_db_pool_connections", "Open connections in the pool", nil, nil),
		idle:     prometheus.NewDesc("recetas_db_pool_idle_connections", "Idle connections in the pool", nil, nil),
		acquired: prometheus.NewDesc("recetas_db_pool_acquired_connections", "Connections currently in use", nil, nil),
		max:      prometheus.NewDesc("recetas_db_pool_max_connections", "Configured pool size", nil, nil),
		waits:    prometheus.NewDesc("recetas_db_pool_empty_acquire_total", "Acquires that had to wait for a connection", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.total
	ch <- c.idle
	ch <- c.acquired
	ch <- c.max
	ch <- c.waits
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	stat := c.source.Stats()
	if stat == nil {
		return
	}
	ch <- prometheus.MustNewConstMetric(c.total, prometheus.GaugeValue, float64(stat.TotalConns()))
	ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(stat.IdleConns()))
	ch <- prometheus.MustNewConstMetric(c.acquired, prometheus.GaugeValue, float64(stat.AcquiredConns()))
	ch <- prometheus.MustNewConstMetric(c.max, prometheus.GaugeValue, float64(stat.MaxConns()))
	ch <- prometheus.MustNewConstMetric(c.waits, prometheus.CounterValue, float64(stat.EmptyAcquireCount()))
}

// RegisterPool registers a PoolCollector on reg. Registering twice is not an error.
func RegisterPool(reg prometheus.Registerer, source PoolStatter) error {
	err := reg.Register(NewPoolCollector(source))
	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		return nil
	}
	return err
}
