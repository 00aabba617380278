package metrics

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/recipes/{id}", "200"))
	RecordHTTPRequest(http.MethodGet, "/recipes/{id}", http.StatusOK, 20*time.Millisecond)
	after := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "/recipes/{id}", "200"))
	assert.Equal(t, before+1, after)

	unmatched := testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404"))
	RecordHTTPRequest(http.MethodGet, "", http.StatusNotFound, time.Millisecond)
	assert.Equal(t, unmatched+1, testutil.ToFloat64(HTTPRequests.WithLabelValues(http.MethodGet, "unmatched", "404")))
}

func TestTrackActiveRequest(t *testing.T) {
	start := testutil.ToFloat64(HTTPActiveRequests)
	TrackActiveRequest(true)
	assert.Equal(t, start+1, testutil.ToFloat64(HTTPActiveRequests))
	TrackActiveRequest(false)
	assert.Equal(t, start, testutil.ToFloat64(HTTPActiveRequests))
}

func TestDomainCounters(t *testing.T) {
	tests := []struct {
		name   string
		record func()
		metric prometheus.Collector
	}{
		{"rating insert", func() { RecordRating(true) }, RatingsSubmitted.WithLabelValues("insert")},
		{"rating update", func() { RecordRating(false) }, RatingsSubmitted.WithLabelValues("update")},
		{"recipe created", RecordRecipeCreated, RecipesCreated},
		{"liked", func() { RecordLike(true) }, LikesToggled.WithLabelValues("liked")},
		{"unliked", func() { RecordLike(false) }, LikesToggled.WithLabelValues("unliked")},
		{"upload ok", func() { RecordUpload("recipes", nil) }, MediaUploads.WithLabelValues("recipes", "ok")},
		{"upload error", func() { RecordUpload("users", errors.New("x")) }, MediaUploads.WithLabelValues("users", "error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := testutil.ToFloat64(tt.metric)
			tt.record()
			assert.Equal(t, before+1, testutil.ToFloat64(tt.metric))
		})
	}
}

type nilStats struct{}

func (nilStats) Stats() *pgxpool.Stat { return nil }

func TestPoolCollectorWithoutPool(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterPool(reg, nilStats{}))
	require.NoError(t, RegisterPool(reg, nilStats{}), "second registration is tolerated")

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
