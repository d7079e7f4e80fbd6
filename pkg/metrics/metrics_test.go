package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(ItemsAdded.WithLabelValues("metrics-test", "appended"))
	ItemsAdded.WithLabelValues("metrics-test", "appended").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(ItemsAdded.WithLabelValues("metrics-test", "appended")))

	PendingRows.WithLabelValues("metrics-test").Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(PendingRows.WithLabelValues("metrics-test")))

	PendingBytes.WithLabelValues("metrics-test").Set(128)
	assert.Equal(t, 128.0, testutil.ToFloat64(PendingBytes.WithLabelValues("metrics-test")))
}

func TestHandler(t *testing.T) {
	RowsWritten.WithLabelValues("handler-test.csv").Add(2)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `kscrap_rows_written_total{target="handler-test.csv"} 2`)
}

func TestTimerAndStatus(t *testing.T) {
	timer := NewTimer()
	time.Sleep(time.Millisecond)
	assert.GreaterOrEqual(t, timer.Stop(), time.Millisecond)

	assert.Equal(t, "success", Status(nil))
	assert.Equal(t, "error", Status(errors.New("boom")))
}
