package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("move", ModeBulk, "error"))
	RecordOperation("move", ModeBulk, errors.New("boom"))
	after := testutil.ToFloat64(operationsTotal.WithLabelValues("move", ModeBulk, "error"))

	if after-before != 1 {
		t.Errorf("move/bulk/error delta = %v, want 1", after-before)
	}
}

func TestRecordUploadSkipsLinkedBytes(t *testing.T) {
	before := testutil.ToFloat64(uploadBytes)
	RecordUpload(StrategyLinked, 1000, nil)
	if got := testutil.ToFloat64(uploadBytes); got != before {
		t.Errorf("linked upload counted %v bytes, want 0", got-before)
	}
	RecordUpload(StrategySingleShot, 1000, nil)
	if got := testutil.ToFloat64(uploadBytes); got-before != 1000 {
		t.Errorf("single-shot upload counted %v bytes, want 1000", got-before)
	}
}

func TestRecordAPIRequestThrottled(t *testing.T) {
	before := testutil.ToFloat64(throttledTotal)
	RecordAPIRequest("GET", http.StatusTooManyRequests, 10*time.Millisecond)
	if got := testutil.ToFloat64(throttledTotal); got-before != 1 {
		t.Errorf("throttled delta = %v, want 1", got-before)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetModelNodes(3)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "vaultfm_model_nodes 3") {
		t.Error("expected vaultfm_model_nodes in exposition output")
	}
}
