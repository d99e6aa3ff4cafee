package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	c := NewCollector()
	c.RecordStoreOp("add_profile", "ok", time.Millisecond)
	c.RecordStoreOp("add_profile", "not_owner", time.Millisecond)
	c.RecordStoreOp("add_profile", "ok", time.Millisecond)
	c.RecordEventWrite(nil)
	c.RecordEventWrite(errors.New("disk full"))
	c.RecordWSConnection(1)
	c.RecordWSConnection(1)
	c.RecordWSConnection(-1)

	if got := testutil.ToFloat64(c.storeOps.WithLabelValues("add_profile", "ok")); got != 2 {
		t.Errorf("ok ops = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.eventErrors); got != 1 {
		t.Errorf("event errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.wsConnections); got != 1 {
		t.Errorf("connections = %v, want 1", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := NewCollector()
	c.RecordSelection("preferred")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `tokenprofile_profile_selections_total{strategy="preferred"} 1`) {
		t.Errorf("selection counter missing from output:\n%s", body)
	}
}
