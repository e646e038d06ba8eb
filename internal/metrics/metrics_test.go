package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if usersDiscoveredTotal == nil || emailsFoundTotal == nil ||
		requestsTotal == nil || requestLatencySeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	before := testutil.ToFloat64(emailsWrittenTotal)
	ObserveEmailWritten("profile")
	if got := testutil.ToFloat64(emailsWrittenTotal); got != before+1 {
		t.Errorf("expected emailsWrittenTotal %f, got %f", before+1, got)
	}
	if got := testutil.ToFloat64(emailsFoundTotal.WithLabelValues("profile")); got < 1 {
		t.Errorf("expected emailsFoundTotal{profile} >= 1, got %f", got)
	}
}

func TestObserveRequestCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(requestsTotal.WithLabelValues("hub_directory", "200"))
	ObserveRequest("hub_directory", 200, 50*time.Millisecond)
	if got := testutil.ToFloat64(requestsTotal.WithLabelValues("hub_directory", "200")); got != before+1 {
		t.Errorf("expected requestsTotal %f, got %f", before+1, got)
	}

	beforeErr := testutil.ToFloat64(requestErrorsTotal.WithLabelValues("website"))
	ObserveRequestError("website", 10*time.Millisecond)
	if got := testutil.ToFloat64(requestErrorsTotal.WithLabelValues("website")); got != beforeErr+1 {
		t.Errorf("expected requestErrorsTotal %f, got %f", beforeErr+1, got)
	}
}

func TestObserveUserCounters(t *testing.T) {
	Init()

	before := testutil.ToFloat64(usersDiscoveredTotal)
	ObserveUsersDiscovered(5)
	ObserveUsersDiscovered(0)
	if got := testutil.ToFloat64(usersDiscoveredTotal); got != before+5 {
		t.Errorf("expected usersDiscoveredTotal %f, got %f", before+5, got)
	}

	beforeHits := testutil.ToFloat64(usersWithHitsTotal)
	ObserveUserWithHits(3)
	if got := testutil.ToFloat64(usersWithHitsTotal); got != beforeHits+1 {
		t.Errorf("expected usersWithHitsTotal %f, got %f", beforeHits+1, got)
	}
}
