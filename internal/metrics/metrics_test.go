package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	// Register should be safe to call multiple times
	Register()
	Register()

	assert.NotPanics(t, func() {
		ObserveRun("no_show", 10*time.Millisecond, nil)
		ObserveRun("no_show", time.Millisecond, errors.New("boom"))
		IncEvent("booking_created")
		IncNotification("payment_reminder", "sent")
	})

	assert.InDelta(t, 1, testutil.ToFloat64(workerRuns.WithLabelValues("no_show", "error")), 0.0001)
}

func TestAddItems(t *testing.T) {
	before := testutil.ToFloat64(workerItems.WithLabelValues("auto_reject", "applied"))
	AddItems("auto_reject", "applied", 3)
	AddItems("auto_reject", "applied", 0)
	assert.InDelta(t, before+3, testutil.ToFloat64(workerItems.WithLabelValues("auto_reject", "applied")), 0.0001)
}
