package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRecordingLifecycle(t *testing.T) {
	m := DefaultMetrics
	activeBefore := testutil.ToFloat64(m.RecordingsActive)
	completedBefore := testutil.ToFloat64(m.RecordingsCompleted)

	m.RecordRecordingStart()
	if got := testutil.ToFloat64(m.RecordingsActive); got != activeBefore+1 {
		t.Errorf("expected active %v, got %v", activeBefore+1, got)
	}

	m.RecordRecordingEnd(true, 12)
	if got := testutil.ToFloat64(m.RecordingsActive); got != activeBefore {
		t.Errorf("expected active back to %v, got %v", activeBefore, got)
	}
	if got := testutil.ToFloat64(m.RecordingsCompleted); got != completedBefore+1 {
		t.Errorf("expected completed %v, got %v", completedBefore+1, got)
	}
}

func TestRecordStorageOp_Outcome(t *testing.T) {
	m := DefaultMetrics
	okBefore := testutil.ToFloat64(m.StorageOps.WithLabelValues("local", "upload", "success"))
	errBefore := testutil.ToFloat64(m.StorageOps.WithLabelValues("local", "upload", "error"))

	m.RecordStorageOp("local", "upload", nil, 0.01)
	m.RecordStorageOp("local", "upload", errors.New("boom"), 0.01)

	if got := testutil.ToFloat64(m.StorageOps.WithLabelValues("local", "upload", "success")); got != okBefore+1 {
		t.Errorf("expected success count %v, got %v", okBefore+1, got)
	}
	if got := testutil.ToFloat64(m.StorageOps.WithLabelValues("local", "upload", "error")); got != errBefore+1 {
		t.Errorf("expected error count %v, got %v", errBefore+1, got)
	}
}

func TestRecordMalformedLine(t *testing.T) {
	m := DefaultMetrics
	before := testutil.ToFloat64(m.GenerationMalformedLines)

	m.RecordMalformedLine()
	m.RecordMalformedLine()

	if got := testutil.ToFloat64(m.GenerationMalformedLines); got != before+2 {
		t.Errorf("expected %v malformed lines, got %v", before+2, got)
	}
}
