package mr

import (
	"testing"
	"time"
)

func TestTaskRecordInvariants(t *testing.T) {
	rec := TaskRecord{Kind: MapTask, ID: 0, Status: Idle}

	if rec.WorkerID != "" || !rec.StartedAt.IsZero() {
		t.Fatalf("a freshly constructed idle record must have no worker or start time")
	}

	rec.assign("worker-1", time.Now())
	if rec.Status != InProgress || rec.WorkerID != "worker-1" || rec.StartedAt.IsZero() {
		t.Fatalf("assign did not set IN_PROGRESS state correctly: %+v", rec)
	}

	rec.complete(time.Now())
	if rec.Status != Completed || rec.WorkerID != "" || !rec.StartedAt.IsZero() {
		t.Fatalf("complete did not clear worker/start time correctly: %+v", rec)
	}

	// COMPLETED is terminal: idle() is never called on it by the
	// coordinator, but if it were, the record should still behave
	// sanely rather than corrupt state silently.
	rec.idle()
	if rec.Status != Idle || rec.WorkerID != "" {
		t.Fatalf("idle() left inconsistent state: %+v", rec)
	}
}
