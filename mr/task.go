package mr

import "time"

// TaskKind distinguishes map work from reduce work.
type TaskKind int

const (
	MapTask TaskKind = iota
	ReduceTask
)

func (k TaskKind) String() string {
	switch k {
	case MapTask:
		return "map"
	case ReduceTask:
		return "reduce"
	default:
		return "unknown"
	}
}

// TaskStatus is the lifecycle state of a single task record.
type TaskStatus int

const (
	Idle TaskStatus = iota
	InProgress
	Completed
)

func (s TaskStatus) String() string {
	switch s {
	case Idle:
		return "idle"
	case InProgress:
		return "in_progress"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

// Phase is the coordinator's global execution state. Phases advance
// monotonically: MapPhase -> ReducePhase -> DonePhase.
type Phase int

const (
	MapPhase Phase = iota
	ReducePhase
	DonePhase
)

func (p Phase) String() string {
	switch p {
	case MapPhase:
		return "map_phase"
	case ReducePhase:
		return "reduce_phase"
	case DonePhase:
		return "done"
	default:
		return "unknown"
	}
}

// TaskRecord is the coordinator-owned bookkeeping for one task. Map
// task ids are 0..M-1, one per input file in argument order. Reduce
// task ids are 0..R-1.
type TaskRecord struct {
	Kind   TaskKind
	ID     int
	Status TaskStatus

	// InputFile is the single input for a MAP task; unused for REDUCE
	// (reduce tasks derive their inputs implicitly from M and ID).
	InputFile string

	WorkerID string

	StartedAt   time.Time
	CompletedAt time.Time
}

// idle resets the record to IDLE, clearing worker assignment — used
// both on explicit failure reports and on timeout reclamation.
func (t *TaskRecord) idle() {
	t.Status = Idle
	t.WorkerID = ""
	t.StartedAt = time.Time{}
}

// assign moves the record to IN_PROGRESS under the given worker.
func (t *TaskRecord) assign(workerID string, now time.Time) {
	t.Status = InProgress
	t.WorkerID = workerID
	t.StartedAt = now
}

// complete moves the record to COMPLETED, the terminal status.
func (t *TaskRecord) complete(now time.Time) {
	t.Status = Completed
	t.WorkerID = ""
	t.StartedAt = time.Time{}
	t.CompletedAt = now
}
