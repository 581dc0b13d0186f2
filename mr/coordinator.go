package mr

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// RequestTaskParams is the request_task RPC's params.
type RequestTaskParams struct {
	WorkerID string `json:"worker_id"`
}

// RequestTaskResult is the request_task RPC's result. Reply is one of
// ASSIGN_MAP, ASSIGN_REDUCE, WAIT, EXIT.
type RequestTaskResult struct {
	Reply     string `json:"reply"`
	TaskID    int    `json:"task_id,omitempty"`
	InputFile string `json:"input_file,omitempty"`
	R         int    `json:"r,omitempty"`
	M         int    `json:"m,omitempty"`
}

// CompleteTaskParams is the complete_task RPC's params.
type CompleteTaskParams struct {
	WorkerID string `json:"worker_id"`
	TaskKind string `json:"task_kind"` // "map" or "reduce"
	TaskID   int    `json:"task_id"`
	Success  bool   `json:"success"`
}

// CompleteTaskResult acknowledges a completion report. The
// acknowledgement always indicates success; the reporter needs no
// further action regardless of whether the report was accepted.
type CompleteTaskResult struct {
	Acknowledged bool `json:"acknowledged"`
}

const (
	replyAssignMap    = "ASSIGN_MAP"
	replyAssignReduce = "ASSIGN_REDUCE"
	replyWait         = "WAIT"
	replyExit         = "EXIT"
)

// Coordinator owns the task registry and phase machine. All mutation
// of task state happens under mu; the timeout monitor goroutine takes
// the same lock (spec.md §5).
type Coordinator struct {
	mu sync.Mutex

	m, r        int
	mapTasks    []TaskRecord
	reduceTasks []TaskRecord
	phase       Phase

	seenWorkers map[string]struct{}

	cfg    Config
	server *Server

	stopMonitor chan struct{}
	wg          sync.WaitGroup
}

// MakeCoordinator creates the task registry for files/r, starts the
// RPC server and timeout monitor, and publishes the rendezvous file.
func MakeCoordinator(files []string, r int, cfg Config) (*Coordinator, error) {
	if r < 1 {
		return nil, fmt.Errorf("r must be >= 1, got %d", r)
	}
	if len(files) < 1 {
		return nil, fmt.Errorf("at least one input file is required")
	}

	c := &Coordinator{
		m:           len(files),
		r:           r,
		mapTasks:    make([]TaskRecord, len(files)),
		reduceTasks: make([]TaskRecord, r),
		phase:       MapPhase,
		seenWorkers: make(map[string]struct{}),
		cfg:         cfg,
		stopMonitor: make(chan struct{}),
	}
	for i, f := range files {
		c.mapTasks[i] = TaskRecord{Kind: MapTask, ID: i, Status: Idle, InputFile: f}
	}
	for i := 0; i < r; i++ {
		c.reduceTasks[i] = TaskRecord{Kind: ReduceTask, ID: i, Status: Idle}
	}

	server, err := NewServer()
	if err != nil {
		return nil, fmt.Errorf("start rpc server: %w", err)
	}
	c.server = server
	server.Register("request_task", c.handleRequestTask)
	server.Register("complete_task", c.handleCompleteTask)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		server.Serve()
	}()

	if err := publishRendezvous(server.Addr()); err != nil {
		server.Close()
		return nil, err
	}

	c.wg.Add(1)
	go c.monitorTimeouts()

	log.Info().Msgf("coordinator listening on %s (M=%d R=%d)", server.Addr(), c.m, c.r)
	return c, nil
}

func (c *Coordinator) handleRequestTask(params json.RawMessage) (interface{}, error) {
	var req RequestTaskParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("malformed request_task params: %w", err)
	}
	if req.WorkerID == "" {
		return nil, fmt.Errorf("request_task requires worker_id")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.seenWorkers[req.WorkerID]; !seen {
		c.seenWorkers[req.WorkerID] = struct{}{}
		log.Info().Msgf("new worker %s", req.WorkerID)
	}

	return c.assignLocked(req.WorkerID), nil
}

// assignLocked implements the assignment policy of spec.md §4.1. It
// must be called with mu held.
func (c *Coordinator) assignLocked(workerID string) RequestTaskResult {
	now := time.Now()

	for {
		switch c.phase {
		case MapPhase:
			if rec := firstIdle(c.mapTasks); rec != nil {
				rec.assign(workerID, now)
				log.Info().Msgf("assigned map task %d to %s", rec.ID, workerID)
				return RequestTaskResult{Reply: replyAssignMap, TaskID: rec.ID, InputFile: rec.InputFile, R: c.r}
			}
			if allCompleted(c.mapTasks) {
				c.phase = ReducePhase
				log.Info().Msg("map phase complete, entering reduce phase")
				continue
			}
			return RequestTaskResult{Reply: replyWait}

		case ReducePhase:
			if rec := firstIdle(c.reduceTasks); rec != nil {
				rec.assign(workerID, now)
				log.Info().Msgf("assigned reduce task %d to %s", rec.ID, workerID)
				return RequestTaskResult{Reply: replyAssignReduce, TaskID: rec.ID, M: c.m}
			}
			if allCompleted(c.reduceTasks) {
				c.phase = DonePhase
				log.Info().Msg("reduce phase complete, job done")
				continue
			}
			return RequestTaskResult{Reply: replyWait}

		case DonePhase:
			return RequestTaskResult{Reply: replyExit}

		default:
			return RequestTaskResult{Reply: replyWait}
		}
	}
}

func (c *Coordinator) handleCompleteTask(params json.RawMessage) (interface{}, error) {
	var req CompleteTaskParams
	if err := json.Unmarshal(params, &req); err != nil {
		return nil, fmt.Errorf("malformed complete_task params: %w", err)
	}

	var kind TaskKind
	switch req.TaskKind {
	case "map":
		kind = MapTask
	case "reduce":
		kind = ReduceTask
	default:
		return nil, fmt.Errorf("unknown task_kind: %q", req.TaskKind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	records := c.mapTasks
	if kind == ReduceTask {
		records = c.reduceTasks
	}
	if req.TaskID < 0 || req.TaskID >= len(records) {
		return nil, fmt.Errorf("no such %s task %d", req.TaskKind, req.TaskID)
	}
	rec := &records[req.TaskID]

	// Stale-completion and already-completed checks come first and
	// apply regardless of the reported success value: a timed-out
	// worker that is still alive must not be able to clobber whatever
	// the task's current holder (or its terminal COMPLETED state) has
	// already done. Only once we know this report is from the
	// currently-recorded holder of an IN_PROGRESS task do we act on
	// success/failure.
	switch {
	case rec.Status == Completed:
		log.Warn().Msgf("ignoring completion for already-completed %s task %d", kind, rec.ID)
	case rec.Status != InProgress || rec.WorkerID != req.WorkerID:
		log.Warn().Msgf("ignoring stale completion for %s task %d from %s", kind, rec.ID, req.WorkerID)
	case req.Success:
		rec.complete(time.Now())
		log.Info().Msgf("%s task %d completed by %s", kind, rec.ID, req.WorkerID)
		c.advancePhaseLocked()
	default:
		rec.idle()
		log.Warn().Msgf("%s task %d reported failed by %s, resetting to idle", kind, rec.ID, req.WorkerID)
	}

	return CompleteTaskResult{Acknowledged: true}, nil
}

// advancePhaseLocked bumps the phase forward if every task of the
// current phase is COMPLETED. Called with mu held.
func (c *Coordinator) advancePhaseLocked() {
	switch c.phase {
	case MapPhase:
		if allCompleted(c.mapTasks) {
			c.phase = ReducePhase
			log.Info().Msg("map phase complete, entering reduce phase")
		}
	case ReducePhase:
		if allCompleted(c.reduceTasks) {
			c.phase = DonePhase
			log.Info().Msg("reduce phase complete, job done")
		}
	}
}

// monitorTimeouts wakes every cfg.PollInterval and reclaims
// IN_PROGRESS tasks of the current phase that have run past
// cfg.TaskTimeout. Only the active phase is scanned.
func (c *Coordinator) monitorTimeouts() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopMonitor:
			return
		case <-ticker.C:
			c.reclaimStale()
		}
	}
}

func (c *Coordinator) reclaimStale() {
	c.mu.Lock()
	defer c.mu.Unlock()

	var records []TaskRecord
	switch c.phase {
	case MapPhase:
		records = c.mapTasks
	case ReducePhase:
		records = c.reduceTasks
	default:
		return
	}

	now := time.Now()
	for i := range records {
		rec := &records[i]
		if rec.Status == InProgress && now.Sub(rec.StartedAt) >= c.cfg.TaskTimeout {
			log.Info().Msgf("%s task %d timed out (worker %s), reclaiming", rec.Kind, rec.ID, rec.WorkerID)
			rec.idle()
		}
	}
}

// Done reports whether the job has reached DONE.
func (c *Coordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase == DonePhase
}

// WorkerCount returns the number of distinct worker ids ever seen.
func (c *Coordinator) WorkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seenWorkers)
}

// Addr returns the coordinator's listen address.
func (c *Coordinator) Addr() string {
	return c.server.Addr()
}

// Shutdown stops the RPC server and timeout monitor, waits for both
// to finish, and removes the rendezvous file.
func (c *Coordinator) Shutdown() {
	close(c.stopMonitor)
	c.server.Close()
	c.wg.Wait()
	removeRendezvous()
	log.Info().Msg("coordinator shut down")
}

func firstIdle(records []TaskRecord) *TaskRecord {
	for i := range records {
		if records[i].Status == Idle {
			return &records[i]
		}
	}
	return nil
}

func allCompleted(records []TaskRecord) bool {
	for i := range records {
		if records[i].Status != Completed {
			return false
		}
	}
	return true
}
