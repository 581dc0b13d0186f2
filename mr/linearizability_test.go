package mr

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anishathalye/porcupine"
)

// regState is the sequential specification's view of the registry:
// just enough to reproduce the coordinator's assignment policy
// (spec.md §4.1) and completion handling (§4.1/§3) deterministically,
// independent of the real implementation under test.
type regState struct {
	phase  Phase
	mapSt  []TaskStatus
	mapOwn []string
	redSt  []TaskStatus
	redOwn []string
}

func (s regState) clone() regState {
	return regState{
		phase:  s.phase,
		mapSt:  append([]TaskStatus(nil), s.mapSt...),
		mapOwn: append([]string(nil), s.mapOwn...),
		redSt:  append([]TaskStatus(nil), s.redSt...),
		redOwn: append([]string(nil), s.redOwn...),
	}
}

func allDone(st []TaskStatus) bool {
	for _, s := range st {
		if s != Completed {
			return false
		}
	}
	return true
}

// specRequest reproduces assignLocked's policy purely over regState.
func specRequest(s regState, workerID string) (regState, string, int) {
	next := s.clone()
	for {
		switch next.phase {
		case MapPhase:
			for i, st := range next.mapSt {
				if st == Idle {
					next.mapSt[i] = InProgress
					next.mapOwn[i] = workerID
					return next, replyAssignMap, i
				}
			}
			if allDone(next.mapSt) {
				next.phase = ReducePhase
				continue
			}
			return next, replyWait, -1
		case ReducePhase:
			for i, st := range next.redSt {
				if st == Idle {
					next.redSt[i] = InProgress
					next.redOwn[i] = workerID
					return next, replyAssignReduce, i
				}
			}
			if allDone(next.redSt) {
				next.phase = DonePhase
				continue
			}
			return next, replyWait, -1
		default:
			return next, replyExit, -1
		}
	}
}

// specComplete reproduces handleCompleteTask's success=true path
// purely over regState.
func specComplete(s regState, workerID string, kind TaskKind, id int) regState {
	next := s.clone()
	st, own := next.mapSt, next.mapOwn
	if kind == ReduceTask {
		st, own = next.redSt, next.redOwn
	}
	if id < 0 || id >= len(st) {
		return next
	}
	switch {
	case st[id] == Completed:
	case own[id] != workerID:
	default:
		st[id] = Completed
		own[id] = ""
	}
	return next
}

type linOp struct {
	Kind     string // "request" or "complete"
	WorkerID string
	TaskKind TaskKind
	TaskID   int
}

type linResult struct {
	Reply  string
	TaskID int
}

func linearizabilityModel(m, r int) porcupine.Model {
	init := regState{
		phase:  MapPhase,
		mapSt:  make([]TaskStatus, m),
		mapOwn: make([]string, m),
		redSt:  make([]TaskStatus, r),
		redOwn: make([]string, r),
	}
	return porcupine.Model{
		Partition: func(history []porcupine.Operation) [][]porcupine.Operation {
			return [][]porcupine.Operation{history}
		},
		Init: func() interface{} { return init },
		Step: func(state, input, output interface{}) (bool, interface{}) {
			st := state.(regState)
			in := input.(linOp)
			out := output.(linResult)

			if in.Kind == "request" {
				next, reply, taskID := specRequest(st, in.WorkerID)
				if reply != out.Reply {
					return false, st
				}
				if (reply == replyAssignMap || reply == replyAssignReduce) && taskID != out.TaskID {
					return false, st
				}
				return true, next
			}

			next := specComplete(st, in.WorkerID, in.TaskKind, in.TaskID)
			return true, next
		},
		Equal: func(a, b interface{}) bool {
			return reflect.DeepEqual(a, b)
		},
		DescribeOperation: func(input, output interface{}) string {
			in := input.(linOp)
			out := output.(linResult)
			return fmt.Sprintf("%s(worker=%s) -> %s", in.Kind, in.WorkerID, out.Reply)
		},
	}
}

// TestCoordinatorRegistryIsLinearizable hammers a live coordinator
// with concurrent request_task/complete_task calls from many
// goroutines and checks the recorded history against the sequential
// model above via porcupine — a direct check of spec.md §5's claim
// that "operations against the task registry are linearizable under
// the coordinator lock."
func TestCoordinatorRegistryIsLinearizable(t *testing.T) {
	const (
		m           = 4
		r           = 3
		numClients  = 6
		opsPerWorker = 20
	)

	files := make([]string, m)
	for i := range files {
		files[i] = fmt.Sprintf("f%d.txt", i)
	}
	c := newTestCoordinator(t, files, r)
	client := NewClient(c.Addr())

	var clock int64
	tick := func() int64 { return atomic.AddInt64(&clock, 1) }

	var mu sync.Mutex
	var history []porcupine.Operation

	record := func(op porcupine.Operation) {
		mu.Lock()
		history = append(history, op)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	for w := 0; w < numClients; w++ {
		wg.Add(1)
		workerID := fmt.Sprintf("worker-%d", w)
		go func(clientID int, workerID string) {
			defer wg.Done()
			for i := 0; i < opsPerWorker; i++ {
				var reply RequestTaskResult
				callTime := tick()
				if err := client.Call("request_task", RequestTaskParams{WorkerID: workerID}, &reply); err != nil {
					t.Errorf("request_task: %v", err)
					return
				}
				retTime := tick()
				record(porcupine.Operation{
					ClientId: clientID,
					Input:    linOp{Kind: "request", WorkerID: workerID},
					Call:     callTime,
					Output:   linResult{Reply: reply.Reply, TaskID: reply.TaskID},
					Return:   retTime,
				})

				if reply.Reply == replyExit {
					return
				}

				var kind TaskKind
				switch reply.Reply {
				case replyAssignMap:
					kind = MapTask
				case replyAssignReduce:
					kind = ReduceTask
				default:
					time.Sleep(time.Millisecond)
					continue
				}

				var ack CompleteTaskResult
				callTime = tick()
				kindStr := "map"
				if kind == ReduceTask {
					kindStr = "reduce"
				}
				if err := client.Call("complete_task", CompleteTaskParams{
					WorkerID: workerID, TaskKind: kindStr, TaskID: reply.TaskID, Success: true,
				}, &ack); err != nil {
					t.Errorf("complete_task: %v", err)
					return
				}
				retTime = tick()
				record(porcupine.Operation{
					ClientId: clientID,
					Input:    linOp{Kind: "complete", WorkerID: workerID, TaskKind: kind, TaskID: reply.TaskID},
					Call:     callTime,
					Output:   linResult{Reply: "ACK"},
					Return:   retTime,
				})
			}
		}(w, workerID)
	}
	wg.Wait()

	ok := porcupine.CheckOperations(linearizabilityModel(m, r), history)
	if !ok {
		t.Fatalf("coordinator task registry history is not linearizable")
	}
}
