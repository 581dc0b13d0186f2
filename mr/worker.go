package mr

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// connectBackoffMin/Max bound the worker's retry delay while dialing
// a coordinator that refuses connections (spec.md §7: "Transient
// network error ... Worker retries with bounded backoff (100ms -> 2s)").
const (
	connectBackoffMin = 100 * time.Millisecond
	connectBackoffMax = 2 * time.Second
)

// Worker pulls tasks from a coordinator and executes them against an
// App until told to exit.
type Worker struct {
	id     string
	client *Client
	app    App
	cfg    Config
}

// NewWorker generates a fresh opaque worker id and binds app to a
// coordinator reachable at addr.
func NewWorker(addr string, app App, cfg Config) *Worker {
	return &Worker{
		id:     uuid.New().String(),
		client: NewClient(addr),
		app:    app,
		cfg:    cfg,
	}
}

// Run executes the main worker loop: request a task, dispatch on its
// kind, report completion, repeat until EXIT.
func (w *Worker) Run() error {
	log.Info().Msgf("worker %s started", w.id)

	for {
		reply, err := w.requestTask()
		if err != nil {
			return fmt.Errorf("request_task: %w", err)
		}

		switch reply.Reply {
		case replyAssignMap:
			success := w.runMap(reply)
			w.reportCompletion("map", reply.TaskID, success)

		case replyAssignReduce:
			success := w.runReduce(reply)
			w.reportCompletion("reduce", reply.TaskID, success)

		case replyWait:
			time.Sleep(w.cfg.PollInterval)

		case replyExit:
			log.Info().Msgf("worker %s received exit signal", w.id)
			return nil

		default:
			return fmt.Errorf("unrecognized reply from coordinator: %q", reply.Reply)
		}
	}
}

func (w *Worker) requestTask() (RequestTaskResult, error) {
	var result RequestTaskResult
	err := w.client.Call("request_task", RequestTaskParams{WorkerID: w.id}, &result)
	return result, err
}

func (w *Worker) reportCompletion(kind string, taskID int, success bool) {
	var result CompleteTaskResult
	err := w.client.Call("complete_task", CompleteTaskParams{
		WorkerID: w.id,
		TaskKind: kind,
		TaskID:   taskID,
		Success:  success,
	}, &result)
	if err != nil {
		log.Warn().Err(err).Msgf("failed to report completion of %s task %d", kind, taskID)
	}
}

// runMap executes one map task: read the input file, apply the App's
// Map, partition by Partition(key, R), and publish R intermediate
// files atomically (spec.md §4.2).
func (w *Worker) runMap(reply RequestTaskResult) bool {
	content, err := os.ReadFile(reply.InputFile)
	if err != nil {
		log.Warn().Err(err).Msgf("map task %d: cannot read %s", reply.TaskID, reply.InputFile)
		return false
	}

	kvs := w.app.Map(reply.InputFile, string(content))

	buckets := make([][]KeyValue, reply.R)
	for _, kv := range kvs {
		p := Partition(kv.Key, reply.R)
		buckets[p] = append(buckets[p], kv)
	}

	for p := 0; p < reply.R; p++ {
		if err := writeIntermediate(reply.TaskID, p, buckets[p]); err != nil {
			log.Warn().Err(err).Msgf("map task %d: failed to publish partition %d", reply.TaskID, p)
			return false
		}
	}

	return true
}

// runReduce executes one reduce task: read all M intermediate files
// for partition ID, group by key, apply the App's Reduce, and publish
// mr-out-{ID} atomically. A missing intermediate file is a hard
// failure (spec.md §5, §7): it indicates map-phase completion was
// claimed without all R files actually existing.
func (w *Worker) runReduce(reply RequestTaskResult) bool {
	var all []KeyValue
	for m := 0; m < reply.M; m++ {
		kvs, err := readIntermediate(m, reply.TaskID)
		if err != nil {
			log.Warn().Err(err).Msgf("reduce task %d: missing intermediate input from map %d", reply.TaskID, m)
			return false
		}
		all = append(all, kvs...)
	}

	groups := groupByKey(all)
	out := make([]KeyValue, 0, len(groups))
	for _, g := range groups {
		out = append(out, KeyValue{Key: g.Key, Value: w.app.Reduce(g.Key, g.Values)})
	}

	if err := writeOutput(reply.TaskID, out); err != nil {
		log.Warn().Err(err).Msgf("reduce task %d: failed to publish output", reply.TaskID)
		return false
	}
	return true
}

// ConnectWithBackoff probes the coordinator at addr with a bare TCP
// dial, retrying with exponential backoff if the coordinator isn't
// accepting connections yet (spec.md §7: transient network errors get
// bounded retry, not an RPC — a real request_task probe would risk
// consuming a task assignment that's then silently dropped).
func ConnectWithBackoff(addr string, deadline time.Duration) error {
	delay := connectBackoffMin
	start := time.Now()
	for {
		conn, err := net.DialTimeout("tcp", addr, connectBackoffMin)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Since(start) > deadline {
			return fmt.Errorf("could not reach coordinator at %s: %w", addr, err)
		}
		time.Sleep(delay)
		delay *= 2
		if delay > connectBackoffMax {
			delay = connectBackoffMax
		}
	}
}
