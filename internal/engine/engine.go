// Package engine decides when a session's algorithm runs and executes the
// runs on a worker pool.
//
// A trigger (new data, new params or a new algorithm) either starts a run,
// or records pending demand in the session's needUpdate flag. Pending demand
// is picked up again by Recompute: after a run completes, after the
// selection changes and after the stop/backend flags toggle. Any number of
// triggers during one run therefore cost at most one extra run, which always
// sees the latest inputs.
//
// Trigger, Complete, Recompute and Select are meant to be called from a
// single goroutine (the station loop); only Solve runs on pool workers.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/metric"
	"github.com/bearing-monitor/station/internal/param"
	"github.com/bearing-monitor/station/internal/session"
	"github.com/bearing-monitor/station/internal/worker"
)

// Completion is the outcome of one run, delivered on Completions().
type Completion struct {
	SessionID string
	Algorithm string
	Result    algorithm.Result
	Err       error
	Elapsed   time.Duration
}

type Config struct {
	Workers          int
	QueueSize        int
	CompletionBuffer int
}

type job struct {
	id     string
	name   string
	alg    algorithm.Algorithm
	data   algorithm.Data
	params *param.Set
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithMetrics(reg *metric.Registry) Option {
	return func(e *Engine) { e.metrics = reg }
}

type Engine struct {
	reg     *session.Registry
	pool    *worker.Pool[job]
	done    chan Completion
	log     *slog.Logger
	metrics *metric.Registry
	stats   *stats

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	mu       sync.Mutex
	running  map[string]bool
	backlog  []string
	selected string
}

// New builds an engine over reg. Call Start before the first trigger.
func New(reg *session.Registry, cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		reg:     reg,
		log:     slog.Default(),
		locks:   make(map[string]*sync.Mutex),
		running: make(map[string]bool),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With("component", "engine")

	buf := cfg.CompletionBuffer
	if buf <= 0 {
		buf = 64
	}
	e.done = make(chan Completion, buf)

	var poolOpts []worker.Option[job]
	if e.metrics != nil {
		poolOpts = append(poolOpts, worker.WithMetrics[job](e.metrics, "station_engine_pool"))
	}
	pool, err := worker.NewPool(cfg.Workers, cfg.QueueSize, e.process, poolOpts...)
	if err != nil {
		return nil, fmt.Errorf("engine pool: %w", err)
	}
	e.pool = pool

	st, err := newStats(e.metrics)
	if err != nil {
		return nil, err
	}
	e.stats = st
	return e, nil
}

func (e *Engine) Start(ctx context.Context) error {
	return e.pool.Start(ctx)
}

// Stop waits up to timeout for queued and running solves to finish.
func (e *Engine) Stop(timeout time.Duration) error {
	return e.pool.Stop(timeout)
}

// Completions delivers finished runs. The consumer must pass each one to
// Complete.
func (e *Engine) Completions() <-chan Completion {
	return e.done
}

// Select marks id as the session shown by the presentation side. An empty
// id clears the selection.
func (e *Engine) Select(id string) {
	e.mu.Lock()
	e.selected = id
	e.mu.Unlock()
}

func (e *Engine) Selected() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.selected
}

// Running reports whether a run for id is queued or in flight.
func (e *Engine) Running(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running[id]
}

// Trigger evaluates one input change of the session in snap.
func (e *Engine) Trigger(snap *session.Session) {
	if snap.AlgorithmChanging {
		return
	}
	if snap.StopCalculation || (snap.ID != e.Selected() && !snap.BackendCalculation) {
		e.stats.suppressed()
		e.demand(snap)
		return
	}
	if e.Running(snap.ID) {
		e.stats.coalesced()
		e.demand(snap)
		return
	}
	if snap.Algorithm == nil {
		_ = e.reg.Log(snap.ID, session.Error, "No algorithm bound.")
		return
	}

	if snap.NeedUpdate {
		if err := e.reg.SetFields(snap.ID, session.Assign(session.FieldNeedUpdate, false)); err != nil {
			return
		}
	}

	e.mu.Lock()
	e.running[snap.ID] = true
	e.mu.Unlock()

	err := e.pool.Submit(job{
		id:     snap.ID,
		name:   snap.AlgorithmName,
		alg:    snap.Algorithm,
		data:   snap.Data,
		params: snap.Params,
	})
	if err != nil {
		e.mu.Lock()
		delete(e.running, snap.ID)
		if !slices.Contains(e.backlog, snap.ID) {
			e.backlog = append(e.backlog, snap.ID)
		}
		e.mu.Unlock()

		e.stats.deferred()
		e.log.Warn("run deferred", "session_id", snap.ID, "error", err)
		_ = e.reg.SetFields(snap.ID, session.Assign(session.FieldNeedUpdate, true))
		_ = e.reg.Log(snap.ID, session.Warning, fmt.Sprintf("%s deferred: %v", snap.AlgorithmName, err))
		return
	}
	e.stats.started()
}

// demand records that a run is owed. Only the first deferral flips the
// flag, so pending demand notifies once.
func (e *Engine) demand(snap *session.Session) {
	if snap.NeedUpdate {
		return
	}
	if err := e.reg.SetFields(snap.ID, session.Assign(session.FieldNeedUpdate, true)); err != nil {
		e.log.Debug("demand not recorded", "session_id", snap.ID, "error", err)
	}
}

// Recompute re-evaluates a session that has pending demand.
func (e *Engine) Recompute(id string) error {
	snap, err := e.reg.Get(id)
	if err != nil {
		return err
	}
	if !snap.NeedUpdate {
		return nil
	}
	e.Trigger(snap)
	return nil
}

// Complete records a finished run and issues the catch-up run when demand
// arrived meanwhile, then retries sessions whose runs were rejected by a
// full queue. A session removed during the run is skipped silently.
func (e *Engine) Complete(c Completion) {
	defer e.retryBacklog()

	e.mu.Lock()
	delete(e.running, c.SessionID)
	e.mu.Unlock()

	if c.Err != nil {
		e.stats.failed()
		e.log.Warn("run failed", "session_id", c.SessionID, "algorithm", c.Algorithm, "error", c.Err)
		if err := e.reg.Log(c.SessionID, session.Error, fmt.Sprintf("%s failed: %v", c.Algorithm, c.Err)); err != nil {
			return
		}
	} else {
		e.stats.succeeded(c.Elapsed)
		err := e.reg.SetFields(c.SessionID, session.Assign(session.FieldResult, c.Result))
		if errors.Is(err, session.ErrNotFound) {
			e.log.Debug("result for removed session dropped", "session_id", c.SessionID)
			return
		}
		if err != nil {
			e.log.Error("store result", "session_id", c.SessionID, "error", err)
			return
		}
		_ = e.reg.Log(c.SessionID, session.Info, c.Algorithm+" calculated.")
	}

	if err := e.Recompute(c.SessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
		e.log.Error("catch-up", "session_id", c.SessionID, "error", err)
	}
}

func (e *Engine) retryBacklog() {
	e.mu.Lock()
	pending := e.backlog
	e.backlog = nil
	e.mu.Unlock()

	for _, id := range pending {
		if err := e.Recompute(id); err != nil && !errors.Is(err, session.ErrNotFound) {
			e.log.Error("backlog retry", "session_id", id, "error", err)
		}
	}
}

// Stats returns counters since start.
func (e *Engine) Stats() Stats {
	s := e.stats.snapshot()
	s.Pool = e.pool.Stats()
	return s
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Engine) process(ctx context.Context, j job) error {
	l := e.lockFor(j.id)
	l.Lock()
	start := time.Now()
	res, err := solve(j)
	elapsed := time.Since(start)
	l.Unlock()

	c := Completion{SessionID: j.id, Algorithm: j.name, Result: res, Err: err, Elapsed: elapsed}
	select {
	case e.done <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

func solve(j job) (res algorithm.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.alg.Solve(j.data, j.params)
}
