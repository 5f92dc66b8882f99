package engine

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/engine/enginetest"
	"github.com/bearing-monitor/station/internal/metric"
	"github.com/bearing-monitor/station/internal/session"
)

type fixture struct {
	t      *testing.T
	reg    *session.Registry
	eng    *Engine
	script *enginetest.Script
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	reg := session.NewRegistry()
	eng, err := New(reg, cfg, WithMetrics(metric.NewRegistry()))
	require.NoError(t, err)
	reg.SetDefaultObservers(eng.Observers()...)
	require.NoError(t, eng.Start(context.Background()))
	t.Cleanup(func() { _ = eng.Stop(2 * time.Second) })
	return &fixture{t: t, reg: reg, eng: eng, script: enginetest.NewScript()}
}

func (f *fixture) add(id string, backend bool) {
	f.t.Helper()
	cat := f.script.Factory("Alpha", "Beta")
	alg, err := cat.Algorithm("Alpha")
	require.NoError(f.t, err)
	_, err = f.reg.Add(session.Init{
		ID:                 id,
		Name:               id,
		Factory:            cat,
		AlgorithmName:      "Alpha",
		Algorithm:          alg,
		Params:             alg.DefaultParams(),
		BackendCalculation: backend,
	})
	require.NoError(f.t, err)
}

func (f *fixture) data(id string, v any) {
	f.t.Helper()
	require.NoError(f.t, f.reg.SetFields(id, session.Assign(session.FieldData, algorithm.Data{Values: map[string]any{"data": v}})))
}

func (f *fixture) set(id string, field session.Field, v any) {
	f.t.Helper()
	require.NoError(f.t, f.reg.SetFields(id, session.Assign(field, v)))
}

// complete waits for one completion and hands it back to the engine, the
// way the station loop does.
func (f *fixture) complete() Completion {
	f.t.Helper()
	select {
	case c := <-f.eng.Completions():
		f.eng.Complete(c)
		return c
	case <-time.After(2 * time.Second):
		f.t.Fatal("timed out waiting for completion")
		return Completion{}
	}
}

func (f *fixture) started() enginetest.Run {
	f.t.Helper()
	select {
	case r := <-f.script.Started():
		return r
	case <-time.After(2 * time.Second):
		f.t.Fatal("timed out waiting for run to start")
		return enginetest.Run{}
	}
}

func (f *fixture) noRun(wait time.Duration) {
	f.t.Helper()
	select {
	case r := <-f.script.Started():
		f.t.Fatalf("unexpected run %+v", r)
	case <-time.After(wait):
	}
}

func (f *fixture) session(id string) *session.Session {
	f.t.Helper()
	s, err := f.reg.Get(id)
	require.NoError(f.t, err)
	return s
}

func (f *fixture) countNotifications(id string, field session.Field) *atomic.Int64 {
	var n atomic.Int64
	require.NoError(f.t, f.reg.Attach(id, session.Observer{
		Name: "count." + string(field),
		When: session.OnFields(field),
		Do:   func(*session.Session, session.Field) { n.Add(1) },
	}))
	return &n
}

func TestRunOnNewData(t *testing.T) {
	f := newFixture(t, Config{Workers: 2, QueueSize: 4})
	f.add("a", false)
	f.eng.Select("a")

	f.data("a", 1.0)
	c := f.complete()

	require.NoError(t, c.Err)
	s := f.session("a")
	assert.Equal(t, "Alpha data=1", s.Result.Summary)
	assert.False(t, s.NeedUpdate)
	assert.Equal(t, "[INFO] Alpha calculated.", s.Log[len(s.Log)-1])
	assert.False(t, f.eng.Running("a"))
	assert.Equal(t, int64(1), f.eng.Stats().Succeeded)
}

func TestTriggersDuringRunCoalesce(t *testing.T) {
	f := newFixture(t, Config{Workers: 2, QueueSize: 4})
	f.add("a", false)
	f.eng.Select("a")
	f.script.Hold()
	flips := f.countNotifications("a", session.FieldNeedUpdate)

	f.data("a", 1.0)
	assert.Equal(t, 1.0, f.started().Data)

	f.data("a", 2.0)
	f.data("a", 3.0)
	assert.True(t, f.session("a").NeedUpdate)
	assert.Equal(t, int64(1), flips.Load(), "pending demand must flip needUpdate once")
	assert.Equal(t, int64(2), f.eng.Stats().Coalesced)

	f.script.Release()
	f.complete()

	// The catch-up run sees the latest data.
	assert.Equal(t, 3.0, f.started().Data)
	assert.False(t, f.session("a").NeedUpdate)

	f.script.Release()
	f.complete()
	f.noRun(50 * time.Millisecond)

	assert.Len(t, f.script.Runs(), 2)
	assert.Equal(t, "Alpha data=3", f.session("a").Result.Summary)
}

func TestUnselectedSessionIsSuppressed(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", false)
	flips := f.countNotifications("a", session.FieldNeedUpdate)

	f.data("a", 1.0)
	f.data("a", 2.0)
	f.noRun(30 * time.Millisecond)

	assert.True(t, f.session("a").NeedUpdate)
	assert.Equal(t, int64(1), flips.Load())
	assert.Equal(t, int64(2), f.eng.Stats().Suppressed)

	f.eng.Select("a")
	require.NoError(t, f.eng.Recompute("a"))
	assert.Equal(t, 2.0, f.started().Data)
	f.complete()
	assert.False(t, f.session("a").NeedUpdate)
}

func TestBackendSessionRunsUnselected(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", true)

	f.data("a", 5.0)
	c := f.complete()
	require.NoError(t, c.Err)
	assert.Equal(t, "Alpha data=5", f.session("a").Result.Summary)
}

func TestStopToggleCatchesUp(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", false)
	f.eng.Select("a")

	f.set("a", session.FieldStopCalculation, true)
	f.data("a", 1.0)
	f.noRun(30 * time.Millisecond)
	assert.True(t, f.session("a").NeedUpdate)

	f.set("a", session.FieldStopCalculation, false)
	assert.Equal(t, 1.0, f.started().Data)
	f.complete()
	assert.False(t, f.session("a").NeedUpdate)
}

func TestRecomputeWithoutDemandIsNoop(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", false)
	f.eng.Select("a")

	require.NoError(t, f.eng.Recompute("a"))
	f.noRun(30 * time.Millisecond)
	assert.ErrorIs(t, f.eng.Recompute("missing"), session.ErrNotFound)
}

func TestRemoveDuringRun(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", true)
	f.script.Hold()

	f.data("a", 1.0)
	f.started()
	require.NoError(t, f.reg.Remove("a"))

	f.script.Release()
	c := f.complete()
	require.NoError(t, c.Err)
	assert.False(t, f.reg.Exists("a"))
	assert.False(t, f.eng.Running("a"))
}

func TestAlgorithmSwap(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", false)
	f.eng.Select("a")
	f.data("a", 1.0)
	first := f.started()
	assert.Equal(t, enginetest.Run{Algorithm: "Alpha", Data: 1.0, Gain: 5}, first)
	f.complete()

	f.set("a", session.FieldAlgorithmName, "Beta")
	run := f.started()
	assert.Equal(t, "Beta", run.Algorithm)
	assert.Equal(t, 4, run.Gain)
	f.complete()
	f.noRun(30 * time.Millisecond)

	s := f.session("a")
	assert.False(t, s.AlgorithmChanging)
	assert.Equal(t, 4, s.Params.Value("gain"))
	assert.Equal(t, "Beta data=1", s.Result.Summary)
	assert.Equal(t, int64(2), f.eng.Stats().Started)
}

func TestAlgorithmSwapUnknownKeepsBinding(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 4})
	f.add("a", false)

	f.set("a", session.FieldAlgorithmName, "Gamma")
	s := f.session("a")
	assert.Equal(t, 5, s.Params.Value("gain"))
	assert.True(t, strings.HasPrefix(s.Log[len(s.Log)-1], "[ERROR] Cannot switch to Gamma"))
}

func TestFailuresAreLogged(t *testing.T) {
	for _, v := range []string{"fail", "panic"} {
		t.Run(v, func(t *testing.T) {
			f := newFixture(t, Config{Workers: 1, QueueSize: 4})
			f.add("a", true)

			f.data("a", v)
			c := f.complete()
			require.Error(t, c.Err)

			s := f.session("a")
			assert.Contains(t, s.Log[len(s.Log)-1], "[ERROR] Alpha failed:")
			assert.Equal(t, int64(1), f.eng.Stats().Failed)

			// The pool survives and keeps running.
			f.data("a", 2.0)
			require.NoError(t, f.complete().Err)
		})
	}
}

func TestQueueFullDefersRun(t *testing.T) {
	f := newFixture(t, Config{Workers: 1, QueueSize: 1})
	for _, id := range []string{"a", "b", "c"} {
		f.add(id, true)
	}
	f.script.Hold()

	f.data("a", 1.0)
	f.started()
	f.data("b", 2.0)
	f.data("c", 3.0)

	c := f.session("c")
	assert.True(t, c.NeedUpdate)
	require.GreaterOrEqual(t, len(c.Log), 2)
	assert.Contains(t, c.Log[len(c.Log)-2], "[INFO] Data received at")
	assert.Contains(t, c.Log[len(c.Log)-1], "[WARNING] Alpha deferred")
	assert.Equal(t, int64(1), f.eng.Stats().Deferred)

	for i := 0; i < 3; i++ {
		f.script.Release()
	}
	done := map[string]bool{}
	for i := 0; i < 3; i++ {
		done[f.complete().SessionID] = true
	}
	assert.Equal(t, map[string]bool{"a": true, "b": true, "c": true}, done)
	assert.Equal(t, "Alpha data=3", f.session("c").Result.Summary)
}
