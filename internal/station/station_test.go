package station

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bearing-monitor/station/internal/adapter"
	"github.com/bearing-monitor/station/internal/algorithm"
	"github.com/bearing-monitor/station/internal/bridge"
	"github.com/bearing-monitor/station/internal/engine"
	"github.com/bearing-monitor/station/internal/engine/enginetest"
	"github.com/bearing-monitor/station/internal/ingest"
	"github.com/bearing-monitor/station/internal/session"
)

// scriptAdapter is the Test adapter contract over a scripted catalog.
type scriptAdapter struct {
	factory algorithm.Factory
}

func (a scriptAdapter) Normalize(msg map[string]any) (algorithm.Data, error) {
	cfg, _ := msg["cfg"].(map[string]any)
	return algorithm.Data{Cfg: cfg, Values: map[string]any{"data": msg["data"]}}, nil
}

func (a scriptAdapter) Factory() algorithm.Factory { return a.factory }

type harness struct {
	t      *testing.T
	reg    *session.Registry
	eng    *engine.Engine
	st     *Station
	ui     *bridge.PresentationSide
	script *enginetest.Script
}

func newHarness(t *testing.T, backendDefault bool) *harness {
	t.Helper()
	script := enginetest.NewScript()
	adapters := adapter.NewRegistry(map[string]adapter.Adapter{
		"Test": scriptAdapter{factory: script.Factory("Alpha", "Beta")},
	})

	reg := session.NewRegistry()
	eng, err := engine.New(reg, engine.Config{Workers: 2, QueueSize: 8})
	require.NoError(t, err)
	compute, ui := bridge.New()
	st := New(reg, eng, ingest.NewHandler(reg, adapters, ingest.WithBackendDefault(backendDefault)), compute)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, eng.Start(ctx))
	loopDone := make(chan struct{})
	go func() {
		_ = st.Run(ctx)
		close(loopDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-loopDone
		_ = eng.Stop(time.Second)
	})
	return &harness{t: t, reg: reg, eng: eng, st: st, ui: ui, script: script}
}

func (h *harness) frame(id, raw string) error {
	return h.st.HandleFrame(id, []byte(raw))
}

func (h *harness) register(id string) {
	h.t.Helper()
	require.NoError(h.t, h.frame(id, `{"device_type":"Test","cfg":{"a":1},"data":0}`))
}

func (h *harness) data(id string, v float64) {
	h.t.Helper()
	raw := `{"cfg":{"a":1},"data":` + strconv.FormatFloat(v, 'g', -1, 64) + `}`
	require.NoError(h.t, h.frame(id, raw))
}

func (h *harness) command(c bridge.Command) {
	h.t.Helper()
	require.NoError(h.t, h.ui.Send(c))
}

func (h *harness) session(id string) *session.Session {
	h.t.Helper()
	s, err := h.reg.Get(id)
	require.NoError(h.t, err)
	return s
}

func (h *harness) started() enginetest.Run {
	h.t.Helper()
	select {
	case r := <-h.script.Started():
		return r
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a run")
		return enginetest.Run{}
	}
}

func (h *harness) noRun(wait time.Duration) {
	h.t.Helper()
	select {
	case r := <-h.script.Started():
		h.t.Fatalf("unexpected run %+v", r)
	case <-time.After(wait):
	}
}

// next returns the next update of type T, skipping others.
func next[T bridge.Update](h *harness) T {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		u, err := h.ui.Recv(ctx)
		require.NoError(h.t, err)
		if v, ok := u.(T); ok {
			return v
		}
	}
}

func hasLine(lines []string, substr string) bool {
	for _, l := range lines {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestScenarioRegisterAndReceive(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")

	s := h.session("S1")
	assert.Equal(t, "Alpha", s.AlgorithmName)
	assert.NotNil(t, s.Algorithm)
	assert.Equal(t, 5, s.Params.Value("gain"))
	assert.True(t, hasLine(s.Log, "[INFO] Client S1 connected."))

	added := next[bridge.SessionAdded](h)
	assert.Equal(t, "S1", added.ID)

	h.data("S1", 1)
	s = h.session("S1")
	assert.True(t, hasLine(s.Log, "Data received at"))
	// Not selected and not a backend session: the run is owed, not started.
	assert.True(t, s.NeedUpdate)
	h.noRun(30 * time.Millisecond)

	h.command(bridge.SelectSession{ID: "S1"})
	assert.Equal(t, 1.0, h.started().Data)
	require.Eventually(t, func() bool {
		return h.session("S1").Result.Summary == "Alpha data=1"
	}, 2*time.Second, 5*time.Millisecond)
	assert.False(t, h.session("S1").NeedUpdate)
}

func TestScenarioRapidUpdatesCoalesce(t *testing.T) {
	h := newHarness(t, true)
	h.script.Hold()
	h.register("S1")
	assert.Equal(t, 0.0, h.started().Data)

	h.data("S1", 1)
	h.data("S1", 2)
	assert.True(t, h.session("S1").NeedUpdate)

	h.script.Release()
	assert.Equal(t, 2.0, h.started().Data)
	h.script.Release()
	require.Eventually(t, func() bool {
		return h.session("S1").Result.Summary == "Alpha data=2"
	}, 2*time.Second, 5*time.Millisecond)
	h.noRun(50 * time.Millisecond)

	assert.Len(t, h.script.Runs(), 2)
	assert.False(t, h.session("S1").NeedUpdate)
}

func TestScenarioStopSuppressesUntilReleased(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.command(bridge.SetField{ID: "S1", Field: string(session.FieldStopCalculation), Value: true})
	require.Eventually(t, func() bool { return h.session("S1").StopCalculation }, time.Second, 5*time.Millisecond)

	h.data("S1", 1)
	h.command(bridge.SelectSession{ID: "S1"})
	h.command(bridge.SetField{ID: "S1", Field: string(session.FieldBackendCalculation), Value: true})
	h.noRun(50 * time.Millisecond)
	assert.True(t, h.session("S1").NeedUpdate)

	h.command(bridge.SetField{ID: "S1", Field: string(session.FieldStopCalculation), Value: false})
	assert.Equal(t, 1.0, h.started().Data)
}

func TestScenarioSelectionReleasesDemand(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.data("S1", 4)
	h.noRun(30 * time.Millisecond)

	h.command(bridge.SelectSession{ID: "S1"})
	assert.Equal(t, 4.0, h.started().Data)
}

func TestScenarioBackendToggleReleasesDemand(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.noRun(30 * time.Millisecond)

	h.command(bridge.SetField{ID: "S1", Field: string(session.FieldBackendCalculation), Value: true})
	assert.Equal(t, 0.0, h.started().Data)
}

func TestScenarioUnknownDeviceType(t *testing.T) {
	h := newHarness(t, false)
	err := h.frame("S1", `{"device_type":"Toaster","data":1}`)
	assert.True(t, errors.Is(err, adapter.ErrUnknownDeviceType))
	assert.Equal(t, 0, h.reg.Len())
}

func TestSelectPushesState(t *testing.T) {
	h := newHarness(t, true)
	h.register("S1")
	require.Eventually(t, func() bool { return h.session("S1").Result.Summary != "" }, 2*time.Second, 5*time.Millisecond)

	h.command(bridge.SelectSession{ID: "S1"})
	algs := next[bridge.AlgorithmsUpdated](h)
	assert.Equal(t, []string{"Alpha", "Beta"}, algs.Names)
	assert.Equal(t, "Alpha", algs.Current)

	params := next[bridge.ParamsUpdated](h)
	assert.Equal(t, []bridge.ParamValue{{Name: "gain", Type: "int", Text: "5"}}, params.Params)

	flags := next[bridge.FlagsUpdated](h)
	assert.True(t, flags.Backend)

	lines := next[bridge.LogUpdated](h)
	assert.True(t, hasLine(lines.Lines, "Alpha calculated."))

	res := next[bridge.ResultUpdated](h)
	assert.Equal(t, "first", res.Above)
	assert.Equal(t, "first", res.Below)
	s := h.session("S1")
	assert.Equal(t, "first", s.AboveArtifact)
	assert.Equal(t, "first", s.BelowArtifact)
}

func TestSetParamCommands(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.command(bridge.SelectSession{ID: "S1"})
	h.started()
	assert.Equal(t, "5", next[bridge.ParamsUpdated](h).Params[0].Text)

	h.command(bridge.SetParam{ID: "S1", Name: "gain", Text: "500"})
	require.Eventually(t, func() bool {
		return hasLine(h.session("S1").Log, "[ERROR]")
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 5, h.session("S1").Params.Value("gain"))

	h.command(bridge.SetParam{ID: "S1", Name: "gain", Text: "7"})
	run := h.started()
	assert.Equal(t, 7, run.Gain)
	params := next[bridge.ParamsUpdated](h)
	assert.Equal(t, "7", params.Params[0].Text)
}

func TestSwitchAlgorithmFromPresentation(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.command(bridge.SelectSession{ID: "S1"})
	h.started()

	h.command(bridge.SetSelectedField{Field: string(session.FieldAlgorithmName), Value: "Gamma"})
	require.Eventually(t, func() bool {
		return hasLine(h.session("S1").Log, `unknown algorithm: "Gamma"`)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "Alpha", h.session("S1").AlgorithmName)

	h.command(bridge.SetSelectedField{Field: string(session.FieldAlgorithmName), Value: "Beta"})
	run := h.started()
	assert.Equal(t, "Beta", run.Algorithm)
	assert.Equal(t, 4, run.Gain)
}

func TestGetField(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")

	h.command(bridge.GetField{ID: "S1", Field: "algorithmName"})
	v := next[bridge.FieldValue](h)
	assert.Equal(t, "Alpha", v.Value)

	h.command(bridge.GetField{ID: "S1", Field: "nope"})
	v = next[bridge.FieldValue](h)
	assert.Contains(t, v.Error, "unknown session field")
}

func TestRecomputeCommand(t *testing.T) {
	h := newHarness(t, true)
	h.register("S1")
	h.started()
	require.Eventually(t, func() bool { return !h.eng.Running("S1") }, time.Second, 5*time.Millisecond)

	h.command(bridge.SelectSession{ID: "S1"})
	h.command(bridge.RecomputeSelected{})
	assert.Equal(t, 0.0, h.started().Data)
}

func TestCloseRemovesSession(t *testing.T) {
	h := newHarness(t, false)
	h.register("S1")
	h.command(bridge.SelectSession{ID: "S1"})
	h.started()

	h.st.HandleClose("S1")
	removed := next[bridge.SessionRemoved](h)
	assert.Equal(t, "S1", removed.ID)
	assert.False(t, h.reg.Exists("S1"))
	assert.Equal(t, "", h.eng.Selected())
}
