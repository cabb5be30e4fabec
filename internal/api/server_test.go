package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"warpmine/adapters/history/memory"
	"warpmine/adapters/knowledge"
	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/domain/history"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal/assistant"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/optimize"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type testEnv struct {
	server  *Server
	history *memory.Store
}

func newTestEnv(t *testing.T, mutate func(*Dependencies)) *testEnv {
	t.Helper()
	logger := zaptest.NewLogger(t)

	sim, err := extraction.NewSimulator(extraction.DefaultRegistry(), "", logger)
	require.NoError(t, err)
	exp := exploration.NewSimulator(logger)
	opt, err := optimize.NewEngine(sim, optimization.Config{PopulationSize: 12, MaxDuration: 10 * time.Second}, "", logger)
	require.NoError(t, err)
	kb, err := knowledge.NewLocal()
	require.NoError(t, err)

	store := memory.New()
	deps := Dependencies{
		Extraction:   sim,
		Exploration:  exp,
		Optimization: opt,
		Assistant: assistant.New(assistant.Options{
			Extraction:   sim,
			Exploration:  exp,
			Optimization: opt,
			Knowledge:    kb,
			Logger:       logger,
		}),
		History: store,
		Version: "test",
		Logger:  logger,
	}
	if mutate != nil {
		mutate(&deps)
	}
	s := NewServer(deps, gin.TestMode)
	t.Cleanup(s.Close)
	return &testEnv{server: s, history: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.Exploration = nil })

	w := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	got := decode[healthResponse](t, w)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, map[string]bool{"extraction": true, "exploration": false, "optimization": true}, got.Engines)
	assert.Contains(t, got.Models, extraction.RandomForest)
	assert.Len(t, got.Algorithms, 4)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestSimulateExtraction_FlatBodyIsReproducible(t *testing.T) {
	env := newTestEnv(t, nil)
	body := `{"ore_grade": 2.5, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2, "seed": 11}`

	first := env.do(t, http.MethodPost, "/simulate/extraction", body)
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())
	res := decode[process.ExtractionResult](t, first)
	assert.Greater(t, res.RecoveryRate, 0.0)
	assert.Greater(t, res.Purity, 0.0)
	assert.Greater(t, res.ProcessingCost, 0.0)
	assert.Equal(t, int64(11), res.Seed)
	assert.Equal(t, process.CopperOxide, res.Parameters.MineralType)

	second := env.do(t, http.MethodPost, "/simulate/extraction", body)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
}

func TestSimulateExtraction_ConfiguredSeedApplies(t *testing.T) {
	seed := int64(99)
	env := newTestEnv(t, func(d *Dependencies) { d.Seed = &seed })

	w := env.do(t, http.MethodPost, "/simulate/extraction",
		`{"ore_grade": 2.5, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(99), decode[process.ExtractionResult](t, w).Seed)
}

func TestSimulateExtraction_Errors(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
		field  string
	}{
		{"malformed", `{"ore_grade": `, http.StatusBadRequest, "VALIDATION_ERROR", "body"},
		{"out of range", `{"ore_grade": 120, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2}`,
			http.StatusBadRequest, "VALIDATION_ERROR", "ore_grade"},
		{"unknown model", `{"ore_grade": 2.5, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2, "model_name": "oracle"}`,
			http.StatusUnprocessableEntity, "INVALID_SPEC", "model_name"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/simulate/extraction", tc.body)
			require.Equal(t, tc.status, w.Code, w.Body.String())
			got := decode[errorBody](t, w)
			assert.Equal(t, tc.code, got.Error.Code)
			assert.Equal(t, tc.field, got.Error.Field)
		})
	}
}

func TestCompare(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPost, "/simulate/extraction/compare", `{"scenarios": [
		{"ore_grade": 2.5, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2, "seed": 1},
		{"ore_grade": 5.0, "leaching_time": 24, "acid_concentration": 2.0, "temperature": 75, "voltage": 2.4, "seed": 1}
	]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[extraction.Comparison](t, w)
	require.Len(t, got.Scenarios, 2)
	assert.Equal(t, "Scenario_1", got.Scenarios[0].ID)
	assert.NotEmpty(t, got.BestForRecovery)

	empty := env.do(t, http.MethodPost, "/simulate/extraction/compare", `{"scenarios": []}`)
	assert.Equal(t, http.StatusBadRequest, empty.Code)
}

func TestSimulateExploration_NoBodyUsesDemoRegions(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/simulate/exploration", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[geology.Analysis](t, w)
	require.Equal(t, []core.RegionID{"Region_A", "Region_B", "Region_C", "Region_D"}, sortedIDs(got.Ranking))
	require.Len(t, got.Regions, 4)
	for i := 1; i < len(got.Ranking); i++ {
		prev, ok := got.Regions.Get(got.Ranking[i-1])
		require.True(t, ok)
		cur, ok := got.Regions.Get(got.Ranking[i])
		require.True(t, ok)
		assert.GreaterOrEqual(t, prev.Likelihood, cur.Likelihood)
		assert.Equal(t, i+1, cur.Rank)
	}
}

func TestSimulateExploration_ConfiguredSeedKeepsDemoRegions(t *testing.T) {
	seed := int64(99)
	configured := newTestEnv(t, func(d *Dependencies) { d.Seed = &seed })
	plain := newTestEnv(t, nil)

	want := decode[geology.Analysis](t, plain.do(t, http.MethodPost, "/simulate/exploration", ""))
	got := decode[geology.Analysis](t, configured.do(t, http.MethodPost, "/simulate/exploration", ""))
	assert.Equal(t, exploration.DemoSeed, got.Seed)
	assert.Equal(t, want.Ranking, got.Ranking)
	assert.Equal(t, want.Regions, got.Regions)

	explicit := decode[geology.Analysis](t, configured.do(t, http.MethodPost, "/simulate/exploration", `{"seed": 5}`))
	assert.Equal(t, int64(5), explicit.Seed)
}

func TestSimulateExploration_BodyShapes(t *testing.T) {
	env := newTestEnv(t, nil)
	regions := `[
		{"region_id": "East", "features": {"soil_anomaly_index": 0.9, "structural_control_score": 0.8, "alteration_index": 0.9, "geophysical_signature": 0.7}},
		{"region_id": "West", "features": {"soil_anomaly_index": 0.1, "structural_control_score": 0.2, "alteration_index": 0.1, "geophysical_signature": 0.2}}
	]`

	array := env.do(t, http.MethodPost, "/simulate/exploration", regions)
	require.Equal(t, http.StatusOK, array.Code, array.Body.String())
	assert.Equal(t, []core.RegionID{"East", "West"}, decode[geology.Analysis](t, array).Ranking)

	object := env.do(t, http.MethodPost, "/simulate/exploration", `{"target_mineral": "cobalt", "regions": `+regions+`}`)
	require.Equal(t, http.StatusOK, object.Code, object.Body.String())
	assert.Equal(t, geology.Mineral("cobalt"), decode[geology.Analysis](t, object).TargetMineral)

	dup := env.do(t, http.MethodPost, "/simulate/exploration", `[
		{"region_id": "A", "features": {"soil_anomaly_index": 0.5, "structural_control_score": 0.5, "alteration_index": 0.5, "geophysical_signature": 0.5}},
		{"region_id": "A", "features": {"soil_anomaly_index": 0.5, "structural_control_score": 0.5, "alteration_index": 0.5, "geophysical_signature": 0.5}}
	]`)
	assert.Equal(t, http.StatusBadRequest, dup.Code)
}

func TestOptimize_ConvergenceHistory(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/optimize", `{
		"objective": {"metric": "purity", "direction": "maximize"},
		"algorithm": "genetic",
		"config": {"max_iterations": 50, "seed": 3}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[optimization.Result](t, w)
	assert.Equal(t, optimization.Genetic, got.Algorithm)
	require.NotEmpty(t, got.History)
	assert.LessOrEqual(t, len(got.History), 50)
	assert.GreaterOrEqual(t, got.History[len(got.History)-1].BestValue, got.History[0].BestValue)
	for name, b := range optimization.DefaultBounds() {
		v, ok := got.BestParameters.Value(name)
		require.True(t, ok)
		assert.True(t, v >= b.Lower && v <= b.Upper, "%s=%v outside [%v, %v]", name, v, b.Lower, b.Upper)
	}
}

func TestOptimize_InvalidSpec(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := map[string]string{
		"degenerate bounds": `{"objective": {"metric": "purity", "bounds": {"temperature": {"lower": 80, "upper": 80}}}}`,
		"unknown algorithm": `{"objective": {"metric": "purity"}, "algorithm": "hill_climb"}`,
		"unknown metric":    `{"objective": {"metric": "happiness"}}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/optimize", body)
			require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
			assert.Equal(t, "INVALID_SPEC", decode[errorBody](t, w).Error.Code)
		})
	}
}

func TestOptimizeWeighted(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/optimize/weighted", `{
		"objective": {"metrics": ["recovery", "cost"], "weights": [3, 1]},
		"config": {"max_iterations": 8, "population_size": 8, "seed": 6}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[optimization.WeightedResult](t, w)
	assert.Equal(t, optimization.Genetic, got.Algorithm)
	require.Len(t, got.Terms, 2)
	assert.Equal(t, 0.75, got.Terms[0].Weight)
	assert.Len(t, got.TradeOffs, 2)
	assert.NotEmpty(t, got.Recommendations)

	entries, err := env.history.List(context.Background(), history.Filter{Kind: history.KindWeightedOptimization})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	w = env.do(t, http.MethodPost, "/optimize/weighted", `{"objective": {"metrics": ["recovery", "recovery"]}}`)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Equal(t, "objective.metrics[1]", decode[errorBody](t, w).Error.Field)
}

func TestOptimize_WaitsForSlot(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) { d.MaxConcurrentOptimizations = 1 })
	require.NoError(t, env.server.slots.Acquire(context.Background(), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r := httptest.NewRequest(http.MethodPost, "/optimize",
		strings.NewReader(`{"objective": {"metric": "purity"}, "config": {"max_iterations": 5}}`)).WithContext(ctx)
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Zero(t, env.history.Len())

	env.server.slots.Release(1)
	w = env.do(t, http.MethodPost, "/optimize", `{"objective": {"metric": "purity"}, "config": {"max_iterations": 5, "seed": 1}}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestDisabledEngines(t *testing.T) {
	env := newTestEnv(t, func(d *Dependencies) {
		d.Extraction = nil
		d.Exploration = nil
		d.Optimization = nil
	})

	for _, path := range []string{"/simulate/extraction", "/simulate/extraction/compare", "/simulate/exploration", "/optimize"} {
		w := env.do(t, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
		assert.Equal(t, "ENGINE_DISABLED", decode[errorBody](t, w).Error.Code, path)
	}
}

func TestChat_QuestionHasNoData(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/chat", `{"text": "How do I extract copper from oxide ores?"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "question", raw["intent"])
	assert.NotEmpty(t, raw["response"])
	assert.NotContains(t, raw, "data")
}

func TestChat_ExtractionCarriesData(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/chat?format=html",
		`{"text": "Simulate copper extraction with 2.5% ore grade at 65°C for 8 hours"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := decode[map[string]any](t, w)
	assert.Equal(t, "extraction", got["intent"])
	assert.Contains(t, got, "data")
	assert.Contains(t, got["response"], "<")
}

func TestChat_RequiresText(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/chat", `{"text": "   "}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "text", decode[errorBody](t, w).Error.Field)
}

func TestHistory_RecordsCalls(t *testing.T) {
	env := newTestEnv(t, nil)
	params := `{"ore_grade": 2.5, "leaching_time": 8, "acid_concentration": 1.5, "temperature": 65, "voltage": 2.2}`

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/simulate/extraction", params).Code)
	require.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/simulate/extraction", `{"ore_grade": -1}`).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/simulate/exploration", "").Code)
	assert.Equal(t, 3, env.history.Len())

	w := env.do(t, http.MethodGet, "/history?kind=extraction", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[historyResponse](t, w)
	require.Equal(t, 2, got.Count)
	assert.NotEmpty(t, got.Entries[0].Error, "newest first")
	assert.Empty(t, got.Entries[1].Error)
	assert.Equal(t, history.KindExtraction, got.Entries[1].Kind)

	latest := decode[historyResponse](t, env.do(t, http.MethodGet, "/history?limit=1", ""))
	require.Equal(t, 1, latest.Count)
	assert.Equal(t, history.KindExploration, latest.Entries[0].Kind)

	oldest := decode[historyResponse](t, env.do(t, http.MethodGet, "/history?limit=1&offset=2", ""))
	require.Equal(t, 1, oldest.Count)
	assert.Equal(t, history.KindExtraction, oldest.Entries[0].Kind)
	assert.Empty(t, oldest.Entries[0].Error)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/history?limit=0", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/history?kind=bogus", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/history?since=yesterday", "").Code)

	export := env.do(t, http.MethodGet, "/history/export", "")
	require.Equal(t, http.StatusOK, export.Code)
	assert.True(t, bytes.HasPrefix(export.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodGet, "/health", "")

	w := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `warpmine_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

func TestNotFound(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodGet, "/nope", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", decode[errorBody](t, w).Error.Code)
}

func TestOptimize_StreamsProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(env.server.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	events := make(chan string, 256)
	streamErr := make(chan error, 1)
	go func() {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/optimize/events?run_id=run-1", nil)
		if err != nil {
			streamErr <- err
			return
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			streamErr <- err
			return
		}
		defer resp.Body.Close()
		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4<<20)
		for sc.Scan() {
			if line := sc.Text(); strings.HasPrefix(line, "event:") {
				events <- strings.TrimPrefix(line, "event:")
			}
		}
		close(events)
		streamErr <- sc.Err()
	}()
	require.Eventually(t, func() bool { return env.server.hub.Subscribers("run-1") == 1 }, 5*time.Second, 10*time.Millisecond)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.URL+"/optimize",
		strings.NewReader(`{"objective": {"metric": "recovery"}, "algorithm": "pso", "config": {"max_iterations": 10, "patience": 100, "seed": 5}}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, "run-1")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var seen []string
	for ev := range events {
		seen = append(seen, ev)
	}
	require.NoError(t, <-streamErr)
	require.NotEmpty(t, seen)
	assert.Equal(t, EventResult, seen[len(seen)-1])
	assert.Contains(t, seen, EventProgress)
}

func TestRun_ShutsDownOnCancel(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.server.Run(ctx, "127.0.0.1:0", time.Second) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func sortedIDs(ids []core.RegionID) []core.RegionID {
	out := append([]core.RegionID(nil), ids...)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
