package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"warpmine/adapters/excel"
	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/domain/history"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal/assistant"
	apperrors "warpmine/internal/errors"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/optimize"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
	historyTimeout      = 2 * time.Second
)

// extractionBody is the flat wire form: the parameters sit at the top level
// next to model_name and seed
type extractionBody struct {
	process.Parameters
	Model string `json:"model_name,omitempty"`
	Seed  *int64 `json:"seed,omitempty"`
}

func (b extractionBody) request() extraction.Request {
	return extraction.Request{Parameters: b.Parameters, Model: b.Model, Seed: b.Seed}
}

type compareBody struct {
	Scenarios []extractionBody `json:"scenarios"`
}

type chatBody struct {
	Text string `json:"text"`
}

type healthResponse struct {
	Status     string          `json:"status"`
	Version    string          `json:"version,omitempty"`
	Engines    map[string]bool `json:"engines"`
	Models     []string        `json:"models,omitempty"`
	Algorithms []string        `json:"algorithms,omitempty"`
	Time       core.Timestamp  `json:"time"`
}

type historyResponse struct {
	Entries []history.Entry `json:"entries"`
	Count   int             `json:"count"`
}

func (s *Server) handleHealth(c *gin.Context) {
	resp := healthResponse{
		Status:  "ok",
		Version: s.deps.Version,
		Engines: map[string]bool{
			"extraction":   s.deps.Extraction != nil,
			"exploration":  s.deps.Exploration != nil,
			"optimization": s.deps.Optimization != nil,
		},
		Time: core.Now(),
	}
	if s.deps.Extraction != nil {
		resp.Models = s.deps.Extraction.Models()
	}
	if s.deps.Optimization != nil {
		resp.Algorithms = optimization.Algorithms()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleChat(c *gin.Context) {
	if s.deps.Assistant == nil {
		writeError(c, apperrors.EngineDisabled("chat"))
		return
	}
	var body chatBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, malformed(err))
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeError(c, apperrors.ValidationError("text", "text is required"))
		return
	}

	start := time.Now()
	resp, err := s.deps.Assistant.Respond(c.Request.Context(), body.Text)
	s.record(c, history.KindChat, body, resp, err, time.Since(start))
	if err != nil {
		s.fail(c, "chat", err)
		return
	}
	s.metrics.intents.WithLabelValues(string(resp.Intent)).Inc()

	if c.Query("format") == "html" {
		resp.Text = assistant.ToHTML(resp.Text)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleExtraction(c *gin.Context) {
	if s.deps.Extraction == nil {
		writeError(c, apperrors.EngineDisabled("extraction"))
		return
	}
	var body extractionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, malformed(err))
		return
	}
	req := body.request()
	req.Seed = s.seedOr(req.Seed)

	start := time.Now()
	res, err := s.deps.Extraction.Simulate(c.Request.Context(), req)
	s.metrics.engine("extraction", err)
	s.record(c, history.KindExtraction, req, res, err, time.Since(start))
	if err != nil {
		s.fail(c, "extraction", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleCompare(c *gin.Context) {
	if s.deps.Extraction == nil {
		writeError(c, apperrors.EngineDisabled("extraction"))
		return
	}
	var body compareBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, malformed(err))
		return
	}
	reqs := make([]extraction.Request, len(body.Scenarios))
	for i, sc := range body.Scenarios {
		reqs[i] = sc.request()
		reqs[i].Seed = s.seedOr(reqs[i].Seed)
	}

	start := time.Now()
	res, err := s.deps.Extraction.Compare(c.Request.Context(), reqs)
	s.metrics.engine("extraction_compare", err)
	s.record(c, history.KindComparison, reqs, res, err, time.Since(start))
	if err != nil {
		s.fail(c, "extraction_compare", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// handleExploration accepts no body (demo regions), a bare RegionProfile
// array, or a full exploration request object
func (s *Server) handleExploration(c *gin.Context) {
	if s.deps.Exploration == nil {
		writeError(c, apperrors.EngineDisabled("exploration"))
		return
	}
	raw, err := c.GetRawData()
	if err != nil {
		writeError(c, malformed(err))
		return
	}
	req, err := decodeExploration(raw)
	if err != nil {
		writeError(c, malformed(err))
		return
	}

	start := time.Now()
	res, err := s.deps.Exploration.Analyze(c.Request.Context(), req)
	s.metrics.engine("exploration", err)
	s.record(c, history.KindExploration, req, res, err, time.Since(start))
	if err != nil {
		s.fail(c, "exploration", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func decodeExploration(raw []byte) (exploration.Request, error) {
	var req exploration.Request
	raw = bytes.TrimSpace(raw)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
		return req, nil
	case raw[0] == '[':
		var regions []geology.RegionProfile
		if err := json.Unmarshal(raw, &regions); err != nil {
			return req, err
		}
		req.Regions = regions
		return req, nil
	}
	err := json.Unmarshal(raw, &req)
	return req, err
}

func (s *Server) handleOptimize(c *gin.Context) {
	if s.deps.Optimization == nil {
		writeError(c, apperrors.EngineDisabled("optimization"))
		return
	}
	var req optimize.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, malformed(err))
		return
	}
	req.Config.Seed = s.seedOr(req.Config.Seed)

	release, ok := s.acquireSlot(c)
	if !ok {
		return
	}
	defer release()

	runID := requestIDOf(c).String()
	req.Progress = s.progressFor(runID)

	start := time.Now()
	res, err := s.deps.Optimization.Optimize(c.Request.Context(), req)
	s.metrics.engine("optimization", err)
	s.record(c, history.KindOptimization, req, res, err, time.Since(start))
	s.endStream(runID, req.Progress != nil, res, err)
	if err != nil {
		s.fail(c, "optimization", err)
		return
	}
	s.metrics.evaluations.Observe(float64(res.Evaluations))
	c.JSON(http.StatusOK, res)
}

// handleOptimizeWeighted runs a weighted multi-metric search. It shares the
// slots and progress stream of /optimize.
func (s *Server) handleOptimizeWeighted(c *gin.Context) {
	if s.deps.Optimization == nil {
		writeError(c, apperrors.EngineDisabled("optimization"))
		return
	}
	var req optimize.WeightedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, malformed(err))
		return
	}
	req.Config.Seed = s.seedOr(req.Config.Seed)

	release, ok := s.acquireSlot(c)
	if !ok {
		return
	}
	defer release()

	runID := requestIDOf(c).String()
	req.Progress = s.progressFor(runID)

	start := time.Now()
	res, err := s.deps.Optimization.OptimizeWeighted(c.Request.Context(), req)
	s.metrics.engine("optimization", err)
	s.record(c, history.KindWeightedOptimization, req, res, err, time.Since(start))
	s.endStream(runID, req.Progress != nil, res, err)
	if err != nil {
		s.fail(c, "optimization", err)
		return
	}
	s.metrics.evaluations.Observe(float64(res.Evaluations))
	c.JSON(http.StatusOK, res)
}

// acquireSlot waits for an optimization slot when a cap is configured. On
// failure the error response is already written.
func (s *Server) acquireSlot(c *gin.Context) (func(), bool) {
	if s.slots == nil {
		return func() {}, true
	}
	if err := s.slots.Acquire(c.Request.Context(), 1); err != nil {
		writeError(c, err)
		return nil, false
	}
	return func() { s.slots.Release(1) }, true
}

// progressFor returns a progress callback when someone is subscribed to runID
func (s *Server) progressFor(runID string) func(optimization.ConvergencePoint) {
	if s.hub.Subscribers(runID) == 0 {
		return nil
	}
	return func(p optimization.ConvergencePoint) {
		s.hub.Broadcast(ProgressEvent{RunID: runID, Type: EventProgress, Iteration: p.Iteration, BestValue: p.BestValue})
	}
}

func (s *Server) endStream(runID string, streaming bool, res any, err error) {
	if !streaming {
		return
	}
	if err != nil {
		s.hub.Broadcast(ProgressEvent{RunID: runID, Type: EventFailed, Data: gin.H{"error": toAppError(err).Message}})
		return
	}
	s.hub.Broadcast(ProgressEvent{RunID: runID, Type: EventResult, Data: res})
}

func (s *Server) handleHistory(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	entries, err := s.deps.History.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "history", err)
		return
	}
	c.JSON(http.StatusOK, historyResponse{Entries: entries, Count: len(entries)})
}

func (s *Server) handleHistoryExport(c *gin.Context) {
	filter, err := historyFilter(c)
	if err != nil {
		writeError(c, err)
		return
	}
	filter.Limit = 0
	entries, err := s.deps.History.List(c.Request.Context(), filter)
	if err != nil {
		s.fail(c, "history", err)
		return
	}
	var buf bytes.Buffer
	if err := excel.ExportHistory(&buf, entries); err != nil {
		s.fail(c, "history", err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="warpmine-history.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

var historyKinds = map[history.Kind]bool{
	history.KindExtraction:   true,
	history.KindComparison:   true,
	history.KindExploration:  true,
	history.KindOptimization: true,
	history.KindChat:         true,

	history.KindWeightedOptimization: true,
}

func historyFilter(c *gin.Context) (history.Filter, error) {
	f := history.Filter{Limit: defaultHistoryLimit}

	if kind := c.Query("kind"); kind != "" {
		if !historyKinds[history.Kind(kind)] {
			return f, apperrors.ValidationError("kind", fmt.Sprintf("unknown history kind %q", kind))
		}
		f.Kind = history.Kind(kind)
	}
	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339Nano, since)
		if err != nil {
			return f, apperrors.ValidationError("since", "since must be an RFC3339 timestamp")
		}
		f.Since = core.NewTimestamp(t)
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return f, apperrors.ValidationError("limit", fmt.Sprintf("limit must be between 1 and %d", maxHistoryLimit))
		}
		f.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, apperrors.ValidationError("offset", "offset must be a non-negative integer")
		}
		f.Offset = n
	}
	return f, nil
}

func (s *Server) seedOr(seed *int64) *int64 {
	if seed != nil || s.deps.Seed == nil {
		return seed
	}
	v := *s.deps.Seed
	return &v
}

// fail logs internal failures with their cause and writes the error body
func (s *Server) fail(c *gin.Context, op string, err error) {
	app := toAppError(err)
	if app.Code == apperrors.CodeInternalError {
		s.logger.Error("request failed",
			zap.String("op", op),
			zap.String("request_id", requestIDOf(c).String()),
			zap.Error(err))
	}
	writeError(c, err)
}

// record appends an audit entry. History failures never fail the request.
func (s *Server) record(c *gin.Context, kind history.Kind, req, res any, callErr error, took time.Duration) {
	entry, err := history.NewEntry(core.Now(), requestIDOf(c), kind, req, res, callErr, took)
	if err != nil {
		s.logger.Warn("build history entry", zap.String("kind", string(kind)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), historyTimeout)
	defer cancel()
	if err := s.deps.History.Append(ctx, entry); err != nil {
		s.logger.Warn("append history entry",
			zap.String("kind", string(kind)), zap.String("key", entry.Key), zap.Error(err))
	}
}
