// Package assistant routes free-text requests to the simulation engines or
// to the knowledge collaborator and renders the outcome as markdown.
package assistant

import (
	"context"
	"errors"
	"time"

	"warpmine/domain/core"
	"warpmine/domain/geology"
	"warpmine/domain/intent"
	"warpmine/domain/optimization"
	"warpmine/domain/process"
	"warpmine/internal"
	apperrors "warpmine/internal/errors"
	"warpmine/internal/exploration"
	"warpmine/internal/extraction"
	"warpmine/internal/optimize"
	"warpmine/ports"

	"go.uber.org/zap"
)

// FallbackAnswer is returned when the knowledge collaborator fails
const FallbackAnswer = "I'm sorry, I can't reach the knowledge service right now. " +
	"You can still ask me to simulate an extraction, analyze exploration regions, or optimize process parameters."

// DefaultKnowledgeTimeout bounds one knowledge call
const DefaultKnowledgeTimeout = 10 * time.Second

// ExtractionEngine runs single extraction simulations
type ExtractionEngine interface {
	Simulate(ctx context.Context, req extraction.Request) (process.ExtractionResult, error)
}

// ExplorationEngine runs prospectivity analyses
type ExplorationEngine interface {
	Analyze(ctx context.Context, req exploration.Request) (geology.Analysis, error)
}

// OptimizationEngine runs parameter searches
type OptimizationEngine interface {
	Optimize(ctx context.Context, req optimize.Request) (optimization.Result, error)
}

// Options wires the assistant. A nil engine is reported as disabled.
type Options struct {
	Extraction       ExtractionEngine
	Exploration      ExplorationEngine
	Optimization     OptimizationEngine
	Knowledge        ports.KnowledgeClient
	Threshold        float64
	KnowledgeTimeout time.Duration
	Seed             *int64
	Logger           *zap.Logger
}

// Response is what the chat endpoint returns. Data is set only for
// structured intents that produced a result.
type Response struct {
	Text   string      `json:"response"`
	Intent intent.Kind `json:"intent"`
	Data   any         `json:"data,omitempty"`
}

// Assistant holds no per-request state and is safe for concurrent use
type Assistant struct {
	classifier *Classifier
	opts       Options
	logger     *zap.Logger
}

// New creates an assistant
func New(opts Options) *Assistant {
	if opts.KnowledgeTimeout <= 0 {
		opts.KnowledgeTimeout = DefaultKnowledgeTimeout
	}
	return &Assistant{
		classifier: NewClassifier(opts.Threshold),
		opts:       opts,
		logger:     internal.OrNop(opts.Logger).Named("assistant"),
	}
}

// Classify exposes the router's classification
func (a *Assistant) Classify(text string) intent.Intent {
	return a.classifier.Classify(text)
}

// Respond classifies text and handles the resulting intent
func (a *Assistant) Respond(ctx context.Context, text string) (Response, error) {
	in := a.classifier.Classify(text)
	a.logger.Debug("classified request",
		zap.String("intent", string(in.Kind())), zap.Float64("confidence", in.Confidence()))
	return a.Handle(ctx, in)
}

// Handle invokes the engine for in. Input problems found by an engine are
// explained in the response text; only internal failures return an error.
func (a *Assistant) Handle(ctx context.Context, in intent.Intent) (Response, error) {
	switch v := in.(type) {
	case intent.Question:
		return Response{Text: a.answer(ctx, v.Text), Intent: intent.KindQuestion}, nil

	case intent.ExtractionRequest:
		if a.opts.Extraction == nil {
			return disabled(intent.KindExtraction), nil
		}
		res, err := a.opts.Extraction.Simulate(ctx, extraction.Request{
			Parameters: v.Parameters, Model: v.Model, Seed: a.opts.Seed,
		})
		if err != nil {
			return a.failure(intent.KindExtraction, err)
		}
		return Response{Text: renderExtraction(res, v.Defaulted), Intent: intent.KindExtraction, Data: res}, nil

	case intent.ExplorationRequest:
		if a.opts.Exploration == nil {
			return disabled(intent.KindExploration), nil
		}
		res, err := a.opts.Exploration.Analyze(ctx, exploration.Request{
			TargetMineral: string(v.TargetMineral),
		})
		if err != nil {
			return a.failure(intent.KindExploration, err)
		}
		return Response{Text: renderExploration(res, v.Defaulted), Intent: intent.KindExploration, Data: res}, nil

	case intent.OptimizationRequest:
		if a.opts.Optimization == nil {
			return disabled(intent.KindOptimization), nil
		}
		res, err := a.opts.Optimization.Optimize(ctx, optimize.Request{
			Objective: v.Objective,
			Algorithm: v.Algorithm,
			Config:    optimization.Config{Seed: a.opts.Seed},
		})
		if err != nil {
			return a.failure(intent.KindOptimization, err)
		}
		return Response{Text: renderOptimization(res, v.Defaulted), Intent: intent.KindOptimization, Data: res}, nil
	}
	return Response{}, apperrors.InternalError("unrecognized intent", nil)
}

// answer forwards the question verbatim and returns the raw answer
func (a *Assistant) answer(ctx context.Context, question string) string {
	if a.opts.Knowledge == nil {
		return FallbackAnswer
	}
	ctx, cancel := context.WithTimeout(ctx, a.opts.KnowledgeTimeout)
	defer cancel()

	text, err := a.opts.Knowledge.Answer(ctx, question)
	if err != nil {
		a.logger.Warn("knowledge collaborator unavailable",
			zap.Error(apperrors.UpstreamUnavailable("knowledge", err)))
		return FallbackAnswer
	}
	return text
}

func (a *Assistant) failure(kind intent.Kind, err error) (Response, error) {
	if core.IsValidationError(err) || core.IsSpecError(err) {
		return Response{Text: renderInputProblem(kind, err), Intent: kind}, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Response{}, err
	}
	a.logger.Error("engine failed", zap.String("intent", string(kind)), zap.Error(err))
	return Response{}, apperrors.InternalError(string(kind)+" engine failed", err)
}

func disabled(kind intent.Kind) Response {
	return Response{
		Text:   "The " + string(kind) + " engine is disabled on this deployment, so I can't run that request.",
		Intent: kind,
	}
}
