package router

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"patrol/internal/matcher"
	"patrol/internal/store"
)

// OptimizationKindToolRouting labels ledger entries produced by
// successful tool routing.
const OptimizationKindToolRouting = "tool_routing"

// RoutedTo names the path an input was sent down.
type RoutedTo string

const (
	// RoutedTool means the bound tool handled the input.
	RoutedTool RoutedTo = "tool"
	// RoutedToolThenGeneric means the tool was tried, failed, and the
	// generic path takes over.
	RoutedToolThenGeneric RoutedTo = "tool_then_generic"
	// RoutedGeneric means no pattern matched.
	RoutedGeneric RoutedTo = "generic"
)

// Decision is the Router's output, consumed by the execution
// collaborator to decide whether to skip the generic path.
type Decision struct {
	RoutedTo         RoutedTo      `json:"routed_to"`
	MatchedSignature string        `json:"matched_signature,omitempty"`
	ToolName         string        `json:"tool_name,omitempty"`
	ToolCallID       string        `json:"tool_call_id,omitempty"`
	ToolOutcome      *InvokeResult `json:"tool_outcome,omitempty"`
	UseGenericPath   bool          `json:"use_generic_path"`
	TokensSaved      float64       `json:"tokens_saved"`
	CostSaved        float64       `json:"cost_saved"`
}

// FallbackPolicy decides whether a failed tool execution reverts to the
// generic path. The hook exists for reliability-aware policies; today's
// default is unconditional fallback.
type FallbackPolicy interface {
	ShouldFallBack(toolName string, result InvokeResult) bool
}

// AlwaysFallback reverts to the generic path on every tool failure.
type AlwaysFallback struct{}

// ShouldFallBack always returns true.
func (AlwaysFallback) ShouldFallBack(string, InvokeResult) bool { return true }

// Options configures a Router.
type Options struct {
	// MinConfidence gates matching. Defaults to matcher.DefaultMinConfidence.
	MinConfidence float64

	// ToolTimeout bounds each tool subprocess. Defaults to DefaultToolTimeout.
	ToolTimeout time.Duration

	// Fallback decides the post-failure path. Defaults to AlwaysFallback.
	Fallback FallbackPolicy

	// Invoker executes tool scripts. Defaults to a SubprocessInvoker.
	Invoker Invoker

	Logger *zap.Logger
}

// Router routes free-text input to bound tools, recording every attempt
// and the realized savings.
type Router struct {
	store    *store.Store
	matcher  *matcher.Matcher
	invoker  Invoker
	fallback FallbackPolicy
	minConf  float64
	timeout  time.Duration
	log      *zap.Logger
}

// NewRouter creates a router over the given store and matcher.
func NewRouter(st *store.Store, m *matcher.Matcher, opts Options) *Router {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	inv := opts.Invoker
	if inv == nil {
		inv = NewSubprocessInvoker(0, log)
	}
	fb := opts.Fallback
	if fb == nil {
		fb = AlwaysFallback{}
	}
	minConf := opts.MinConfidence
	if minConf <= 0 {
		minConf = matcher.DefaultMinConfidence
	}
	timeout := opts.ToolTimeout
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &Router{
		store:    st,
		matcher:  m,
		invoker:  inv,
		fallback: fb,
		minConf:  minConf,
		timeout:  timeout,
		log:      log,
	}
}

// Route runs the routing state machine for one input. Tool-side
// failures never surface as errors: they produce a failed ToolCallRecord
// and a fallback decision. Only store failures propagate.
func (r *Router) Route(ctx context.Context, input, workflowID string) (*Decision, error) {
	match, err := r.matcher.Match(input, r.minConf)
	if err != nil {
		return nil, fmt.Errorf("match failed: %w", err)
	}
	if match == nil {
		r.log.Debug("no pattern matched, generic path", zap.String("workflow_id", workflowID))
		return &Decision{RoutedTo: RoutedGeneric, UseGenericPath: true}, nil
	}

	callID := uuid.NewString()
	calledAt := time.Now()
	result := r.invoker.Execute(ctx, match.Tool.ScriptReference, InvokeContext{
		WorkflowID: workflowID,
		ToolName:   match.Tool.ToolName,
		Input:      input,
	}, r.timeout)
	completedAt := time.Now()

	call := store.ToolCall{
		ToolCallID:    callID,
		WorkflowID:    workflowID,
		ToolName:      match.Tool.ToolName,
		CalledAt:      calledAt,
		CompletedAt:   completedAt,
		DurationMs:    result.Duration.Milliseconds(),
		Success:       result.Success,
		ResultPayload: result.PayloadString(),
		ErrorMessage:  result.Error,
	}

	if !result.Success {
		if err := r.store.RecordToolCall(call); err != nil {
			return nil, err
		}
		useGeneric := r.fallback.ShouldFallBack(match.Tool.ToolName, result)
		r.log.Warn("tool execution failed, falling back",
			zap.String("tool", match.Tool.ToolName),
			zap.String("error", result.Error),
			zap.Bool("fallback", useGeneric))
		return &Decision{
			RoutedTo:         RoutedToolThenGeneric,
			MatchedSignature: match.Signature,
			ToolName:         match.Tool.ToolName,
			ToolCallID:       callID,
			ToolOutcome:      &result,
			UseGenericPath:   useGeneric,
		}, nil
	}

	// Savings come from the pattern's stored averages.
	pattern, err := r.store.GetPatternByID(match.PatternID)
	if err != nil {
		return nil, err
	}
	call.TokensSaved = pattern.AvgTokensGeneric - pattern.AvgTokensTool
	call.CostSaved = pattern.AvgCostGeneric - pattern.AvgCostTool

	if err := r.store.RecordToolCall(call); err != nil {
		return nil, err
	}
	if err := r.store.AppendSavings(store.SavingsEntry{
		OptimizationKind: OptimizationKindToolRouting,
		WorkflowID:       workflowID,
		ToolCallID:       callID,
		PatternID:        match.PatternID,
		TokensSaved:      call.TokensSaved,
		CostSaved:        call.CostSaved,
		Note:             fmt.Sprintf("routed to %s for %s", match.Tool.ToolName, match.Signature),
	}); err != nil {
		return nil, err
	}

	r.log.Info("input routed to tool",
		zap.String("tool", match.Tool.ToolName),
		zap.String("signature", match.Signature),
		zap.Float64("cost_saved", call.CostSaved))

	return &Decision{
		RoutedTo:         RoutedTool,
		MatchedSignature: match.Signature,
		ToolName:         match.Tool.ToolName,
		ToolCallID:       callID,
		ToolOutcome:      &result,
		UseGenericPath:   false,
		TokensSaved:      call.TokensSaved,
		CostSaved:        call.CostSaved,
	}, nil
}
