// Package runtime assembles the process-wide State (§3, §9) that used to
// be a set of package-level singletons in the teacher: the Session
// ledger, per-document state, the codeblock/approval registries, and the
// initialization order that wires them together.
//
// Grounded on the teacher's internal/agent/tool_registry.go lockSession
// refcounted-closure pattern (generalized into DocumentState.Lock) and
// internal/agent/loop.go's Runtime, which plays the same "one handle per
// process, many documents" role the teacher's agent runtime plays for
// sessions.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/trace"

	"github.com/flemma-dev/flemma-core/internal/approval"
	"github.com/flemma-dev/flemma-core/internal/ast"
	"github.com/flemma-dev/flemma-core/internal/autopilot"
	"github.com/flemma-dev/flemma-core/internal/codeblock"
	"github.com/flemma-dev/flemma-core/internal/config"
	"github.com/flemma-dev/flemma-core/internal/evaluator"
	"github.com/flemma-dev/flemma-core/internal/parser"
	"github.com/flemma-dev/flemma-core/internal/pipeline"
	"github.com/flemma-dev/flemma-core/internal/processor"
)

// Options bundles the external collaborators Runtime needs at
// construction: a logger, an optional Prometheus registerer, an optional
// tracer, and a filesystem for the expression evaluator's include().
type Options struct {
	Logger     *slog.Logger
	Registerer prometheus.Registerer
	Tracer     trace.Tracer
	FileSystem evaluator.FileSystem

	// SessionStorePath, if set, persists the request ledger to an
	// embedded SQLite database at this path instead of keeping it
	// in-memory only. ":memory:" gets a private, non-shared database.
	SessionStorePath string
}

// Runtime is the process-wide handle: one per host process, never one
// per document. It owns the Session ledger, the codeblock and approval
// registries, the autopilot machine (itself keyed internally by document
// id), and a map of per-document state.
type Runtime struct {
	logger *slog.Logger
	tracer trace.Tracer

	Config       *config.Config
	Codeblocks   *codeblock.Registry
	Evaluator    *evaluator.Evaluator
	Processor    *processor.Processor
	Pipeline     *pipeline.Pipeline
	Approval     *approval.Chain
	Autopilot    *autopilot.Autopilot
	Session      *Session
	SessionStore *SessionStore
	SkillTools   *approval.SkillTools

	docMu sync.Mutex
	docs  map[string]*DocumentState
}

// New builds the codeblock registry and evaluator (registering the
// evaluator's language into the registry), then the processor and
// pipeline, the approval chain with its built-in resolvers, the metrics
// registration, the optional session store, and the autopilot. cfg is
// supplied by the caller; New does not load it.
func New(cfg *config.Config, hooks autopilot.Hooks, opts Options) (*Runtime, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	reg := codeblock.NewDefaultRegistry()
	eval := evaluator.New(opts.FileSystem)
	eval.RegisterInto(reg)
	proc := processor.New(eval, reg)
	pl := pipeline.New(proc)

	chain := approval.New(opts.Logger)
	chain.OnDecide(func(d approval.Decision, resolver string) {
		Metrics.ApprovalDecisions.WithLabelValues(string(d), resolver).Inc()
	})
	approval.RegisterConfigAutoApprove(chain, approval.AutoApproveConfig{Names: cfg.Approval.AutoApprove})
	approval.RegisterFrontmatterAutoApprove(chain, frontmatterAutoApprovePolicy)
	skillTools := approval.NewSkillTools()
	if cfg.Approval.SkillAllowlist {
		approval.RegisterConfigSkillAllowlist(chain, skillTools)
	}
	approval.RegisterConfigCatchAllApprove(chain, cfg.Approval.RequireApproval)

	if opts.Registerer != nil {
		registerMetrics(opts.Registerer)
	}

	var store *SessionStore
	if opts.SessionStorePath != "" {
		var err error
		store, err = OpenSessionStore(opts.SessionStorePath)
		if err != nil {
			return nil, fmt.Errorf("open session store: %w", err)
		}
	}

	r := &Runtime{
		logger:       opts.Logger,
		tracer:       opts.Tracer,
		Config:       cfg,
		Codeblocks:   reg,
		Evaluator:    eval,
		Processor:    proc,
		Pipeline:     pl,
		Approval:     chain,
		Session:      NewSession(),
		SessionStore: store,
		SkillTools:   skillTools,
		docs:         map[string]*DocumentState{},
	}
	r.Autopilot = autopilot.New(autopilot.Config{
		Enabled:  cfg.Autopilot.Enabled,
		MaxTurns: cfg.Autopilot.MaxTurns,
	}, hooks)
	return r, nil
}

// Close releases resources owned by the Runtime, such as an open
// SessionStore.
func (r *Runtime) Close() error {
	if r.SessionStore != nil {
		return r.SessionStore.Close()
	}
	return nil
}

// DocumentState returns the per-document state for docID, creating it on
// first access.
func (r *Runtime) DocumentState(docID string) *DocumentState {
	r.docMu.Lock()
	defer r.docMu.Unlock()
	d, ok := r.docs[docID]
	if !ok {
		d = newDocumentState()
		r.docs[docID] = d
	}
	return d
}

// CloseDocument tears down a document's per-document state and autopilot
// machine deterministically (§5 shared resource policy).
func (r *Runtime) CloseDocument(docID string) {
	r.docMu.Lock()
	delete(r.docs, docID)
	r.docMu.Unlock()
	r.Autopilot.Close(docID)
}

// ParseCached returns the cached AST for docID if still valid, parsing
// and caching a fresh one from lines otherwise (§4.3.3).
func (r *Runtime) ParseCached(docID string, lines []string) *ast.Document {
	state := r.DocumentState(docID)
	if doc, ok := state.CachedDocument(); ok {
		return doc
	}
	doc := parseWithTrace(r, docID, lines)
	state.StoreDocument(doc)
	return doc
}

// InvalidateDocument bumps the change counter for docID, forcing the
// next ParseCached call to reparse.
func (r *Runtime) InvalidateDocument(docID string) {
	r.DocumentState(docID).BumpVersion()
}

func parseWithTrace(r *Runtime, docID string, lines []string) *ast.Document {
	if r.tracer == nil {
		return parser.Parse(lines, r.Codeblocks)
	}
	_, span := r.tracer.Start(context.Background(), "parser.parse")
	defer span.End()
	return parser.Parse(lines, r.Codeblocks)
}

// ContextKeyAutoApprove is the approval.Chain context key under which a
// document's resolved `auto_approve` frontmatter opt
// (evaluator.ResolvedOpts.AutoApprove) is carried into the approval
// chain for frontmatter:auto_approve to consult.
const ContextKeyAutoApprove = "auto_approve"

// ApprovalContext builds the context map RegisterFrontmatterAutoApprove
// expects, from a document's resolved opts.
func ApprovalContext(opts *evaluator.ResolvedOpts) map[string]any {
	if opts == nil {
		return nil
	}
	return map[string]any{ContextKeyAutoApprove: opts.AutoApprove}
}

// ResolveApproval runs a tool call through the approval chain, feeding
// it the document's resolved auto_approve opt so
// frontmatter:auto_approve can act on it.
func (r *Runtime) ResolveApproval(input approval.Input, opts *evaluator.ResolvedOpts) approval.Decision {
	return r.Approval.Resolve(input, ApprovalContext(opts))
}

// frontmatterAutoApprovePolicy implements approval.FrontmatterPolicy by
// reading ContextKeyAutoApprove out of the chain's per-call context: a
// bool blanket-approves or -defers every tool, while a string list (or
// []any of strings) is matched against the tool name the same way
// config:auto_approve matches its static name list.
func frontmatterAutoApprovePolicy(input approval.Input, context map[string]any) (approved bool, ok bool) {
	raw, present := context[ContextKeyAutoApprove]
	if !present || raw == nil {
		return false, false
	}
	switch v := raw.(type) {
	case bool:
		return v, true
	case []string:
		return approval.MatchesPattern(v, input.ToolName), true
	case []any:
		patterns := make([]string, 0, len(v))
		for _, p := range v {
			if s, ok := p.(string); ok {
				patterns = append(patterns, s)
			}
		}
		return approval.MatchesPattern(patterns, input.ToolName), true
	default:
		return false, false
	}
}

// RunPipeline runs the pipeline for docID's document, feeding it the
// document's current DocumentState.Cancelled() flag so a request
// cancelled mid-response (§5 Cancellation & timeouts) has its trailing
// assistant parts marked Aborted before §4.6 step 3's abort-resolution
// logic runs, instead of that logic only ever seeing fresh, never-aborted
// parts.
func (r *Runtime) RunPipeline(docID string, doc *ast.Document, base, preEvaluated *evaluator.Context) (pipeline.Prompt, processor.Result) {
	cancelled := r.DocumentState(docID).Cancelled()
	return r.Pipeline.Run(doc, base, preEvaluated, cancelled)
}

// RecordRequest appends rec to the in-memory Session ledger and, when a
// SessionStore is configured, persists it too so the ledger survives a
// process restart.
func (r *Runtime) RecordRequest(rec RequestRecord) (RequestRecord, error) {
	rec = r.Session.Append(rec)
	if r.SessionStore != nil {
		if _, err := r.SessionStore.Append(rec); err != nil {
			return rec, err
		}
	}
	return rec, nil
}

// NewRequestID mints a fresh request id, mirroring the teacher's
// uuid.NewString() usage for job and message ids.
func NewRequestID() string {
	return uuid.NewString()
}
