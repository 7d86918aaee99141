// Package approval implements the priority-ordered resolver chain that
// decides whether a tool call is approved, denied, or requires user
// approval (§4.9).
//
// Grounded on the teacher's internal/agent/approval.go ApprovalChecker
// (pattern matching, allow/deny/require lists, skill-tool allowlisting)
// and internal/gateway/approval_policy.go's config-merging shape, but
// reworked from a single fixed policy object into a named, registrable
// chain of resolver functions dispatched in priority order, per the
// spec's resolver-chain design.
package approval

import (
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Decision is one of the resolver chain's possible outcomes.
type Decision string

const (
	Approve         Decision = "approve"
	RequireApproval Decision = "require_approval"
	Deny            Decision = "deny"
)

// Input describes the tool call under consideration.
type Input struct {
	ToolName string
	Args     map[string]any
}

// Resolver inspects a tool call and returns a decision, or "" (nil
// equivalent) to defer to the next resolver in the chain.
type Resolver func(input Input, context map[string]any) (Decision, error)

type entry struct {
	name     string
	priority int
	resolve  Resolver
}

// Chain is a priority-ordered, name-keyed set of resolvers.
type Chain struct {
	mu       sync.Mutex
	entries  map[string]entry
	logger   *slog.Logger
	onDecide func(decision Decision, resolver string)
}

// New constructs an empty chain. A nil logger defaults to slog.Default().
func New(logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{entries: map[string]entry{}, logger: logger}
}

// OnDecide installs a callback invoked after every Resolve with the
// final decision and the name of the resolver that produced it (or ""
// for the require_approval default when every resolver deferred).
func (c *Chain) OnDecide(fn func(decision Decision, resolver string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDecide = fn
}

// Register installs or replaces the resolver named name.
func (c *Chain) Register(name string, priority int, resolve Resolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = entry{name: name, priority: priority, resolve: resolve}
}

// Unregister removes a named resolver, if present.
func (c *Chain) Unregister(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, name)
}

// Resolve dispatches input through the chain in descending priority
// (ties broken by name, ascending), returning the first non-nil
// decision. Resolver errors and invalid return values are logged and
// treated as a deferral. If every resolver defers, the default is
// require_approval.
func (c *Chain) Resolve(input Input, context map[string]any) Decision {
	c.mu.Lock()
	ordered := make([]entry, 0, len(c.entries))
	for _, e := range c.entries {
		ordered = append(ordered, e)
	}
	onDecide := c.onDecide
	c.mu.Unlock()

	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority > ordered[j].priority
		}
		return ordered[i].name < ordered[j].name
	})

	for _, e := range ordered {
		decision, err := e.resolve(input, context)
		if err != nil {
			c.logger.Warn("approval resolver failed", "resolver", e.name, "tool", input.ToolName, "error", err)
			continue
		}
		if !validDecision(decision) {
			if decision != "" {
				c.logger.Warn("approval resolver returned invalid decision", "resolver", e.name, "decision", decision)
			}
			continue
		}
		if onDecide != nil {
			onDecide(decision, e.name)
		}
		return decision
	}
	if onDecide != nil {
		onDecide(RequireApproval, "")
	}
	return RequireApproval
}

func validDecision(d Decision) bool {
	switch d {
	case Approve, RequireApproval, Deny:
		return true
	default:
		return false
	}
}

// MatchesPattern reports whether toolName matches any of patterns.
// Supports exact match, "*" (match-all), "prefix*", "*suffix", and the
// "mcp:*" tool-namespace convention, mirroring the teacher's
// matchesPattern.
func MatchesPattern(patterns []string, toolName string) bool {
	name := strings.ToLower(strings.TrimSpace(toolName))
	for _, raw := range patterns {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		if pattern == "" {
			continue
		}
		if pattern == "*" || pattern == name {
			return true
		}
		if pattern == "mcp:*" && strings.HasPrefix(name, "mcp:") {
			return true
		}
		if len(pattern) > 1 && strings.HasSuffix(pattern, "*") {
			if strings.HasPrefix(name, pattern[:len(pattern)-1]) {
				return true
			}
		}
		if len(pattern) > 1 && strings.HasPrefix(pattern, "*") {
			if strings.HasSuffix(name, pattern[1:]) {
				return true
			}
		}
	}
	return false
}
