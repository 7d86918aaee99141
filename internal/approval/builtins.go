package approval

import "sync"

// AutoApproveConfig is the global-config source for config:auto_approve
// (§4.9): a static name list, or a user function for dynamic policies
// loaded from a named module.
type AutoApproveConfig struct {
	Names []string
	Func  func(input Input) (bool, error)
}

// RegisterConfigAutoApprove installs the priority-100 config:auto_approve
// resolver.
func RegisterConfigAutoApprove(chain *Chain, cfg AutoApproveConfig) {
	chain.Register("config:auto_approve", 100, func(input Input, _ map[string]any) (Decision, error) {
		if cfg.Func != nil {
			ok, err := cfg.Func(input)
			if err != nil {
				return "", err
			}
			if ok {
				return Approve, nil
			}
			return "", nil
		}
		if MatchesPattern(cfg.Names, input.ToolName) {
			return Approve, nil
		}
		return "", nil
	})
}

// FrontmatterPolicy resolves a document's frontmatter-declared
// auto_approve policy for a single tool call.
type FrontmatterPolicy func(input Input, context map[string]any) (approved bool, ok bool)

// RegisterFrontmatterAutoApprove installs the priority-90
// frontmatter:auto_approve resolver.
func RegisterFrontmatterAutoApprove(chain *Chain, resolve FrontmatterPolicy) {
	chain.Register("frontmatter:auto_approve", 90, func(input Input, context map[string]any) (Decision, error) {
		if resolve == nil {
			return "", nil
		}
		approved, ok := resolve(input, context)
		if !ok {
			return "", nil
		}
		if approved {
			return Approve, nil
		}
		return "", nil
	})
}

// SkillTools tracks tool names provided by enabled skills, mirroring the
// teacher's ApprovalChecker.RegisterSkillTools/skillTools map.
type SkillTools struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewSkillTools constructs an empty registry.
func NewSkillTools() *SkillTools {
	return &SkillTools{names: map[string]struct{}{}}
}

// Register adds tool names as skill-provided.
func (s *SkillTools) Register(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range names {
		s.names[n] = struct{}{}
	}
}

// Has reports whether name was registered as skill-provided.
func (s *SkillTools) Has(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.names[name]
	return ok
}

// RegisterConfigSkillAllowlist installs the priority-80
// config:skill_allowlist resolver (SPEC_FULL.md expansion).
func RegisterConfigSkillAllowlist(chain *Chain, tools *SkillTools) {
	chain.Register("config:skill_allowlist", 80, func(input Input, _ map[string]any) (Decision, error) {
		if tools != nil && tools.Has(input.ToolName) {
			return Approve, nil
		}
		return "", nil
	})
}

// RegisterConfigCatchAllApprove installs the priority-0
// config:catch_all_approve resolver, which unconditionally approves.
// Per §4.9 it must only be installed when requireApproval is false.
func RegisterConfigCatchAllApprove(chain *Chain, requireApproval bool) {
	if requireApproval {
		chain.Unregister("config:catch_all_approve")
		return
	}
	chain.Register("config:catch_all_approve", 0, func(Input, map[string]any) (Decision, error) {
		return Approve, nil
	})
}
