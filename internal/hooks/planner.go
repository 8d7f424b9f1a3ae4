// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package hooks

import (
	"path/filepath"
	"sync"
	"time"
)

// Plan is the ordered execution plan the planner returns for one
// lifecycle event: hooks with no declared dependency on one another run
// in Parallel; everything else runs in Sequential, in priority order
// (spec.md §4.12 "classifies the batch as sequential or parallel based
// on declared dependencies").
//
// This registry's Hook type has no explicit dependency graph (the
// distilled spec doesn't define one), so the planner uses the
// conservative rule the teacher's own hook-adjacent job scheduling
// follows: a hook runs in parallel unless an earlier eligible hook
// declared the same file pattern; a later hook that shares a file
// pattern (and could therefore race on the same file) runs sequentially.
type Plan struct {
	Sequential []Hook
	Parallel   []Hook
}

// limiterState tracks a rolling window of invocation timestamps for one
// rate-limited key (a hook id, or the global key).
type limiterState struct {
	mu    sync.Mutex
	times map[string][]time.Time
}

// Planner filters, rate-limits, and orders hooks for one event.
type Planner struct {
	registry *Registry
	global   RateLimit
	limiter  limiterState
}

// NewPlanner creates a planner with a global rate limit applied across
// all hooks in addition to any per-hook limit.
func NewPlanner(registry *Registry, global RateLimit) *Planner {
	return &Planner{registry: registry, global: global, limiter: limiterState{times: make(map[string][]time.Time)}}
}

func (p *Planner) allow(key string, limit RateLimit, now time.Time) bool {
	if limit.Max <= 0 {
		return true
	}
	p.limiter.mu.Lock()
	defer p.limiter.mu.Unlock()

	cutoff := now.Add(-limit.Window)
	kept := p.limiter.times[key][:0]
	for _, t := range p.limiter.times[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= limit.Max {
		p.limiter.times[key] = kept
		return false
	}
	kept = append(kept, now)
	p.limiter.times[key] = kept
	return true
}

// Plan builds the execution plan for eventType, given the changed file
// (empty if the event isn't file-scoped). Hooks failing the file-pattern
// filter, a rate limit, or whose trust is pending are excluded outright;
// pending hooks are returned separately so the caller can surface a
// HookTrust-kind refusal for them without spawning anything.
func (p *Planner) Plan(eventType string, file string) (plan Plan, refused []Hook) {
	now := time.Now()
	candidates := p.registry.ForEvent(eventType)

	var eligible []Hook
	for _, h := range candidates {
		if !h.Enabled {
			continue
		}
		if h.FilePattern != "" && file != "" {
			if ok, _ := filepath.Match(h.FilePattern, file); !ok {
				continue
			}
		}
		if h.Trust.pending() || !IsWhitelisted(h.Command) {
			refused = append(refused, h)
			continue
		}
		if !p.allow("global", p.global, now) {
			continue
		}
		if h.RateLimit != nil && !p.allow(h.ID, *h.RateLimit, now) {
			continue
		}
		eligible = append(eligible, h)
	}

	seenPattern := make(map[string]bool)
	for _, h := range eligible {
		if h.FilePattern != "" {
			if seenPattern[h.FilePattern] {
				plan.Sequential = append(plan.Sequential, h)
				continue
			}
			seenPattern[h.FilePattern] = true
		}
		plan.Parallel = append(plan.Parallel, h)
	}

	return plan, refused
}
