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
// Package promptorch implements the prompt orchestrator of spec.md
// §4.7: tier-locked base prompt selection, mode overlay, tool-support
// note, focused-file injection, and a compression hint, assembled into
// a single system-prompt block.
//
// Rebuilds are centralized through Orchestrator.Rebuild so that any tier
// or mode change calls it exactly once before the next turn, breaking
// the tier -> prompt -> auto-size -> VRAM -> tier cycle spec.md §9
// describes by freezing the tier for the duration of a turn.
package promptorch

import (
	"strings"
	"sync"

	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxsize"
)

// BasePrompts maps each tier to its base system prompt text. Supplied by
// the caller (loaded from the teacher-style prompt registry / files) —
// this package only enforces the tier lock and assembly order.
type BasePrompts map[ctxsize.Tier]string

// DefaultBasePrompts returns a minimal base prompt per tier, used when
// the caller hasn't loaded richer prompt text.
func DefaultBasePrompts() BasePrompts {
	return BasePrompts{
		ctxsize.TierMinimal:  "You are a terse local assistant operating under a very small context budget. Prefer short answers and avoid restating context.",
		ctxsize.TierCompact:  "You are a local assistant operating under a constrained context budget. Be economical with tokens.",
		ctxsize.TierStandard: "You are a helpful local coding and conversation assistant.",
		ctxsize.TierExtended: "You are a helpful local assistant with a generous context budget. You may reference earlier parts of the conversation freely.",
		ctxsize.TierMaximal:  "You are a helpful local assistant with a very large context budget, suitable for long-running multi-file tasks.",
	}
}

// FocusedFile is a file the mode manager has marked as "in focus" for
// injection into the prompt.
type FocusedFile struct {
	Path    string
	Content string
}

// Orchestrator builds the outgoing system prompt.
type Orchestrator struct {
	basePrompts BasePrompts

	mu           sync.Mutex
	lockedTier   ctxsize.Tier
	built        string
}

// New creates an orchestrator with the given per-tier base prompts.
func New(basePrompts BasePrompts) *Orchestrator {
	return &Orchestrator{basePrompts: basePrompts}
}

// LockTier freezes the tier used for prompt assembly until the next
// Rebuild with a different tier. Auto-sizing may classify a new tier
// mid-conversation, but the base prompt only flaps when Rebuild is
// explicitly called with it (spec.md §4.7 "tier-locked").
func (o *Orchestrator) LockTier(tier ctxsize.Tier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lockedTier = tier
}

// LockedTier returns the tier currently driving the base prompt.
func (o *Orchestrator) LockedTier() ctxsize.Tier {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lockedTier
}

// RebuildInput carries every input to one Rebuild call.
type RebuildInput struct {
	ModeOverlay           string
	ProviderLacksToolCalling bool
	FocusedFiles          []FocusedFile
	ReasoningCapable      bool
	CompressionHint       string // non-empty only when building a prompt for a summarization call
}

const toolSupportNote = "This model does not support structured tool calling. " +
	"To invoke a tool, respond with a fenced block: ```tool_call\n{\"name\": \"...\", \"args\": {...}}\n```"

// Rebuild assembles the system prompt in the fixed order spec.md §4.7
// requires: base prompt (tier-locked) -> mode overlay -> tool-support
// note (only if needed) -> focused-file content -> compression hint
// (terser for reasoning-capable models, to avoid verbose meta-thinking).
func (o *Orchestrator) Rebuild(in RebuildInput) string {
	o.mu.Lock()
	tier := o.lockedTier
	o.mu.Unlock()

	var b strings.Builder

	b.WriteString(o.basePrompts[tier])

	if in.ModeOverlay != "" {
		b.WriteString("\n\n")
		b.WriteString(in.ModeOverlay)
	}

	if in.ProviderLacksToolCalling {
		b.WriteString("\n\n")
		b.WriteString(toolSupportNote)
	}

	for _, f := range in.FocusedFiles {
		b.WriteString("\n\n--- focused file: ")
		b.WriteString(f.Path)
		b.WriteString(" ---\n")
		b.WriteString(f.Content)
	}

	if in.CompressionHint != "" {
		b.WriteString("\n\n")
		if in.ReasoningCapable {
			b.WriteString("Summarize tersely. Do not show your reasoning process.")
		} else {
			b.WriteString(in.CompressionHint)
		}
	}

	o.mu.Lock()
	o.built = b.String()
	o.mu.Unlock()

	return o.built
}

// Current returns the last built prompt without rebuilding.
func (o *Orchestrator) Current() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.built
}
