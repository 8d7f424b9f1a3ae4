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
package agentloop

import (
	"context"
	"fmt"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/tokencount"
	"github.com/Tecet/OLLM-CLI-sub019/provider"
)

// providerSummarizer implements checkpoint.Summarizer by issuing a
// single-shot, non-streaming-style call through the same provider.Adapter
// the agent loop already holds, with a tier-independent compression
// instruction that Summarize builds inline (the prompt orchestrator is
// not involved).
type providerSummarizer struct {
	adapter provider.Adapter
	model   string
	counter *tokencount.Counter
	caps    provider.Capabilities
}

func newProviderSummarizer(adapter provider.Adapter, model string, counter *tokencount.Counter) *providerSummarizer {
	caps := provider.Capabilities{}
	if capable, ok := adapter.(provider.CapableAdapter); ok {
		caps = capable.Capabilities()
	}
	return &providerSummarizer{adapter: adapter, model: model, counter: counter, caps: caps}
}

func levelName(l checkpoint.Level) string {
	switch l {
	case checkpoint.LevelDetailed:
		return "detailed"
	case checkpoint.LevelModerate:
		return "moderate"
	case checkpoint.LevelCompact:
		return "compact"
	default:
		return "compact"
	}
}

// Summarize implements checkpoint.Summarizer by wrapping the raw text in
// a dedicated system instruction and collecting the full (non-streamed to
// the user) response text.
func (s *providerSummarizer) Summarize(ctx context.Context, text string, target checkpoint.Level, goal *checkpoint.Goal) (string, int, error) {
	instruction := fmt.Sprintf("Summarize the following conversation excerpt at %s detail. Preserve concrete facts, decisions, and open threads. Respond with the summary only, no preamble.", levelName(target))
	if s.caps.EmitsStructuredReasoning || s.caps.UsesThinkMarkers {
		instruction += " Do not show your reasoning process."
	}
	if goal != nil && goal.Summary != "" {
		instruction += fmt.Sprintf(" The user's stated goal is: %q.", goal.Summary)
	}

	req := provider.Request{
		Model:  s.model,
		System: instruction,
		Messages: []provider.Message{
			{Role: "user", Content: text},
		},
		Options: provider.Options{Temperature: 0.2},
	}

	events, err := s.adapter.StreamChat(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("agentloop: summarize request: %w", err)
	}

	var out string
	for ev := range events {
		switch ev.Kind {
		case provider.EventText:
			out += ev.Chunk
		case provider.EventError:
			return "", 0, fmt.Errorf("agentloop: summarize stream error %s: %s", ev.ErrorCode, ev.ErrorMessage)
		case provider.EventFinish:
		}
	}

	return out, s.counter.Count(out), nil
}
