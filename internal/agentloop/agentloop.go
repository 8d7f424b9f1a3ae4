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
// Package agentloop implements the agent loop of spec.md §4.10: the
// per-turn driver that builds a prompt, opens a provider stream, routes
// tool calls back through the registry, extracts reasoning traces, and
// enforces the loop-limit and cancellation invariants.
//
// Grounded on the teacher's turn-driver shape (pkg/agent/agent.go,
// internal/agent/agent.go): a coordinator that owns the provider call
// and tool dispatch for one user turn, generalized here to the pure
// components built in the sibling internal packages instead of the
// teacher's own session/compression code.
package agentloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/compression"
	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxpool"
	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxsize"
	"github.com/Tecet/OLLM-CLI-sub019/internal/memguard"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/Tecet/OLLM-CLI-sub019/internal/mode"
	"github.com/Tecet/OLLM-CLI-sub019/internal/promptorch"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtconfig"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/Tecet/OLLM-CLI-sub019/internal/runtimeerr"
	"github.com/Tecet/OLLM-CLI-sub019/internal/session"
	"github.com/Tecet/OLLM-CLI-sub019/internal/snapshot"
	"github.com/Tecet/OLLM-CLI-sub019/internal/tokencount"
	"github.com/Tecet/OLLM-CLI-sub019/internal/toolregistry"
	"github.com/Tecet/OLLM-CLI-sub019/internal/vram"
	"github.com/Tecet/OLLM-CLI-sub019/provider"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// HookDispatcher is the interface the hook subsystem satisfies. Declared
// here rather than imported from internal/hooks to keep the dependency
// direction one-way: hooks does not need to know about the agent loop.
type HookDispatcher interface {
	// Dispatch runs every applicable hook for eventType and returns the
	// aggregated continuation decision: cont is false if any blocking
	// hook replied continue:false; systemMessage is the first non-empty
	// systemMessage among replies, if any.
	Dispatch(ctx context.Context, eventType string, data map[string]any) (cont bool, systemMessage string, err error)
}

// Deps wires every collaborator the loop needs for one session bound to
// one model.
type Deps struct {
	Adapter  provider.Adapter
	Model    string
	Session  *session.Session
	Pool     *ctxpool.Pool
	Profile  ctxsize.Profile
	Compressor *compression.Coordinator
	Prompt   *promptorch.Orchestrator
	Mode     *mode.Manager
	Tools    *toolregistry.Registry
	Guard    *memguard.Guard
	Snapshots *snapshot.Store
	VRAM     *vram.Monitor
	Cfg      *rtconfig.Config
	Hooks    HookDispatcher // may be nil; treated as "no hooks configured"
}

// Loop drives turns for one Deps binding. Not safe for concurrent
// RunTurn calls on the same Loop — the UI serializes turns per spec.md
// §5 ("everything else on a user turn is serialized to the agent loop").
type Loop struct {
	deps    Deps
	counter *tokencount.Counter
}

// New creates a loop bound to deps.
func New(deps Deps) *Loop {
	return &Loop{deps: deps, counter: tokencount.Get()}
}

// TurnResult summarizes the outcome of one RunTurn call.
type TurnResult struct {
	FinalMessage message.Message
	ToolRounds   int
	Cancelled    bool
	ForcedStop   bool
	Checkpoint   *checkpoint.Checkpoint
}

func (l *Loop) dispatch(ctx context.Context, eventType string, data map[string]any) (bool, string) {
	if l.deps.Hooks == nil {
		return true, ""
	}
	cont, msg, err := l.deps.Hooks.Dispatch(ctx, eventType, data)
	if err != nil {
		rtlog.Warn("agentloop: hook dispatch failed", zap.String("event", eventType), zap.Error(err))
		return true, ""
	}
	return cont, msg
}

// RunTurn drives one user turn to completion: awaits any in-flight
// summarization, appends the user message, then iterates provider
// stream rounds until a non-tool-call finish, the loop-limit, or
// cancellation.
func (l *Loop) RunTurn(ctx context.Context, userInput string) (*TurnResult, error) {
	d := l.deps

	d.Compressor.AwaitClear(ctx)

	if cont, _ := l.dispatch(ctx, "before_agent", map[string]any{"input": userInput}); !cont {
		return nil, runtimeerr.HookFailure("before_agent", false, fmt.Errorf("blocked by hook"))
	}

	userMsg := message.New(uuid.NewString(), message.RoleUser, userInput)
	userMsg.Finalize(l.counter.Count(userInput))
	d.Session.Messages.AddMessage(userMsg)

	maxTurns := d.Cfg.AgentMaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	result := &TurnResult{}

	for toolRounds := 0; ; {
		if err := ctx.Err(); err != nil {
			result.Cancelled = true
			return result, nil
		}

		if err := l.validateContext(ctx); err != nil {
			return result, err
		}

		tier := d.Prompt.LockedTier()
		if tier == "" {
			tier = ctxsize.ClassifyTier(d.Pool.Usage().UserSize, d.Profile)
			d.Prompt.LockTier(tier)
		}

		reasoningCapable := false
		if capable, ok := d.Adapter.(provider.CapableAdapter); ok {
			caps := capable.Capabilities()
			reasoningCapable = caps.EmitsStructuredReasoning || caps.UsesThinkMarkers
		}

		system := d.Prompt.Rebuild(promptorch.RebuildInput{
			ModeOverlay:              d.Mode.Overlay(),
			ProviderLacksToolCalling: !l.supportsStructuredTools(),
			ReasoningCapable:         reasoningCapable,
		})

		if cont, _ := l.dispatch(ctx, "before_tool_selection", nil); !cont {
			return result, runtimeerr.HookFailure("before_tool_selection", true, fmt.Errorf("blocked by hook"))
		}
		tools := d.Tools.SchemasForMode(d.Mode.Active())

		req := provider.Request{
			Model:    d.Model,
			System:   system,
			Messages: toProviderMessages(d.Session.Messages.Messages()),
			Tools:    toProviderToolSchemas(tools),
			Options: provider.Options{
				Temperature:       0.7,
				ContextWindowHint: d.Pool.Usage().ProviderSize,
			},
		}

		if cont, _ := l.dispatch(ctx, "before_model", map[string]any{"model": d.Model}); !cont {
			return result, runtimeerr.HookFailure("before_model", true, fmt.Errorf("blocked by hook"))
		}

		d.Mode.BeginStream()
		assistantMsg, toolCalls, streamErr := l.runStreamWithRetry(ctx, req)
		d.Mode.EndStream()

		l.dispatch(ctx, "after_model", map[string]any{"model": d.Model})

		if streamErr != nil {
			if err := ctx.Err(); err != nil {
				assistantMsg.Finalize(l.counter.Count(assistantMsg.Content))
				d.Session.Messages.AddMessage(assistantMsg)
				result.FinalMessage = assistantMsg
				result.Cancelled = true
				return result, nil
			}
			var surface *runtimeerr.Surface
			if errors.As(streamErr, &surface) {
				return result, surface
			}
			return result, runtimeerr.ProviderProtocol(streamErr)
		}

		if err := ctx.Err(); err != nil {
			assistantMsg.Finalize(l.counter.Count(assistantMsg.Content))
			d.Session.Messages.AddMessage(assistantMsg)
			result.FinalMessage = assistantMsg
			result.Cancelled = true
			return result, nil
		}

		if len(toolCalls) == 0 {
			assistantMsg.Finalize(l.counter.Count(assistantMsg.Content))
			d.Session.Messages.AddMessage(assistantMsg)
			result.FinalMessage = assistantMsg
			d.Session.Touch(assistantMsg.TokenCount)
			l.dispatch(ctx, "after_agent", nil)
			l.checkMemoryGuard(ctx)
			return result, nil
		}

		if toolRounds >= maxTurns {
			assistantMsg.Content += "\n\n[stopped: reached the maximum number of tool-call rounds for this turn]"
			assistantMsg.Finalize(l.counter.Count(assistantMsg.Content))
			d.Session.Messages.AddMessage(assistantMsg)
			result.FinalMessage = assistantMsg
			result.ForcedStop = true
			l.dispatch(ctx, "after_agent", nil)
			l.checkMemoryGuard(ctx)
			return result, nil
		}

		assistantMsg.ToolCalls = toolCalls
		assistantMsg.Finalize(l.counter.Count(assistantMsg.Content))
		d.Session.Messages.AddMessage(assistantMsg)

		l.runToolCalls(ctx, toolCalls)
		toolRounds++
		result.ToolRounds = toolRounds
	}
}

// supportsStructuredTools reports whether the current adapter can accept
// tool schemas directly, so the prompt orchestrator knows whether to
// inject the fallback tool-call note.
func (l *Loop) supportsStructuredTools() bool {
	if capable, ok := l.deps.Adapter.(provider.CapableAdapter); ok {
		return capable.Capabilities().SupportsStructuredTools
	}
	return false
}

// validateContext re-counts the live conversation, updates the context
// pool, and runs any compression action the resulting fill ratio
// demands — including driving emergency rollover, which the compression
// coordinator itself refuses to run (spec.md §4.4/§7 ContextOverflow).
func (l *Loop) validateContext(ctx context.Context) error {
	d := l.deps

	tokens := l.counter.CountMessages(d.Session.Messages.Messages())
	for _, c := range d.Session.Checkpoints.All() {
		tokens += c.TokenCount
	}
	d.Pool.SetTokens(tokens)

	usage := d.Pool.Usage()
	action := compression.DecideAction(usage.PercentOfProvider)

	if action == compression.ActionEmergencyRollover {
		return l.rollover(ctx)
	}
	if action == compression.ActionNone {
		return nil
	}

	if cont, _ := l.dispatch(ctx, "pre_compress", map[string]any{"action": int(action)}); !cont {
		return nil
	}

	ck, err := d.Compressor.Run(ctx, action, usage.ProviderSize, d.Session.Goal)
	if err != nil {
		rtlog.Warn("agentloop: compression run failed", zap.Error(err))
		return nil
	}
	if ck != nil {
		d.Session.RecordCompression()
		l.dispatch(ctx, "post_compress", map[string]any{"checkpoint_id": ck.ID})
		newTokens := l.counter.CountMessages(d.Session.Messages.Messages())
		for _, c := range d.Session.Checkpoints.All() {
			newTokens += c.TokenCount
		}
		d.Pool.SetTokens(newTokens)
	}
	return nil
}

// rollover implements spec.md §4.4's `r >= 1.00` action: a blocking
// emergency snapshot, clearing live messages to just the system prompt,
// and resetting to the profile's minimum tier.
func (l *Loop) rollover(ctx context.Context) error {
	d := l.deps

	if d.Snapshots != nil {
		state := snapshot.ConversationState{
			Messages:    d.Session.Messages.Messages(),
			Checkpoints: d.Session.Checkpoints.All(),
			Goal:        d.Session.Goal,
		}
		snap := snapshot.New(d.Session.ID, snapshot.PurposeEmergency, state)
		if err := d.Snapshots.Save(ctx, snap); err != nil {
			rtlog.Error("agentloop: emergency snapshot failed during rollover", zap.Error(err))
			return runtimeerr.ContextOverflow(err)
		}
		rtlog.Error("agentloop: emergency rollover", zap.String("session_id", d.Session.ID), zap.String("snapshot_id", snap.ID))

		var systemPrompt *message.Message
		if msgs := d.Session.Messages.Messages(); len(msgs) > 0 && msgs[0].Role == message.RoleSystem {
			systemPrompt = &msgs[0]
		}
		d.Session.Messages.Clear()
		if systemPrompt != nil {
			d.Session.Messages.AddMessage(*systemPrompt)
		}

		notice := message.New(uuid.NewString(), message.RoleSystem,
			fmt.Sprintf("Context was full and has been reset. A recovery snapshot was saved (id %s); use /context restore %s to recall it.", snap.ID, snap.ID))
		notice.Finalize(l.counter.Count(notice.Content))
		d.Session.Messages.AddMessage(notice)
	}

	minimum := d.Profile.MinimumUserSize
	if minimum <= 0 {
		minimum = 4096
	}
	if _, err := d.Pool.Resize(ctx, minimum); err != nil {
		return err
	}
	d.Prompt.LockTier(ctxsize.ClassifyTier(minimum, d.Profile))
	d.Pool.SetTokens(l.counter.CountMessages(d.Session.Messages.Messages()))

	return nil
}

// checkMemoryGuard runs the memory guard's graded checks after a turn
// completes (spec.md §4.11: "tied to provider-pool fill ratio and
// observed VRAM pressure"), using the most recent VRAM sample if a
// monitor is configured.
func (l *Loop) checkMemoryGuard(ctx context.Context) {
	if l.deps.Guard == nil {
		return
	}
	var info vram.Info
	if l.deps.VRAM != nil {
		info = l.deps.VRAM.Latest()
	}
	if _, err := l.deps.Guard.Check(ctx, info); err != nil {
		rtlog.Warn("agentloop: memory guard check failed", zap.Error(err))
	}
}

// providerRetryBackoff is the delay before the agent loop's single
// retry of a provider-transient stream error (spec.md §7.1).
const providerRetryBackoff = 250 * time.Millisecond

// classifyStreamError maps a provider-tagged wire error to the runtime's
// taxonomy. "transport" (a mid-stream read failure) and an unset code (a
// failure opening the stream at all — network error or 5xx) are
// transient and eligible for the agent loop's single retry; everything
// else — "protocol" (malformed/undecodable wire JSON) — fails the turn
// fast and is never retried.
func classifyStreamError(code string, detail error) error {
	if code == "transport" || code == "" {
		return runtimeerr.ProviderTransient(detail)
	}
	return runtimeerr.ProviderProtocol(detail)
}

// runStreamWithRetry runs runStream once, and if it fails with a
// provider-transient error, retries the same request once after an
// exponential backoff delay (spec.md §7.1 "retries the current turn
// once with exponential backoff; then surfaces").
func (l *Loop) runStreamWithRetry(ctx context.Context, req provider.Request) (message.Message, []message.ToolCall, error) {
	msg, toolCalls, err := l.runStream(ctx, req)
	if err == nil || ctx.Err() != nil {
		return msg, toolCalls, err
	}

	var surface *runtimeerr.Surface
	if !errors.As(err, &surface) || surface.Kind != runtimeerr.KindProviderTransient {
		return msg, toolCalls, err
	}

	rtlog.Warn("agentloop: provider-transient error, retrying turn once", zap.Error(err))
	select {
	case <-time.After(providerRetryBackoff):
	case <-ctx.Done():
		return msg, toolCalls, err
	}

	return l.runStream(ctx, req)
}

// runStream drains one provider stream into an assistant message plus
// any requested tool calls, handling text/reasoning/finish/error events
// and stopping promptly on cancellation.
func (l *Loop) runStream(ctx context.Context, req provider.Request) (message.Message, []message.ToolCall, error) {
	msg := message.New(uuid.NewString(), message.RoleAssistant, "")
	parser := &reasoningParser{}

	events, err := l.deps.Adapter.StreamChat(ctx, req)
	if err != nil {
		return msg, nil, runtimeerr.ProviderTransient(err)
	}

	var toolCalls []message.ToolCall

	for {
		select {
		case <-ctx.Done():
			msg.Content = parser.VisibleText()
			return msg, nil, nil
		case ev, ok := <-events:
			if !ok {
				msg.Content = parser.VisibleText()
				return msg, toolCalls, nil
			}
			switch ev.Kind {
			case provider.EventText:
				parser.Feed(ev.Chunk)
			case provider.EventReasoning:
				parser.Feed(thinkOpen + ev.Chunk + thinkClose)
			case provider.EventToolCall:
				toolCalls = append(toolCalls, message.ToolCall{
					ID:   ev.ToolCallID,
					Name: ev.ToolName,
					Args: ev.ToolArgs,
				})
			case provider.EventFinish:
				msg.Content = parser.VisibleText()
				if content, complete := parser.Reasoning(); parser.Started() {
					msg.Reasoning = &message.ReasoningBlock{Content: content, Complete: complete, TokenCount: l.counter.Count(content)}
				}
				return msg, toolCalls, nil
			case provider.EventError:
				return msg, toolCalls, classifyStreamError(ev.ErrorCode, fmt.Errorf("%s: %s", ev.ErrorCode, ev.ErrorMessage))
			}
		}
	}
}

// runToolCalls executes every requested tool call through the registry,
// in the order the provider emitted them, appending one `tool` message
// per call in the same order (spec.md §4.10 ordering guarantee). Tool
// calls are not executed once ctx is already done.
func (l *Loop) runToolCalls(ctx context.Context, calls []message.ToolCall) {
	d := l.deps
	for _, call := range calls {
		if ctx.Err() != nil {
			return
		}

		if cont, _ := l.dispatch(ctx, "before_tool", map[string]any{"name": call.Name, "args": call.Args}); !cont {
			toolMsg := message.New(uuid.NewString(), message.RoleTool, "")
			toolMsg.ToolCalls = []message.ToolCall{{ID: call.ID, Name: call.Name, Args: call.Args, Error: "blocked by hook"}}
			toolMsg.Finalize(l.counter.Count(toolMsg.Content))
			d.Session.Messages.AddMessage(toolMsg)
			continue
		}

		result, err := d.Tools.Invoke(ctx, call.Name, d.Mode.Active(), call.Args)
		finished := call
		if err != nil {
			finished.Error = err.Error()
			rtlog.Warn("agentloop: tool execution failed", zap.String("tool", call.Name), zap.Error(err))
		} else {
			finished.Result = result
		}

		l.dispatch(ctx, "after_tool", map[string]any{"name": call.Name, "error": finished.Error})

		toolMsg := message.New(uuid.NewString(), message.RoleTool, result)
		toolMsg.ToolCalls = []message.ToolCall{finished}
		toolMsg.Finalize(l.counter.Count(toolMsg.Content))
		d.Session.Messages.AddMessage(toolMsg)
	}
}

func toProviderMessages(msgs []message.Message) []provider.Message {
	out := make([]provider.Message, 0, len(msgs))
	for _, m := range msgs {
		pm := provider.Message{Role: string(m.Role), Content: m.Content}
		for _, tc := range m.ToolCalls {
			pm.ToolCalls = append(pm.ToolCalls, provider.ToolCallRequest{ID: tc.ID, Name: tc.Name, Args: tc.Args})
		}
		out = append(out, pm)
	}
	return out
}

func toProviderToolSchemas(tools []toolregistry.Tool) []provider.ToolSchema {
	out := make([]provider.ToolSchema, 0, len(tools))
	for _, t := range tools {
		out = append(out, provider.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// NewSummarizer builds the checkpoint.Summarizer this loop's compression
// coordinator should be constructed with, bound to the same adapter and
// model the loop streams turns against.
func NewSummarizer(adapter provider.Adapter, model string) checkpoint.Summarizer {
	return newProviderSummarizer(adapter, model, tokencount.Get())
}
