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
	"context"
	"fmt"
	"strings"

	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Dispatcher implements agentloop.HookDispatcher by wiring a Registry,
// Planner, and Runner together: plan the batch for one event, run the
// parallel group concurrently, then the sequential group in order, and
// fold every reply into the single (continue, systemMessage, error)
// triple the agent loop consumes.
type Dispatcher struct {
	registry *Registry
	planner  *Planner
	runner   *Runner
}

// NewDispatcher builds a Dispatcher over an already-populated registry.
func NewDispatcher(registry *Registry, planner *Planner, runner *Runner) *Dispatcher {
	return &Dispatcher{registry: registry, planner: planner, runner: runner}
}

// Dispatch runs every hook registered for eventType and returns whether
// the lifecycle action it guards may proceed. A blocking event (spec.md
// §7 HookFailure: before_*/pre_*) is refused if any hook in the plan
// replies continue:false, fails, or times out with continue:false; a
// non-blocking event never refuses the action, it only ever contributes
// a system message.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, data map[string]any) (bool, string, error) {
	file, _ := data["file"].(string)
	plan, refused := d.planner.Plan(eventType, file)

	for _, h := range refused {
		rtlog.Debug("hooks: refusing pending/untrusted hook", zap.String("hook", h.ID), zap.String("event", eventType))
	}

	event := Event{EventType: eventType, Data: data}
	blocking := IsBlocking(eventType)

	var messages []string
	cont := true

	if len(plan.Parallel) > 0 {
		group, gctx := errgroup.WithContext(ctx)
		results := make([]Execution, len(plan.Parallel))
		for i, h := range plan.Parallel {
			i, h := i, h
			group.Go(func() error {
				results[i] = d.runner.Run(gctx, h, event)
				return nil
			})
		}
		_ = group.Wait() // per-hook errors live in each Execution, not the group error
		for _, ex := range results {
			ok, msg := d.fold(ex, blocking)
			if msg != "" {
				messages = append(messages, msg)
			}
			if !ok {
				cont = false
			}
		}
	}

	for _, h := range plan.Sequential {
		if ctx.Err() != nil {
			break
		}
		ex := d.runner.Run(ctx, h, event)
		ok, msg := d.fold(ex, blocking)
		if msg != "" {
			messages = append(messages, msg)
		}
		if !ok {
			cont = false
		}
	}

	if len(refused) > 0 && blocking {
		names := make([]string, 0, len(refused))
		for _, h := range refused {
			names = append(names, h.Name)
		}
		messages = append(messages, fmt.Sprintf("blocked: untrusted hook(s) %s require approval", strings.Join(names, ", ")))
		cont = false
	}

	return cont, strings.Join(messages, "\n"), nil
}

// fold maps one hook's execution onto (ok, systemMessage). ok is only
// ever false for a blocking event; non-blocking events always report ok
// true regardless of the hook's reply, matching spec.md §4.12's
// "non-blocking events never halt the pipeline, they only ever surface a
// system message".
func (d *Dispatcher) fold(ex Execution, blocking bool) (bool, string) {
	switch ex.Status {
	case StatusSucceeded:
		if !ex.Reply.Continue && blocking {
			if ex.Reply.SystemMessage != "" {
				return false, ex.Reply.SystemMessage
			}
			return false, fmt.Sprintf("blocked by hook %q", ex.Hook.Name)
		}
		return true, ex.Reply.SystemMessage
	case StatusTimedOut:
		msg := fmt.Sprintf("hook %q timed out", ex.Hook.Name)
		if blocking && !ex.Reply.Continue {
			return false, msg
		}
		return true, msg
	case StatusFailed, StatusBlockedByTrust:
		msg := ex.Reply.SystemMessage
		if msg == "" && ex.Err != nil {
			msg = ex.Err.Error()
		}
		if blocking {
			return false, msg
		}
		return true, msg
	default:
		return true, ""
	}
}
