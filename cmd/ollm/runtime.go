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
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/agentloop"
	"github.com/Tecet/OLLM-CLI-sub019/internal/builtintools"
	"github.com/Tecet/OLLM-CLI-sub019/internal/compression"
	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxpool"
	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxsize"
	"github.com/Tecet/OLLM-CLI-sub019/internal/hooks"
	"github.com/Tecet/OLLM-CLI-sub019/internal/memguard"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/Tecet/OLLM-CLI-sub019/internal/mode"
	"github.com/Tecet/OLLM-CLI-sub019/internal/promptorch"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtconfig"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/Tecet/OLLM-CLI-sub019/internal/session"
	"github.com/Tecet/OLLM-CLI-sub019/internal/snapshot"
	"github.com/Tecet/OLLM-CLI-sub019/internal/tokencount"
	"github.com/Tecet/OLLM-CLI-sub019/internal/toolregistry"
	"github.com/Tecet/OLLM-CLI-sub019/internal/vram"
	"github.com/Tecet/OLLM-CLI-sub019/provider"
	"github.com/Tecet/OLLM-CLI-sub019/provider/ollamaadapter"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Runtime wires every internal package into one long-lived process
// bound to a home directory; the agent loop itself is rebuilt whenever
// the active session is rotated or rebound to a new model, since the
// compression coordinator and prompt orchestrator are scoped to one
// session's message/checkpoint stores.
type Runtime struct {
	home    string
	cfg     *rtconfig.Config
	adapter provider.Adapter

	sessions  *session.Manager
	modeMgr   *mode.Manager
	tools     *toolregistry.Registry
	prompts   *promptorch.Orchestrator
	profile   ctxsize.Profile
	vramMon   *vram.Monitor
	snapshots *snapshot.Store
	dispatch  *hooks.Dispatcher
	registry  *hooks.Registry
	pruner    *cron.Cron

	session    *session.Session
	pool       *ctxpool.Pool
	compressor *compression.Coordinator
	guard      *memguard.Guard
	loop       *agentloop.Loop
}

// NewRuntime loads configuration from home, wires every collaborator,
// and binds the first session to model.
func NewRuntime(home, model, baseURL string) (*Runtime, error) {
	if err := os.MkdirAll(home, 0o750); err != nil {
		return nil, err
	}

	cfg, err := rtconfig.Load(filepath.Join(home, "settings.json"))
	if err != nil {
		return nil, err
	}

	adapter := ollamaadapter.New(baseURL)

	r := &Runtime{
		home:      home,
		cfg:       cfg,
		adapter:   adapter,
		sessions:  session.NewManager(),
		modeMgr:   mode.NewManager(),
		tools:     toolregistry.New(),
		prompts:   promptorch.New(promptorch.DefaultBasePrompts()),
		profile:   ctxsize.DefaultProfile(),
		snapshots: snapshot.NewStore(filepath.Join(home, "context-snapshots")),
	}

	builtintools.Register(r.tools, "")

	vramSource := vram.Source(vram.ShellNvidiaSMISource{})
	r.vramMon = vram.NewMonitor(vramSource, 5*time.Second)
	r.vramMon.Start(context.Background())

	registry := hooks.NewRegistry(filepath.Join(home, "hooks", "approvals.json"))
	if err := hooks.LoadDir(registry, filepath.Join(home, "hooks")); err != nil {
		rtlog.Warn("runtime: loading hook definitions failed", zap.Error(err))
	}
	planner := hooks.NewPlanner(registry, hooks.RateLimit{Max: 60, Window: time.Minute})
	runner := hooks.NewRunner()
	runner.Timeout = cfg.HooksTimeout
	r.registry = registry
	if cfg.HooksEnabled {
		r.dispatch = hooks.NewDispatcher(registry, planner, runner)
	}

	workspaceHooksDir := filepath.Join(home, "hooks", "workspace")
	if _, statErr := os.Stat(workspaceHooksDir); statErr == nil {
		_ = registry.WatchWorkspace(context.Background(), workspaceHooksDir, func() {
			rtlog.Info("runtime: workspace hooks changed, re-registering")
		})
	}

	r.pruner = cron.New()
	_, _ = r.pruner.AddFunc("@hourly", r.pruneSnapshots)
	r.pruner.Start()

	r.bindSession(model)

	return r, nil
}

func (r *Runtime) pruneSnapshots() {
	if r.session == nil {
		return
	}
	for purpose, maxAge := range r.cfg.SnapshotsPruneAfter {
		if err := r.snapshots.Prune(r.session.ID, snapshot.Purpose(purpose), r.cfg.SnapshotsMaxPerPurpose, maxAge); err != nil {
			rtlog.Warn("runtime: snapshot prune failed", zap.String("purpose", purpose), zap.Error(err))
		}
	}
}

// bindSession creates (or reuses) a session bound to model and rebuilds
// every session-scoped collaborator: the context pool, the compressor,
// the memory guard, and the agent loop.
func (r *Runtime) bindSession(model string) {
	s := r.sessions.Current(model)
	r.session = s

	userSize := r.profile.MinimumUserSize
	if userSize <= 0 {
		userSize = 4096
	}
	r.pool = ctxpool.New(userSize, r.profile)

	summarizer := agentloop.NewSummarizer(r.adapter, model)
	r.compressor = compression.New(s.Messages, s.Checkpoints, summarizer, r.cfg)

	r.guard = memguard.New(r.pool, r.profile, memguard.DefaultThresholds(), memguard.Actions{
		BackgroundCompress: func(ctx context.Context) error {
			usage := r.pool.Usage()
			_, err := r.compressor.Run(ctx, compression.ActionNormalCompress, usage.ProviderSize, s.Goal)
			return err
		},
		CreateRecoverySnapshot: func(ctx context.Context) error {
			return r.snapshots.Save(ctx, snapshot.New(s.ID, snapshot.PurposeRecovery, snapshot.ConversationState{
				Messages:    s.Messages.Messages(),
				Checkpoints: s.Checkpoints.All(),
				Goal:        s.Goal,
			}))
		},
		CreateEmergencySnapshot: func(ctx context.Context) error {
			return r.snapshots.Save(ctx, snapshot.New(s.ID, snapshot.PurposeEmergency, snapshot.ConversationState{
				Messages:    s.Messages.Messages(),
				Checkpoints: s.Checkpoints.All(),
				Goal:        s.Goal,
			}))
		},
		ClearToMinimumTier: func(ctx context.Context) error {
			_, err := r.pool.Resize(ctx, r.profile.MinimumUserSize)
			return err
		},
	})

	var hookDispatcher agentloop.HookDispatcher
	if r.dispatch != nil {
		hookDispatcher = r.dispatch
	}

	r.loop = agentloop.New(agentloop.Deps{
		Adapter:    r.adapter,
		Model:      model,
		Session:    s,
		Pool:       r.pool,
		Profile:    r.profile,
		Compressor: r.compressor,
		Prompt:     r.prompts,
		Mode:       r.modeMgr,
		Tools:      r.tools,
		Guard:      r.guard,
		Snapshots:  r.snapshots,
		VRAM:       r.vramMon,
		Cfg:        r.cfg,
		Hooks:      hookDispatcher,
	})
}

// SwapModel implements the model-swap lifecycle of spec.md §4.6: close
// the current session, bind a fresh one to the new model, and record a
// confirmation system message in the new session (spec.md §8 end-to-end
// scenario 3).
func (r *Runtime) SwapModel(model string) {
	r.sessions.SwapModel(model)
	r.bindSession(model)
	r.announceModelLoaded(model)
}

// announceModelLoaded appends the literal confirmation message spec.md
// §8 scenario 3 requires on a model swap, recording the freshly bound
// session's provider context size.
func (r *Runtime) announceModelLoaded(model string) {
	content := fmt.Sprintf("Loaded %s with %d tokens context.", model, r.pool.Usage().ProviderSize)
	notice := message.New(uuid.NewString(), message.RoleSystem, content)
	notice.Finalize(tokencount.Get().Count(content))
	r.session.Messages.AddMessage(notice)
}

// New implements `/new`: rotate the session id, keep the bound model.
func (r *Runtime) New() {
	s := r.sessions.New()
	r.bindSession(s.Model)
}

// Clear implements `/clear`: wipe live messages, keep the session id
// and the leading system-prompt message, if any.
func (r *Runtime) Clear() {
	if r.session == nil {
		return
	}
	if msgs := r.session.Messages.Messages(); len(msgs) > 0 {
		first := msgs[0]
		if first.Role == "system" {
			session.Clear(r.session, &first)
			return
		}
	}
	session.Clear(r.session, nil)
}

// Shutdown stops background collaborators cleanly.
func (r *Runtime) Shutdown() {
	if r.vramMon != nil {
		r.vramMon.Stop()
	}
	if r.pruner != nil {
		r.pruner.Stop()
	}
	if r.registry != nil {
		r.registry.StopWatch()
	}
}
