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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Registry loads hook definitions from builtin/user/workspace/downloaded
// sources and tracks approvals by content hash (spec.md §4.12 Trust
// model). Workspace hook files are watched with fsnotify so editing a
// workspace's .ollm/hooks/ directory re-verifies trust without a
// restart, the same hot-reload shape the teacher applies to its
// watched config files.
type Registry struct {
	mu       sync.RWMutex
	hooks    map[string]*Hook
	approved map[string]bool // content hash -> approved

	approvalsPath string
	watcher       *fsnotify.Watcher
}

// NewRegistry creates an empty registry. approvalsPath is where approved
// content hashes are persisted (as a JSON array), read on NewRegistry
// and rewritten on every Approve call.
func NewRegistry(approvalsPath string) *Registry {
	r := &Registry{
		hooks:         make(map[string]*Hook),
		approved:      make(map[string]bool),
		approvalsPath: approvalsPath,
	}
	r.loadApprovals()
	return r
}

func (r *Registry) loadApprovals() {
	if r.approvalsPath == "" {
		return
	}
	data, err := os.ReadFile(r.approvalsPath)
	if err != nil {
		return
	}
	var hashes []string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return
	}
	for _, h := range hashes {
		r.approved[h] = true
	}
}

func (r *Registry) saveApprovals() {
	if r.approvalsPath == "" {
		return
	}
	hashes := make([]string, 0, len(r.approved))
	for h := range r.approved {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(r.approvalsPath), 0o750); err != nil {
		return
	}
	_ = os.WriteFile(r.approvalsPath, data, 0o600)
}

// Register adds or replaces a hook, resolving its effective trust from
// the persisted approval set: builtin hooks are always trusted; a user
// hook is trusted when its content hash is approved or its definition
// carries no trust value, so a changed user hook is not re-verified;
// workspace/downloaded hooks start pending until Approve is called.
func (r *Registry) Register(h Hook) {
	hash := h.HashContent()

	switch h.Source {
	case SourceBuiltin:
		h.Trust = TrustBuiltin
	case SourceUser:
		if r.approved[hash] || h.Trust == "" {
			h.Trust = TrustUser
		}
	case SourceWorkspace:
		if r.approved[hash] {
			h.Trust = TrustApproved
		} else {
			h.Trust = TrustWorkspacePending
		}
	case SourceDownloaded:
		if r.approved[hash] {
			h.Trust = TrustApproved
		} else {
			h.Trust = TrustDownloadedPending
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks[h.ID] = &h
}

// Approve marks a hook's current content hash as trusted and persists
// it, so future restarts and Register calls see it as approved.
func (r *Registry) Approve(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.hooks[id]
	if !ok {
		return fmt.Errorf("hooks: unknown hook %q", id)
	}
	hash := h.HashContent()
	r.approved[hash] = true
	h.Trust = TrustApproved
	r.saveApprovals()
	return nil
}

// SetEnabled toggles a hook's enabled flag.
func (r *Registry) SetEnabled(id string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.hooks[id]; ok {
		h.Enabled = enabled
	}
}

// ForEvent returns every registered hook matching eventType, ordered by
// source priority (builtin, user, workspace, downloaded) and then by id
// for determinism.
func (r *Registry) ForEvent(eventType string) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Hook
	for _, h := range r.hooks {
		if h.EventType == eventType {
			out = append(out, *h)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// All returns every registered hook, for diagnostics/listing commands.
func (r *Registry) All() []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Hook, 0, len(r.hooks))
	for _, h := range r.hooks {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// WatchWorkspace starts an fsnotify watch on dir (typically
// <workspace>/.ollm/hooks/workspace/); on any write or rename it calls
// reload, which the caller supplies to re-read hook definitions from
// disk and re-Register them, so a trust decision is re-evaluated
// whenever the underlying file changes hash.
func (r *Registry) WatchWorkspace(ctx context.Context, dir string, reload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("hooks: create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("hooks: watch %s: %w", dir, err)
	}
	r.watcher = watcher

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					rtlog.Info("hooks: workspace hook file changed, reloading", zap.String("path", ev.Name))
					reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				rtlog.Warn("hooks: watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

// StopWatch stops the workspace watcher, if one was started.
func (r *Registry) StopWatch() {
	if r.watcher != nil {
		r.watcher.Close()
	}
}
