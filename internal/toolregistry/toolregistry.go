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
// Package toolregistry implements the tool registry and router of
// spec.md §4.9: declarative tool records with JSON-schema parameters,
// capability-based lookup, and per-mode filtering of the schema set
// passed to the provider.
package toolregistry

import (
	"context"
	"fmt"
	"sync"

	"github.com/Tecet/OLLM-CLI-sub019/internal/mode"
)

// Schema is a JSON-schema-shaped parameter description. Kept as a bare
// map rather than a typed struct so extension tools (and, eventually,
// MCP-backed tools routed through the same capability lookup) can supply
// arbitrary schemas without this package needing to know their shape.
type Schema map[string]any

// ExecuteFunc runs a tool with validated-at-the-boundary args.
type ExecuteFunc func(ctx context.Context, args map[string]any) (result string, err error)

// Tool is one declarative entry in the registry.
type Tool struct {
	Name        string
	Description string
	Parameters  Schema
	Capability  string
	Execute     ExecuteFunc

	// Modes lists which modes may see this tool. A nil/empty slice means
	// "every mode".
	Modes []mode.Mode
}

func (t Tool) allowedIn(m mode.Mode) bool {
	if len(t.Modes) == 0 {
		return true
	}
	for _, allowed := range t.Modes {
		if allowed == m {
			return true
		}
	}
	return false
}

// Registry holds every registered tool and resolves capability lookups.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name] = t
}

// Get looks up a tool by exact name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// ByCapability finds a tool implementing the given capability tag. If
// more than one tool declares the same capability, the first
// alphabetically-named match is returned, so lookups are deterministic.
func (r *Registry) ByCapability(capability string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best Tool
	found := false
	for _, t := range r.tools {
		if t.Capability != capability {
			continue
		}
		if !found || t.Name < best.Name {
			best = t
			found = true
		}
	}
	return best, found
}

// SchemasForMode returns every tool's schema that is permitted in the
// given mode — this is the set passed to the provider (spec.md §4.9
// "only tools permitted for the current mode are exposed").
func (r *Registry) SchemasForMode(m mode.Mode) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Tool
	for _, t := range r.tools {
		if t.allowedIn(m) {
			out = append(out, t)
		}
	}
	return out
}

// Invoke executes a tool by name, after checking it is permitted in the
// current mode. Returns an error if the tool is unknown or not
// permitted, rather than silently no-op'ing.
func (r *Registry) Invoke(ctx context.Context, name string, m mode.Mode, args map[string]any) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("toolregistry: unknown tool %q", name)
	}
	if !t.allowedIn(m) {
		return "", fmt.Errorf("toolregistry: tool %q is not permitted in mode %q", name, m)
	}
	if t.Execute == nil {
		return "", fmt.Errorf("toolregistry: tool %q has no executor", name)
	}
	return t.Execute(ctx, args)
}
