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
// Package mode implements the mode manager of spec.md §4.8: discrete
// operational modes with an active overlay contribution to the system
// prompt, explicit transitions, and persisted transition snapshots.
package mode

import (
	"sync"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
)

// Mode is a named operational overlay.
type Mode string

const (
	Assistant Mode = "assistant"
	Debugger  Mode = "debugger"
	Architect Mode = "architect"
)

// defaultOverlays holds the system-prompt fragment each built-in mode
// contributes; Manager.Overlay returns the active one. Callers needing a
// custom overlay set (e.g. extensions adding modes) call
// Manager.RegisterOverlay.
var defaultOverlays = map[Mode]string{
	Assistant: "You are a general-purpose assistant. Be concise and helpful.",
	Debugger:  "You are in debugger mode. Focus on root-causing the reported failure before proposing a fix.",
	Architect: "You are in architect mode. Favor design discussion and trade-off analysis over direct edits.",
}

// TransitionSnapshot is the bounded record stored on every mode change
// (spec.md §3 ModeTransitionSnapshot).
type TransitionSnapshot struct {
	From            Mode
	To              Mode
	Timestamp       time.Time
	RecentMessages  []message.Message
	ActiveTools     []string
	Findings        string
}

const recentMessageBound = 10

// Manager owns the active mode for a session and records transitions.
// Transitions are explicit by default; AutoSwitch is present but must be
// enabled by the caller and the manager refuses to switch while a stream
// is active (spec.md §4.8).
type Manager struct {
	mu          sync.Mutex
	active      Mode
	overlays    map[Mode]string
	history     []TransitionSnapshot
	autoSwitch  bool
	streamBusy  bool
}

// NewManager creates a manager starting in Assistant mode.
func NewManager() *Manager {
	overlays := make(map[Mode]string, len(defaultOverlays))
	for k, v := range defaultOverlays {
		overlays[k] = v
	}
	return &Manager{active: Assistant, overlays: overlays}
}

// RegisterOverlay adds or replaces the overlay text for a mode.
func (m *Manager) RegisterOverlay(mode Mode, overlay string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays[mode] = overlay
}

// SetAutoSwitch enables or disables proactive mode switching. Disabled
// by default (spec.md §4.8).
func (m *Manager) SetAutoSwitch(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoSwitch = enabled
}

// Active returns the current mode.
func (m *Manager) Active() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Overlay returns the system-prompt contribution for the current mode.
func (m *Manager) Overlay() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.overlays[m.active]
}

// BeginStream marks a provider stream as active; while true, Switch and
// auto-switch are refused so mode cannot change mid-stream (spec.md §8
// invariant).
func (m *Manager) BeginStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamBusy = true
}

// EndStream clears the in-stream flag.
func (m *Manager) EndStream() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamBusy = false
}

// ErrStreamActive is returned by Switch when a provider stream is
// currently in flight.
type ErrStreamActive struct{}

func (ErrStreamActive) Error() string { return "mode: cannot switch while a provider stream is active" }

// Switch performs an explicit transition: records a TransitionSnapshot
// bounded to the most recent messages, active tool names, and findings,
// then changes the overlay.
func (m *Manager) Switch(to Mode, recent []message.Message, activeTools []string, findings string) (*TransitionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.streamBusy {
		return nil, ErrStreamActive{}
	}

	bounded := recent
	if len(bounded) > recentMessageBound {
		bounded = bounded[len(bounded)-recentMessageBound:]
	}

	snap := TransitionSnapshot{
		From:           m.active,
		To:             to,
		Timestamp:      time.Now(),
		RecentMessages: append([]message.Message(nil), bounded...),
		ActiveTools:    append([]string(nil), activeTools...),
		Findings:       findings,
	}

	m.history = append(m.history, snap)
	m.active = to

	return &snap, nil
}

// History returns every recorded transition, oldest first.
func (m *Manager) History() []TransitionSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]TransitionSnapshot, len(m.history))
	copy(out, m.history)
	return out
}

// AutoSwitchEnabled reports whether proactive switching is on.
func (m *Manager) AutoSwitchEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.autoSwitch
}
