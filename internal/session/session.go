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
// Package session implements the session manager of spec.md §4.6: a
// session id bound to a model, created/closed on model swap. This
// replaces the teacher's prior design of a single session id reused
// across model swaps (a package-level singleton created once at UI
// boot) — spec.md §9 "Global state for session/manager coupling" — with
// a composite keyed by (session_id, model) that the manager rotates on
// swap; there is no global singleton here.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
)

// Metadata carries session-wide counters referenced by spec.md §3
// Session ("metadata: counters: compressions, total tokens").
type Metadata struct {
	CompressionCount    int
	TotalTokensEverSeen int64
}

// Session is one conversation bound to exactly one model.
type Session struct {
	ID           string
	Model        string
	CreatedAt    time.Time
	LastUpdateAt time.Time
	ClosedAt     *time.Time

	Messages    *message.Store
	Checkpoints *checkpoint.Store
	Metadata    Metadata
	Goal        *checkpoint.Goal
}

// IsClosed reports whether the session has been superseded.
func (s *Session) IsClosed() bool { return s.ClosedAt != nil }

// Manager owns the currently active session and rotates it on model
// swap, per spec.md §4.6.
type Manager struct {
	mu      sync.Mutex
	counter int
	current *Session
}

// NewManager creates a manager with no active session.
func NewManager() *Manager {
	return &Manager{}
}

func (m *Manager) nextID() string {
	m.counter++
	return fmt.Sprintf("session-%d", m.counter)
}

// Current returns the active session, creating one for the given model
// if none exists yet (first user turn).
func (m *Manager) Current(model string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil {
		return m.current
	}
	return m.newSessionLocked(model)
}

func (m *Manager) newSessionLocked(model string) *Session {
	now := time.Now()
	s := &Session{
		ID:           m.nextID(),
		Model:        model,
		CreatedAt:    now,
		LastUpdateAt: now,
		Messages:     message.NewStore(),
		Checkpoints:  checkpoint.NewStore(),
	}
	m.current = s
	return s
}

// SwapModel closes the current session (marking ClosedAt) and starts a
// fresh one bound to the new model. Snapshots, checkpoints, and
// mode-transition snapshots from the old session remain on disk but are
// no longer referenced by the new session (spec.md §4.6, §8 scenario 3).
func (m *Manager) SwapModel(newModel string) (old *Session, fresh *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	old = m.current
	if old != nil {
		now := time.Now()
		old.ClosedAt = &now
	}
	fresh = m.newSessionLocked(newModel)
	return old, fresh
}

// New handles the `/new` command: create a new session without clearing
// the UI's own live-message binding. In this runtime that simply means
// rotating the session id while keeping the same model; live messages
// belong to the UI layer's session-new binding, not to this manager, so
// the new session starts empty by construction (spec.md §4.6).
func (m *Manager) New() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	model := ""
	if m.current != nil {
		model = m.current.Model
		now := time.Now()
		m.current.ClosedAt = &now
	}
	return m.newSessionLocked(model)
}

// Clear handles the `/clear` command: clears the live messages in the
// current session, preserving the system prompt, without rotating the
// session id (spec.md §4.6). The caller supplies the system prompt
// message to re-seed, if any.
func Clear(s *Session, systemPrompt *message.Message) {
	s.Messages.Clear()
	if systemPrompt != nil {
		s.Messages.AddMessage(*systemPrompt)
	}
	s.LastUpdateAt = time.Now()
}

// Touch updates LastUpdateAt and rolls token counters into Metadata.
func (s *Session) Touch(tokensThisTurn int) {
	s.LastUpdateAt = time.Now()
	s.TotalTokensSeen(tokensThisTurn)
}

// TotalTokensSeen accumulates tokens into the session's running total.
func (s *Session) TotalTokensSeen(tokens int) {
	s.Metadata.TotalTokensEverSeen += int64(tokens)
}

// RecordCompression increments the session's compression counter.
func (s *Session) RecordCompression() {
	s.Metadata.CompressionCount++
}
