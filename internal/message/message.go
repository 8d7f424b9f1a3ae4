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
// Package message implements the Message store of spec.md §3/§4 — the
// ordered sequence of turns with ids, timestamps, reasoning traces, and
// tool calls that the agent loop and compression coordinator operate
// over.
package message

import "time"

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID     string
	Name   string
	Args   map[string]any
	Result string
	Error  string
}

// Finished reports whether the call has a result or error recorded.
func (tc ToolCall) Finished() bool {
	return tc.Result != "" || tc.Error != ""
}

// ReasoningBlock is the structured reasoning trace attached to an
// assistant message, produced either from explicit reasoning stream
// events or from parsed <think>...</think> regions (spec.md §3, §9).
type ReasoningBlock struct {
	Content     string
	TokenCount  int
	DurationMs  int64
	Complete    bool
}

// Attachment is a file or image carried alongside a turn. The runtime
// only carries attachments through the prompt; producing them is the
// file-explorer/editor's job (out of scope per spec.md §1).
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Message is one turn in the causal history of a session.
//
// Invariant (spec.md §3): role order within a turn is
// user -> assistant (possibly tool-call) -> tool(s) -> assistant continuation.
type Message struct {
	ID          string
	Role        Role
	Content     string
	ToolCalls   []ToolCall
	Reasoning   *ReasoningBlock
	Attachments []Attachment
	Timestamp   time.Time

	// TokenCount is cached on finalize; zero means "not yet counted".
	TokenCount int

	finalized bool
}

// New creates a message with a fresh timestamp.
func New(id string, role Role, content string) Message {
	return Message{ID: id, Role: role, Content: content, Timestamp: time.Now()}
}

// Finalize marks the message immutable and caches its token count.
// Further calls are no-ops — a finalized message is never mutated again,
// it is only ever replaced wholesale by a checkpoint (spec.md §3
// lifecycle).
func (m *Message) Finalize(tokenCount int) {
	if m.finalized {
		return
	}
	m.TokenCount = tokenCount
	m.finalized = true
}

// IsFinalized reports whether Finalize has been called.
func (m *Message) IsFinalized() bool { return m.finalized }

// Store is the ordered, append-only sequence of messages for a session.
// Writes go through AddMessage so invariants (causal order) hold;
// external callers should treat Messages() as read-only.
type Store struct {
	messages []Message
}

// NewStore creates an empty message store.
func NewStore() *Store { return &Store{} }

// AddMessage appends a message to the end of the store.
func (s *Store) AddMessage(m Message) {
	s.messages = append(s.messages, m)
}

// Messages returns a read-only view of the live messages, in order.
func (s *Store) Messages() []Message {
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of live messages.
func (s *Store) Len() int { return len(s.messages) }

// ByID finds a live message by id.
func (s *Store) ByID(id string) (Message, bool) {
	for _, m := range s.messages {
		if m.ID == id {
			return m, true
		}
	}
	return Message{}, false
}

// ReplaceRange removes messages in [startIdx, endIdx) — a contiguous
// window — typically because a checkpoint now represents them. Returns
// the ids that were removed so the caller can record them as a
// checkpoint's original_message_ids.
func (s *Store) ReplaceRange(startIdx, endIdx int) []string {
	if startIdx < 0 || endIdx > len(s.messages) || startIdx >= endIdx {
		return nil
	}
	removedIDs := make([]string, 0, endIdx-startIdx)
	for _, m := range s.messages[startIdx:endIdx] {
		removedIDs = append(removedIDs, m.ID)
	}
	s.messages = append(s.messages[:startIdx:startIdx], s.messages[endIdx:]...)
	return removedIDs
}

// Clear removes every live message. Used by /clear and emergency
// rollover; callers re-add the system prompt afterward if they want one.
func (s *Store) Clear() {
	s.messages = nil
}

// Replace swaps the entire live message list, used when restoring a
// snapshot.
func (s *Store) Replace(messages []Message) {
	s.messages = append([]Message(nil), messages...)
}
