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
// Package provider declares the contract the agent loop drives: a
// pluggable LLM provider backend that streams chat events. This is
// deliberately thin — wire format, HTTP/gRPC transport, and streaming
// protocol details for any specific backend are external collaborators
// per spec.md §1.
package provider

import "context"

// Message is the minimal turn shape a provider request carries. It is
// independent of internal/message.Message so provider implementations
// don't need to import the runtime's internal packages.
type Message struct {
	Role      string
	Content   string
	ToolCalls []ToolCallRequest
}

// ToolCallRequest is a tool call already resolved into the outgoing
// request (e.g. a prior turn's tool call being replayed as history).
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

// ToolSchema describes one tool available to the model.
type ToolSchema struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Options carries per-request generation parameters.
type Options struct {
	Temperature       float64
	MaxTokens         int
	Seed              int64
	ContextWindowHint int
}

// Request is everything StreamChat needs for one turn.
type Request struct {
	Model   string
	System  string
	Messages []Message
	Tools   []ToolSchema
	Options Options
}

// EventKind classifies a streamed Event.
type EventKind int

const (
	EventText EventKind = iota
	EventReasoning
	EventToolCall
	EventFinish
	EventError
)

// Event is one item yielded by a provider stream.
type Event struct {
	Kind EventKind

	// EventText / EventReasoning
	Chunk string

	// EventToolCall
	ToolCallID   string
	ToolName     string
	ToolArgs     map[string]any

	// EventFinish
	FinishReason string

	// EventError
	ErrorCode    string
	ErrorMessage string
}

// Adapter streams events from a model backend. Implementations must
// close the returned channel when the stream ends (finish or error) and
// must stop producing events promptly once ctx is cancelled.
type Adapter interface {
	StreamChat(ctx context.Context, req Request) (<-chan Event, error)

	// CountTokens is optional; adapters that can't provide an exact
	// count should return ErrCountTokensUnsupported so callers fall back
	// to the estimator in internal/tokencount.
	CountTokens(ctx context.Context, req Request) (int, error)
}

// ErrCountTokensUnsupported signals CountTokens isn't implemented by
// this adapter.
var ErrCountTokensUnsupported = countTokensUnsupportedError{}

type countTokensUnsupportedError struct{}

func (countTokensUnsupportedError) Error() string { return "provider: CountTokens not supported" }

// Capabilities describes what an adapter's backend/model supports, used
// by the agent loop's reasoning parser and the prompt orchestrator's
// tool-support note (spec.md §9 "Polymorphic provider behavior").
type Capabilities struct {
	EmitsStructuredReasoning bool
	UsesThinkMarkers         bool
	SupportsStructuredTools  bool
}

// CapableAdapter is implemented by adapters that can report their
// capabilities; adapters that don't implement it are treated as
// supporting none of the above.
type CapableAdapter interface {
	Capabilities() Capabilities
}
