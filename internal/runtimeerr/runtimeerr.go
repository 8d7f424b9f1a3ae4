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
// Package runtimeerr implements the error taxonomy of spec.md §7: a
// closed set of failure kinds and a single structured event shape that
// the runtime surfaces to its caller (the TUI decides presentation).
package runtimeerr

import "fmt"

// Kind enumerates the runtime's error taxonomy. It is a closed set —
// callers switch on it exhaustively rather than matching on error text.
type Kind int

const (
	// KindProviderTransient covers network errors, 5xx responses, and
	// disconnects from the provider adapter. The agent loop retries the
	// current turn once with exponential backoff before surfacing it.
	KindProviderTransient Kind = iota
	// KindProviderProtocol covers schema mismatches and invalid
	// tool-call JSON from the provider. Fails the turn fast; never
	// mutates checkpoints.
	KindProviderProtocol
	// KindToolExecution covers a tool returning an error. Recorded as a
	// tool-role message; the loop continues.
	KindToolExecution
	// KindContextOverflow covers pre-send validation failing at r >= 1.
	// Triggers emergency rollover.
	KindContextOverflow
	// KindCompressionFailure covers the inflation guard rejecting a
	// summarization result.
	KindCompressionFailure
	// KindHookFailure covers a hook exiting non-zero, timing out, or
	// replying with invalid JSON.
	KindHookFailure
	// KindHookTrust covers a hook whose command isn't whitelisted or
	// that hasn't been approved.
	KindHookTrust
	// KindSnapshotIO covers a snapshot write or read failing.
	KindSnapshotIO
	// KindCancellation covers cooperative turn cancellation. Not an
	// error for accounting purposes, but terminates the turn cleanly.
	KindCancellation
)

func (k Kind) String() string {
	switch k {
	case KindProviderTransient:
		return "provider_transient"
	case KindProviderProtocol:
		return "provider_protocol"
	case KindToolExecution:
		return "tool_execution"
	case KindContextOverflow:
		return "context_overflow"
	case KindCompressionFailure:
		return "compression_failure"
	case KindHookFailure:
		return "hook_failure"
	case KindHookTrust:
		return "hook_trust"
	case KindSnapshotIO:
		return "snapshot_io"
	case KindCancellation:
		return "cancellation"
	default:
		return "unknown"
	}
}

// Surface is the single structured event the runtime emits per failure.
// The TUI reads UserMessage for display and Recoverable to decide whether
// to offer a retry.
type Surface struct {
	Kind        Kind
	Recoverable bool
	UserMessage string
	Detail      error
}

func (s *Surface) Error() string {
	if s.Detail != nil {
		return fmt.Sprintf("%s: %s (%v)", s.Kind, s.UserMessage, s.Detail)
	}
	return fmt.Sprintf("%s: %s", s.Kind, s.UserMessage)
}

func (s *Surface) Unwrap() error { return s.Detail }

func new(kind Kind, recoverable bool, userMessage string, detail error) *Surface {
	return &Surface{Kind: kind, Recoverable: recoverable, UserMessage: userMessage, Detail: detail}
}

// ProviderTransient builds a recoverable provider-transient surface.
func ProviderTransient(detail error) *Surface {
	return new(KindProviderTransient, true, "The model provider had a transient error. Retrying.", detail)
}

// ProviderProtocol builds a non-recoverable provider-protocol surface.
func ProviderProtocol(detail error) *Surface {
	return new(KindProviderProtocol, false, "The model provider returned a response the runtime couldn't parse.", detail)
}

// ToolExecution builds a recoverable tool-execution surface.
func ToolExecution(tool string, detail error) *Surface {
	return new(KindToolExecution, true, fmt.Sprintf("Tool %q failed.", tool), detail)
}

// ContextOverflow builds a recoverable context-overflow surface.
func ContextOverflow(detail error) *Surface {
	return new(KindContextOverflow, true, "Context window is full; compressing and retrying.", detail)
}

// CompressionFailure builds a recoverable compression-failure surface.
func CompressionFailure(detail error) *Surface {
	return new(KindCompressionFailure, true, "Summarization produced an inflated result; falling back to truncation.", detail)
}

// HookFailure builds a surface for a failed hook invocation. Recoverable
// reflects whether the event being hooked is non-blocking.
func HookFailure(hookName string, recoverable bool, detail error) *Surface {
	return new(KindHookFailure, recoverable, fmt.Sprintf("Hook %q failed.", hookName), detail)
}

// HookTrust builds a non-recoverable surface for a refused hook.
func HookTrust(hookName string, detail error) *Surface {
	return new(KindHookTrust, false, fmt.Sprintf("Hook %q was refused.", hookName), detail)
}

// SnapshotIO builds a surface for a snapshot read/write failure.
// Recoverable distinguishes best-effort recovery snapshots from
// blocking emergency snapshots.
func SnapshotIO(recoverable bool, detail error) *Surface {
	return new(KindSnapshotIO, recoverable, "Snapshot I/O failed.", detail)
}

// Cancellation builds the cooperative-cancellation surface.
func Cancellation() *Surface {
	return new(KindCancellation, true, "Turn cancelled.", nil)
}
