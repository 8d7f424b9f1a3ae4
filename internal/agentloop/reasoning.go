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
package agentloop

import "strings"

// reasoningParser is the small restartable state machine spec.md §9
// describes for "<think>...</think>" extraction: it consumes text chunks
// as they stream in and separates visible content from reasoning
// content. Region content may span any number of chunks, but a marker is
// recognized only when it lies whole inside one chunk; a marker split
// across two chunks is passed through as ordinary text. It is restarted
// fresh for every assistant message.
type reasoningParser struct {
	inThink bool
	visible strings.Builder
	think   strings.Builder
	started bool
	done    bool
}

const (
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Feed appends one chunk of raw provider text, updating the parser's
// internal buffers. Each chunk is scanned on its own with a substring
// search; no partial marker is carried over to the next call.
func (p *reasoningParser) Feed(chunk string) {
	remaining := chunk
	for {
		if !p.inThink {
			idx := strings.Index(remaining, thinkOpen)
			if idx < 0 {
				p.visible.WriteString(remaining)
				return
			}
			p.visible.WriteString(remaining[:idx])
			p.inThink = true
			p.started = true
			remaining = remaining[idx+len(thinkOpen):]
			continue
		}

		idx := strings.Index(remaining, thinkClose)
		if idx < 0 {
			p.think.WriteString(remaining)
			return
		}
		p.think.WriteString(remaining[:idx])
		p.inThink = false
		p.done = true
		remaining = remaining[idx+len(thinkClose):]
	}
}

// VisibleText returns the text with every think-region removed.
func (p *reasoningParser) VisibleText() string { return p.visible.String() }

// Reasoning returns the accumulated reasoning content and whether a
// complete (opened and closed) region was found.
func (p *reasoningParser) Reasoning() (content string, complete bool) {
	return p.think.String(), p.done
}

// Started reports whether any think marker was ever seen, distinguishing
// "no reasoning produced" from "reasoning still open".
func (p *reasoningParser) Started() bool { return p.started }
