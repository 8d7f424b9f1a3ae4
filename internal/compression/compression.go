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
// Package compression implements the compression coordinator of
// spec.md §4.4: decides when and how to compress the message store,
// invokes a summarization capability, and enforces the inflation guard.
package compression

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtconfig"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtpubsub"
	"github.com/Tecet/OLLM-CLI-sub019/internal/runtimeerr"
	"github.com/Tecet/OLLM-CLI-sub019/internal/tokencount"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action is what the coordinator decided to do for a given fill ratio.
type Action int

const (
	ActionNone Action = iota
	ActionWarning
	ActionNormalCompress
	ActionEmergencyCompress
	ActionEmergencyRollover
)

// blockTimeout bounds how long a caller waits for
// summarization_in_progress to clear (spec.md §4.4).
const blockTimeout = 30 * time.Second

// Event is published on the coordinator's Events broker when a warning
// is raised or a compression pass produces a checkpoint. The
// pre_compress / post_compress hook events are dispatched by the agent
// loop, not from this broker.
type Event struct {
	Action            Action
	CompressionNumber int
	CheckpointID       string
	TokensBefore      int
	TokensAfter       int
}

// Coordinator owns the compression policy for one session.
type Coordinator struct {
	messages    *message.Store
	checkpoints *checkpoint.Store
	summarizer  checkpoint.Summarizer
	counter     *tokencount.Counter
	cfg         *rtconfig.Config

	mu                       sync.Mutex
	compressionNumber        int
	summarizationInProgress  bool
	inProgressCh             chan struct{}

	Events *rtpubsub.Broker[Event]
}

// New creates a coordinator for one session's message/checkpoint stores.
func New(messages *message.Store, checkpoints *checkpoint.Store, summarizer checkpoint.Summarizer, cfg *rtconfig.Config) *Coordinator {
	return &Coordinator{
		messages:    messages,
		checkpoints: checkpoints,
		summarizer:  summarizer,
		counter:     tokencount.Get(),
		cfg:         cfg,
		Events:      rtpubsub.NewBroker[Event](),
	}
}

// DecideAction maps a provider-pool fill ratio to the action table of
// spec.md §4.4.
func DecideAction(r float64) Action {
	switch {
	case r < 0.70:
		return ActionNone
	case r < 0.80:
		return ActionWarning
	case r < 0.95:
		return ActionNormalCompress
	case r < 1.00:
		return ActionEmergencyCompress
	default:
		return ActionEmergencyRollover
	}
}

// AwaitClear blocks until summarization_in_progress clears or
// blockTimeout elapses, whichever is first (spec.md: "the block is
// released regardless of completion").
func (c *Coordinator) AwaitClear(ctx context.Context) {
	c.mu.Lock()
	if !c.summarizationInProgress {
		c.mu.Unlock()
		return
	}
	ch := c.inProgressCh
	c.mu.Unlock()

	timer := time.NewTimer(blockTimeout)
	defer timer.Stop()

	select {
	case <-ch:
	case <-timer.C:
		rtlog.Warn("compression: summarization_in_progress wait timed out")
	case <-ctx.Done():
	}
}

func (c *Coordinator) begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarizationInProgress = true
	c.inProgressCh = make(chan struct{})
}

func (c *Coordinator) end() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarizationInProgress = false
	if c.inProgressCh != nil {
		close(c.inProgressCh)
		c.inProgressCh = nil
	}
}

// IsInProgress reports whether a summarization call is currently in
// flight.
func (c *Coordinator) IsInProgress() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summarizationInProgress
}

// Run executes the action appropriate for the given fill ratio. For
// ActionNone and ActionWarning, no messages are touched (Warning only
// publishes an event). For the two compress actions, it mutates the
// message and checkpoint stores and returns the resulting checkpoint, if
// any. ActionEmergencyRollover is refused with an error and mutates
// nothing; the agent loop performs rollover itself.
func (c *Coordinator) Run(ctx context.Context, action Action, providerSize int, goal *checkpoint.Goal) (*checkpoint.Checkpoint, error) {
	switch action {
	case ActionNone:
		return nil, nil
	case ActionWarning:
		c.Events.Publish(rtpubsub.Event[Event]{Type: rtpubsub.Updated, Payload: Event{Action: action}})
		return nil, nil
	case ActionNormalCompress:
		return c.compress(ctx, checkpoint.LevelDetailed, goal)
	case ActionEmergencyCompress:
		ck, err := c.compress(ctx, checkpoint.LevelCompact, goal)
		if err != nil {
			return nil, err
		}
		if ck != nil {
			if _, err := checkpoint.Age(ctx, c.checkpoints, c.compressionNumber, c.summarizer, goal); err != nil {
				rtlog.Warn("compression: age after emergency compress failed", zap.Error(err))
			}
			if _, err := checkpoint.Merge(ctx, c.checkpoints, uuid.NewString(), c.summarizer, goal); err != nil {
				rtlog.Warn("compression: merge after emergency compress failed", zap.Error(err))
			}
		}
		return ck, nil
	case ActionEmergencyRollover:
		return nil, fmt.Errorf("compression: emergency rollover must be driven by the agent loop, not Run")
	default:
		return nil, fmt.Errorf("compression: unknown action %d", action)
	}
}

// compress implements the shared body of normal and emergency
// compression: pick the oldest contiguous window outside the
// preserve-recent tail, summarize it per the configured strategy, apply
// the inflation guard, and on success swap the messages for a new
// checkpoint before running Age.
func (c *Coordinator) compress(ctx context.Context, level checkpoint.Level, goal *checkpoint.Goal) (*checkpoint.Checkpoint, error) {
	c.begin()
	defer c.end()

	msgs := c.messages.Messages()
	if len(msgs) == 0 {
		return nil, nil
	}

	startIdx, endIdx := windowToCompress(msgs, c.counter, c.cfg.CompressionPreserveRecent)
	if startIdx >= endIdx {
		return nil, nil
	}

	window := msgs[startIdx:endIdx]
	tokensBefore := c.counter.CountMessages(window)

	summary, tokenCount, err := c.summarizeWindow(ctx, window, level, goal)
	if err != nil {
		return nil, runtimeerr.CompressionFailure(err)
	}

	if tokenCount > tokensBefore {
		rtlog.Warn("compression: inflation guard rejected summary",
			zap.Int("tokens_before", tokensBefore), zap.Int("tokens_after", tokenCount))
		return nil, runtimeerr.CompressionFailure(fmt.Errorf("summary of %d tokens exceeds original %d tokens", tokenCount, tokensBefore))
	}

	removedIDs := c.messages.ReplaceRange(startIdx, endIdx)

	c.mu.Lock()
	c.compressionNumber++
	compNum := c.compressionNumber
	c.mu.Unlock()

	ck := &checkpoint.Checkpoint{
		ID:                 uuid.NewString(),
		Timestamp:          time.Now(),
		Summary:            summary,
		OriginalMessageIDs: removedIDs,
		TokenCount:         tokenCount,
		Level:              level,
		CompressionNumber:  compNum,
		CompressedAt:       time.Now(),
	}
	c.checkpoints.Add(ck)

	if _, err := checkpoint.Age(ctx, c.checkpoints, compNum, c.summarizer, goal); err != nil {
		rtlog.Warn("compression: age after compress failed", zap.Error(err))
	}

	c.Events.Publish(rtpubsub.Event[Event]{
		Type: rtpubsub.Created,
		Payload: Event{
			Action:            ActionNormalCompress,
			CompressionNumber: compNum,
			CheckpointID:      ck.ID,
			TokensBefore:      tokensBefore,
			TokensAfter:       tokenCount,
		},
	})

	return ck, nil
}

// summarizeWindow dispatches to the configured strategy. truncate drops
// the window with no model call; summarize always calls the
// summarizer; hybrid truncates the oldest half and summarizes the rest.
func (c *Coordinator) summarizeWindow(ctx context.Context, window []message.Message, level checkpoint.Level, goal *checkpoint.Goal) (string, int, error) {
	switch c.cfg.CompressionStrategy {
	case rtconfig.StrategyTruncate:
		return "[truncated: older context discarded]", 6, nil
	case rtconfig.StrategySummarize:
		return c.summarizer.Summarize(ctx, renderWindow(window), level, goal)
	case rtconfig.StrategyHybrid, "":
		half := len(window) / 2
		oldest := window[:half]
		rest := window[half:]
		_ = oldest // truncated silently; only `rest` is summarized
		summary, tokenCount, err := c.summarizer.Summarize(ctx, renderWindow(rest), level, goal)
		if err != nil {
			return "", 0, err
		}
		return fmt.Sprintf("[%d older messages truncated]\n%s", len(oldest), summary), tokenCount + 6, nil
	default:
		return "", 0, fmt.Errorf("compression: unknown strategy %q", c.cfg.CompressionStrategy)
	}
}

func renderWindow(window []message.Message) string {
	out := ""
	for _, m := range window {
		out += fmt.Sprintf("[%s]: %s\n", m.Role, m.Content)
	}
	return out
}

// windowToCompress returns [startIdx, endIdx) for the oldest contiguous
// run of messages whose combined token count can be removed while
// keeping at least preserveRecentTokens worth of the most recent
// messages untouched.
func windowToCompress(msgs []message.Message, counter *tokencount.Counter, preserveRecentTokens int) (int, int) {
	if len(msgs) == 0 {
		return 0, 0
	}

	tailTokens := 0
	tailStart := len(msgs)
	for tailStart > 0 && tailTokens < preserveRecentTokens {
		tailTokens += counter.CountMessage(msgs[tailStart-1])
		tailStart--
	}

	if tailStart <= 0 {
		return 0, 0
	}
	return 0, tailStart
}

// CompressionNumber returns the current compression epoch.
func (c *Coordinator) CompressionNumber() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compressionNumber
}
