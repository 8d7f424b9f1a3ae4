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
// Package checkpoint implements the checkpoint store and lifecycle of
// spec.md §3/§4.3: compressed summaries with a level, age, and
// compression number that age, merge, and re-summarize over time.
//
// Checkpoints are kept in an arena with stable ids and flat
// original_message_ids arrays (spec.md §9 "checkpoint graph vs tree") —
// never pointers between checkpoints — so aging and merging can rewrite
// a checkpoint's own record in place without invalidating anyone else's
// reference to it.
package checkpoint

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Level is one of the three compression levels a checkpoint's summary
// can be written at.
type Level int

const (
	LevelDetailed Level = 3
	LevelModerate Level = 2
	LevelCompact  Level = 1
)

// Checkpoint is a compressed summary record that replaces a contiguous
// run of messages.
type Checkpoint struct {
	ID                 string
	Timestamp          time.Time
	Summary            string
	OriginalMessageIDs []string
	TokenCount         int
	Level              Level
	CompressionNumber  int
	Model              string
	CompressedAt       time.Time
}

// Goal biases summarization toward the user's stated intent (spec.md
// §3 Goal, §4.3 age/merge/compress signatures).
type Goal struct {
	Summary    string
	Milestones []string
}

// Summarizer is the capability checkpoints call into to re-summarize
// their own text at a target level. It is supplied by the compression
// coordinator, which owns the actual LLM call.
type Summarizer interface {
	Summarize(ctx context.Context, text string, target Level, goal *Goal) (summary string, tokenCount int, err error)
}

// targetLevelForAge implements the aging table of spec.md §4.3:
//
//	age <= 4   -> Detailed
//	age 5-9    -> Moderate
//	age >= 10  -> Compact
func targetLevelForAge(age int) Level {
	switch {
	case age <= 4:
		return LevelDetailed
	case age <= 9:
		return LevelModerate
	default:
		return LevelCompact
	}
}

// Store holds the live checkpoints for one session.
type Store struct {
	checkpoints []*Checkpoint
}

// NewStore creates an empty checkpoint store.
func NewStore() *Store { return &Store{} }

// Add inserts a new checkpoint.
func (s *Store) Add(c *Checkpoint) { s.checkpoints = append(s.checkpoints, c) }

// All returns every live checkpoint in insertion order.
func (s *Store) All() []*Checkpoint {
	out := make([]*Checkpoint, len(s.checkpoints))
	copy(out, s.checkpoints)
	return out
}

// Remove deletes checkpoints by id (used by Merge to retire the sources
// once the merged checkpoint is added).
func (s *Store) Remove(ids map[string]bool) {
	kept := s.checkpoints[:0]
	for _, c := range s.checkpoints {
		if !ids[c.ID] {
			kept = append(kept, c)
		}
	}
	s.checkpoints = kept
}

// Age re-summarizes every checkpoint whose level exceeds its age-derived
// target level, at that target level, using currentCompressionNumber to
// compute age. Ties in age are processed in timestamp order. Returns the
// total token delta (new total minus old total) across rewritten
// checkpoints.
func Age(ctx context.Context, s *Store, currentCompressionNumber int, summarizer Summarizer, goal *Goal) (int, error) {
	candidates := make([]*Checkpoint, 0, len(s.checkpoints))
	for _, c := range s.checkpoints {
		age := currentCompressionNumber - c.CompressionNumber
		target := targetLevelForAge(age)
		if c.Level > target {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})

	delta := 0
	for _, c := range candidates {
		age := currentCompressionNumber - c.CompressionNumber
		target := targetLevelForAge(age)

		newSummary, newTokens, err := summarizer.Summarize(ctx, c.Summary, target, goal)
		if err != nil {
			return delta, fmt.Errorf("checkpoint: age %s: %w", c.ID, err)
		}

		delta += newTokens - c.TokenCount
		c.Summary = newSummary
		c.TokenCount = newTokens
		c.Level = target
		c.CompressedAt = time.Now()
	}

	return delta, nil
}

// MinMergeEligible is the default minimum number of Level-1 checkpoints
// required before Merge will combine them (spec.md §4.3 "Merge
// eligibility: >=3 Level-1 checkpoints by default").
const MinMergeEligible = 3

// Merge combines every eligible Level-1 checkpoint (at least
// MinMergeEligible of them) into one, concatenating their summaries
// with a delimiter, re-summarizing the concatenation at Level 1, and
// inheriting the highest compression_number and the union of
// original_message_ids. Returns nil, nil if fewer than MinMergeEligible
// Level-1 checkpoints exist.
func Merge(ctx context.Context, s *Store, newID string, summarizer Summarizer, goal *Goal) (*Checkpoint, error) {
	var level1 []*Checkpoint
	for _, c := range s.checkpoints {
		if c.Level == LevelCompact {
			level1 = append(level1, c)
		}
	}
	if len(level1) < MinMergeEligible {
		return nil, nil
	}

	sort.SliceStable(level1, func(i, j int) bool {
		return level1[i].Timestamp.Before(level1[j].Timestamp)
	})

	var parts []string
	var originalIDs []string
	highestCompNum := 0
	var model string
	for _, c := range level1 {
		parts = append(parts, c.Summary)
		originalIDs = append(originalIDs, c.OriginalMessageIDs...)
		if c.CompressionNumber > highestCompNum {
			highestCompNum = c.CompressionNumber
		}
		model = c.Model
	}

	concatenated := joinWithDelimiter(parts)
	summary, tokenCount, err := summarizer.Summarize(ctx, concatenated, LevelCompact, goal)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: merge: %w", err)
	}

	merged := &Checkpoint{
		ID:                 newID,
		Timestamp:          time.Now(),
		Summary:            summary,
		OriginalMessageIDs: originalIDs,
		TokenCount:         tokenCount,
		Level:              LevelCompact,
		CompressionNumber:  highestCompNum,
		Model:              model,
		CompressedAt:       time.Now(),
	}

	toRemove := make(map[string]bool, len(level1))
	for _, c := range level1 {
		toRemove[c.ID] = true
	}
	s.Remove(toRemove)
	s.Add(merged)

	return merged, nil
}

func joinWithDelimiter(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "\n---\n"
		}
		out += p
	}
	return out
}

// ErrInvalidTargetLevel is returned by Compress when targetLevel does
// not represent a real down-level from the checkpoint's current level.
var ErrInvalidTargetLevel = fmt.Errorf("checkpoint: target level must be strictly lower than current level")

// Compress is the emergency down-level operation: re-summarize a single
// checkpoint at a lower level outside the normal aging schedule. It is
// an error for targetLevel to be >= the checkpoint's current level.
func Compress(ctx context.Context, c *Checkpoint, targetLevel Level, summarizer Summarizer, goal *Goal) error {
	if targetLevel >= c.Level {
		return ErrInvalidTargetLevel
	}

	summary, tokenCount, err := summarizer.Summarize(ctx, c.Summary, targetLevel, goal)
	if err != nil {
		return fmt.Errorf("checkpoint: compress %s: %w", c.ID, err)
	}

	c.Summary = summary
	c.TokenCount = tokenCount
	c.Level = targetLevel
	c.CompressedAt = time.Now()
	return nil
}
