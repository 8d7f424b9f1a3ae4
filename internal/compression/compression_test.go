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
package compression

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/checkpoint"
	"github.com/Tecet/OLLM-CLI-sub019/internal/message"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSummarizer struct {
	shrinkTo int // characters; 0 means "half the input"
	err      error
}

func (s stubSummarizer) Summarize(ctx context.Context, text string, target checkpoint.Level, goal *checkpoint.Goal) (string, int, error) {
	if s.err != nil {
		return "", 0, s.err
	}
	n := s.shrinkTo
	if n == 0 {
		n = len(text) / 4
	}
	summary := fmt.Sprintf("summary of %d chars", len(text))
	return summary, n, nil
}

func newConfig(strategy rtconfig.CompressionStrategy) *rtconfig.Config {
	cfg := rtconfig.Defaults()
	cfg.CompressionStrategy = strategy
	cfg.CompressionPreserveRecent = 0 // preserve nothing, so the whole store is a candidate window
	return cfg
}

func seedMessages(n int) *message.Store {
	store := message.NewStore()
	for i := 0; i < n; i++ {
		m := message.New(fmt.Sprintf("m%d", i), message.RoleUser, fmt.Sprintf("message number %d with enough content to count tokens", i))
		m.Finalize(50)
		store.AddMessage(m)
	}
	return store
}

func TestDecideAction(t *testing.T) {
	cases := []struct {
		ratio float64
		want  Action
	}{
		{0.0, ActionNone},
		{0.69, ActionNone},
		{0.70, ActionWarning},
		{0.79, ActionWarning},
		{0.80, ActionNormalCompress},
		{0.94, ActionNormalCompress},
		{0.95, ActionEmergencyCompress},
		{0.99, ActionEmergencyCompress},
		{1.00, ActionEmergencyRollover},
		{1.5, ActionEmergencyRollover},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DecideAction(tc.ratio), "ratio=%.2f", tc.ratio)
	}
}

func TestRunNoneAndWarningDoNotTouchMessages(t *testing.T) {
	store := seedMessages(5)
	coord := New(store, checkpoint.NewStore(), stubSummarizer{}, newConfig(rtconfig.StrategySummarize))

	ck, err := coord.Run(context.Background(), ActionNone, 8192, nil)
	require.NoError(t, err)
	assert.Nil(t, ck)
	assert.Equal(t, 5, store.Len())

	ck, err = coord.Run(context.Background(), ActionWarning, 8192, nil)
	require.NoError(t, err)
	assert.Nil(t, ck)
	assert.Equal(t, 5, store.Len())
}

func TestRunNormalCompressProducesCheckpointAndShrinksStore(t *testing.T) {
	store := seedMessages(5)
	checkpoints := checkpoint.NewStore()
	coord := New(store, checkpoints, stubSummarizer{}, newConfig(rtconfig.StrategySummarize))

	ck, err := coord.Run(context.Background(), ActionNormalCompress, 8192, nil)
	require.NoError(t, err)
	require.NotNil(t, ck)

	assert.Equal(t, 0, store.Len(), "the whole store was the compress window since preserve-recent is 0")
	assert.Len(t, checkpoints.All(), 1)
	assert.Equal(t, 1, coord.CompressionNumber())
}

func TestRunRejectsInflatedSummary(t *testing.T) {
	store := seedMessages(3)
	coord := New(store, checkpoint.NewStore(), stubSummarizer{shrinkTo: 1_000_000}, newConfig(rtconfig.StrategySummarize))

	ck, err := coord.Run(context.Background(), ActionNormalCompress, 8192, nil)
	assert.Error(t, err)
	assert.Nil(t, ck)
	assert.Equal(t, 3, store.Len(), "store must be untouched when the inflation guard rejects the summary")
}

func TestRunEmergencyCompressAgesAndMerges(t *testing.T) {
	store := seedMessages(3)
	checkpoints := checkpoint.NewStore()
	coord := New(store, checkpoints, stubSummarizer{}, newConfig(rtconfig.StrategySummarize))

	ck, err := coord.Run(context.Background(), ActionEmergencyCompress, 8192, nil)
	require.NoError(t, err)
	require.NotNil(t, ck)
	assert.Equal(t, checkpoint.LevelCompact, ck.Level)
}

func TestRunEmergencyRolloverIsRefused(t *testing.T) {
	store := seedMessages(1)
	coord := New(store, checkpoint.NewStore(), stubSummarizer{}, newConfig(rtconfig.StrategySummarize))

	_, err := coord.Run(context.Background(), ActionEmergencyRollover, 8192, nil)
	assert.Error(t, err, "rollover must be driven by the agent loop, not Run")
}

func TestAwaitClearReturnsImmediatelyWhenIdle(t *testing.T) {
	coord := New(message.NewStore(), checkpoint.NewStore(), stubSummarizer{}, newConfig(rtconfig.StrategySummarize))

	start := time.Now()
	coord.AwaitClear(context.Background())
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestTruncateStrategyNeverCallsSummarizer(t *testing.T) {
	store := seedMessages(3)
	coord := New(store, checkpoint.NewStore(), stubSummarizer{err: fmt.Errorf("must not be called")}, newConfig(rtconfig.StrategyTruncate))

	ck, err := coord.Run(context.Background(), ActionNormalCompress, 8192, nil)
	require.NoError(t, err)
	require.NotNil(t, ck)
	assert.Contains(t, ck.Summary, "truncated")
}
