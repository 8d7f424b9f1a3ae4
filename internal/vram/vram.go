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
// Package vram polls GPU memory and supplies advisory figures to the
// context size calculator's auto-sizer (spec.md component 3 / SPEC_FULL
// §4.13). The concrete probing mechanism is pluggable: nothing in the
// runtime core depends on a specific GPU vendor.
package vram

import (
	"bufio"
	"context"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"go.uber.org/zap"
)

// Info is the advisory VRAM snapshot consumed by suggest_auto_size and
// the memory guard.
type Info struct {
	TotalMiB int
	UsedMiB  int
	FreeMiB  int
	// Sampled is false when the last poll failed; callers should treat
	// the figures as stale and fall back to the minimum profile tier.
	Sampled bool
}

// Source produces one VRAM sample. Implementations must not block
// indefinitely; Monitor gives each Sample call its own timeout.
type Source interface {
	Sample(ctx context.Context) (Info, error)
}

// StaticSource reports a fixed figure, for CPU-only backends or tests.
type StaticSource struct {
	Info Info
}

// Sample implements Source.
func (s StaticSource) Sample(ctx context.Context) (Info, error) {
	return s.Info, nil
}

// ShellNvidiaSMISource shells out to `nvidia-smi` and parses its
// CSV-ish memory report, the same os/exec-subprocess idiom the teacher
// uses to talk to external tools over stdio (pkg/mcp/transport/stdio.go).
type ShellNvidiaSMISource struct{}

// Sample implements Source.
func (ShellNvidiaSMISource) Sample(ctx context.Context) (Info, error) {
	// #nosec G204 -- fixed command and args, no user input reaches exec.Command
	cmd := exec.CommandContext(ctx, "nvidia-smi",
		"--query-gpu=memory.total,memory.used,memory.free",
		"--format=csv,noheader,nounits")
	out, err := cmd.Output()
	if err != nil {
		return Info{}, err
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return Info{}, scanner.Err()
	}
	fields := strings.Split(scanner.Text(), ",")
	if len(fields) != 3 {
		return Info{}, errMalformed
	}

	total, err := strconv.Atoi(strings.TrimSpace(fields[0]))
	if err != nil {
		return Info{}, err
	}
	used, err := strconv.Atoi(strings.TrimSpace(fields[1]))
	if err != nil {
		return Info{}, err
	}
	free, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return Info{}, err
	}

	return Info{TotalMiB: total, UsedMiB: used, FreeMiB: free, Sampled: true}, nil
}

var errMalformed = &malformedError{}

type malformedError struct{}

func (*malformedError) Error() string { return "vram: malformed nvidia-smi output" }

// Monitor polls a Source on a fixed interval and keeps the last-known
// good sample, so a transient probe failure doesn't erase advisory data.
type Monitor struct {
	source       Source
	interval     time.Duration
	sampleTimeout time.Duration

	mu   sync.RWMutex
	last Info

	cancel context.CancelFunc
	done   chan struct{}
}

// NewMonitor creates a monitor that has not started polling yet.
func NewMonitor(source Source, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Monitor{source: source, interval: interval, sampleTimeout: 2 * time.Second}
}

// Start begins polling on a background goroutine until ctx is cancelled
// or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	// Sample once synchronously so Latest() has data immediately.
	m.poll(ctx)

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.poll(ctx)
			}
		}
	}()
}

func (m *Monitor) poll(ctx context.Context) {
	sampleCtx, cancel := context.WithTimeout(ctx, m.sampleTimeout)
	defer cancel()

	info, err := m.source.Sample(sampleCtx)
	if err != nil {
		rtlog.Warn("vram poll failed", zap.Error(err))
		m.mu.Lock()
		m.last.Sampled = false
		m.mu.Unlock()
		return
	}

	m.mu.Lock()
	m.last = info
	m.mu.Unlock()
}

// Stop cancels polling and waits for the background goroutine to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
}

// Latest returns the last-known sample. Sampled is false if the most
// recent poll failed or none has run yet.
func (m *Monitor) Latest() Info {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}
