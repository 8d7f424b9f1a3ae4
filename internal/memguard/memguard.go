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
// Package memguard implements the memory guard of spec.md §4.11: graded
// warning/critical/emergency actions tied to provider-pool fill ratio
// and observed VRAM pressure.
package memguard

import (
	"context"

	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxpool"
	"github.com/Tecet/OLLM-CLI-sub019/internal/ctxsize"
	"github.com/Tecet/OLLM-CLI-sub019/internal/rtlog"
	"github.com/Tecet/OLLM-CLI-sub019/internal/vram"
	"go.uber.org/zap"
)

// Level is the graded severity of memory pressure.
type Level int

const (
	LevelNone Level = iota
	LevelWarning
	LevelCritical
	LevelEmergency
)

// Thresholds holds the configurable trigger points of spec.md §4.11.
type Thresholds struct {
	WarningFillRatio   float64
	WarningVRAMRatio   float64
	CriticalFillRatio  float64
	CriticalVRAMRatio  float64
	EmergencyFillRatio float64
	EmergencyVRAMRatio float64
}

// DefaultThresholds returns the defaults shown in spec.md §4.11.
func DefaultThresholds() Thresholds {
	return Thresholds{
		WarningFillRatio: 0.80, WarningVRAMRatio: 0.80,
		CriticalFillRatio: 0.90, CriticalVRAMRatio: 0.90,
		EmergencyFillRatio: 0.95, EmergencyVRAMRatio: 0.95,
	}
}

func vramRatio(info vram.Info) float64 {
	if !info.Sampled || info.TotalMiB <= 0 {
		return 0
	}
	return float64(info.UsedMiB) / float64(info.TotalMiB)
}

// Classify determines the severity level from a provider-pool fill
// ratio and VRAM pressure, taking the higher of the two.
func Classify(fillRatio float64, vramInfo vram.Info, t Thresholds) Level {
	v := vramRatio(vramInfo)

	if fillRatio >= t.EmergencyFillRatio || v >= t.EmergencyVRAMRatio {
		return LevelEmergency
	}
	if fillRatio >= t.CriticalFillRatio || v >= t.CriticalVRAMRatio {
		return LevelCritical
	}
	if fillRatio >= t.WarningFillRatio || v >= t.WarningVRAMRatio {
		return LevelWarning
	}
	return LevelNone
}

// Actions is the set of collaborators the guard's actions are performed
// through, injected by the agent loop.
type Actions struct {
	// BackgroundCompress runs a best-effort compression pass.
	BackgroundCompress func(ctx context.Context) error
	// AggressiveTruncate forces a truncate-strategy pass regardless of
	// the configured strategy.
	AggressiveTruncate func(ctx context.Context) error
	// CreateRecoverySnapshot writes a best-effort recovery snapshot.
	CreateRecoverySnapshot func(ctx context.Context) error
	// CreateEmergencySnapshot writes a blocking emergency snapshot.
	CreateEmergencySnapshot func(ctx context.Context) error
	// ClearToMinimumTier clears live messages to the minimum tier.
	ClearToMinimumTier func(ctx context.Context) error
}

// Guard ties Classify to the Actions collaborators and the context pool
// resize used by the critical level's "reduce user_size by ~25%" action.
type Guard struct {
	pool       *ctxpool.Pool
	profile    ctxsize.Profile
	thresholds Thresholds
	actions    Actions
}

// New creates a guard bound to a context pool and its model profile.
func New(pool *ctxpool.Pool, profile ctxsize.Profile, thresholds Thresholds, actions Actions) *Guard {
	return &Guard{pool: pool, profile: profile, thresholds: thresholds, actions: actions}
}

// Check classifies current pressure and runs the corresponding graded
// actions. It is intended to be called after every turn and whenever a
// VRAM sample updates.
func (g *Guard) Check(ctx context.Context, vramInfo vram.Info) (Level, error) {
	usage := g.pool.Usage()
	level := Classify(usage.PercentOfProvider, vramInfo, g.thresholds)

	switch level {
	case LevelNone:
		return level, nil

	case LevelWarning:
		rtlog.Warn("memguard: warning threshold reached", zap.Float64("fill_ratio", usage.PercentOfProvider))
		if g.actions.BackgroundCompress != nil {
			if err := g.actions.BackgroundCompress(ctx); err != nil {
				rtlog.Warn("memguard: background compression failed", zap.Error(err))
			}
		}
		if g.actions.CreateRecoverySnapshot != nil {
			if err := g.actions.CreateRecoverySnapshot(ctx); err != nil {
				rtlog.Warn("memguard: recovery snapshot failed (best-effort)", zap.Error(err))
			}
		}

	case LevelCritical:
		rtlog.Warn("memguard: critical threshold reached", zap.Float64("fill_ratio", usage.PercentOfProvider))
		if g.actions.AggressiveTruncate != nil {
			if err := g.actions.AggressiveTruncate(ctx); err != nil {
				rtlog.Warn("memguard: aggressive truncate failed", zap.Error(err))
			}
		}
		reduced := int(float64(usage.UserSize) * 0.75)
		if _, err := g.pool.Resize(ctx, reduced); err != nil {
			return level, err
		}

	case LevelEmergency:
		rtlog.Error("memguard: emergency threshold reached", zap.Float64("fill_ratio", usage.PercentOfProvider))
		if g.actions.CreateEmergencySnapshot != nil {
			if err := g.actions.CreateEmergencySnapshot(ctx); err != nil {
				// Emergency snapshots block rollover until persisted, else
				// degrade to in-memory-only and warn loudly (spec.md §7 SnapshotIO).
				rtlog.Error("memguard: emergency snapshot failed, degrading to in-memory-only", zap.Error(err))
			}
		}
		if g.actions.ClearToMinimumTier != nil {
			if err := g.actions.ClearToMinimumTier(ctx); err != nil {
				return level, err
			}
		}
	}

	return level, nil
}
