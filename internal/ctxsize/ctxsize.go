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
// Package ctxsize implements the pure context size calculator of
// spec.md §4.1: tier classification, user<->provider size conversion,
// and VRAM-advised auto-sizing. Every function here is total;
// SuggestAutoSize is the one place external VRAM info is consulted;
// thresholds and ratios come from a Profile, never from
// constants inlined in the functions themselves — the same
// profile-resolution shape the teacher uses for compression behavior
// (pkg/agent/compression_profiles.go).
package ctxsize

import (
	"fmt"
	"sort"

	"github.com/Tecet/OLLM-CLI-sub019/internal/vram"
)

// Tier is one of five ordered user-size classifications.
type Tier string

const (
	TierMinimal  Tier = "minimal"
	TierCompact  Tier = "compact"
	TierStandard Tier = "standard"
	TierExtended Tier = "extended"
	TierMaximal  Tier = "maximal"
)

// orderedTiers lists tiers from smallest to largest user_size.
var orderedTiers = []Tier{TierMinimal, TierCompact, TierStandard, TierExtended, TierMaximal}

// TierBreakpoint pairs a tier with the minimum user_size at which it
// starts applying. Breakpoints must be supplied sorted ascending by
// MinUserSize and must name exactly the five tiers above.
type TierBreakpoint struct {
	Tier        Tier
	MinUserSize int
}

// Profile carries the per-model data that Tier classification and
// user<->provider conversion are derived from, so no breakpoint or
// overhead ratio is hard-coded in the functions below.
type Profile struct {
	Name string

	// Breakpoints classifies user_size into a Tier. Must be sorted
	// ascending by MinUserSize and cover all five tiers.
	Breakpoints []TierBreakpoint

	// ProviderOverheadRatio is the fraction of user_size the provider
	// actually gets after overhead deduction (spec.md: "typically ~85%
	// but determined by the profile").
	ProviderOverheadRatio float64

	// AdvertisedWindow is the model's advertised context window, used
	// as the ceiling for auto-sizing.
	AdvertisedWindow int

	// MinimumUserSize is the floor suggest_auto_size falls back to when
	// VRAM info is unavailable or nothing larger fits.
	MinimumUserSize int
}

// DefaultProfile is a reasonable profile for an 8B-class open-weight
// model with a 32K advertised window, used when no model-specific
// profile is configured.
func DefaultProfile() Profile {
	return Profile{
		Name: "default",
		Breakpoints: []TierBreakpoint{
			{Tier: TierMinimal, MinUserSize: 0},
			{Tier: TierCompact, MinUserSize: 4096},
			{Tier: TierStandard, MinUserSize: 8192},
			{Tier: TierExtended, MinUserSize: 16384},
			{Tier: TierMaximal, MinUserSize: 32768},
		},
		ProviderOverheadRatio: 0.85,
		AdvertisedWindow:      32768,
		MinimumUserSize:       4096,
	}
}

// ClassifyTier performs monotone bucketing of userSize into a Tier using
// the profile's breakpoints. Breakpoints below or equal to userSize win,
// picking the highest such breakpoint (last matching entry after sorting).
func ClassifyTier(userSize int, profile Profile) Tier {
	bp := append([]TierBreakpoint(nil), profile.Breakpoints...)
	sort.Slice(bp, func(i, j int) bool { return bp[i].MinUserSize < bp[j].MinUserSize })

	tier := TierMinimal
	for _, b := range bp {
		if userSize >= b.MinUserSize {
			tier = b.Tier
		} else {
			break
		}
	}
	return tier
}

// ProviderSizeFromUser pre-deducts the model's provider overhead from
// the user-facing budget.
func ProviderSizeFromUser(userSize int, profile Profile) int {
	return int(float64(userSize) * profile.ProviderOverheadRatio)
}

// UserSizeFromProvider is the inverse of ProviderSizeFromUser, used
// during auto-sizing so the UI can show a clean user-facing budget for a
// provider size that was picked first (e.g. to fit VRAM).
func UserSizeFromProvider(providerSize int, profile Profile) int {
	if profile.ProviderOverheadRatio <= 0 {
		return providerSize
	}
	return int(float64(providerSize) / profile.ProviderOverheadRatio)
}

// AutoSizeResult is the outcome of SuggestAutoSize.
type AutoSizeResult struct {
	UserSize int
	Tier     Tier
}

// SuggestAutoSize picks the largest user_size that fits within VRAM
// (after the configured safety margin) without exceeding the model's
// advertised window, falling back to the profile's minimum tier when
// VRAM info is stale/unavailable or when no headroom is available. This
// is the one function in the package that consults external state; it
// always returns a positive size.
func SuggestAutoSize(info vram.Info, profile Profile, vramBufferMiB int) AutoSizeResult {
	minimum := profile.MinimumUserSize
	if minimum <= 0 {
		minimum = 4096
	}

	if !info.Sampled || info.FreeMiB <= 0 {
		return AutoSizeResult{UserSize: minimum, Tier: ClassifyTier(minimum, profile)}
	}

	usableMiB := info.FreeMiB - vramBufferMiB
	if usableMiB <= 0 {
		return AutoSizeResult{UserSize: minimum, Tier: ClassifyTier(minimum, profile)}
	}

	// Heuristic: ~128 tokens of KV-cache context per MiB of headroom for
	// an 8B-class model; this is intentionally coarse since the actual
	// figure depends on model size and quantization the adapter doesn't
	// expose. It only needs to pick a reasonable tier, not an exact size.
	const tokensPerMiB = 128
	candidate := usableMiB * tokensPerMiB

	if candidate > profile.AdvertisedWindow {
		candidate = profile.AdvertisedWindow
	}
	if candidate < minimum {
		candidate = minimum
	}

	return AutoSizeResult{UserSize: candidate, Tier: ClassifyTier(candidate, profile)}
}

// ValidateProfile reports whether a profile's breakpoints are usable
// (sorted ascending by MinUserSize, covering all five tiers,
// non-negative) and its provider overhead ratio lies in (0, 1].
func ValidateProfile(p Profile) error {
	if len(p.Breakpoints) != len(orderedTiers) {
		return fmt.Errorf("ctxsize: profile %q must define exactly %d breakpoints, got %d", p.Name, len(orderedTiers), len(p.Breakpoints))
	}
	seen := make(map[Tier]bool, len(orderedTiers))
	for _, b := range p.Breakpoints {
		if b.MinUserSize < 0 {
			return fmt.Errorf("ctxsize: profile %q breakpoint %q has negative MinUserSize", p.Name, b.Tier)
		}
		seen[b.Tier] = true
	}
	for i := 1; i < len(p.Breakpoints); i++ {
		if p.Breakpoints[i].MinUserSize < p.Breakpoints[i-1].MinUserSize {
			return fmt.Errorf("ctxsize: profile %q breakpoints must be sorted ascending by MinUserSize", p.Name)
		}
	}
	for _, t := range orderedTiers {
		if !seen[t] {
			return fmt.Errorf("ctxsize: profile %q is missing tier %q", p.Name, t)
		}
	}
	if p.ProviderOverheadRatio <= 0 || p.ProviderOverheadRatio > 1 {
		return fmt.Errorf("ctxsize: profile %q has invalid provider overhead ratio %f", p.Name, p.ProviderOverheadRatio)
	}
	return nil
}
