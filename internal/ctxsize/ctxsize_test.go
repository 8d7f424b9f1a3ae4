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
package ctxsize

import (
	"testing"

	"github.com/Tecet/OLLM-CLI-sub019/internal/vram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyTier(t *testing.T) {
	profile := DefaultProfile()
	cases := []struct {
		userSize int
		want     Tier
	}{
		{0, TierMinimal},
		{2000, TierMinimal},
		{4096, TierCompact},
		{8000, TierCompact},
		{8192, TierStandard},
		{20000, TierExtended},
		{32768, TierMaximal},
		{100000, TierMaximal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ClassifyTier(tc.userSize, profile), "userSize=%d", tc.userSize)
	}
}

func TestProviderSizeRoundTrip(t *testing.T) {
	profile := DefaultProfile()
	providerSize := ProviderSizeFromUser(10000, profile)
	assert.Equal(t, 8500, providerSize)

	userSize := UserSizeFromProvider(providerSize, profile)
	assert.InDelta(t, 10000, userSize, 1)
}

func TestUserSizeFromProviderGuardsZeroRatio(t *testing.T) {
	profile := DefaultProfile()
	profile.ProviderOverheadRatio = 0
	assert.Equal(t, 500, UserSizeFromProvider(500, profile))
}

func TestSuggestAutoSizeFallsBackWhenVRAMUnsampled(t *testing.T) {
	profile := DefaultProfile()
	result := SuggestAutoSize(vram.Info{Sampled: false}, profile, 512)
	assert.Equal(t, profile.MinimumUserSize, result.UserSize)
	assert.Equal(t, TierCompact, result.Tier)
}

func TestSuggestAutoSizeUsesHeadroomWithinWindow(t *testing.T) {
	profile := DefaultProfile()
	result := SuggestAutoSize(vram.Info{Sampled: true, FreeMiB: 1024}, profile, 256)
	// (1024-256) * 128 = 98304, capped to AdvertisedWindow 32768
	assert.Equal(t, profile.AdvertisedWindow, result.UserSize)
	assert.Equal(t, TierMaximal, result.Tier)
}

func TestSuggestAutoSizeFallsBackWhenNoHeadroom(t *testing.T) {
	profile := DefaultProfile()
	result := SuggestAutoSize(vram.Info{Sampled: true, FreeMiB: 100}, profile, 512)
	assert.Equal(t, profile.MinimumUserSize, result.UserSize)
}

func TestValidateProfileRejectsMissingTier(t *testing.T) {
	p := Profile{Name: "broken", ProviderOverheadRatio: 0.8, Breakpoints: []TierBreakpoint{
		{Tier: TierMinimal, MinUserSize: 0},
	}}
	err := ValidateProfile(p)
	assert.Error(t, err)
}

func TestValidateProfileAcceptsDefault(t *testing.T) {
	require.NoError(t, ValidateProfile(DefaultProfile()))
}

func TestValidateProfileRejectsBadRatio(t *testing.T) {
	p := DefaultProfile()
	p.ProviderOverheadRatio = 1.5
	assert.Error(t, ValidateProfile(p))
}
