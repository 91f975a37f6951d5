package diagnose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tlsprobe "github.com/mel2oo/tlsprobe"
)

func attempt(kind TestKind, r *tlsprobe.Result) Attempt {
	return Attempt{Test: kind, Name: string(kind), Result: r}
}

// suiteAttempts runs every default test with the outcome chosen for its kind.
func suiteAttempts(outcome func(TestKind) *tlsprobe.Result) []Attempt {
	var out []Attempt
	for _, test := range Suite() {
		for i := 0; i < test.attempts(); i++ {
			at := attempt(test.Kind, outcome(test.Kind))
			at.Index = i
			out = append(out, at)
		}
	}
	return out
}

func TestAnalyze(t *testing.T) {
	ok := func() *tlsprobe.Result { return answered(150, 10*time.Millisecond) }
	silent := func() *tlsprobe.Result { return failed(tlsprobe.ResponseTimeout) }
	reset := func() *tlsprobe.Result { return failed(tlsprobe.ConnectionReset) }

	testCases := []struct {
		name            string
		attempts        []Attempt
		indicators      []IndicatorKind
		recommendations []RecommendationKind
	}{
		{
			name:            "silent drop everywhere",
			attempts:        suiteAttempts(func(TestKind) *tlsprobe.Result { return silent() }),
			indicators:      []IndicatorKind{SilentDrop, SlowInspection, RateLimiting},
			recommendations: []RecommendationKind{TotalBlock},
		},
		{
			name:            "reset everywhere",
			attempts:        suiteAttempts(func(TestKind) *tlsprobe.Result { return reset() }),
			indicators:      []IndicatorKind{SilentDrop, ActiveInspection, RateLimiting},
			recommendations: []RecommendationKind{TotalBlock, AggressiveFirewall},
		},
		{
			name:     "everything answered",
			attempts: suiteAttempts(func(TestKind) *tlsprobe.Result { return ok() }),
		},
		{
			name: "only standard blocked",
			attempts: suiteAttempts(func(kind TestKind) *tlsprobe.Result {
				if kind == KindStandard || kind == KindIntermittent {
					return silent()
				}
				return ok()
			}),
			indicators:      []IndicatorKind{SlowInspection, ComplexitySensitive},
			recommendations: []RecommendationKind{UseSimplifiedHello},
		},
		{
			name: "only legacy answered",
			attempts: suiteAttempts(func(kind TestKind) *tlsprobe.Result {
				if kind == KindLegacy {
					return ok()
				}
				return silent()
			}),
			indicators:      []IndicatorKind{SilentDrop, SlowInspection, RateLimiting},
			recommendations: []RecommendationKind{UseLegacyTLS},
		},
		{
			name: "legacy beats minimal beats standard",
			attempts: []Attempt{
				attempt(KindStandard, silent()),
				attempt(KindMinimal, ok()),
				attempt(KindMinimal, silent()),
				attempt(KindLegacy, ok()),
				attempt(KindLegacy, ok()),
			},
			indicators:      []IndicatorKind{SlowInspection, PrefersLegacy},
			recommendations: []RecommendationKind{UseSimplifiedHello},
		},
		{
			name: "rate limited",
			attempts: []Attempt{
				attempt(KindConsecutive, ok()),
				attempt(KindConsecutive, reset()),
				attempt(KindConsecutive, reset()),
			},
			indicators:      []IndicatorKind{ActiveInspection, RateLimiting},
			recommendations: []RecommendationKind{AggressiveFirewall},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := Analyze(tc.attempts)

			var indicators []IndicatorKind
			for _, i := range a.Indicators {
				indicators = append(indicators, i.Kind)
			}
			assert.Equal(t, tc.indicators, indicators)

			var recommendations []RecommendationKind
			for _, r := range a.Recommendations {
				recommendations = append(recommendations, r.Kind)
			}
			assert.Equal(t, tc.recommendations, recommendations)
		})
	}
}

func TestAnalyzeRates(t *testing.T) {
	notConnected := &tlsprobe.Result{Error: failed(tlsprobe.ConnectionRefused).Error}
	a := Analyze([]Attempt{
		attempt(KindStandard, answered(100, 10*time.Millisecond)),
		attempt(KindStandard, failed(tlsprobe.ResponseTimeout)),
		attempt(KindMinimal, notConnected),
		attempt(KindMinimal, answered(100, 10*time.Millisecond)),
	})

	assert.Equal(t, 0.75, a.TCPSuccessRate)
	assert.Equal(t, 1.0, a.HelloSentRate)
	assert.Equal(t, 0.5, a.ResponseRate)
	assert.Equal(t, 1, a.Timeouts)
	assert.Zero(t, a.Resets)

	require.Len(t, a.Tests, 2)
	assert.Equal(t, TestSummary{
		Kind:         KindStandard,
		Name:         "standard",
		Attempts:     2,
		TCPRate:      1,
		HelloRate:    1,
		ResponseRate: 0.5,
	}, a.Tests[0])
	assert.Equal(t, 0.5, a.Tests[1].TCPRate)
}

func TestAnalyzeHelloSizes(t *testing.T) {
	a := Analyze([]Attempt{
		attempt(KindStandard, answered(517, time.Millisecond)),
		attempt(KindLegacy, answered(55, time.Millisecond)),
		attempt(KindMinimal, &tlsprobe.Result{}),
	})
	sizes, ok := a.HelloSizes.Get()
	require.True(t, ok)
	assert.Equal(t, SizeRange{Min: 55, Max: 517, Significant: true}, sizes)

	a = Analyze([]Attempt{attempt(KindMinimal, answered(150, time.Millisecond))})
	sizes, ok = a.HelloSizes.Get()
	require.True(t, ok)
	assert.False(t, sizes.Significant)
}

func TestAnalyzeConnectTiming(t *testing.T) {
	var attempts []Attempt
	for _, ms := range []int{10, 20, 30, 40} {
		attempts = append(attempts, attempt(KindStandard, answered(100, time.Duration(ms)*time.Millisecond)))
	}
	attempts = append(attempts, attempt(KindStandard, &tlsprobe.Result{}))

	timing, ok := Analyze(attempts).ConnectTime.Get()
	require.True(t, ok)
	assert.Equal(t, 4, timing.Samples)
	assert.InDelta(t, 25, float64(timing.Mean.Duration())/float64(time.Millisecond), 0.001)
	assert.InDelta(t, 25, float64(timing.Median.Duration())/float64(time.Millisecond), 0.001)
	assert.GreaterOrEqual(t, timing.P95.Duration(), timing.Median.Duration())
	assert.LessOrEqual(t, timing.P95.Duration(), 40*time.Millisecond)
	assert.Greater(t, timing.StdDev.Duration(), time.Duration(0))

	assert.True(t, Analyze([]Attempt{attempt(KindStandard, &tlsprobe.Result{})}).ConnectTime.IsNone())
}

func TestAnalyzeEmpty(t *testing.T) {
	a := Analyze(nil)
	assert.Empty(t, a.Indicators)
	assert.Empty(t, a.Recommendations)
	assert.True(t, a.HelloSizes.IsNone())
}
