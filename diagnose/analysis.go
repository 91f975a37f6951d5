package diagnose

import (
	"fmt"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"golang.org/x/exp/maps"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/optionals"
	"github.com/mel2oo/tlsprobe/slices"
)

const (
	silentDropTCPRate      = 0.8
	silentDropResponseRate = 0.2
	rateLimitSuccessRatio  = 0.5
	helloSizeSpread        = 200
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

type IndicatorKind string

const (
	// TCP connects but the hello is never answered.
	SilentDrop IndicatorKind = "silent_drop"

	// Connections are reset after the hello.
	ActiveInspection IndicatorKind = "active_inspection"

	// Timeouts outnumber resets.
	SlowInspection      IndicatorKind = "slow_inspection"
	RateLimiting        IndicatorKind = "rate_limiting"
	PrefersLegacy       IndicatorKind = "prefers_legacy"
	ComplexitySensitive IndicatorKind = "complexity_sensitive"
)

type Indicator struct {
	Kind     IndicatorKind `json:"kind"`
	Severity Severity      `json:"severity"`
	Summary  string        `json:"summary"`
	Details  []string      `json:"details,omitempty"`
}

type RecommendationKind string

const (
	UseSimplifiedHello RecommendationKind = "simplified_hello"
	UseLegacyTLS       RecommendationKind = "legacy_tls"
	TotalBlock         RecommendationKind = "total_block"
	AggressiveFirewall RecommendationKind = "aggressive_firewall"
)

type Recommendation struct {
	Kind    RecommendationKind `json:"kind"`
	Summary string             `json:"summary"`
	Steps   []string           `json:"steps"`
}

// TestSummary holds per-test success rates.
type TestSummary struct {
	Kind         TestKind `json:"kind"`
	Name         string   `json:"name"`
	Attempts     int      `json:"attempts"`
	TCPRate      float64  `json:"tcp_rate"`
	HelloRate    float64  `json:"hello_rate"`
	ResponseRate float64  `json:"response_rate"`
}

type SizeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
	// The spread is large enough to matter to a size-sensitive middlebox.
	Significant bool `json:"significant"`
}

// Timing summarizes TCP connect times.
type Timing struct {
	Samples int                   `json:"samples"`
	Mean    tlsprobe.Milliseconds `json:"mean_ms"`
	Median  tlsprobe.Milliseconds `json:"median_ms"`
	P95     tlsprobe.Milliseconds `json:"p95_ms"`
	StdDev  tlsprobe.Milliseconds `json:"stddev_ms"`
}

type Analysis struct {
	Tests []TestSummary `json:"tests"`

	TCPSuccessRate float64 `json:"tcp_success_rate"`
	// Over the attempts that connected.
	HelloSentRate float64 `json:"hello_sent_rate"`
	ResponseRate  float64 `json:"response_rate"`

	Resets       int            `json:"resets"`
	Timeouts     int            `json:"timeouts"`
	ResetsByTest map[string]int `json:"resets_by_test,omitempty"`

	Indicators      []Indicator                   `json:"indicators"`
	HelloSizes      optionals.Optional[SizeRange] `json:"hello_sizes"`
	ConnectTime     optionals.Optional[Timing]    `json:"connect_time"`
	Recommendations []Recommendation              `json:"recommendations"`
}

func (a Analysis) HasIndicator(kind IndicatorKind) bool {
	for _, i := range a.Indicators {
		if i.Kind == kind {
			return true
		}
	}
	return false
}

func (a Analysis) HasRecommendation(kind RecommendationKind) bool {
	for _, r := range a.Recommendations {
		if r.Kind == kind {
			return true
		}
	}
	return false
}

func isReset(r *tlsprobe.Result) bool {
	return r.FailureKind().GetOrDefault("") == tlsprobe.ConnectionReset
}

func isTimeout(r *tlsprobe.Result) bool {
	switch r.FailureKind().GetOrDefault("") {
	case tlsprobe.ConnectTimeout, tlsprobe.ResponseTimeout:
		return true
	}
	return false
}

func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// Analyze looks for firewall patterns across all attempts.
func Analyze(attempts []Attempt) Analysis {
	var a Analysis
	if len(attempts) == 0 {
		return a
	}

	results := slices.Map(attempts, func(at Attempt) *tlsprobe.Result { return at.Result })
	connected := slices.Count(results, func(r *tlsprobe.Result) bool { return r.Connected })
	sent := slices.Count(results, func(r *tlsprobe.Result) bool { return r.Connected && r.HelloSent })
	responded := slices.Count(results, (*tlsprobe.Result).GotResponse)

	a.Tests = summarizeTests(attempts)
	a.TCPSuccessRate = rate(connected, len(results))
	a.HelloSentRate = rate(sent, max(1, connected))
	a.ResponseRate = rate(responded, len(results))

	for _, at := range attempts {
		if isReset(at.Result) {
			a.Resets++
			if a.ResetsByTest == nil {
				a.ResetsByTest = map[string]int{}
			}
			a.ResetsByTest[at.Name]++
		}
		if isTimeout(at.Result) {
			a.Timeouts++
		}
	}

	a.Indicators = indicators(&a, attempts)
	a.HelloSizes = helloSizes(results)
	a.ConnectTime = connectTiming(results)
	a.Recommendations = recommendations(&a, attempts)
	return a
}

func summarizeTests(attempts []Attempt) []TestSummary {
	var order []string
	byName := map[string][]*tlsprobe.Result{}
	kinds := map[string]TestKind{}
	for _, at := range attempts {
		if _, ok := byName[at.Name]; !ok {
			order = append(order, at.Name)
			kinds[at.Name] = at.Test
		}
		byName[at.Name] = append(byName[at.Name], at.Result)
	}

	return slices.Map(order, func(name string) TestSummary {
		rs := byName[name]
		return TestSummary{
			Kind:         kinds[name],
			Name:         name,
			Attempts:     len(rs),
			TCPRate:      rate(slices.Count(rs, func(r *tlsprobe.Result) bool { return r.Connected }), len(rs)),
			HelloRate:    rate(slices.Count(rs, func(r *tlsprobe.Result) bool { return r.HelloSent }), len(rs)),
			ResponseRate: rate(slices.Count(rs, (*tlsprobe.Result).GotResponse), len(rs)),
		}
	})
}

// responses counts the attempts of the given test kind that got an answer,
// and how many attempts there were.
func responses(attempts []Attempt, kind TestKind) (int, int) {
	ofKind := slices.Filter(attempts, func(at Attempt) bool { return at.Test == kind })
	return slices.Count(ofKind, func(at Attempt) bool { return at.Result.GotResponse() }), len(ofKind)
}

func indicators(a *Analysis, attempts []Attempt) []Indicator {
	var out []Indicator

	if a.TCPSuccessRate > silentDropTCPRate && a.ResponseRate < silentDropResponseRate {
		out = append(out, Indicator{
			Kind:     SilentDrop,
			Severity: SeverityHigh,
			Summary:  "firewall blocking TLS based on content",
			Details: []string{
				"TCP connects consistently",
				"Client Hello is sent successfully",
				"server never answers (silent drop)",
			},
		})
	}

	if a.Resets > 0 {
		details := []string{
			fmt.Sprintf("%d connections actively reset", a.Resets),
			"deep packet inspection matched the handshake",
			"specific cipher suites or extensions may be blocked",
		}
		for _, name := range sortedKeys(a.ResetsByTest) {
			details = append(details, fmt.Sprintf("%s: %d resets", name, a.ResetsByTest[name]))
		}
		out = append(out, Indicator{
			Kind:     ActiveInspection,
			Severity: SeverityHigh,
			Summary:  "firewall with active inspection",
			Details:  details,
		})
	}

	if a.Timeouts > 0 && a.Timeouts > a.Resets {
		out = append(out, Indicator{
			Kind:     SlowInspection,
			Severity: SeverityMedium,
			Summary:  "firewall with slow analysis",
			Details: []string{
				fmt.Sprintf("%d timeouts vs %d resets", a.Timeouts, a.Resets),
				"inspection is not reaching a decision quickly",
				"it may be consulting external block lists",
			},
		})
	}

	if ok, total := responses(attempts, KindConsecutive); total > 0 && float64(ok) < float64(total)*rateLimitSuccessRatio {
		out = append(out, Indicator{
			Kind:     RateLimiting,
			Severity: SeverityMedium,
			Summary:  "rate limiting detected",
			Details: []string{
				"consecutive connections have a lower success rate",
				"the firewall may rate limit per source or destination",
			},
		})
	}

	standard, _ := responses(attempts, KindStandard)
	minimal, _ := responses(attempts, KindMinimal)
	legacy, _ := responses(attempts, KindLegacy)
	switch {
	case legacy > minimal && minimal > standard:
		out = append(out, Indicator{
			Kind:     PrefersLegacy,
			Severity: SeverityLow,
			Summary:  "firewall prefers legacy TLS",
			Details: []string{
				"older Client Hellos get answered more often",
				"modern TLS features may be blocked",
			},
		})
	case minimal > standard:
		out = append(out, Indicator{
			Kind:     ComplexitySensitive,
			Severity: SeverityMedium,
			Summary:  "firewall sensitive to hello complexity",
			Details: []string{
				"the simplified Client Hello works better",
				"specific extensions or cipher suites may be blocked",
			},
		})
	}

	return out
}

func sortedKeys(m map[string]int) []string {
	keys := maps.Keys(m)
	sort.Strings(keys)
	return keys
}

func helloSizes(results []*tlsprobe.Result) optionals.Optional[SizeRange] {
	sizes := slices.Filter(slices.Map(results, func(r *tlsprobe.Result) int { return r.HelloSize }),
		func(n int) bool { return n > 0 })
	if len(sizes) == 0 {
		return optionals.None[SizeRange]()
	}
	r := SizeRange{Min: sizes[0], Max: sizes[0]}
	for _, n := range sizes[1:] {
		r.Min = min(r.Min, n)
		r.Max = max(r.Max, n)
	}
	r.Significant = r.Max-r.Min > helloSizeSpread
	return optionals.Some(r)
}

func connectTiming(results []*tlsprobe.Result) optionals.Optional[Timing] {
	var samples stats.Float64Data
	for _, r := range results {
		if d, ok := r.ConnectTime.Get(); ok {
			samples = append(samples, float64(d.Duration())/float64(time.Millisecond))
		}
	}
	if len(samples) == 0 {
		return optionals.None[Timing]()
	}

	ms := func(f func(stats.Float64Data) (float64, error)) tlsprobe.Milliseconds {
		v, err := f(samples)
		if err != nil {
			return 0
		}
		return tlsprobe.Milliseconds(v * float64(time.Millisecond))
	}
	p95 := func(d stats.Float64Data) (float64, error) {
		return stats.Percentile(d, 95)
	}
	return optionals.Some(Timing{
		Samples: len(samples),
		Mean:    ms(stats.Mean),
		Median:  ms(stats.Median),
		P95:     ms(p95),
		StdDev:  ms(stats.StandardDeviation),
	})
}

func recommendations(a *Analysis, attempts []Attempt) []Recommendation {
	var out []Recommendation

	minimalOK, _ := responses(attempts, KindMinimal)
	standardOK, standardTotal := responses(attempts, KindStandard)
	legacyOK, _ := responses(attempts, KindLegacy)
	anyResponse := slices.Count(attempts, func(at Attempt) bool { return at.Result.GotResponse() }) > 0

	switch {
	case minimalOK > 0 && standardTotal > 0 && standardOK == 0:
		out = append(out, Recommendation{
			Kind:    UseSimplifiedHello,
			Summary: "use a simplified Client Hello",
			Steps: []string{
				"avoid modern TLS 1.3 extensions",
				"configure client libraries for basic TLS 1.2",
			},
		})
	case legacyOK > 0 && minimalOK == 0:
		out = append(out, Recommendation{
			Kind:    UseLegacyTLS,
			Summary: "use very basic TLS settings",
			Steps: []string{
				"classic RSA cipher suites only",
				"avoid ECDHE and modern algorithms",
			},
		})
	}

	if !anyResponse {
		out = append(out, Recommendation{
			Kind:    TotalBlock,
			Summary: "total block detected",
			Steps: []string{
				"the destination may be on a corporate block list",
				"request formal access from the security team",
				"provide a business justification for the access",
				"consider using the corporate proxy if available",
			},
		})
	}

	if a.Resets > 0 && a.Timeouts == 0 {
		out = append(out, Recommendation{
			Kind:    AggressiveFirewall,
			Summary: "aggressive firewall rules are blocking specific TLS",
			Steps: []string{
				"test with standard tools such as curl or openssl",
				"compare with access from other applications",
				"document the behavior for the network team",
			},
		})
	}

	return out
}
