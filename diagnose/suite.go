package diagnose

import (
	"context"
	"time"

	"github.com/pkg/errors"

	tlsprobe "github.com/mel2oo/tlsprobe"
	"github.com/mel2oo/tlsprobe/gid"
	"github.com/mel2oo/tlsprobe/hello"
	"github.com/mel2oo/tlsprobe/model"
)

// TestKind groups attempts for analysis.
type TestKind string

const (
	KindStandard     TestKind = "standard"
	KindMinimal      TestKind = "minimal"
	KindLegacy       TestKind = "legacy"
	KindNoSNI        TestKind = "no_sni"
	KindIntermittent TestKind = "intermittent"
	KindConsecutive  TestKind = "consecutive"
)

// Test is one entry of the diagnostic suite. Repeated attempts are separated
// by Delay.
type Test struct {
	Kind        TestKind      `json:"kind"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Profile     hello.Profile `json:"profile"`
	SNI         bool          `json:"sni"`
	Repeat      int           `json:"repeat"`
	Delay       time.Duration `json:"-"`
}

func (t Test) attempts() int {
	if t.Repeat < 1 {
		return 1
	}
	return t.Repeat
}

// Suite returns the default firewall diagnostic suite.
func Suite() []Test {
	return []Test{
		{
			Kind:        KindStandard,
			Name:        "1. Standard Client Hello",
			Description: "full hello with TLS 1.3 extensions and key share",
			Profile:     hello.Standard,
			SNI:         true,
		},
		{
			Kind:        KindMinimal,
			Name:        "2. Minimal Client Hello",
			Description: "TLS 1.2 only, basic extensions",
			Profile:     hello.Minimal,
			SNI:         true,
		},
		{
			Kind:        KindLegacy,
			Name:        "3. Legacy Client Hello",
			Description: "RSA suites only, as sent by old clients",
			Profile:     hello.Legacy,
			SNI:         true,
		},
		{
			Kind:        KindNoSNI,
			Name:        "4. Without SNI",
			Description: "minimal hello without Server Name Indication",
			Profile:     hello.Minimal,
			SNI:         false,
		},
		{
			Kind:        KindIntermittent,
			Name:        "5. Multiple Attempts",
			Description: "detect intermittent blocking and timing patterns",
			Profile:     hello.Standard,
			SNI:         true,
			Repeat:      5,
			Delay:       2 * time.Second,
		},
		{
			Kind:        KindConsecutive,
			Name:        "6. Consecutive Connections",
			Description: "check whether blocking starts after several connections",
			Profile:     hello.Minimal,
			SNI:         true,
			Repeat:      3,
			Delay:       500 * time.Millisecond,
		},
	}
}

// ProbeFunc runs a single attempt of a test.
type ProbeFunc func(ctx context.Context, t Test) *tlsprobe.Result

// Attempt is one probe run as part of a test.
type Attempt struct {
	Test   TestKind         `json:"test"`
	Name   string           `json:"name"`
	Index  int              `json:"index"`
	Result *tlsprobe.Result `json:"result"`
}

type Report struct {
	ID         gid.DiagnosticID `json:"id"`
	Host       string           `json:"host"`
	Port       int              `json:"port"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Attempts   []Attempt        `json:"attempts"`
	Analysis   Analysis         `json:"analysis"`
}

// Runner runs diagnostic tests one attempt at a time against a single target.
type Runner struct {
	Host string
	Port int

	// Applied to every attempt before the test's own profile and SNI.
	Options []tlsprobe.Option

	Logger model.Logger
	Clock  model.Clock

	// Replaces the real probe, mostly for tests.
	Probe ProbeFunc
}

// probers validates the configuration of every test before any of them runs.
func (r *Runner) probers(tests []Test) ([]ProbeFunc, error) {
	out := make([]ProbeFunc, len(tests))
	for i, t := range tests {
		if r.Probe != nil {
			out[i] = r.Probe
			continue
		}
		opts := append(append([]tlsprobe.Option(nil), r.Options...),
			tlsprobe.WithProfile(t.Profile), tlsprobe.WithSNI(t.SNI))
		p, err := tlsprobe.NewProber(r.Host, r.Port, opts...)
		if err != nil {
			return nil, errors.Wrapf(err, "test %q", t.Name)
		}
		out[i] = func(ctx context.Context, _ Test) *tlsprobe.Result {
			return p.Probe(ctx)
		}
	}
	return out, nil
}

// Run executes tests in order and analyzes the results. On cancellation the
// report covers the attempts made so far and the context error is returned.
func (r *Runner) Run(ctx context.Context, tests []Test) (*Report, error) {
	logger := model.ValidLoggerOrDefault(r.Logger)
	clock := model.ValidClockOrDefault(r.Clock)

	probes, err := r.probers(tests)
	if err != nil {
		return nil, errors.Wrap(err, "invalid diagnostic configuration")
	}

	report := &Report{
		ID:        gid.GenerateDiagnosticID(),
		Host:      r.Host,
		Port:      r.Port,
		StartedAt: clock.Now(),
	}
	finish := func(err error) (*Report, error) {
		report.Analysis = Analyze(report.Attempts)
		report.FinishedAt = clock.Now()
		return report, err
	}

	for ti, t := range tests {
		logger.Infof("test %s: %s", t.Name, t.Description)
		n := t.attempts()
		for i := 0; i < n; i++ {
			if err := ctx.Err(); err != nil {
				return finish(err)
			}
			if n > 1 {
				logger.Infof("  attempt %d/%d", i+1, n)
			}

			res := probes[ti](ctx, t)
			report.Attempts = append(report.Attempts, Attempt{Test: t.Kind, Name: t.Name, Index: i, Result: res})
			logger.Info(StatusLine(res))

			if i < n-1 && t.Delay > 0 {
				clock.Sleep(t.Delay)
			}
		}
	}
	return finish(nil)
}

// StatusLine summarizes an attempt on one line.
func StatusLine(r *tlsprobe.Result) string {
	mark := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "fail"
	}
	line := "TCP: " + mark(r.Connected) + " | Hello: " + mark(r.HelloSent) + " | Resp: " + mark(r.GotResponse())
	if rec, ok := r.Record.Get(); ok {
		if hs, ok := rec.Handshake.Get(); ok {
			line += " | " + hs.TypeName
		} else if alert, ok := rec.Alert.Get(); ok {
			line += " | Alert: " + alert.DescriptionName
		}
	} else if resp, ok := r.Response.Get(); ok && r.GotResponse() {
		line += " | " + string(resp.Kind)
	}
	if f, ok := r.Error.Get(); ok {
		line += " | " + string(f.Kind)
	}
	return line
}
